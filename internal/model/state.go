package model

// StrategyState is the durable engine state persisted after every
// lifecycle transition, so a restarted daemon resumes the same epoch
// instead of opening a second position.
type StrategyState struct {
	Range          PositionRange `json:"range"`
	EpochStartedAt uint64        `json:"epoch_started_at"`
	UpdatedAt      string        `json:"updated_at"`
}

// EpochOpen reports whether the persisted state describes an open epoch.
func (s StrategyState) EpochOpen() bool {
	return s.EpochStartedAt != 0
}
