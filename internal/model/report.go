package model

// Report actions.
const (
	ActionOpen  = "open"
	ActionClose = "close"
)

// ReportRecord captures one completed report cycle for the journal.
type ReportRecord struct {
	ChainID     uint64        `json:"chain_id"`
	Pool        string        `json:"pool"`
	Action      string        `json:"action"`
	Timestamp   uint64        `json:"timestamp"`
	Range       PositionRange `json:"range"`
	Liquidity   string        `json:"liquidity"`
	Amount0     string        `json:"amount0"`
	Amount1     string        `json:"amount1"`
	TotalAssets string        `json:"total_assets"`
	RecordedAt  string        `json:"recorded_at"`
}
