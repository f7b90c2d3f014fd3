package model

// PositionRange is the active liquidity range, both bounds aligned to the
// pool's tick spacing. The zero value means no position is open.
type PositionRange struct {
	LowerTick int32 `json:"lower_tick"`
	UpperTick int32 `json:"upper_tick"`
}

// IsZero reports whether no range is set.
func (r PositionRange) IsZero() bool {
	return r.LowerTick == 0 && r.UpperTick == 0
}

// Width returns the range width in ticks.
func (r PositionRange) Width() int32 {
	return r.UpperTick - r.LowerTick
}

// PositionSnapshot is a read-only view of the pool-side position ledger
// for the active range, enriched with estimated token amounts.
type PositionSnapshot struct {
	Range      PositionRange `json:"range"`
	Liquidity  string        `json:"liquidity"`
	Owed0      string        `json:"owed0"`
	Owed1      string        `json:"owed1"`
	FeeGrowth0 string        `json:"fee_growth0"`
	FeeGrowth1 string        `json:"fee_growth1"`
	Amount0    string        `json:"amount0,omitempty"`
	Amount1    string        `json:"amount1,omitempty"`
}
