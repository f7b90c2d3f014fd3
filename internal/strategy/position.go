package strategy

import (
	"context"
	"fmt"

	"rangevault/internal/model"
	"rangevault/internal/pool"
	"rangevault/internal/univ3math"
)

// PositionStore holds the active range. The lifecycle engine is the only
// writer; everything else reads the derived view.
type PositionStore struct {
	rng model.PositionRange
}

// Active returns the current range and whether a position is open.
func (s *PositionStore) Active() (model.PositionRange, bool) {
	return s.rng, !s.rng.IsZero()
}

func (s *PositionStore) set(rng model.PositionRange) {
	s.rng = rng
}

func (s *PositionStore) clear() {
	s.rng = model.PositionRange{}
}

// Snapshot queries the pool ledger for the active range and estimates
// the token amounts the deployed liquidity represents.
func (s *PositionStore) Snapshot(ctx context.Context, p pool.Pool) (model.PositionSnapshot, error) {
	rng, ok := s.Active()
	if !ok {
		return model.PositionSnapshot{}, ErrNoPosition
	}

	info, err := p.Position(ctx, rng.LowerTick, rng.UpperTick)
	if err != nil {
		return model.PositionSnapshot{}, fmt.Errorf("read position ledger: %w", err)
	}

	snap := model.PositionSnapshot{
		Range:      rng,
		Liquidity:  info.Liquidity.String(),
		Owed0:      info.Owed0.String(),
		Owed1:      info.Owed1.String(),
		FeeGrowth0: info.FeeGrowth0.String(),
		FeeGrowth1: info.FeeGrowth1.String(),
	}

	if info.Liquidity.Sign() > 0 {
		slot0, err := p.Slot0(ctx)
		if err != nil {
			return model.PositionSnapshot{}, fmt.Errorf("read slot0: %w", err)
		}
		amount0, amount1, err := univ3math.AmountsForLiquidity(slot0.SqrtPriceX96, rng.LowerTick, rng.UpperTick, info.Liquidity)
		if err != nil {
			return model.PositionSnapshot{}, fmt.Errorf("estimate amounts: %w", err)
		}
		snap.Amount0 = amount0.String()
		snap.Amount1 = amount1.String()
	}

	return snap, nil
}
