package strategy

import (
	"fmt"

	"rangevault/internal/model"
	"rangevault/internal/univ3math"
)

// ComputeRange builds the single-sided liquidity range around the current
// tick. The anchor is the nearest tick-spacing multiple at or below the
// current tick, the lower bound sits offsetSpacings spacings below it and
// the upper bound one extra spacing above, biasing the range for
// single-sided entry of the base asset.
func ComputeRange(currentTick, tickSpacing, offsetSpacings int32) (model.PositionRange, error) {
	if tickSpacing <= 0 {
		return model.PositionRange{}, fmt.Errorf("tick spacing must be positive: %d", tickSpacing)
	}
	if offsetSpacings < 0 {
		return model.PositionRange{}, fmt.Errorf("offset spacings must not be negative: %d", offsetSpacings)
	}

	anchor := AnchorTick(currentTick, tickSpacing)
	rng := model.PositionRange{
		LowerTick: anchor - tickSpacing*offsetSpacings,
		UpperTick: anchor + tickSpacing*(offsetSpacings+1),
	}

	if rng.LowerTick < univ3math.MinTick || rng.UpperTick > univ3math.MaxTick {
		return model.PositionRange{}, fmt.Errorf("range [%d, %d] outside tick bounds", rng.LowerTick, rng.UpperTick)
	}
	return rng, nil
}

// AnchorTick floors a tick to the nearest tick-spacing multiple at or
// below it. Plain integer division truncates toward zero, which for
// negative ticks would anchor above the price instead of below it.
func AnchorTick(tick, tickSpacing int32) int32 {
	anchored := tick / tickSpacing * tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		anchored -= tickSpacing
	}
	return anchored
}
