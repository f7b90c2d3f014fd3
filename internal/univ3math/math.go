// Package univ3math wraps the uniswapv3-sdk price/liquidity conversions
// behind the few shapes the strategy engine needs. The SDK is treated as
// a trusted pure library; nothing here reimplements its math.
package univ3math

import (
	"fmt"
	"math/big"

	"github.com/daoleno/uniswapv3-sdk/utils"
)

// MaxUint128 bounds pool liquidity and collect amounts (uint128 on the pool side).
var MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Tick bounds of the pool protocol.
const (
	MinTick int32 = utils.MinTick
	MaxTick int32 = utils.MaxTick
)

// SqrtRatioAtTick returns the pool's sqrt price (Q64.96) at a tick.
func SqrtRatioAtTick(tick int32) (*big.Int, error) {
	sqrt, err := utils.GetSqrtRatioAtTick(int(tick))
	if err != nil {
		return nil, fmt.Errorf("sqrt ratio at tick %d: %w", tick, err)
	}
	return sqrt, nil
}

// LiquidityForAmounts converts ordered token amounts into a liquidity unit
// for the given range at the current price. Fails if the result does not
// fit the pool's 128-bit liquidity type.
func LiquidityForAmounts(sqrtPriceX96 *big.Int, lowerTick, upperTick int32, amount0, amount1 *big.Int) (*big.Int, error) {
	sqrtLower, err := SqrtRatioAtTick(lowerTick)
	if err != nil {
		return nil, err
	}
	sqrtUpper, err := SqrtRatioAtTick(upperTick)
	if err != nil {
		return nil, err
	}

	liquidity := utils.MaxLiquidityForAmounts(sqrtPriceX96, sqrtLower, sqrtUpper, amount0, amount1, true)
	if err := CheckLiquidityWidth(liquidity); err != nil {
		return nil, err
	}
	return liquidity, nil
}

// AmountsForLiquidity estimates the token amounts represented by a
// liquidity unit over a range at the current price.
func AmountsForLiquidity(sqrtPriceX96 *big.Int, lowerTick, upperTick int32, liquidity *big.Int) (*big.Int, *big.Int, error) {
	sqrtLower, err := SqrtRatioAtTick(lowerTick)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := SqrtRatioAtTick(upperTick)
	if err != nil {
		return nil, nil, err
	}

	amount0 := big.NewInt(0)
	amount1 := big.NewInt(0)
	switch {
	case sqrtPriceX96.Cmp(sqrtLower) <= 0:
		amount0 = utils.GetAmount0Delta(sqrtLower, sqrtUpper, liquidity, false)
	case sqrtPriceX96.Cmp(sqrtUpper) >= 0:
		amount1 = utils.GetAmount1Delta(sqrtLower, sqrtUpper, liquidity, false)
	default:
		amount0 = utils.GetAmount0Delta(sqrtPriceX96, sqrtUpper, liquidity, false)
		amount1 = utils.GetAmount1Delta(sqrtLower, sqrtPriceX96, liquidity, false)
	}
	return amount0, amount1, nil
}

// BaseEquivalent values paired token amounts in the base asset at the
// current price (sqrtPriceX96 squared is token1-per-token0 in Q192).
// Used for observability and deposit-limit checks only, never for the
// report-cycle accounting figure.
func BaseEquivalent(sqrtPriceX96, amount0, amount1 *big.Int, baseIsToken0 bool) *big.Int {
	q192 := new(big.Int).Lsh(big.NewInt(1), 192)
	priceX192 := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)

	if baseIsToken0 {
		if priceX192.Sign() == 0 {
			return new(big.Int).Set(amount0)
		}
		converted := new(big.Int).Mul(amount1, q192)
		converted.Quo(converted, priceX192)
		return converted.Add(converted, amount0)
	}

	converted := new(big.Int).Mul(amount0, priceX192)
	converted.Quo(converted, q192)
	return converted.Add(converted, amount1)
}

// CheckLiquidityWidth fails if a liquidity or collect amount exceeds uint128.
func CheckLiquidityWidth(amount *big.Int) error {
	if amount == nil {
		return fmt.Errorf("liquidity amount is nil")
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("liquidity amount is negative: %s", amount)
	}
	if amount.Cmp(MaxUint128) > 0 {
		return fmt.Errorf("liquidity amount exceeds uint128: %s", amount)
	}
	return nil
}
