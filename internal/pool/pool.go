// Package pool abstracts the AMM pool protocol the strategy deploys
// into, plus the bank holding the strategy's liquid funds.
package pool

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"rangevault/internal/model"
)

// Slot0 is the pool's current price state.
type Slot0 struct {
	SqrtPriceX96 *big.Int
	Tick         int32
}

// PositionInfo is the pool-side position ledger entry for a range.
type PositionInfo struct {
	Liquidity  *big.Int
	FeeGrowth0 *big.Int
	FeeGrowth1 *big.Int
	Owed0      *big.Int
	Owed1      *big.Int
}

// Pool is the contract the lifecycle engine requires of the AMM pool.
// Mint follows an explicit two-phase protocol: it returns the token
// amounts still owed after the operation and the caller settles them
// through the Bank. An adapter whose mint pays the pool within the
// operation itself returns zero owed amounts.
type Pool interface {
	Meta() model.PoolMeta
	Slot0(ctx context.Context) (Slot0, error)
	Position(ctx context.Context, lowerTick, upperTick int32) (PositionInfo, error)
	Mint(ctx context.Context, lowerTick, upperTick int32, liquidity *big.Int) (owed0, owed1 *big.Int, err error)
	Burn(ctx context.Context, lowerTick, upperTick int32, liquidity *big.Int) (amount0, amount1 *big.Int, err error)
	Collect(ctx context.Context, recipient common.Address, lowerTick, upperTick int32, max0, max1 *big.Int) (amount0, amount1 *big.Int, err error)
}

// Bank provides the strategy's liquid token balances and settles owed
// amounts against the pool during the mint two-phase.
type Bank interface {
	Balance(ctx context.Context, token common.Address) (*big.Int, error)
	Settle(ctx context.Context, token common.Address, amount *big.Int) error
}
