package strategy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MaxUint256 marks an unlimited deposit ceiling.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Limits implements the deposit/withdraw limit policy: deposits only
// from the designated vault up to a ceiling on total assets,
// withdrawals only from idle balance.
type Limits struct {
	Vault          common.Address
	DepositCeiling *big.Int
}

// AvailableDepositLimit returns how much the caller may deposit.
func (l Limits) AvailableDepositLimit(ctx context.Context, caller common.Address, engine *Engine) (*big.Int, error) {
	if caller != l.Vault {
		return big.NewInt(0), nil
	}
	if l.DepositCeiling == nil {
		return big.NewInt(0), nil
	}
	if l.DepositCeiling.Cmp(MaxUint256) == 0 {
		return new(big.Int).Set(MaxUint256), nil
	}

	total, err := engine.TotalAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("total assets: %w", err)
	}
	if total.Cmp(l.DepositCeiling) >= 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).Sub(l.DepositCeiling, total), nil
}

// AvailableWithdrawLimit returns how much may be withdrawn right now.
// Deployed funds are unavailable until the epoch closes, regardless of
// caller.
func (l Limits) AvailableWithdrawLimit(ctx context.Context, engine *Engine) (*big.Int, error) {
	idle, err := engine.idleBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("idle balance: %w", err)
	}
	return idle, nil
}
