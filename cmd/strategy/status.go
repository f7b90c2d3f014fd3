package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rangevault/internal/model"
	"rangevault/internal/pool"
	"rangevault/internal/strategy"
)

// statusOutput is the JSON shape printed by the status subcommand.
type statusOutput struct {
	ChainID        uint64                  `json:"chain_id"`
	Pool           model.PoolMeta          `json:"pool"`
	Token0         model.TokenMeta         `json:"token0"`
	Token1         model.TokenMeta         `json:"token1"`
	SqrtPriceX96   string                  `json:"sqrt_price_x96"`
	Tick           int32                   `json:"tick"`
	EpochStartedAt uint64                  `json:"epoch_started_at,omitempty"`
	IdleBalance    string                  `json:"idle_balance"`
	TotalAssets    string                  `json:"total_assets"`
	DepositLimit   string                  `json:"deposit_limit"`
	WithdrawLimit  string                  `json:"withdraw_limit"`
	Position       *model.PositionSnapshot `json:"position,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	meta := rt.pool.Meta()

	slot0, err := rt.pool.Slot0(ctx)
	if err != nil {
		return fmt.Errorf("read slot0: %w", err)
	}
	idle, err := rt.bank.Balance(ctx, common.HexToAddress(rt.cfg.BaseToken))
	if err != nil {
		return fmt.Errorf("read idle balance: %w", err)
	}
	total, err := rt.engine.TotalAssets(ctx)
	if err != nil {
		return fmt.Errorf("total assets: %w", err)
	}
	depositLimit, err := rt.limits.AvailableDepositLimit(ctx, rt.limits.Vault, rt.engine)
	if err != nil {
		return fmt.Errorf("deposit limit: %w", err)
	}
	withdrawLimit, err := rt.limits.AvailableWithdrawLimit(ctx, rt.engine)
	if err != nil {
		return fmt.Errorf("withdraw limit: %w", err)
	}

	out := statusOutput{
		ChainID:       rt.chainID,
		Pool:          meta,
		SqrtPriceX96:  slot0.SqrtPriceX96.String(),
		Tick:          slot0.Tick,
		IdleBalance:   idle.String(),
		TotalAssets:   total.String(),
		DepositLimit:  depositLimit.String(),
		WithdrawLimit: withdrawLimit.String(),
	}

	if epoch := rt.engine.EpochState(); epoch.IsOpen() {
		out.EpochStartedAt = epoch.StartedAt
	}

	if snap, err := rt.engine.Position().Snapshot(ctx, rt.pool); err == nil {
		out.Position = &snap
	} else if !errors.Is(err, strategy.ErrNoPosition) {
		return fmt.Errorf("position snapshot: %w", err)
	}

	for _, spec := range []struct {
		dst  *model.TokenMeta
		addr string
	}{
		{&out.Token0, meta.Token0},
		{&out.Token1, meta.Token1},
	} {
		tokenMeta, err := pool.FetchTokenMeta(ctx, rt.client, common.HexToAddress(spec.addr), rt.logger)
		if err != nil {
			rt.logger.Warn("token metadata fetch failed", zap.String("token", spec.addr), zap.Error(err))
			tokenMeta = model.TokenMeta{Address: spec.addr}
		}
		*spec.dst = tokenMeta
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}
