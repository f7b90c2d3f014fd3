// Package strategy implements the single-position range strategy: the
// range calculator, the epoch state machine, the position store, and
// the lifecycle engine whose report entrypoint alternates between
// opening and closing exactly one position per epoch.
package strategy

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rangevault/internal/model"
	"rangevault/internal/pool"
	"rangevault/internal/storage"
	"rangevault/internal/univ3math"
)

// Config holds the engine parameters. Changes take effect on the next
// open, never mid-epoch.
type Config struct {
	ChainID        uint64
	Owner          common.Address
	BaseToken      common.Address
	OffsetSpacings int32
	EpochDuration  uint64
}

// Engine owns the position lifecycle. It is the only writer of the
// position store and the epoch state, and it mutates both only after
// the corresponding pool operation has fully succeeded.
type Engine struct {
	pool pool.Pool
	bank pool.Bank
	cfg  Config

	token0       common.Address
	token1       common.Address
	baseIsToken0 bool

	positions PositionStore
	epoch     Epoch

	journal storage.Storage
	states  storage.StateStore
	logger  *zap.Logger

	inFlight bool
}

// NewEngine wires the engine to its pool, bank and persistence.
func NewEngine(p pool.Pool, b pool.Bank, cfg Config, journal storage.Storage, states storage.StateStore, logger *zap.Logger) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if b == nil {
		return nil, fmt.Errorf("bank is nil")
	}
	if cfg.EpochDuration == 0 {
		return nil, fmt.Errorf("epoch duration must be positive")
	}
	if cfg.OffsetSpacings < 0 {
		return nil, fmt.Errorf("offset spacings must not be negative")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	meta := p.Meta()
	token0 := common.HexToAddress(meta.Token0)
	token1 := common.HexToAddress(meta.Token1)

	var baseIsToken0 bool
	switch cfg.BaseToken {
	case token0:
		baseIsToken0 = true
	case token1:
		baseIsToken0 = false
	default:
		return nil, fmt.Errorf("base token %s is not part of pool %s", cfg.BaseToken.Hex(), meta.Address)
	}

	e := &Engine{
		pool:         p,
		bank:         b,
		cfg:          cfg,
		token0:       token0,
		token1:       token1,
		baseIsToken0: baseIsToken0,
		journal:      journal,
		states:       states,
		logger:       logger,
		epoch:        Epoch{Duration: cfg.EpochDuration},
	}
	return e, nil
}

// Restore loads persisted range/epoch state, if any, so a restarted
// process resumes the running epoch instead of opening a second one.
func (e *Engine) Restore(ctx context.Context) error {
	if e.states == nil {
		return nil
	}
	state, ok, err := e.states.Load(ctx)
	if err != nil {
		return fmt.Errorf("load strategy state: %w", err)
	}
	if !ok {
		return nil
	}
	if state.EpochOpen() != !state.Range.IsZero() {
		return fmt.Errorf("inconsistent persisted state: epoch open %v, range %+v", state.EpochOpen(), state.Range)
	}

	e.positions.set(state.Range)
	e.epoch.StartedAt = state.EpochStartedAt
	if state.EpochOpen() {
		e.logger.Info("resumed open epoch",
			zap.Uint64("started_at", state.EpochStartedAt),
			zap.Int32("lower_tick", state.Range.LowerTick),
			zap.Int32("upper_tick", state.Range.UpperTick),
		)
	}
	return nil
}

// Position returns the position store view.
func (e *Engine) Position() *PositionStore {
	return &e.positions
}

// EpochState returns the current epoch view.
func (e *Engine) EpochState() Epoch {
	return e.epoch
}

// Report is the single accounting entrypoint. With no epoch open it
// opens a position; with an epoch open it requires the close condition
// and closes it. Either way it returns the total-assets figure for the
// cycle. Open and close never happen in the same invocation.
func (e *Engine) Report(ctx context.Context, now uint64) (*big.Int, error) {
	if e.inFlight {
		return nil, ErrReentrantReport
	}
	e.inFlight = true
	defer func() { e.inFlight = false }()

	if !e.epoch.IsOpen() {
		return e.openPosition(ctx, now)
	}

	rng, ok := e.positions.Active()
	if !ok {
		return nil, fmt.Errorf("epoch open without active range: %w", ErrNoPosition)
	}

	slot0, err := e.pool.Slot0(ctx)
	if err != nil {
		return nil, fmt.Errorf("read slot0: %w", err)
	}
	anchored := AnchorTick(slot0.Tick, e.pool.Meta().TickSpacing)
	if !e.epoch.ShouldClose(now, anchored, rng.UpperTick) {
		return nil, fmt.Errorf("%w: epoch started %d, now %d, tick %d, upper %d",
			ErrPrematureReport, e.epoch.StartedAt, now, anchored, rng.UpperTick)
	}

	return e.closePosition(ctx, now)
}

// openPosition deploys the full idle balance as a fresh range position.
// The returned total-assets figure is the idle balance snapshotted
// before any funds move: post-mint idle is near zero and would
// misreport the cycle.
func (e *Engine) openPosition(ctx context.Context, now uint64) (*big.Int, error) {
	totalAssets, err := e.idleBalance(ctx)
	if err != nil {
		return nil, err
	}
	otherBalance, err := e.bank.Balance(ctx, e.otherToken())
	if err != nil {
		return nil, fmt.Errorf("read other-token balance: %w", err)
	}

	slot0, err := e.pool.Slot0(ctx)
	if err != nil {
		return nil, fmt.Errorf("read slot0: %w", err)
	}

	meta := e.pool.Meta()
	rng, err := ComputeRange(slot0.Tick, meta.TickSpacing, e.cfg.OffsetSpacings)
	if err != nil {
		return nil, fmt.Errorf("compute range: %w", err)
	}

	// Amounts follow the pool's token0/token1 order, not base/other.
	// The other-token side is whatever residue the last close left
	// behind, so the sizing sees both balances.
	amount0, amount1 := totalAssets, otherBalance
	if !e.baseIsToken0 {
		amount0, amount1 = otherBalance, totalAssets
	}

	liquidity, err := univ3math.LiquidityForAmounts(slot0.SqrtPriceX96, rng.LowerTick, rng.UpperTick, amount0, amount1)
	if err != nil {
		return nil, fmt.Errorf("size liquidity: %w", err)
	}
	if liquidity.Sign() == 0 {
		return nil, fmt.Errorf("%w: idle balance %s", ErrZeroLiquidity, totalAssets)
	}

	// The journal carries the sized deposit; Mint's return is only
	// whatever remains owed for deferred settlement and can be zero.
	deposit0, deposit1, err := univ3math.AmountsForLiquidity(slot0.SqrtPriceX96, rng.LowerTick, rng.UpperTick, liquidity)
	if err != nil {
		return nil, fmt.Errorf("estimate deposit: %w", err)
	}

	owed0, owed1, err := e.pool.Mint(ctx, rng.LowerTick, rng.UpperTick, liquidity)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	if err := e.settle(ctx, owed0, owed1); err != nil {
		return nil, err
	}

	e.positions.set(rng)
	e.epoch.Open(now)

	e.logger.Info("position opened",
		zap.Int32("lower_tick", rng.LowerTick),
		zap.Int32("upper_tick", rng.UpperTick),
		zap.String("liquidity", liquidity.String()),
		zap.String("deposit0", deposit0.String()),
		zap.String("deposit1", deposit1.String()),
		zap.String("total_assets", totalAssets.String()),
	)

	e.persist(ctx)
	e.record(ctx, model.ReportRecord{
		Action:      model.ActionOpen,
		Timestamp:   now,
		Range:       rng,
		Liquidity:   liquidity.String(),
		Amount0:     deposit0.String(),
		Amount1:     deposit1.String(),
		TotalAssets: totalAssets.String(),
	})

	return totalAssets, nil
}

// closePosition burns the full liquidity of the active range, collects
// principal plus fees, and clears the range only once the ledger
// confirms zero residual liquidity.
func (e *Engine) closePosition(ctx context.Context, now uint64) (*big.Int, error) {
	rng, ok := e.positions.Active()
	if !ok {
		return nil, ErrNoPosition
	}

	info, err := e.pool.Position(ctx, rng.LowerTick, rng.UpperTick)
	if err != nil {
		return nil, fmt.Errorf("read position ledger: %w", err)
	}
	if err := univ3math.CheckLiquidityWidth(info.Liquidity); err != nil {
		return nil, fmt.Errorf("position liquidity: %w", err)
	}

	if info.Liquidity.Sign() > 0 {
		if _, _, err := e.pool.Burn(ctx, rng.LowerTick, rng.UpperTick, info.Liquidity); err != nil {
			return nil, fmt.Errorf("burn: %w", err)
		}
	}

	collected0, collected1, err := e.pool.Collect(ctx, e.cfg.Owner, rng.LowerTick, rng.UpperTick, univ3math.MaxUint128, univ3math.MaxUint128)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}

	after, err := e.pool.Position(ctx, rng.LowerTick, rng.UpperTick)
	if err != nil {
		return nil, fmt.Errorf("re-read position ledger: %w", err)
	}
	if after.Liquidity.Sign() == 0 {
		e.positions.clear()
		e.epoch.Clear()
	} else {
		// Full burns should always drive liquidity to zero; keep the
		// range so the residual stays reachable next cycle.
		e.logger.Warn("residual liquidity after full burn",
			zap.Int32("lower_tick", rng.LowerTick),
			zap.Int32("upper_tick", rng.UpperTick),
			zap.String("liquidity", after.Liquidity.String()),
		)
	}

	totalAssets, err := e.idleBalance(ctx)
	if err != nil {
		return nil, err
	}

	e.logger.Info("position closed",
		zap.Int32("lower_tick", rng.LowerTick),
		zap.Int32("upper_tick", rng.UpperTick),
		zap.String("burned", info.Liquidity.String()),
		zap.String("collected0", collected0.String()),
		zap.String("collected1", collected1.String()),
		zap.String("total_assets", totalAssets.String()),
	)

	e.persist(ctx)
	e.record(ctx, model.ReportRecord{
		Action:      model.ActionClose,
		Timestamp:   now,
		Range:       rng,
		Liquidity:   info.Liquidity.String(),
		Amount0:     collected0.String(),
		Amount1:     collected1.String(),
		TotalAssets: totalAssets.String(),
	})

	return totalAssets, nil
}

// TotalAssets values idle plus deployed funds in the base asset. This
// feeds limit checks and status output; report cycles use the idle
// snapshots instead.
func (e *Engine) TotalAssets(ctx context.Context) (*big.Int, error) {
	idle, err := e.idleBalance(ctx)
	if err != nil {
		return nil, err
	}

	rng, ok := e.positions.Active()
	if !ok {
		return idle, nil
	}

	info, err := e.pool.Position(ctx, rng.LowerTick, rng.UpperTick)
	if err != nil {
		return nil, fmt.Errorf("read position ledger: %w", err)
	}
	if info.Liquidity.Sign() == 0 {
		return idle, nil
	}

	slot0, err := e.pool.Slot0(ctx)
	if err != nil {
		return nil, fmt.Errorf("read slot0: %w", err)
	}
	amount0, amount1, err := univ3math.AmountsForLiquidity(slot0.SqrtPriceX96, rng.LowerTick, rng.UpperTick, info.Liquidity)
	if err != nil {
		return nil, fmt.Errorf("estimate amounts: %w", err)
	}

	deployed := univ3math.BaseEquivalent(slot0.SqrtPriceX96, amount0, amount1, e.baseIsToken0)
	return new(big.Int).Add(idle, deployed), nil
}

// idleBalance reads the undeployed base-asset balance.
func (e *Engine) idleBalance(ctx context.Context) (*big.Int, error) {
	idle, err := e.bank.Balance(ctx, e.cfg.BaseToken)
	if err != nil {
		return nil, fmt.Errorf("read idle balance: %w", err)
	}
	return idle, nil
}

func (e *Engine) otherToken() common.Address {
	if e.baseIsToken0 {
		return e.token1
	}
	return e.token0
}

// settle pays the pool the owed amounts from the mint two-phase. Any
// failure aborts the open before range/epoch state is persisted.
func (e *Engine) settle(ctx context.Context, owed0, owed1 *big.Int) error {
	if owed0 != nil && owed0.Sign() > 0 {
		if err := e.bank.Settle(ctx, e.token0, owed0); err != nil {
			return fmt.Errorf("settle token0: %w", err)
		}
	}
	if owed1 != nil && owed1.Sign() > 0 {
		if err := e.bank.Settle(ctx, e.token1, owed1); err != nil {
			return fmt.Errorf("settle token1: %w", err)
		}
	}
	return nil
}

// persist saves the durable state. The chain already moved, so a
// persistence failure is logged rather than unwound.
func (e *Engine) persist(ctx context.Context) {
	if e.states == nil {
		return
	}
	state := model.StrategyState{
		Range:          e.positions.rng,
		EpochStartedAt: e.epoch.StartedAt,
	}
	if err := e.states.Save(ctx, state); err != nil {
		e.logger.Error("persist strategy state failed", zap.Error(err))
	}
}

func (e *Engine) record(ctx context.Context, rec model.ReportRecord) {
	if e.journal == nil {
		return
	}
	meta := e.pool.Meta()
	rec.ChainID = e.cfg.ChainID
	rec.Pool = meta.Address
	rec.RecordedAt = time.Now().UTC().Format(time.RFC3339Nano)
	if err := e.journal.PutReports(ctx, []model.ReportRecord{rec}); err != nil {
		e.logger.Warn("journal report failed", zap.Error(err))
	}
}
