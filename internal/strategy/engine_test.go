package strategy

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rangevault/internal/model"
	"rangevault/internal/pool"
	"rangevault/internal/storage"
	"rangevault/internal/univ3math"
)

var (
	testToken0 = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testToken1 = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	testOwner  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testVault  = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// fakeBank tracks token balances in memory and debits them on settle.
type fakeBank struct {
	balances map[common.Address]*big.Int
}

func newFakeBank(balance0, balance1 *big.Int) *fakeBank {
	return &fakeBank{balances: map[common.Address]*big.Int{
		testToken0: new(big.Int).Set(balance0),
		testToken1: new(big.Int).Set(balance1),
	}}
}

func (b *fakeBank) Balance(ctx context.Context, token common.Address) (*big.Int, error) {
	bal, ok := b.balances[token]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

func (b *fakeBank) Settle(ctx context.Context, token common.Address, amount *big.Int) error {
	bal := b.balances[token]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance for %s", token.Hex())
	}
	bal.Sub(bal, amount)
	return nil
}

func (b *fakeBank) credit(token common.Address, amount *big.Int) {
	if b.balances[token] == nil {
		b.balances[token] = big.NewInt(0)
	}
	b.balances[token].Add(b.balances[token], amount)
}

// fakePool models the pool-side position ledger for a single owner.
// With settleOnMint set it pulls payment from the bank inside Mint and
// reports zero owed, like the on-chain adapter's callback settlement.
type fakePool struct {
	meta         model.PoolMeta
	slot0        pool.Slot0
	bank         *fakeBank
	ledger       map[model.PositionRange]*pool.PositionInfo
	residual     *big.Int
	settleOnMint bool
	onMint       func() error
}

func newFakePool(tick int32, bank *fakeBank, t *testing.T) *fakePool {
	t.Helper()
	sqrt, err := univ3math.SqrtRatioAtTick(tick)
	require.NoError(t, err)
	return &fakePool{
		meta: model.PoolMeta{
			Address:     "0x9999999999999999999999999999999999999999",
			Token0:      testToken0.Hex(),
			Token1:      testToken1.Hex(),
			Fee:         2500,
			TickSpacing: 60,
		},
		slot0:  pool.Slot0{SqrtPriceX96: sqrt, Tick: tick},
		bank:   bank,
		ledger: make(map[model.PositionRange]*pool.PositionInfo),
	}
}

func (p *fakePool) setTick(tick int32, t *testing.T) {
	t.Helper()
	sqrt, err := univ3math.SqrtRatioAtTick(tick)
	require.NoError(t, err)
	p.slot0 = pool.Slot0{SqrtPriceX96: sqrt, Tick: tick}
}

func (p *fakePool) entry(rng model.PositionRange) *pool.PositionInfo {
	info, ok := p.ledger[rng]
	if !ok {
		info = &pool.PositionInfo{
			Liquidity:  big.NewInt(0),
			FeeGrowth0: big.NewInt(0),
			FeeGrowth1: big.NewInt(0),
			Owed0:      big.NewInt(0),
			Owed1:      big.NewInt(0),
		}
		p.ledger[rng] = info
	}
	return info
}

func (p *fakePool) Meta() model.PoolMeta { return p.meta }

func (p *fakePool) Slot0(ctx context.Context) (pool.Slot0, error) {
	return p.slot0, nil
}

func (p *fakePool) Position(ctx context.Context, lower, upper int32) (pool.PositionInfo, error) {
	info := p.entry(model.PositionRange{LowerTick: lower, UpperTick: upper})
	return pool.PositionInfo{
		Liquidity:  new(big.Int).Set(info.Liquidity),
		FeeGrowth0: new(big.Int).Set(info.FeeGrowth0),
		FeeGrowth1: new(big.Int).Set(info.FeeGrowth1),
		Owed0:      new(big.Int).Set(info.Owed0),
		Owed1:      new(big.Int).Set(info.Owed1),
	}, nil
}

func (p *fakePool) Mint(ctx context.Context, lower, upper int32, liquidity *big.Int) (*big.Int, *big.Int, error) {
	if p.onMint != nil {
		if err := p.onMint(); err != nil {
			return nil, nil, err
		}
	}
	owed0, owed1, err := univ3math.AmountsForLiquidity(p.slot0.SqrtPriceX96, lower, upper, liquidity)
	if err != nil {
		return nil, nil, err
	}
	info := p.entry(model.PositionRange{LowerTick: lower, UpperTick: upper})
	info.Liquidity.Add(info.Liquidity, liquidity)

	if p.settleOnMint {
		if err := p.bank.Settle(ctx, testToken0, owed0); err != nil {
			return nil, nil, err
		}
		if err := p.bank.Settle(ctx, testToken1, owed1); err != nil {
			return nil, nil, err
		}
		return big.NewInt(0), big.NewInt(0), nil
	}
	return owed0, owed1, nil
}

func (p *fakePool) Burn(ctx context.Context, lower, upper int32, liquidity *big.Int) (*big.Int, *big.Int, error) {
	info := p.entry(model.PositionRange{LowerTick: lower, UpperTick: upper})
	if info.Liquidity.Cmp(liquidity) < 0 {
		return nil, nil, fmt.Errorf("burn exceeds position liquidity")
	}
	amount0, amount1, err := univ3math.AmountsForLiquidity(p.slot0.SqrtPriceX96, lower, upper, liquidity)
	if err != nil {
		return nil, nil, err
	}
	info.Liquidity.Sub(info.Liquidity, liquidity)
	if p.residual != nil {
		info.Liquidity.Set(p.residual)
	}
	info.Owed0.Add(info.Owed0, amount0)
	info.Owed1.Add(info.Owed1, amount1)
	return amount0, amount1, nil
}

func (p *fakePool) Collect(ctx context.Context, recipient common.Address, lower, upper int32, max0, max1 *big.Int) (*big.Int, *big.Int, error) {
	info := p.entry(model.PositionRange{LowerTick: lower, UpperTick: upper})
	take0 := new(big.Int).Set(info.Owed0)
	if take0.Cmp(max0) > 0 {
		take0.Set(max0)
	}
	take1 := new(big.Int).Set(info.Owed1)
	if take1.Cmp(max1) > 0 {
		take1.Set(max1)
	}
	info.Owed0.Sub(info.Owed0, take0)
	info.Owed1.Sub(info.Owed1, take1)
	p.bank.credit(testToken0, take0)
	p.bank.credit(testToken1, take1)
	return take0, take1, nil
}

func testConfig() Config {
	return Config{
		ChainID:        56,
		Owner:          testOwner,
		BaseToken:      testToken0,
		OffsetSpacings: 0,
		EpochDuration:  600,
	}
}

func newTestEngine(t *testing.T, p *fakePool, b *fakeBank, states storage.StateStore) *Engine {
	t.Helper()
	engine, err := NewEngine(p, b, testConfig(), nil, states, zap.NewNop())
	require.NoError(t, err)
	return engine
}

func TestEngineLifecycle(t *testing.T) {
	ctx := context.Background()
	initial := big.NewInt(1_000_000_000)
	bank := newFakeBank(initial, big.NewInt(0))
	fake := newFakePool(120, bank, t)
	engine := newTestEngine(t, fake, bank, nil)

	var openRange model.PositionRange

	t.Run("OpenSnapshotsIdleBeforeDeploy", func(t *testing.T) {
		total, err := engine.Report(ctx, 1000)
		require.NoError(t, err)
		assert.Equal(t, initial, total, "open must report the pre-deployment idle balance")

		rng, ok := engine.Position().Active()
		require.True(t, ok)
		assert.Equal(t, int32(120), rng.LowerTick)
		assert.Equal(t, int32(180), rng.UpperTick)
		assert.True(t, engine.EpochState().IsOpen())
		openRange = rng

		info, err := fake.Position(ctx, rng.LowerTick, rng.UpperTick)
		require.NoError(t, err)
		assert.Positive(t, info.Liquidity.Sign(), "position liquidity must be deployed")

		idle, err := bank.Balance(ctx, testToken0)
		require.NoError(t, err)
		assert.Negative(t, idle.Cmp(initial), "settle must have moved funds to the pool")
	})

	t.Run("PrematureReportFailsWithoutStateChange", func(t *testing.T) {
		before, ok := engine.Position().Active()
		require.True(t, ok)

		_, err := engine.Report(ctx, 1100)
		require.ErrorIs(t, err, ErrPrematureReport)

		after, ok := engine.Position().Active()
		require.True(t, ok)
		assert.Equal(t, before, after)
		assert.True(t, engine.EpochState().IsOpen())
	})

	t.Run("CloseAtExpiryClearsPosition", func(t *testing.T) {
		total, err := engine.Report(ctx, 1600)
		require.NoError(t, err)

		_, ok := engine.Position().Active()
		assert.False(t, ok, "range must be cleared after full close")
		assert.False(t, engine.EpochState().IsOpen())

		info, err := fake.Position(ctx, openRange.LowerTick, openRange.UpperTick)
		require.NoError(t, err)
		assert.Zero(t, info.Liquidity.Sign(), "ledger must show zero liquidity after close")

		idle, err := bank.Balance(ctx, testToken0)
		require.NoError(t, err)
		assert.Equal(t, idle, total, "close must report the post-close idle balance")
	})

	t.Run("NextReportOpensAgain", func(t *testing.T) {
		_, err := engine.Report(ctx, 1700)
		require.NoError(t, err)
		assert.True(t, engine.EpochState().IsOpen())
	})
}

func TestEngineRangeBreachClose(t *testing.T) {
	ctx := context.Background()
	bank := newFakeBank(big.NewInt(1_000_000_000), big.NewInt(0))
	fake := newFakePool(120, bank, t)
	engine := newTestEngine(t, fake, bank, nil)

	_, err := engine.Report(ctx, 1000)
	require.NoError(t, err)

	// Price moves through the top of the range well before expiry.
	fake.setTick(205, t)
	_, err = engine.Report(ctx, 1100)
	require.NoError(t, err)
	assert.False(t, engine.EpochState().IsOpen())
}

func TestEngineResidualLiquidityKeepsRange(t *testing.T) {
	ctx := context.Background()
	bank := newFakeBank(big.NewInt(1_000_000_000), big.NewInt(0))
	fake := newFakePool(120, bank, t)
	engine := newTestEngine(t, fake, bank, nil)

	_, err := engine.Report(ctx, 1000)
	require.NoError(t, err)

	fake.residual = big.NewInt(7)
	_, err = engine.Report(ctx, 1600)
	require.NoError(t, err)

	rng, ok := engine.Position().Active()
	assert.True(t, ok, "range must be retained while residual liquidity remains")
	assert.Equal(t, int32(120), rng.LowerTick)
	assert.True(t, engine.EpochState().IsOpen(), "epoch must stay open until fully closed")
}

func TestEngineRejectsReentrantReport(t *testing.T) {
	ctx := context.Background()
	bank := newFakeBank(big.NewInt(1_000_000_000), big.NewInt(0))
	fake := newFakePool(120, bank, t)
	engine := newTestEngine(t, fake, bank, nil)

	fake.onMint = func() error {
		_, err := engine.Report(ctx, 1000)
		return err
	}

	_, err := engine.Report(ctx, 1000)
	require.ErrorIs(t, err, ErrReentrantReport)
	assert.False(t, engine.EpochState().IsOpen(), "aborted open must not persist state")
	_, ok := engine.Position().Active()
	assert.False(t, ok)
}

func TestEngineZeroLiquidity(t *testing.T) {
	ctx := context.Background()
	bank := newFakeBank(big.NewInt(0), big.NewInt(0))
	fake := newFakePool(120, bank, t)
	engine := newTestEngine(t, fake, bank, nil)

	_, err := engine.Report(ctx, 1000)
	require.ErrorIs(t, err, ErrZeroLiquidity)
	assert.False(t, engine.EpochState().IsOpen())
}

func TestEngineBaseOnlyBalanceInsideRange(t *testing.T) {
	ctx := context.Background()
	initial := big.NewInt(1_000_000_000)
	bank := newFakeBank(initial, big.NewInt(0))

	// Off-grid tick: the price sits strictly inside the computed range,
	// so a balance held entirely in the base asset sizes to zero
	// liquidity and the funds stay idle.
	fake := newFakePool(123, bank, t)
	engine := newTestEngine(t, fake, bank, nil)

	_, err := engine.Report(ctx, 1000)
	require.ErrorIs(t, err, ErrZeroLiquidity)
	assert.False(t, engine.EpochState().IsOpen())
	_, ok := engine.Position().Active()
	assert.False(t, ok)

	idle, err := bank.Balance(ctx, testToken0)
	require.NoError(t, err)
	assert.Equal(t, initial, idle, "failed open must not move funds")

	// Once the other side holds a balance too, the same tick deploys.
	bank.credit(testToken1, big.NewInt(500_000_000))
	total, err := engine.Report(ctx, 1100)
	require.NoError(t, err)
	assert.Equal(t, initial, total)
	assert.True(t, engine.EpochState().IsOpen())
}

func TestEngineMintSettledInsidePool(t *testing.T) {
	ctx := context.Background()
	initial := big.NewInt(1_000_000_000)
	bank := newFakeBank(initial, big.NewInt(0))
	fake := newFakePool(120, bank, t)
	fake.settleOnMint = true
	engine := newTestEngine(t, fake, bank, nil)

	total, err := engine.Report(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, initial, total)
	assert.True(t, engine.EpochState().IsOpen())

	rng, ok := engine.Position().Active()
	require.True(t, ok)
	info, err := fake.Position(ctx, rng.LowerTick, rng.UpperTick)
	require.NoError(t, err)
	assert.Positive(t, info.Liquidity.Sign())

	idle, err := bank.Balance(ctx, testToken0)
	require.NoError(t, err)
	assert.Negative(t, idle.Cmp(initial), "pool-side settlement must have debited the bank")
}

func TestEngineRejectsForeignBaseToken(t *testing.T) {
	bank := newFakeBank(big.NewInt(1), big.NewInt(0))
	fake := newFakePool(120, bank, t)

	cfg := testConfig()
	cfg.BaseToken = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	_, err := NewEngine(fake, bank, cfg, nil, nil, zap.NewNop())
	require.Error(t, err)
}

func TestEngineRestoreResumesEpoch(t *testing.T) {
	ctx := context.Background()
	statePath := filepath.Join(t.TempDir(), "state.json")
	states := &storage.FileStateStore{Path: statePath}

	bank := newFakeBank(big.NewInt(1_000_000_000), big.NewInt(0))
	fake := newFakePool(120, bank, t)

	engine := newTestEngine(t, fake, bank, states)
	_, err := engine.Report(ctx, 1000)
	require.NoError(t, err)

	restarted := newTestEngine(t, fake, bank, states)
	require.NoError(t, restarted.Restore(ctx))

	assert.True(t, restarted.EpochState().IsOpen())
	assert.Equal(t, uint64(1000), restarted.EpochState().StartedAt)

	rng, ok := restarted.Position().Active()
	require.True(t, ok)
	assert.Equal(t, int32(120), rng.LowerTick)
	assert.Equal(t, int32(180), rng.UpperTick)

	// The restarted engine closes the epoch the original opened.
	_, err = restarted.Report(ctx, 1600)
	require.NoError(t, err)
	assert.False(t, restarted.EpochState().IsOpen())
}

func TestLimits(t *testing.T) {
	ctx := context.Background()
	initial := big.NewInt(500_000)
	bank := newFakeBank(initial, big.NewInt(0))
	fake := newFakePool(120, bank, t)
	engine := newTestEngine(t, fake, bank, nil)

	t.Run("DepositOnlyFromVault", func(t *testing.T) {
		limits := Limits{Vault: testVault, DepositCeiling: big.NewInt(1_000_000)}

		got, err := limits.AvailableDepositLimit(ctx, testOwner, engine)
		require.NoError(t, err)
		assert.Zero(t, got.Sign(), "non-vault callers may not deposit")

		got, err = limits.AvailableDepositLimit(ctx, testVault, engine)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(500_000), got)
	})

	t.Run("UnlimitedCeiling", func(t *testing.T) {
		limits := Limits{Vault: testVault, DepositCeiling: new(big.Int).Set(MaxUint256)}
		got, err := limits.AvailableDepositLimit(ctx, testVault, engine)
		require.NoError(t, err)
		assert.Equal(t, MaxUint256, got)
	})

	t.Run("WithdrawLimitedToIdle", func(t *testing.T) {
		limits := Limits{Vault: testVault, DepositCeiling: new(big.Int).Set(MaxUint256)}

		before, err := limits.AvailableWithdrawLimit(ctx, engine)
		require.NoError(t, err)
		assert.Equal(t, initial, before)

		_, err = engine.Report(ctx, 1000)
		require.NoError(t, err)

		after, err := limits.AvailableWithdrawLimit(ctx, engine)
		require.NoError(t, err)
		assert.Negative(t, after.Cmp(before), "deployed funds must not be withdrawable")
	})
}
