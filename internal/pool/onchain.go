package pool

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"rangevault/internal/chain"
	"rangevault/internal/model"
)

// OnchainConfig configures the on-chain pool adapter.
type OnchainConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// OnchainPool adapts a deployed Uniswap V3 style pool to the Pool
// interface. Reads go through eth_call with retry; mint/burn/collect are
// signed transactions whose result amounts are read back from the
// pool's own events in the receipt. Mints are routed through a helper
// contract that answers the pool's payment callback, since the pool
// requires the owed tokens within the mint transaction.
type OnchainPool struct {
	client    *chain.Client
	signer    *TxSigner
	address   common.Address
	minter    common.Address
	meta      model.PoolMeta
	poolABI   abi.ABI
	minterABI abi.ABI
	cfg       OnchainConfig
	logger    *zap.Logger
}

// NewOnchainPool connects the adapter and loads immutable pool metadata.
// The minter is the mint-helper contract address; it may be zero for
// read-only use, in which case Mint fails.
func NewOnchainPool(ctx context.Context, client *chain.Client, signer *TxSigner, address, minter common.Address, cfg OnchainConfig, logger *zap.Logger) (*OnchainPool, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if signer == nil {
		return nil, fmt.Errorf("signer is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	minterABI, err := MinterABI()
	if err != nil {
		return nil, fmt.Errorf("parse minter abi: %w", err)
	}

	p := &OnchainPool{
		client:    client,
		signer:    signer,
		address:   address,
		minter:    minter,
		poolABI:   poolABI,
		minterABI: minterABI,
		cfg:       cfg,
		logger:    logger,
	}

	meta, err := p.fetchMeta(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch pool metadata: %w", err)
	}
	p.meta = meta

	return p, nil
}

// Meta returns the immutable pool metadata.
func (p *OnchainPool) Meta() model.PoolMeta {
	return p.meta
}

// Slot0 returns the pool's current sqrt price and tick.
func (p *OnchainPool) Slot0(ctx context.Context) (Slot0, error) {
	var values []interface{}
	err := withRetry(ctx, p.cfg.MaxRetries, p.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		values, err = p.call(ctx, "slot0")
		if err != nil {
			p.logger.Warn("slot0 call failed", zap.Error(err))
		}
		return err
	})
	if err != nil {
		return Slot0{}, err
	}
	if len(values) < 2 {
		return Slot0{}, fmt.Errorf("slot0 returned %d values", len(values))
	}

	sqrt, err := asBigInt(values[0])
	if err != nil {
		return Slot0{}, fmt.Errorf("slot0 sqrt price: %w", err)
	}
	tickBig, err := asBigInt(values[1])
	if err != nil {
		return Slot0{}, fmt.Errorf("slot0 tick: %w", err)
	}
	tick, err := int24FromBig(tickBig)
	if err != nil {
		return Slot0{}, fmt.Errorf("slot0 tick: %w", err)
	}

	return Slot0{SqrtPriceX96: sqrt, Tick: tick}, nil
}

// Position reads the pool's position ledger entry for the owner and range.
func (p *OnchainPool) Position(ctx context.Context, lowerTick, upperTick int32) (PositionInfo, error) {
	key := PositionKey(p.signer.Address(), lowerTick, upperTick)

	var values []interface{}
	err := withRetry(ctx, p.cfg.MaxRetries, p.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		values, err = p.call(ctx, "positions", key)
		if err != nil {
			p.logger.Warn("positions call failed", zap.String("key", key.Hex()), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return PositionInfo{}, err
	}
	if len(values) != 5 {
		return PositionInfo{}, fmt.Errorf("positions returned %d values", len(values))
	}

	info := PositionInfo{}
	fields := []struct {
		dst  **big.Int
		name string
	}{
		{&info.Liquidity, "liquidity"},
		{&info.FeeGrowth0, "fee growth 0"},
		{&info.FeeGrowth1, "fee growth 1"},
		{&info.Owed0, "owed0"},
		{&info.Owed1, "owed1"},
	}
	for i, field := range fields {
		v, err := asBigInt(values[i])
		if err != nil {
			return PositionInfo{}, fmt.Errorf("position %s: %w", field.name, err)
		}
		*field.dst = v
	}

	return info, nil
}

// Mint adds liquidity over a range through the mint-helper contract.
// The pool demands payment inside the mint transaction via its callback;
// the helper answers it by pulling the owed tokens from the caller's
// allowance, so nothing remains owed and zero amounts are returned. The
// amounts the pool actually took are read from its Mint event.
func (p *OnchainPool) Mint(ctx context.Context, lowerTick, upperTick int32, liquidity *big.Int) (*big.Int, *big.Int, error) {
	if p.minter == (common.Address{}) {
		return nil, nil, fmt.Errorf("mint helper contract not configured")
	}

	receipt, err := p.transact(ctx, p.minter, p.minterABI, "mint", p.address, big.NewInt(int64(lowerTick)), big.NewInt(int64(upperTick)), liquidity)
	if err != nil {
		return nil, nil, fmt.Errorf("mint: %w", err)
	}

	// Mint event data: sender, amount, amount0, amount1.
	values, err := p.eventData(receipt, "Mint")
	if err != nil {
		return nil, nil, fmt.Errorf("mint event: %w", err)
	}
	if len(values) < 4 {
		return nil, nil, fmt.Errorf("mint event has %d fields", len(values))
	}
	paid0, err := asBigInt(values[2])
	if err != nil {
		return nil, nil, fmt.Errorf("mint amount0: %w", err)
	}
	paid1, err := asBigInt(values[3])
	if err != nil {
		return nil, nil, fmt.Errorf("mint amount1: %w", err)
	}

	p.logger.Info("mint settled in transaction",
		zap.String("tx", receipt.TxHash.Hex()),
		zap.String("paid0", paid0.String()),
		zap.String("paid1", paid1.String()),
	)
	return big.NewInt(0), big.NewInt(0), nil
}

// Burn removes liquidity from a range, crediting the amounts to the
// position's owed balances.
func (p *OnchainPool) Burn(ctx context.Context, lowerTick, upperTick int32, liquidity *big.Int) (*big.Int, *big.Int, error) {
	receipt, err := p.transact(ctx, p.address, p.poolABI, "burn", big.NewInt(int64(lowerTick)), big.NewInt(int64(upperTick)), liquidity)
	if err != nil {
		return nil, nil, fmt.Errorf("burn: %w", err)
	}

	// Burn event data: amount, amount0, amount1.
	values, err := p.eventData(receipt, "Burn")
	if err != nil {
		return nil, nil, fmt.Errorf("burn event: %w", err)
	}
	if len(values) < 3 {
		return nil, nil, fmt.Errorf("burn event has %d fields", len(values))
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return nil, nil, fmt.Errorf("burn amount0: %w", err)
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return nil, nil, fmt.Errorf("burn amount1: %w", err)
	}
	return amount0, amount1, nil
}

// Collect withdraws owed tokens from a range up to the requested maxima.
func (p *OnchainPool) Collect(ctx context.Context, recipient common.Address, lowerTick, upperTick int32, max0, max1 *big.Int) (*big.Int, *big.Int, error) {
	receipt, err := p.transact(ctx, p.address, p.poolABI, "collect", recipient, big.NewInt(int64(lowerTick)), big.NewInt(int64(upperTick)), max0, max1)
	if err != nil {
		return nil, nil, fmt.Errorf("collect: %w", err)
	}

	// Collect event data: recipient, amount0, amount1.
	values, err := p.eventData(receipt, "Collect")
	if err != nil {
		return nil, nil, fmt.Errorf("collect event: %w", err)
	}
	if len(values) < 3 {
		return nil, nil, fmt.Errorf("collect event has %d fields", len(values))
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return nil, nil, fmt.Errorf("collect amount0: %w", err)
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return nil, nil, fmt.Errorf("collect amount1: %w", err)
	}
	return amount0, amount1, nil
}

func (p *OnchainPool) fetchMeta(ctx context.Context) (model.PoolMeta, error) {
	meta := model.PoolMeta{Address: p.address.Hex()}

	values, err := p.call(ctx, "token0")
	if err != nil {
		return meta, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return meta, fmt.Errorf("token0: %w", err)
	}
	meta.Token0 = token0.Hex()

	values, err = p.call(ctx, "token1")
	if err != nil {
		return meta, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return meta, fmt.Errorf("token1: %w", err)
	}
	meta.Token1 = token1.Hex()

	values, err = p.call(ctx, "fee")
	if err != nil {
		return meta, err
	}
	fee, err := asBigInt(values[0])
	if err != nil {
		return meta, fmt.Errorf("fee: %w", err)
	}
	meta.Fee = uint32(fee.Uint64())

	values, err = p.call(ctx, "tickSpacing")
	if err != nil {
		return meta, err
	}
	spacingBig, err := asBigInt(values[0])
	if err != nil {
		return meta, fmt.Errorf("tick spacing: %w", err)
	}
	spacing, err := int24FromBig(spacingBig)
	if err != nil {
		return meta, fmt.Errorf("tick spacing: %w", err)
	}
	meta.TickSpacing = spacing

	return meta, nil
}

func (p *OnchainPool) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := p.poolABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &p.address, Data: data}
	resp, err := p.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := p.poolABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func (p *OnchainPool) transact(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, args ...interface{}) (*types.Receipt, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	receipt, err := SendContractTx(ctx, p.client, p.signer, contract, data)
	if err != nil {
		return nil, err
	}

	p.logger.Info("pool transaction mined",
		zap.String("method", method),
		zap.String("tx", receipt.TxHash.Hex()),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return receipt, nil
}

// eventData finds the pool's own event in the receipt and unpacks its
// non-indexed fields.
func (p *OnchainPool) eventData(receipt *types.Receipt, name string) ([]interface{}, error) {
	event, ok := p.poolABI.Events[name]
	if !ok {
		return nil, fmt.Errorf("unknown event %s", name)
	}
	for _, log := range receipt.Logs {
		if log.Address != p.address || len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}
		values, err := event.Inputs.NonIndexed().Unpack(log.Data)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", name, err)
		}
		return values, nil
	}
	return nil, fmt.Errorf("event %s not found in receipt %s", name, receipt.TxHash.Hex())
}

// SendContractTx signs and submits a contract call and waits for it to
// be mined.
func SendContractTx(ctx context.Context, client *chain.Client, signer *TxSigner, to common.Address, data []byte) (*types.Receipt, error) {
	from := signer.Address()

	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := signer.SignTx(tx)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	return client.WaitMined(ctx, signed.Hash())
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
