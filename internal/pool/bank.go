package pool

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rangevault/internal/chain"
	"rangevault/internal/model"
)

// ERC20Bank holds the strategy's liquid funds in the owner account and
// settles owed amounts by transferring tokens to the pool.
type ERC20Bank struct {
	client       *chain.Client
	signer       *TxSigner
	pool         common.Address
	maxRetries   int
	retryBackoff time.Duration
	logger       *zap.Logger
}

// NewERC20Bank builds a bank over the owner's ERC20 balances.
func NewERC20Bank(client *chain.Client, signer *TxSigner, poolAddr common.Address, cfg OnchainConfig, logger *zap.Logger) *ERC20Bank {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ERC20Bank{
		client:       client,
		signer:       signer,
		pool:         poolAddr,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       logger,
	}
}

// Balance returns the owner's undeployed balance of a token.
func (b *ERC20Bank) Balance(ctx context.Context, token common.Address) (*big.Int, error) {
	var balance *big.Int
	err := withRetry(ctx, b.maxRetries, b.retryBackoff, func(ctx context.Context) error {
		var err error
		balance, err = ERC20BalanceOf(ctx, b.client, token, b.signer.Address())
		if err != nil {
			b.logger.Warn("balance read failed", zap.String("token", token.Hex()), zap.Error(err))
		}
		return err
	})
	return balance, err
}

var maxApprove = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// EnsureAllowance grants the spender an unlimited allowance on the
// owner's token unless a large allowance is already in place. The mint
// helper pulls owed tokens through transferFrom while answering the
// pool's payment callback, so the allowance must exist before any mint.
func (b *ERC20Bank) EnsureAllowance(ctx context.Context, token, spender common.Address) error {
	erc20, err := ERC20ABI()
	if err != nil {
		return fmt.Errorf("parse erc20 abi: %w", err)
	}

	owner := b.signer.Address()
	data, err := erc20.Pack("allowance", owner, spender)
	if err != nil {
		return fmt.Errorf("pack allowance: %w", err)
	}
	msg := ethereum.CallMsg{To: &token, Data: data}
	resp, err := b.client.CallContract(ctx, msg, nil)
	if err != nil {
		return fmt.Errorf("call allowance: %w", err)
	}
	values, err := erc20.Unpack("allowance", resp)
	if err != nil {
		return fmt.Errorf("unpack allowance: %w", err)
	}
	if len(values) != 1 {
		return fmt.Errorf("allowance return size %d", len(values))
	}
	current, err := asBigInt(values[0])
	if err != nil {
		return fmt.Errorf("allowance value: %w", err)
	}

	// Treat anything above half the range as effectively unlimited.
	if current.Cmp(new(big.Int).Rsh(maxApprove, 1)) >= 0 {
		return nil
	}

	data, err = erc20.Pack("approve", spender, maxApprove)
	if err != nil {
		return fmt.Errorf("pack approve: %w", err)
	}
	receipt, err := SendContractTx(ctx, b.client, b.signer, token, data)
	if err != nil {
		return fmt.Errorf("approve %s for %s: %w", token.Hex(), spender.Hex(), err)
	}

	b.logger.Info("granted mint allowance",
		zap.String("token", token.Hex()),
		zap.String("spender", spender.Hex()),
		zap.String("tx", receipt.TxHash.Hex()),
	)
	return nil
}

// Settle transfers a still-owed token amount to the pool. The paired
// on-chain pool settles mint payment inside the mint transaction and
// reports zero owed, so this only fires for pool adapters that defer
// settlement.
func (b *ERC20Bank) Settle(ctx context.Context, token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}

	erc20, err := ERC20ABI()
	if err != nil {
		return fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := erc20.Pack("transfer", b.pool, amount)
	if err != nil {
		return fmt.Errorf("pack transfer: %w", err)
	}

	receipt, err := SendContractTx(ctx, b.client, b.signer, token, data)
	if err != nil {
		return fmt.Errorf("settle %s to pool: %w", token.Hex(), err)
	}

	b.logger.Info("settled owed amount",
		zap.String("token", token.Hex()),
		zap.String("amount", amount.String()),
		zap.String("tx", receipt.TxHash.Hex()),
	)
	return nil
}

// ERC20BalanceOf reads a token balance via eth_call.
func ERC20BalanceOf(ctx context.Context, client *chain.Client, token, owner common.Address) (*big.Int, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := erc20.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	msg := ethereum.CallMsg{To: &token, Data: data}
	resp, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}
	values, err := erc20.Unpack("balanceOf", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf return size %d", len(values))
	}
	return asBigInt(values[0])
}

// FetchTokenMeta loads ERC20 metadata for display.
func FetchTokenMeta(ctx context.Context, client *chain.Client, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if client == nil {
		return meta, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	erc20, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}

	call := func(method string) ([]interface{}, error) {
		data, err := erc20.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		msg := ethereum.CallMsg{To: &token, Data: data}
		resp, err := client.CallContract(ctx, msg, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		return erc20.Unpack(method, resp)
	}

	values, err := call("decimals")
	if err != nil {
		return meta, err
	}
	if dec, ok := values[0].(uint8); ok {
		meta.Decimals = dec
	}

	if values, err := call("symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}
