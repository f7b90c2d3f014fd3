package pool

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const v3PoolABIJSON = `[
  {"inputs": [], "name": "slot0", "outputs": [
    {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
    {"internalType": "int24", "name": "tick", "type": "int24"},
    {"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
    {"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
    {"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
    {"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
    {"internalType": "bool", "name": "unlocked", "type": "bool"}
  ], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "tickSpacing", "outputs": [{"internalType": "int24", "name": "", "type": "int24"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "fee", "outputs": [{"internalType": "uint24", "name": "", "type": "uint24"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token0", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token1", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "bytes32", "name": "key", "type": "bytes32"}], "name": "positions", "outputs": [
    {"internalType": "uint128", "name": "liquidity", "type": "uint128"},
    {"internalType": "uint256", "name": "feeGrowthInside0LastX128", "type": "uint256"},
    {"internalType": "uint256", "name": "feeGrowthInside1LastX128", "type": "uint256"},
    {"internalType": "uint128", "name": "tokensOwed0", "type": "uint128"},
    {"internalType": "uint128", "name": "tokensOwed1", "type": "uint128"}
  ], "stateMutability": "view", "type": "function"},
  {"inputs": [
    {"internalType": "address", "name": "recipient", "type": "address"},
    {"internalType": "int24", "name": "tickLower", "type": "int24"},
    {"internalType": "int24", "name": "tickUpper", "type": "int24"},
    {"internalType": "uint128", "name": "amount", "type": "uint128"},
    {"internalType": "bytes", "name": "data", "type": "bytes"}
  ], "name": "mint", "outputs": [
    {"internalType": "uint256", "name": "amount0", "type": "uint256"},
    {"internalType": "uint256", "name": "amount1", "type": "uint256"}
  ], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"internalType": "int24", "name": "tickLower", "type": "int24"},
    {"internalType": "int24", "name": "tickUpper", "type": "int24"},
    {"internalType": "uint128", "name": "amount", "type": "uint128"}
  ], "name": "burn", "outputs": [
    {"internalType": "uint256", "name": "amount0", "type": "uint256"},
    {"internalType": "uint256", "name": "amount1", "type": "uint256"}
  ], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"internalType": "address", "name": "recipient", "type": "address"},
    {"internalType": "int24", "name": "tickLower", "type": "int24"},
    {"internalType": "int24", "name": "tickUpper", "type": "int24"},
    {"internalType": "uint128", "name": "amount0Requested", "type": "uint128"},
    {"internalType": "uint128", "name": "amount1Requested", "type": "uint128"}
  ], "name": "collect", "outputs": [
    {"internalType": "uint128", "name": "amount0", "type": "uint128"},
    {"internalType": "uint128", "name": "amount1", "type": "uint128"}
  ], "stateMutability": "nonpayable", "type": "function"},
  {"anonymous": false, "inputs": [
    {"indexed": false, "internalType": "address", "name": "sender", "type": "address"},
    {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
    {"indexed": true, "internalType": "int24", "name": "tickLower", "type": "int24"},
    {"indexed": true, "internalType": "int24", "name": "tickUpper", "type": "int24"},
    {"indexed": false, "internalType": "uint128", "name": "amount", "type": "uint128"},
    {"indexed": false, "internalType": "uint256", "name": "amount0", "type": "uint256"},
    {"indexed": false, "internalType": "uint256", "name": "amount1", "type": "uint256"}
  ], "name": "Mint", "type": "event"},
  {"anonymous": false, "inputs": [
    {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
    {"indexed": true, "internalType": "int24", "name": "tickLower", "type": "int24"},
    {"indexed": true, "internalType": "int24", "name": "tickUpper", "type": "int24"},
    {"indexed": false, "internalType": "uint128", "name": "amount", "type": "uint128"},
    {"indexed": false, "internalType": "uint256", "name": "amount0", "type": "uint256"},
    {"indexed": false, "internalType": "uint256", "name": "amount1", "type": "uint256"}
  ], "name": "Burn", "type": "event"},
  {"anonymous": false, "inputs": [
    {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
    {"indexed": false, "internalType": "address", "name": "recipient", "type": "address"},
    {"indexed": true, "internalType": "int24", "name": "tickLower", "type": "int24"},
    {"indexed": true, "internalType": "int24", "name": "tickUpper", "type": "int24"},
    {"indexed": false, "internalType": "uint128", "name": "amount0", "type": "uint128"},
    {"indexed": false, "internalType": "uint128", "name": "amount1", "type": "uint128"}
  ], "name": "Collect", "type": "event"}
]`

// minterABIJSON is the helper contract that fronts pool mints. The pool
// pays itself through uniswapV3MintCallback, which the helper answers by
// pulling the owed tokens from the caller via transferFrom, so the mint
// settles inside the same transaction.
const minterABIJSON = `[
  {"inputs": [
    {"internalType": "address", "name": "pool", "type": "address"},
    {"internalType": "int24", "name": "tickLower", "type": "int24"},
    {"internalType": "int24", "name": "tickUpper", "type": "int24"},
    {"internalType": "uint128", "name": "amount", "type": "uint128"}
  ], "name": "mint", "outputs": [
    {"internalType": "uint256", "name": "amount0", "type": "uint256"},
    {"internalType": "uint256", "name": "amount1", "type": "uint256"}
  ], "stateMutability": "nonpayable", "type": "function"}
]`

const erc20ABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [
    {"internalType": "address", "name": "owner", "type": "address"},
    {"internalType": "address", "name": "spender", "type": "address"}
  ], "name": "allowance", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [
    {"internalType": "address", "name": "spender", "type": "address"},
    {"internalType": "uint256", "name": "amount", "type": "uint256"}
  ], "name": "approve", "outputs": [{"internalType": "bool", "name": "", "type": "bool"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"internalType": "address", "name": "to", "type": "address"},
    {"internalType": "uint256", "name": "amount", "type": "uint256"}
  ], "name": "transfer", "outputs": [{"internalType": "bool", "name": "", "type": "bool"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

var (
	v3PoolABI     abi.ABI
	v3PoolABIOnce sync.Once
	v3PoolABIErr  error

	minterABI     abi.ABI
	minterABIOnce sync.Once
	minterABIErr  error

	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
	erc20ABIErr  error
)

// V3PoolABI returns the parsed pool ABI.
func V3PoolABI() (abi.ABI, error) {
	v3PoolABIOnce.Do(func() {
		v3PoolABI, v3PoolABIErr = abi.JSON(strings.NewReader(v3PoolABIJSON))
	})
	return v3PoolABI, v3PoolABIErr
}

// MinterABI returns the parsed mint-helper ABI.
func MinterABI() (abi.ABI, error) {
	minterABIOnce.Do(func() {
		minterABI, minterABIErr = abi.JSON(strings.NewReader(minterABIJSON))
	})
	return minterABI, minterABIErr
}

// ERC20ABI returns the parsed ERC20 ABI.
func ERC20ABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}
