package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PositionKey derives the pool ledger key for an owner and range:
// keccak256 of the packed owner address and the two int24 tick bounds.
func PositionKey(owner common.Address, lowerTick, upperTick int32) common.Hash {
	packed := make([]byte, 0, 26)
	packed = append(packed, owner.Bytes()...)
	packed = append(packed, packInt24(lowerTick)...)
	packed = append(packed, packInt24(upperTick)...)
	return common.BytesToHash(crypto.Keccak256(packed))
}

// packInt24 encodes a tick as a 3-byte big-endian two's complement value,
// matching Solidity's abi.encodePacked for int24.
func packInt24(tick int32) []byte {
	v := uint32(tick) & 0xFFFFFF
	return []byte{byte(v >> 16), byte(v >> 8), byte(v)}
}
