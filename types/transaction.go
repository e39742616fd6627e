// Package types defines the value types shared across the mempool: the
// opaque Transaction contract, the per-account chain state the pool caches,
// and the chain-tip marker the reconciler advances.
package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Hash and Address are re-exported so callers outside this module don't need
// a direct go-ethereum/common import just to spell a mempool type.
type (
	Hash    = common.Hash
	Address = common.Address
)

// Transaction is the pool's view of a signed transaction. It is immutable
// and opaque: the pool never mutates a Transaction after insertion, and
// never decodes or recovers a signature itself — that is the embedder's
// Decoder's job.
type Transaction interface {
	// Hash returns the 32-byte transaction identifier.
	Hash() Hash
	// Sender returns the 20-byte address recovered from the signature, or
	// an error if recovery fails. Decoding the wire encoding and recovering
	// the signer are distinct, separately fallible steps.
	Sender() (Address, error)
	// Nonce returns the sender-scoped sequence number.
	Nonce() uint64
	// GasLimit returns the maximum gas the transaction may consume.
	GasLimit() uint64
	// EffectiveFee returns the per-gas fee the transaction pays given the
	// supplied base fee. For legacy transactions this is the gas price; for
	// fee-market transactions it is min(gasFeeCap, baseFee+gasTipCap).
	EffectiveFee(baseFee *uint256.Int) *uint256.Int
	// MaxCost returns gasLimit*gasFeeCap + value, the worst-case balance
	// debit this transaction can cause.
	MaxCost() *uint256.Int
	// Encoded returns the canonical byte encoding of the transaction, as
	// produced by the (out-of-scope) RLP codec.
	Encoded() []byte
}

// AccountInfo is the confirmed (nonce, balance) pair for a sender at the
// pool's current chain tip. It is value-copied; the pool never shares a
// pointer to a mutable AccountInfo across senders.
type AccountInfo struct {
	Nonce   uint64
	Balance *uint256.Int
}

// Clone returns a deep copy safe to mutate independently of the original.
func (a AccountInfo) Clone() AccountInfo {
	return AccountInfo{Nonce: a.Nonce, Balance: new(uint256.Int).Set(a.Balance)}
}

// ChainTip is the (block_hash, base_fee) pair most recently applied
// through Pool.BlockUpdate.
type ChainTip struct {
	BlockHash Hash
	BaseFee   *uint256.Int
}
