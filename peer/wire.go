// Package peer implements the per-peer gossip actor (PeerSession) and its
// coordinator (PeerSet): the wire protocol surface and the known-hash
// bookkeeping for transaction gossip between mempool peers.
package peer

import (
	"github.com/luxfi/mempool/types"
)

// RequestID identifies an in-flight GetPooledTransactions request.
type RequestID uint64

// MessageKind tags which of the four wire shapes a Sentry payload carries.
type MessageKind uint8

const (
	KindNewPooledTransactionHashes MessageKind = iota
	KindGetPooledTransactions
	KindPooledTransactions
	KindTransactions
)

// NewPooledTransactionHashes announces transaction availability by hash.
type NewPooledTransactionHashes struct {
	Hashes []types.Hash
}

// GetPooledTransactions requests the full encodings for a set of
// previously announced hashes.
type GetPooledTransactions struct {
	RequestID RequestID
	Hashes    []types.Hash
}

// PooledTransactions answers a GetPooledTransactions request.
type PooledTransactions struct {
	RequestID RequestID
	Encoded   [][]byte
}

// Transactions is the legacy unsolicited full-transaction announcement.
type Transactions struct {
	Encoded [][]byte
}

// Sentry is the required transport collaborator: it delivers and accepts
// the four wire message kinds for a named peer. The RLP framing and
// actual network I/O are out of scope; this is the seam an embedder's p2p
// stack plugs into.
type Sentry interface {
	Send(peerID string, kind MessageKind, payload any) error
}
