package txpool

import (
	"time"

	"github.com/luxfi/mempool/types"
)

// HashIndex is the O(1) hash-to-transaction lookup, kept as a standalone
// component so Pool can share it across the score index and account
// buckets without duplicating insertion bookkeeping.
type HashIndex struct {
	entries map[types.Hash]hashEntry
}

type hashEntry struct {
	tx         types.Transaction
	insertedAt time.Time
}

func newHashIndex() *HashIndex {
	return &HashIndex{entries: make(map[types.Hash]hashEntry)}
}

// Len reports the number of indexed transactions.
func (h *HashIndex) Len() int { return len(h.entries) }

// Has reports whether hash is indexed.
func (h *HashIndex) Has(hash types.Hash) bool {
	_, ok := h.entries[hash]
	return ok
}

// Find returns the transaction for hash, or nil if unknown. O(1).
func (h *HashIndex) Find(hash types.Hash) types.Transaction {
	e, ok := h.entries[hash]
	if !ok {
		return nil
	}
	return e.tx
}

// InsertedAt returns the insertion timestamp for hash.
func (h *HashIndex) InsertedAt(hash types.Hash) (time.Time, bool) {
	e, ok := h.entries[hash]
	return e.insertedAt, ok
}

// Insert records tx under its hash with the given timestamp.
func (h *HashIndex) Insert(tx types.Transaction, now time.Time) {
	h.entries[tx.Hash()] = hashEntry{tx: tx, insertedAt: now}
}

// Remove deletes hash, reporting whether it was present.
func (h *HashIndex) Remove(hash types.Hash) bool {
	if _, ok := h.entries[hash]; !ok {
		return false
	}
	delete(h.entries, hash)
	return true
}

// FilterUnknown returns the subset of hashes not present in the index,
// preserving input order. Used both by Pool.FilterUnknown and by
// PeerSession when deciding which announced hashes to request.
func (h *HashIndex) FilterUnknown(hashes []types.Hash) []types.Hash {
	out := make([]types.Hash, 0, len(hashes))
	for _, hash := range hashes {
		if !h.Has(hash) {
			out = append(out, hash)
		}
	}
	return out
}

// StaleBefore returns every hash whose insertedAt+timeout has already
// elapsed as of now. Used by the periodic maintenance sweep.
func (h *HashIndex) StaleBefore(now time.Time, timeout time.Duration) []types.Hash {
	var stale []types.Hash
	for hash, e := range h.entries {
		if now.After(e.insertedAt.Add(timeout)) {
			stale = append(stale, hash)
		}
	}
	return stale
}
