package txpool

import (
	"sort"

	"github.com/holiman/uint256"
	"github.com/luxfi/mempool/types"
)

// AccountBucket is the per-sender ordered queue and its cached account
// state. Transactions are kept strictly sorted by ascending nonce with no
// duplicates, and every prefix of the queue's cost must fit the cached
// balance.
type AccountBucket struct {
	addr    types.Address
	account types.AccountInfo
	txs     []types.Transaction // strictly ascending by nonce
}

func newAccountBucket(addr types.Address, account types.AccountInfo) *AccountBucket {
	return &AccountBucket{addr: addr, account: account.Clone()}
}

// Len reports the number of queued transactions.
func (b *AccountBucket) Len() int { return len(b.txs) }

// Empty reports whether the bucket holds no transactions.
func (b *AccountBucket) Empty() bool { return len(b.txs) == 0 }

// Account returns a copy of the cached AccountInfo.
func (b *AccountBucket) Account() types.AccountInfo { return b.account.Clone() }

// Txs returns a snapshot slice of the bucket's transactions in nonce order.
// The caller must not mutate the backing array.
func (b *AccountBucket) Txs() []types.Transaction {
	out := make([]types.Transaction, len(b.txs))
	copy(out, b.txs)
	return out
}

// search returns the index at which nonce is found, or where it would be
// inserted, plus whether an exact match exists.
func (b *AccountBucket) search(nonce uint64) (idx int, found bool) {
	idx = sort.Search(len(b.txs), func(i int) bool { return b.txs[i].Nonce() >= nonce })
	found = idx < len(b.txs) && b.txs[idx].Nonce() == nonce
	return idx, found
}

func (b *AccountBucket) sumCost(lo, hi int) *uint256.Int {
	sum := new(uint256.Int)
	for i := lo; i < hi; i++ {
		sum.Add(sum, b.txs[i].MaxCost())
	}
	return sum
}

// bumpThreshold computes old*1.125 via a shift-by-3 bump (old + old>>3)
// when the configured bump is the default 12.5%.
func bumpThreshold(old *uint256.Int, bumpPercent uint64) *uint256.Int {
	if bumpPercent == 125 {
		// Fast, exact path for the default 12.5% bump: old + old/8.
		bump := new(uint256.Int).Rsh(old, 3)
		return new(uint256.Int).Add(old, bump)
	}
	// General path for any other configured bump, in per mille of the old
	// score like the default (125 means 1.125x, 100 means 1.1x):
	// old + old*bumpPercent/1000.
	scaled := new(uint256.Int).Mul(old, uint256.NewInt(bumpPercent))
	scaled.Div(scaled, uint256.NewInt(1000))
	return scaled.Add(scaled, old)
}

// meetsBump reports whether newScore is at least old's bumped threshold,
// using strict greater-than-or-equal after the bump.
func meetsBump(newScore, oldScore *uint256.Int, bumpPercent uint64) bool {
	return newScore.Cmp(bumpThreshold(oldScore, bumpPercent)) >= 0
}

// insert places tx into the bucket under the Pool's write lock, replacing
// an existing transaction at the same nonce or splicing in a new one in
// nonce order. It returns the replaced transaction (if any) and the set of
// now-underfunded transactions the caller must remove from the other two
// indices.
func (b *AccountBucket) insert(tx types.Transaction, baseFee *uint256.Int, perAccountLimit int, bumpPercent uint64) (replaced types.Transaction, underfunded []types.Transaction, err error) {
	nonce := tx.Nonce()
	idx, found := b.search(nonce)

	// Prefix cost check: everything already queued ahead of this nonce must
	// still fit the cached balance.
	prefixCost := b.sumCost(0, idx)
	if prefixCost.Cmp(b.account.Balance) > 0 {
		// Already-queued prefix exceeds balance; nothing more can fit.
		return nil, nil, ErrInsufficientFunds
	}
	balanceLeft := new(uint256.Int).Sub(b.account.Balance, prefixCost)
	if tx.MaxCost().Cmp(balanceLeft) > 0 {
		return nil, nil, ErrInsufficientFunds
	}

	// Placement: replace at an exact nonce match, append at the tail, or
	// splice into the middle and bump the tail out if the bucket overflows.
	switch {
	case found:
		old := b.txs[idx]
		if !meetsBump(tx.EffectiveFee(baseFee), old.EffectiveFee(baseFee), bumpPercent) {
			return nil, nil, ErrReplaceUnderpriced
		}
		replaced = old
		b.txs[idx] = tx

	case idx == len(b.txs):
		// New nonce at the tail.
		if len(b.txs) >= perAccountLimit {
			return nil, nil, ErrPerAccountFull
		}
		b.txs = append(b.txs, tx)

	default:
		// New nonce in the middle.
		b.txs = append(b.txs, nil)
		copy(b.txs[idx+1:], b.txs[idx:len(b.txs)-1])
		b.txs[idx] = tx
		if len(b.txs) > perAccountLimit {
			replaced = b.txs[len(b.txs)-1]
			b.txs = b.txs[:len(b.txs)-1]
		}
	}

	// Suffix cost check, applied as a full-bucket recompute so that every
	// prefix sum stays within the balance by construction: once the running
	// cost crosses the balance, that entry and everything after it is
	// reported underfunded.
	underfunded = b.pruneUnderfunded()
	return replaced, underfunded, nil
}

// pruneUnderfunded recomputes cumulative cost against the cached balance and
// evicts the tail of transactions once the running sum would overdraw the
// account, returning the evicted transactions. Also used after a balance
// decrease is applied to the cached account.
func (b *AccountBucket) pruneUnderfunded() []types.Transaction {
	var removed []types.Transaction
	keep := b.txs[:0]
	running := new(uint256.Int)
	overdrawn := false
	for _, t := range b.txs {
		if !overdrawn {
			running.Add(running, t.MaxCost())
			if running.Cmp(b.account.Balance) > 0 {
				overdrawn = true
			}
		}
		if overdrawn {
			removed = append(removed, t)
		} else {
			keep = append(keep, t)
		}
	}
	b.txs = keep
	return removed
}

// pruneConfirmedOrObsolete drops every transaction whose nonce is <= the
// account's (possibly just-updated) confirmed nonce. Returns the dropped
// transactions.
func (b *AccountBucket) pruneConfirmedOrObsolete() []types.Transaction {
	idx := sort.Search(len(b.txs), func(i int) bool { return b.txs[i].Nonce() > b.account.Nonce })
	if idx == 0 {
		return nil
	}
	dropped := make([]types.Transaction, idx)
	copy(dropped, b.txs[:idx])
	b.txs = append(b.txs[:0], b.txs[idx:]...)
	return dropped
}

// setAccount updates the cached AccountInfo. The cache is chain-tip
// authoritative: it is only ever replaced by a confirmed reading, never
// updated optimistically on insert.
func (b *AccountBucket) setAccount(info types.AccountInfo) {
	b.account = info.Clone()
}

// removeHash force-removes a single transaction by hash, used by Pool.remove
// (on-demand) and by replacement/underfunded commit bookkeeping. Reports
// whether anything was removed.
func (b *AccountBucket) removeHash(hash types.Hash) bool {
	for i, t := range b.txs {
		if t.Hash() == hash {
			b.txs = append(b.txs[:i], b.txs[i+1:]...)
			return true
		}
	}
	return false
}
