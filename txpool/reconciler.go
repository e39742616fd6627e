package txpool

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/luxfi/mempool/types"
)

// BlockUpdate is the chain-advance notification the embedder's chain feed
// delivers to Pool.BlockUpdate. RevertedTxs carries raw encodings (the
// same wire shape Add accepts) so a reorg can re-run them through the
// normal decode/validate path during reinsertion.
type BlockUpdate struct {
	OldTip          types.Hash
	NewTip          types.Hash
	BaseFee         *uint256.Int
	RevertedTxs     [][]byte
	ChangedAccounts map[types.Address]types.AccountInfo
}

// BlockUpdate applies a chain advance under the pool write lock: tip
// bookkeeping, per-account confirm/obsolete pruning and balance-driven
// underfunded eviction, reverted-transaction reinsertion, and a final
// ScoreIndex rescoring compaction. The senders touched by ChangedAccounts
// are tracked in a github.com/deckarep/golang-set/v2 set, used for the
// reconciliation debug log.
func (p *Pool) BlockUpdate(update BlockUpdate) {
	p.mu.Lock()

	// Tip consistency check: log only, never fail the update.
	if p.tip.BlockHash != update.OldTip {
		log.Warn("txpool: chain tip mismatch on block update",
			"expected", p.tip.BlockHash, "observed", update.OldTip)
	}

	p.tip = types.ChainTip{BlockHash: update.NewTip, BaseFee: update.BaseFee}

	// Per-account confirm/obsolete pruning and underfunded eviction.
	var evts []Event
	touchedSenders := mapset.NewThreadUnsafeSet[types.Address]()
	for addr, info := range update.ChangedAccounts {
		bucket, ok := p.buckets[addr]
		if !ok {
			continue
		}
		touchedSenders.Add(addr)
		oldBalance := bucket.account.Balance

		bucket.setAccount(info)
		for _, tx := range bucket.pruneConfirmedOrObsolete() {
			p.dropFromIndices(tx)
			evts = append(evts, Event{Kind: EventRemoved, Tx: tx, Reason: ReasonConfirmedOrObsolete})
		}
		if info.Balance.Cmp(oldBalance) < 0 {
			for _, tx := range bucket.pruneUnderfunded() {
				p.dropFromIndices(tx)
				evts = append(evts, Event{Kind: EventRemoved, Tx: tx, Reason: ReasonUnderfunded})
			}
		}
		if bucket.Empty() {
			delete(p.buckets, addr)
		}
	}
	log.Debug("txpool: reconciled changed accounts", "count", touchedSenders.Cardinality())

	// Reinsert reverted transactions using the bucket's (just updated)
	// account info, or the sender's info from this same update when it has
	// no bucket. The oracle is never consulted here: a reverted transaction
	// whose sender has neither is dropped. Failures are not surfaced as
	// pool errors.
	for _, raw := range update.RevertedTxs {
		tx, err := p.decoder.Decode(raw)
		if err != nil {
			log.Debug("txpool: dropping unreadable reverted transaction", "err", err)
			continue
		}
		sender, err := tx.Sender()
		if err != nil {
			log.Debug("txpool: dropping reverted transaction with unrecoverable sender", "err", err)
			continue
		}
		if p.hashes.Has(tx.Hash()) {
			continue
		}
		bucket, ok := p.buckets[sender]
		if !ok {
			info, known := update.ChangedAccounts[sender]
			if !known {
				log.Debug("txpool: dropping reverted transaction, no account info available without a lock-free oracle call", "sender", sender)
				continue
			}
			bucket = newAccountBucket(sender, info)
			p.buckets[sender] = bucket
		}
		if tx.Nonce() <= bucket.account.Nonce {
			continue
		}
		replaced, underfunded, err := bucket.insert(tx, p.tip.BaseFee, p.cfg.PerAccount, p.cfg.PriceBumpPercent)
		if err != nil {
			log.Debug("txpool: dropping reverted transaction on reinsertion", "hash", tx.Hash(), "err", err)
			if bucket.Empty() {
				delete(p.buckets, sender)
			}
			continue
		}
		if replaced != nil {
			p.dropFromIndices(replaced)
			evts = append(evts, Event{Kind: EventRemoved, Tx: replaced, Reason: ReasonReplaced})
		}
		for _, u := range underfunded {
			p.dropFromIndices(u)
			evts = append(evts, Event{Kind: EventRemoved, Tx: u, Reason: ReasonUnderfunded})
		}
		p.hashes.Insert(tx, time.Now())
		p.scores.Push(tx.Hash(), tx.EffectiveFee(p.tip.BaseFee))
		evts = append(evts, Event{Kind: EventInserted, Tx: tx})
	}

	// Compact and rescore under the new base fee.
	p.compactScoresLocked()

	p.mu.Unlock()

	for _, e := range evts {
		p.announcer.publish(e)
	}
}

// dropFromIndices removes tx from the HashIndex and ScoreIndex only. Used
// wherever the caller already spliced tx out of its AccountBucket directly
// (pruneConfirmedOrObsolete, pruneUnderfunded, AccountBucket.insert's
// replaced/underfunded returns) — contrast with evictFull, which also
// performs the bucket-side removal. Must be called under the write lock.
func (p *Pool) dropFromIndices(tx types.Transaction) {
	hash := tx.Hash()
	p.hashes.Remove(hash)
	p.scores.Remove(hash)
}
