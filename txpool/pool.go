// Package txpool implements the mempool core: the three mutually
// consistent indices (AccountBucket per sender, the global ScoreIndex, the
// flat HashIndex), the Pool coordinator that exposes the public mempool
// API, the chain-update reconciliation that keeps the pool consistent with
// a moving chain tip, and the periodic maintenance sweep.
package txpool

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/mempool/types"
)

// Pool is the coordinator: it holds the three indices, enforces the global
// capacity and per-account limits, and exposes the public mempool API as a
// single subpool (there is no separate blob/legacy split here).
type Pool struct {
	cfg     Config
	decoder Decoder
	oracle  *cachedOracle

	mu      sync.RWMutex // coarse-grained writer lock, multiple readers
	tip     types.ChainTip
	buckets map[types.Address]*AccountBucket
	scores  *ScoreIndex
	hashes  *HashIndex

	announcer *Announcer

	closeOnce sync.Once
	cancel    context.CancelFunc
	group     *errgroup.Group
	closed    context.Context
}

// New builds a Pool seeded at the given chain tip. The embedder supplies
// the Decoder (RLP decoding and signature recovery) and the AccountOracle
// (world-state lookups). The periodic maintenance task starts immediately
// and stops on Close.
func New(cfg Config, decoder Decoder, oracle AccountOracle, tip types.ChainTip) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	p := &Pool{
		cfg:       cfg.sanitize(),
		decoder:   decoder,
		oracle:    newCachedOracle(oracle),
		tip:       tip,
		buckets:   make(map[types.Address]*AccountBucket),
		scores:    newScoreIndex(),
		hashes:    newHashIndex(),
		announcer: newAnnouncer(),
		cancel:    cancel,
		group:     g,
		closed:    ctx,
	}
	p.group.Go(func() error {
		p.maintenanceLoop(ctx)
		return nil
	})
	return p
}

// Close stops the maintenance task and unsubscribes every event listener.
// Safe to call more than once.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
	})
	err := p.group.Wait()
	p.announcer.Close()
	return err
}

// SubscribeEvents returns a stream of insertion/removal events, consumed
// by the RPC service's OnAdd and by the gossip PeerSet.
func (p *Pool) SubscribeEvents(ch chan<- Event) event.Subscription {
	return p.announcer.Subscribe(ch)
}

// ChainTip returns the chain tip the pool currently considers authoritative.
func (p *Pool) ChainTip() types.ChainTip {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tip
}

// Find preserves input order and length; unknown hashes map to a nil entry.
func (p *Pool) Find(hashes []types.Hash) []types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]types.Transaction, len(hashes))
	for i, h := range hashes {
		out[i] = p.hashes.Find(h)
	}
	return out
}

// FilterUnknown returns the subset of hashes not currently in the pool,
// order preserved.
func (p *Pool) FilterUnknown(hashes []types.Hash) []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hashes.FilterUnknown(hashes)
}

// Remove force-removes the given hashes, firing REMOVED_ON_DEMAND events
// for each present hash.
func (p *Pool) Remove(hashes []types.Hash) {
	p.mu.Lock()
	var evts []Event
	for _, h := range hashes {
		tx := p.hashes.Find(h)
		if tx == nil {
			continue
		}
		p.evictFull(tx)
		evts = append(evts, Event{Kind: EventRemoved, Tx: tx, Reason: ReasonRemovedOnDemand})
	}
	p.mu.Unlock()
	for _, e := range evts {
		p.announcer.publish(e)
	}
}

// PendingBlock returns an ordered candidate list suitable for block
// production: descending score, and for each sender a contiguous
// ascending-nonce prefix starting at account.nonce+1, excluding any
// transaction whose effective fee is strictly below the current base fee
// (a fee equal to the base fee is included). The result is advisory;
// callers may truncate further.
func (p *Pool) PendingBlock() []types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	type candidate struct {
		tx    types.Transaction
		score *uint256.Int
	}
	baseFee := p.tip.BaseFee
	var candidates []candidate
	for _, bucket := range p.buckets {
		nextNonce := bucket.account.Nonce + 1
		for _, tx := range bucket.txs {
			if tx.Nonce() != nextNonce {
				break
			}
			score := tx.EffectiveFee(baseFee)
			if score.Cmp(baseFee) < 0 {
				break
			}
			candidates = append(candidates, candidate{tx: tx, score: score})
			nextNonce++
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if c := candidates[i].score.Cmp(candidates[j].score); c != 0 {
			return c > 0
		}
		hi, hj := candidates[i].tx.Hash(), candidates[j].tx.Hash()
		return bytesGreater(hi[:], hj[:])
	})
	out := make([]types.Transaction, len(candidates))
	for i, c := range candidates {
		out[i] = c.tx
	}
	return out
}

// Add decodes and admits a batch of raw encoded transactions, returning one
// error (nil on success) per input transaction in input order.
// Decode/recovery failures are localized to their own transaction; the rest
// of the batch still proceeds.
func (p *Pool) Add(ctx context.Context, rawTxs [][]byte) []error {
	errs := make([]error, len(rawTxs))
	for i, raw := range rawTxs {
		errs[i] = p.addOne(ctx, raw)
	}
	return errs
}

func (p *Pool) addOne(ctx context.Context, raw []byte) error {
	select {
	case <-p.closed.Done():
		return ErrPoolClosed
	default:
	}

	tx, err := p.decoder.Decode(raw)
	if err != nil {
		return ErrDecode
	}
	sender, err := tx.Sender()
	if err != nil {
		return ErrAuthorUnknown
	}

	var lastErr error
	for attempt := 0; attempt < p.cfg.ImportRetries; attempt++ {
		// Read the chain tip and any cached account info under the read
		// lock only, so a slow oracle lookup below never blocks writers.
		p.mu.RLock()
		observedTip := p.tip
		var cached *types.AccountInfo
		if bucket, ok := p.buckets[sender]; ok {
			info := bucket.Account()
			cached = &info
		}
		p.mu.RUnlock()

		var (
			accountInfo     types.AccountInfo
			oracleConsulted bool
		)
		if cached != nil {
			accountInfo = *cached
		} else {
			// Consult the oracle without holding the pool lock.
			info, found, oerr := p.oracle.fetch(ctx, sender, observedTip.BlockHash)
			if oerr != nil {
				log.Debug("txpool: account oracle error", "sender", sender, "err", oerr)
				lastErr = ErrStaleAccount
				continue
			}
			oracleConsulted = true
			if found {
				accountInfo = info
			} else {
				accountInfo = types.AccountInfo{Nonce: 0, Balance: new(uint256.Int)}
			}
		}

		evt, err := p.commit(tx, sender, observedTip, accountInfo, cached != nil, oracleConsulted)
		if errors.Is(err, errStaleTip) {
			lastErr = ErrStaleAccount
			continue
		}
		if err != nil {
			return err
		}
		for _, e := range evt {
			p.announcer.publish(e)
		}
		return nil
	}
	if lastErr == nil {
		lastErr = ErrStaleAccount
	}
	return lastErr
}

// errStaleTip signals the internal retry loop that the chain tip moved
// between the optimistic read and the write-lock re-check, so the caller
// should redo the lookup and retry. Never escapes addOne.
var errStaleTip = errors.New("txpool: chain tip changed, retry")

// commit re-validates the chain tip, rejects duplicates and stale nonces,
// scores the transaction, runs AccountBucket.insert, and commits the
// three-index mutation, all under the write lock. It returns the events to
// publish after the lock is released, or errStaleTip if the caller must
// retry from a fresh read.
func (p *Pool) commit(tx types.Transaction, sender types.Address, observedTip types.ChainTip, accountInfo types.AccountInfo, hadCachedAccount, oracleConsulted bool) ([]Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tip.BlockHash != observedTip.BlockHash {
		return nil, errStaleTip
	}

	if p.hashes.Has(tx.Hash()) {
		return nil, ErrAlreadyPresent
	}

	score := tx.EffectiveFee(p.tip.BaseFee)

	// Global cap pre-check: a pool already at capacity only admits
	// transactions that outscore the current worst entry.
	if p.hashes.Len() >= p.cfg.Global {
		if _, worstScore, ok := p.scores.PeekWorst(); ok && score.Cmp(worstScore) <= 0 {
			return nil, ErrPoolFullUnderpriced
		}
	}

	// Fetch or create the bucket.
	bucket, existed := p.buckets[sender]
	createdNow := false
	if !existed {
		if hadCachedAccount {
			// Unreachable in practice (a cached account implies an
			// existing bucket), kept as a defensive invariant check.
			return nil, ErrAccountUnknown
		}
		if !oracleConsulted {
			return nil, ErrAccountUnknown
		}
		bucket = newAccountBucket(sender, accountInfo)
		createdNow = true
	} else if !hadCachedAccount {
		// The bucket appeared concurrently since the earlier optimistic
		// read; refresh from the oracle result before proceeding so the
		// insert below sees authoritative state.
		bucket.setAccount(accountInfo)
	}
	// A bucket created just above for this attempt is never stored until
	// insert succeeds, so a nonce or insert failure here simply discards
	// it rather than leaking an empty bucket.
	if tx.Nonce() <= bucket.account.Nonce {
		return nil, ErrNonceTooLow
	}

	replaced, underfunded, err := bucket.insert(tx, p.tip.BaseFee, p.cfg.PerAccount, p.cfg.PriceBumpPercent)
	if err != nil {
		return nil, err
	}
	if createdNow {
		p.buckets[sender] = bucket
	}

	// Commit to the three indices, then publish in the order INSERTED(new),
	// REMOVED(replaced), REMOVED(underfunded...), REMOVED(worst, LIMIT_HIT)
	// if applicable.
	if replaced != nil {
		p.scores.Remove(replaced.Hash())
		p.hashes.Remove(replaced.Hash())
	}
	for _, u := range underfunded {
		p.scores.Remove(u.Hash())
		p.hashes.Remove(u.Hash())
	}
	p.hashes.Insert(tx, time.Now())
	p.scores.Push(tx.Hash(), score)

	evts := []Event{{Kind: EventInserted, Tx: tx}}
	if replaced != nil {
		evts = append(evts, Event{Kind: EventRemoved, Tx: replaced, Reason: ReasonReplaced})
	}
	for _, u := range underfunded {
		evts = append(evts, Event{Kind: EventRemoved, Tx: u, Reason: ReasonUnderfunded})
	}

	if p.hashes.Len() > p.cfg.Global {
		if worstHash, _, ok := p.scores.PeekWorst(); ok {
			if worst := p.hashes.Find(worstHash); worst != nil {
				p.evictFull(worst)
				evts = append(evts, Event{Kind: EventRemoved, Tx: worst, Reason: ReasonLimitHit})
			}
		}
	}
	if p.scores.PendingRemovalCount() > p.cfg.MaxPendingRemovals {
		p.compactScoresLocked()
	}
	return evts, nil
}

// evictFull removes tx from its AccountBucket (if any), the HashIndex, and
// the ScoreIndex. Used for paths where the transaction's bucket has not
// already been mutated by the caller (on-demand remove, global-cap
// eviction) — contrast with the replaced/underfunded paths above, where
// AccountBucket.insert has already spliced the transaction out of the
// bucket and only the other two indices need cleanup. Must be called
// under the write lock.
func (p *Pool) evictFull(tx types.Transaction) {
	hash := tx.Hash()
	if sender, err := tx.Sender(); err == nil {
		if bucket, ok := p.buckets[sender]; ok {
			bucket.removeHash(hash)
			if bucket.Empty() {
				delete(p.buckets, sender)
			}
		}
	}
	p.hashes.Remove(hash)
	p.scores.Remove(hash)
}

// compactScoresLocked rebuilds the ScoreIndex from live HashIndex entries.
// Must be called under the write lock.
func (p *Pool) compactScoresLocked() {
	p.scores.Compact(func(hash types.Hash) (*uint256.Int, bool) {
		tx := p.hashes.Find(hash)
		if tx == nil {
			return nil, false
		}
		return tx.EffectiveFee(p.tip.BaseFee), true
	})
}
