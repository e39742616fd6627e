package peer

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/mempool/txpool"
	"github.com/luxfi/mempool/types"
)

// PeerSet owns every connected peer's PeerSession and fans out newly
// inserted transactions to them, coalescing bursts of insertions over a
// short window (by default ~50ms) instead of announcing one at a time, so
// announcements batch without delaying the first emission by more than
// the configured interval.
type PeerSet struct {
	mu       sync.RWMutex
	sessions map[string]*PeerSession

	coalesce time.Duration
	events   chan txpool.Event
	sub      event.Subscription

	closeOnce sync.Once
	cancel    context.CancelFunc
	group     *errgroup.Group
}

// NewPeerSet subscribes to pool for insertion events and starts the
// coalescing fan-out loop. Close unsubscribes and stops the loop; it does
// not close the managed sessions. The loop runs under an internal
// errgroup.Group that Close cancels and waits on.
func NewPeerSet(pool *txpool.Pool, coalesceWindow time.Duration) *PeerSet {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	ps := &PeerSet{
		sessions: make(map[string]*PeerSession),
		coalesce: coalesceWindow,
		events:   make(chan txpool.Event, 1024),
		cancel:   cancel,
		group:    g,
	}
	ps.sub = pool.SubscribeEvents(ps.events)
	ps.group.Go(func() error {
		ps.loop(gctx)
		return nil
	})
	return ps
}

// AddPeer registers a new session, e.g. on connection establishment.
func (ps *PeerSet) AddPeer(s *PeerSession) {
	ps.mu.Lock()
	ps.sessions[s.id] = s
	ps.mu.Unlock()
}

// RemovePeer closes and deregisters a session, e.g. on disconnect.
func (ps *PeerSet) RemovePeer(peerID string) {
	ps.mu.Lock()
	s, ok := ps.sessions[peerID]
	delete(ps.sessions, peerID)
	ps.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Close stops the fan-out loop and the event subscription. It does not
// close individual sessions; callers remove peers explicitly as they
// disconnect. Safe to call more than once.
func (ps *PeerSet) Close() {
	ps.closeOnce.Do(func() {
		ps.cancel()
	})
	ps.group.Wait()
	ps.sub.Unsubscribe()
}

func (ps *PeerSet) loop(ctx context.Context) {
	var batch []types.Transaction
	var flush <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-ps.sub.Err():
			if err != nil {
				return
			}
		case evt := <-ps.events:
			if evt.Kind != txpool.EventInserted {
				continue
			}
			if len(batch) == 0 {
				flush = time.After(ps.coalesce)
			}
			batch = append(batch, evt.Tx)
		case <-flush:
			ps.broadcast(batch)
			batch = nil
			flush = nil
		}
	}
}

func (ps *PeerSet) broadcast(txs []types.Transaction) {
	if len(txs) == 0 {
		return
	}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for _, s := range ps.sessions {
		s.PoolInserted(txs)
	}
}
