package peer

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/log"
	"github.com/luxfi/mempool/txpool"
	"github.com/luxfi/mempool/types"
)

// Pool is the subset of txpool.Pool a PeerSession needs. Declared locally
// so tests can substitute a fake without depending on the concrete type.
type Pool interface {
	Add(ctx context.Context, rawTxs [][]byte) []error
	Find(hashes []types.Hash) []types.Transaction
	FilterUnknown(hashes []types.Hash) []types.Hash
}

var _ Pool = (*txpool.Pool)(nil)

// command is the sum type flowing through a PeerSession's single inbound
// channel.
type command struct {
	announce *NewPooledTransactionHashes
	pooled   *PooledTransactions
	getPool  *GetPooledTransactions
	inserted []types.Transaction
}

// PeerSession is the per-peer gossip actor. One is created per connected
// peer; it owns the peer's known-hash bookkeeping and a table of
// in-flight requests, and is driven entirely by messages delivered to its
// inbound channel.
type PeerSession struct {
	id      string
	pool    Pool
	decoder txpool.Decoder
	sentry  Sentry

	inbound chan command
	done    chan struct{}

	known           *lru.Cache[types.Hash, struct{}]
	pendingRequests map[RequestID][]types.Hash
	nextRequestID   uint64
}

// NewSession starts a PeerSession for peerID. decoder is used only to
// recover each pooled reply's hash for the requested-hash correspondence
// check in handlePooled; decoded transactions are not otherwise kept
// around, the raw encodings are what go on to Pool.Add. Call Close to stop
// it; on close, outstanding pending requests are discarded and commands
// still queued on the inbound channel are not processed.
func NewSession(peerID string, pool Pool, decoder txpool.Decoder, sentry Sentry, knownHashesCap int) *PeerSession {
	s := &PeerSession{
		id:              peerID,
		pool:            pool,
		decoder:         decoder,
		sentry:          sentry,
		inbound:         make(chan command, 256),
		done:            make(chan struct{}),
		known:           lru.NewCache[types.Hash, struct{}](knownHashesCap),
		pendingRequests: make(map[RequestID][]types.Hash),
	}
	go s.run()
	return s
}

// Close stops the session's run loop. Safe to call once.
func (s *PeerSession) Close() { close(s.done) }

// InboundAnnouncement enqueues a NewPooledTransactionHashes delivery.
func (s *PeerSession) InboundAnnouncement(hashes []types.Hash) {
	s.send(command{announce: &NewPooledTransactionHashes{Hashes: hashes}})
}

// InboundPooled enqueues a PooledTransactions reply.
func (s *PeerSession) InboundPooled(requestID RequestID, encoded [][]byte) {
	s.send(command{pooled: &PooledTransactions{RequestID: requestID, Encoded: encoded}})
}

// InboundGetPooled enqueues a GetPooledTransactions request.
func (s *PeerSession) InboundGetPooled(requestID RequestID, hashes []types.Hash) {
	s.send(command{getPool: &GetPooledTransactions{RequestID: requestID, Hashes: hashes}})
}

// PoolInserted notifies the session of newly inserted transactions, used by
// PeerSet's coalesced fan-out.
func (s *PeerSession) PoolInserted(txs []types.Transaction) {
	s.send(command{inserted: txs})
}

func (s *PeerSession) send(c command) {
	select {
	case s.inbound <- c:
	case <-s.done:
	}
}

func (s *PeerSession) run() {
	for {
		select {
		case <-s.done:
			return
		case c := <-s.inbound:
			s.dispatch(c)
		}
	}
}

func (s *PeerSession) dispatch(c command) {
	switch {
	case c.announce != nil:
		s.handleAnnouncement(c.announce.Hashes)
	case c.pooled != nil:
		s.handlePooled(c.pooled.RequestID, c.pooled.Encoded)
	case c.getPool != nil:
		s.handleGetPooled(c.getPool.RequestID, c.getPool.Hashes)
	case c.inserted != nil:
		s.handleInserted(c.inserted)
	}
}

// handleAnnouncement marks every announced hash known, then requests
// whatever the pool doesn't already have.
func (s *PeerSession) handleAnnouncement(hashes []types.Hash) {
	for _, h := range hashes {
		s.known.Add(h, struct{}{})
	}
	unknown := s.pool.FilterUnknown(hashes)
	if len(unknown) == 0 {
		return
	}
	reqID := RequestID(atomic.AddUint64(&s.nextRequestID, 1))
	s.pendingRequests[reqID] = unknown
	if err := s.sentry.Send(s.id, KindGetPooledTransactions, GetPooledTransactions{RequestID: reqID, Hashes: unknown}); err != nil {
		log.Debug("peer: failed to request pooled transactions", "peer", s.id, "err", err)
		delete(s.pendingRequests, reqID)
	}
}

// handlePooled resolves a prior GetPooledTransactions request against the
// peer's reply. A peer may reply with a subset of what it was asked for,
// omitting hashes it no longer has, but the replies it does send must stay
// in request order: each returned transaction's hash is matched against
// the remaining requested hashes by scanning forward, never backward, so a
// reply that skips entries is accepted but one that reorders or fabricates
// entries is rejected outright. Every hash present in an accepted reply is
// marked known, whether or not the pool then admits the transaction; an
// omitted hash stays unknown and can be re-requested later.
func (s *PeerSession) handlePooled(reqID RequestID, encoded [][]byte) {
	requested, ok := s.pendingRequests[reqID]
	if !ok {
		log.Debug("peer: pooled transactions for unknown request", "peer", s.id, "request", reqID)
		return
	}
	delete(s.pendingRequests, reqID)
	if len(encoded) > len(requested) {
		log.Debug("peer: peer returned more transactions than requested", "peer", s.id, "request", reqID)
		return
	}

	hashes := make([]types.Hash, len(encoded))
	next := 0
	for i, raw := range encoded {
		tx, err := s.decoder.Decode(raw)
		if err != nil {
			log.Debug("peer: undecodable pooled transaction", "peer", s.id, "request", reqID, "err", err)
			return
		}
		h := tx.Hash()
		matched := false
		for ; next < len(requested); next++ {
			if requested[next] == h {
				matched = true
				next++
				break
			}
		}
		if !matched {
			log.Debug("peer: pooled transaction did not correspond to a requested hash", "peer", s.id, "request", reqID)
			return
		}
		hashes[i] = h
	}

	errs := s.pool.Add(context.Background(), encoded)
	for i, err := range errs {
		if err != nil {
			log.Debug("peer: rejected pooled transaction", "peer", s.id, "err", err)
		}
		s.known.Add(hashes[i], struct{}{})
	}
}

// handleGetPooled answers a peer's request for full transaction encodings.
func (s *PeerSession) handleGetPooled(reqID RequestID, hashes []types.Hash) {
	txs := s.pool.Find(hashes)
	encoded := make([][]byte, 0, len(txs))
	for i, tx := range txs {
		if tx == nil {
			continue
		}
		encoded = append(encoded, tx.Encoded())
		s.known.Add(hashes[i], struct{}{})
	}
	if err := s.sentry.Send(s.id, KindPooledTransactions, PooledTransactions{RequestID: reqID, Encoded: encoded}); err != nil {
		log.Debug("peer: failed to answer pooled transactions request", "peer", s.id, "err", err)
	}
}

// handleInserted announces only the transactions this peer has not
// already seen.
func (s *PeerSession) handleInserted(txs []types.Transaction) {
	var fresh []types.Hash
	for _, tx := range txs {
		h := tx.Hash()
		if s.known.Contains(h) {
			continue
		}
		fresh = append(fresh, h)
	}
	if len(fresh) == 0 {
		return
	}
	if err := s.sentry.Send(s.id, KindNewPooledTransactionHashes, NewPooledTransactionHashes{Hashes: fresh}); err != nil {
		log.Debug("peer: failed to announce new transactions", "peer", s.id, "err", err)
		return
	}
	for _, h := range fresh {
		s.known.Add(h, struct{}{})
	}
}

func (s *PeerSession) String() string { return fmt.Sprintf("peer-session(%s)", s.id) }
