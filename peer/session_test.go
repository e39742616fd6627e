package peer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"github.com/luxfi/mempool/types"
)

var errUndecodable = errors.New("undecodable")

type fakeTx struct {
	hash   types.Hash
	sender types.Address
	nonce  uint64
}

func (t *fakeTx) Hash() types.Hash                          { return t.hash }
func (t *fakeTx) Sender() (types.Address, error)             { return t.sender, nil }
func (t *fakeTx) Nonce() uint64                              { return t.nonce }
func (t *fakeTx) GasLimit() uint64                           { return 21000 }
func (t *fakeTx) EffectiveFee(_ *uint256.Int) *uint256.Int   { return uint256.NewInt(1) }
func (t *fakeTx) MaxCost() *uint256.Int                      { return uint256.NewInt(1) }
func (t *fakeTx) Encoded() []byte                            { return []byte{t.hash[31]} }

func txAt(b byte) *fakeTx {
	var h types.Hash
	h[31] = b
	return &fakeTx{hash: h}
}

type fakeDecoder struct{}

func (fakeDecoder) Decode(raw []byte) (types.Transaction, error) {
	if len(raw) != 1 {
		return nil, errUndecodable
	}
	return txAt(raw[0]), nil
}

type fakePool struct {
	mu        sync.Mutex
	known     map[types.Hash]types.Transaction
	addCalls  [][]byte
	addErrors []error
}

func newFakePool() *fakePool { return &fakePool{known: make(map[types.Hash]types.Transaction)} }

func (p *fakePool) Add(_ context.Context, raw [][]byte) []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addCalls = append(p.addCalls, raw...)
	errs := make([]error, len(raw))
	for i, b := range raw {
		tx := txAt(b[0])
		p.known[tx.Hash()] = tx
		if i < len(p.addErrors) {
			errs[i] = p.addErrors[i]
		}
	}
	return errs
}

func (p *fakePool) Find(hashes []types.Hash) []types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.Transaction, len(hashes))
	for i, h := range hashes {
		out[i] = p.known[h]
	}
	return out
}

func (p *fakePool) FilterUnknown(hashes []types.Hash) []types.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []types.Hash
	for _, h := range hashes {
		if _, ok := p.known[h]; !ok {
			out = append(out, h)
		}
	}
	return out
}

type fakeSentry struct {
	mu   sync.Mutex
	sent []struct {
		peer    string
		kind    MessageKind
		payload any
	}
}

func (s *fakeSentry) Send(peerID string, kind MessageKind, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, struct {
		peer    string
		kind    MessageKind
		payload any
	}{peerID, kind, payload})
	return nil
}

func (s *fakeSentry) last() (string, MessageKind, any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return "", 0, nil
	}
	last := s.sent[len(s.sent)-1]
	return last.peer, last.kind, last.payload
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestPeerSessionAnnouncementRequestsUnknown(t *testing.T) {
	pool := newFakePool()
	sentry := &fakeSentry{}
	s := NewSession("peer-1", pool, fakeDecoder{}, sentry, 128)
	defer s.Close()

	s.InboundAnnouncement([]types.Hash{txAt(1).Hash(), txAt(2).Hash()})

	waitFor(t, func() bool { _, _, p := sentry.last(); return p != nil })
	_, kind, payload := sentry.last()
	require.Equal(t, KindGetPooledTransactions, kind)
	req := payload.(GetPooledTransactions)
	require.ElementsMatch(t, []types.Hash{txAt(1).Hash(), txAt(2).Hash()}, req.Hashes)
}

func TestPeerSessionAnnouncementOfKnownHashDoesNothing(t *testing.T) {
	pool := newFakePool()
	pool.Add(context.Background(), [][]byte{{3}})
	sentry := &fakeSentry{}
	s := NewSession("peer-1", pool, fakeDecoder{}, sentry, 128)
	defer s.Close()

	s.InboundAnnouncement([]types.Hash{txAt(3).Hash()})
	time.Sleep(20 * time.Millisecond)
	_, _, payload := sentry.last()
	require.Nil(t, payload)
}

func TestPeerSessionPooledRoundTrip(t *testing.T) {
	pool := newFakePool()
	sentry := &fakeSentry{}
	s := NewSession("peer-1", pool, fakeDecoder{}, sentry, 128)
	defer s.Close()

	s.InboundAnnouncement([]types.Hash{txAt(5).Hash()})
	waitFor(t, func() bool { _, _, p := sentry.last(); return p != nil })
	_, _, payload := sentry.last()
	req := payload.(GetPooledTransactions)

	s.InboundPooled(req.RequestID, [][]byte{{5}})
	waitFor(t, func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		return len(pool.addCalls) == 1
	})
}

// A peer may omit hashes it no longer has as long as what it does return
// stays in request order; an omitted hash must not be marked known, since
// it was never confirmed present on this peer.
func TestPeerSessionPooledSubsetPreservesOrder(t *testing.T) {
	pool := newFakePool()
	sentry := &fakeSentry{}
	s := NewSession("peer-1", pool, fakeDecoder{}, sentry, 128)
	defer s.Close()

	reqID := RequestID(1)
	s.pendingRequests[reqID] = []types.Hash{txAt(1).Hash(), txAt(2).Hash(), txAt(3).Hash()}

	s.InboundPooled(reqID, [][]byte{{1}, {3}})
	waitFor(t, func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		return len(pool.addCalls) == 2
	})

	require.True(t, s.known.Contains(txAt(1).Hash()))
	require.True(t, s.known.Contains(txAt(3).Hash()))
	require.False(t, s.known.Contains(txAt(2).Hash()), "an omitted hash must never be marked known")
}

// A reply whose entries don't correspond to the requested hashes in order
// (reordered or fabricated) is rejected outright: nothing reaches the pool
// and nothing is marked known.
func TestPeerSessionPooledRejectsOutOfOrderReply(t *testing.T) {
	pool := newFakePool()
	sentry := &fakeSentry{}
	s := NewSession("peer-1", pool, fakeDecoder{}, sentry, 128)
	defer s.Close()

	reqID := RequestID(1)
	s.pendingRequests[reqID] = []types.Hash{txAt(1).Hash(), txAt(2).Hash()}

	// Reversed order relative to the request: tx 2 scanned before tx 1 has
	// no match ahead of it, so the whole reply is rejected.
	s.InboundPooled(reqID, [][]byte{{2}, {1}})
	time.Sleep(20 * time.Millisecond)

	pool.mu.Lock()
	addCalls := len(pool.addCalls)
	pool.mu.Unlock()
	require.Zero(t, addCalls)
	require.False(t, s.known.Contains(txAt(1).Hash()))
	require.False(t, s.known.Contains(txAt(2).Hash()))
}

func TestPeerSessionGetPooledAnswers(t *testing.T) {
	pool := newFakePool()
	pool.Add(context.Background(), [][]byte{{7}})
	sentry := &fakeSentry{}
	s := NewSession("peer-1", pool, fakeDecoder{}, sentry, 128)
	defer s.Close()

	s.InboundGetPooled(42, []types.Hash{txAt(7).Hash()})
	waitFor(t, func() bool { _, _, p := sentry.last(); return p != nil })
	_, kind, payload := sentry.last()
	require.Equal(t, KindPooledTransactions, kind)
	resp := payload.(PooledTransactions)
	require.Equal(t, RequestID(42), resp.RequestID)
	require.Equal(t, [][]byte{{7}}, resp.Encoded)
}

func TestPeerSessionPoolInsertedSkipsKnown(t *testing.T) {
	pool := newFakePool()
	sentry := &fakeSentry{}
	s := NewSession("peer-1", pool, fakeDecoder{}, sentry, 128)
	defer s.Close()

	s.known.Add(txAt(9).Hash(), struct{}{})
	s.PoolInserted([]types.Transaction{txAt(9), txAt(10)})

	waitFor(t, func() bool { _, _, p := sentry.last(); return p != nil })
	_, kind, payload := sentry.last()
	require.Equal(t, KindNewPooledTransactionHashes, kind)
	ann := payload.(NewPooledTransactionHashes)
	require.Equal(t, []types.Hash{txAt(10).Hash()}, ann.Hashes)
}
