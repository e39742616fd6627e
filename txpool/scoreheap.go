package txpool

import (
	"container/heap"

	"github.com/holiman/uint256"
	"github.com/luxfi/mempool/types"
)

// ScoreIndex is the global priority structure ordering every pooled
// transaction by effective fee, with lazy (tombstone) deletion.
//
// container/heap backs both heaps directly rather than
// github.com/ethereum/go-ethereum/common/prque: prque's generic
// Prque[P, V] takes a single totally ordered priority type, but this
// index's ordering key is a composite (score, hash-descending-tiebreak)
// over 256-bit scores, the same shape go-ethereum's own legacy-pool
// "priced list" solves with a hand-written heap.Interface rather than
// prque.
type ScoreIndex struct {
	worst          worstHeap
	best           bestHeap
	pendingRemoval map[types.Hash]struct{}
}

type scoreEntry struct {
	hash  types.Hash
	score *uint256.Int
}

// less orders by score descending, ties broken by hash descending, to make
// the ordering total and reproducible.
func scoreLess(a, b *scoreEntry) bool {
	if c := a.score.Cmp(b.score); c != 0 {
		return c > 0
	}
	return bytesGreater(a.hash[:], b.hash[:])
}

func bytesGreater(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

// bestHeap is a max-heap by scoreLess: its root is the best (highest-score)
// live candidate, used for compaction iteration and general bookkeeping.
type bestHeap []*scoreEntry

func (h bestHeap) Len() int            { return len(h) }
func (h bestHeap) Less(i, j int) bool  { return scoreLess(h[i], h[j]) }
func (h bestHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *bestHeap) Push(x interface{}) { *h = append(*h, x.(*scoreEntry)) }
func (h *bestHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// worstHeap is a min-heap by scoreLess (inverted), an auxiliary structure
// giving O(log n) amortized access to the current eviction victim.
type worstHeap []*scoreEntry

func (h worstHeap) Len() int           { return len(h) }
func (h worstHeap) Less(i, j int) bool { return scoreLess(h[j], h[i]) }
func (h worstHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstHeap) Push(x interface{}) { *h = append(*h, x.(*scoreEntry)) }
func (h *worstHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func newScoreIndex() *ScoreIndex {
	return &ScoreIndex{pendingRemoval: make(map[types.Hash]struct{})}
}

// Len reports the number of live entries (excludes tombstones).
func (s *ScoreIndex) Len() int { return len(s.best) - len(s.pendingRemoval) }

// Push inserts a (hash, score) entry, O(log n).
func (s *ScoreIndex) Push(hash types.Hash, score *uint256.Int) {
	e := &scoreEntry{hash: hash, score: score}
	heap.Push(&s.best, e)
	heap.Push(&s.worst, e)
}

// PeekWorst returns the current eviction victim: the live entry with the
// lowest score.
func (s *ScoreIndex) PeekWorst() (types.Hash, *uint256.Int, bool) {
	for len(s.worst) > 0 {
		top := s.worst[0]
		if _, tomb := s.pendingRemoval[top.hash]; tomb {
			heap.Pop(&s.worst)
			continue
		}
		return top.hash, top.score, true
	}
	return types.Hash{}, nil, false
}

// Remove logically deletes hash: if it is at the top of the main heap it
// is popped immediately (from both heaps), along with any now-exposed top
// entries already marked for removal; otherwise it is tombstoned for later
// compaction.
func (s *ScoreIndex) Remove(hash types.Hash) {
	if len(s.best) > 0 && s.best[0].hash == hash {
		s.dropFromWorst(heap.Pop(&s.best).(*scoreEntry))
		for len(s.best) > 0 {
			if _, tomb := s.pendingRemoval[s.best[0].hash]; tomb {
				delete(s.pendingRemoval, s.best[0].hash)
				s.dropFromWorst(heap.Pop(&s.best).(*scoreEntry))
				continue
			}
			break
		}
		return
	}
	s.pendingRemoval[hash] = struct{}{}
}

// dropFromWorst removes e from the worst heap if it is still there.
func (s *ScoreIndex) dropFromWorst(e *scoreEntry) {
	for i, w := range s.worst {
		if w == e {
			heap.Remove(&s.worst, i)
			return
		}
	}
}

// PendingRemovalCount reports the number of tombstoned hashes still
// physically present in the heaps. Used by the periodic maintenance sweep
// to decide when a compaction pass is worthwhile.
func (s *ScoreIndex) PendingRemovalCount() int { return len(s.pendingRemoval) }

// Compact rebuilds both heaps from live entries only. If rescore is
// non-nil, every surviving entry's score is recomputed through it (used
// when the base fee changes); rescore returning ok=false drops the entry
// entirely (it no longer exists in the owning HashIndex).
func (s *ScoreIndex) Compact(rescore func(hash types.Hash) (score *uint256.Int, ok bool)) {
	live := make([]*scoreEntry, 0, len(s.best))
	for _, e := range s.best {
		if _, tomb := s.pendingRemoval[e.hash]; tomb {
			continue
		}
		if rescore != nil {
			newScore, ok := rescore(e.hash)
			if !ok {
				continue
			}
			e = &scoreEntry{hash: e.hash, score: newScore}
		}
		live = append(live, e)
	}
	best := make(bestHeap, len(live))
	worst := make(worstHeap, len(live))
	copy(best, live)
	copy(worst, live)
	heap.Init(&best)
	heap.Init(&worst)
	s.best = best
	s.worst = worst
	s.pendingRemoval = make(map[types.Hash]struct{})
}
