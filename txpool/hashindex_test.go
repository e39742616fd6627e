package txpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/luxfi/mempool/types"
)

func TestHashIndexInsertFindRemove(t *testing.T) {
	h := newHashIndex()
	tx := newTx(1, 1, 1, 10, 10, 1000)
	now := time.Now()
	h.Insert(tx, now)

	require.True(t, h.Has(tx.Hash()))
	require.Equal(t, tx, h.Find(tx.Hash()))
	ts, ok := h.InsertedAt(tx.Hash())
	require.True(t, ok)
	require.Equal(t, now, ts)

	require.True(t, h.Remove(tx.Hash()))
	require.False(t, h.Has(tx.Hash()))
	require.Nil(t, h.Find(tx.Hash()))
	require.False(t, h.Remove(tx.Hash()))
}

// Order preservation law: find/filter_unknown preserve input order and
// length.
func TestHashIndexFilterUnknownPreservesOrder(t *testing.T) {
	h := newHashIndex()
	known := newTx(1, 1, 1, 10, 10, 1000)
	h.Insert(known, time.Now())

	query := []types.Hash{hashAt(9), known.Hash(), hashAt(8)}
	unknown := h.FilterUnknown(query)
	require.Equal(t, []types.Hash{hashAt(9), hashAt(8)}, unknown)
}

func TestHashIndexStaleBefore(t *testing.T) {
	h := newHashIndex()
	old := newTx(1, 1, 1, 10, 10, 1000)
	fresh := newTx(2, 1, 2, 10, 10, 1000)
	now := time.Now()
	h.Insert(old, now.Add(-time.Hour))
	h.Insert(fresh, now)

	stale := h.StaleBefore(now, 10*time.Minute)
	require.Equal(t, []types.Hash{old.Hash()}, stale)
}
