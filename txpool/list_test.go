package txpool

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"github.com/luxfi/mempool/types"
)

func newBucket(balance uint64) *AccountBucket {
	return newAccountBucket(addrAt(1), types.AccountInfo{Nonce: 0, Balance: uint256.NewInt(balance)})
}

// Exercises same-nonce replacement and the 12.5% bump threshold.
func TestAccountBucketReplace(t *testing.T) {
	b := newBucket(1_000_000)
	baseFee := uint256.NewInt(1)

	tx1 := newTx(1, 1, 1, 100, 100, 1000)
	_, _, err := b.insert(tx1, baseFee, 4, 125)
	require.NoError(t, err)

	tx2 := newTx(2, 1, 1, 112, 112, 1000)
	replaced, underfunded, err := b.insert(tx2, baseFee, 4, 125)
	require.NoError(t, err)
	require.Empty(t, underfunded)
	require.Equal(t, tx1.Hash(), replaced.Hash())
	require.Equal(t, 1, b.Len())
	require.Equal(t, tx2.Hash(), b.txs[0].Hash())

	tx3 := newTx(3, 1, 1, 120, 120, 1000)
	_, _, err = b.insert(tx3, baseFee, 4, 125)
	require.ErrorIs(t, err, ErrReplaceUnderpriced)
	require.Equal(t, tx2.Hash(), b.txs[0].Hash(), "pool unchanged on rejected replacement")
}

// Exercises the per-account cap and tail-position eviction on a
// higher-scoring mid-sequence insert.
func TestAccountBucketPerAccountCap(t *testing.T) {
	b := newBucket(1_000_000)
	baseFee := uint256.NewInt(1)

	tx1 := newTx(1, 1, 1, 10, 10, 1000)
	tx3 := newTx(3, 1, 3, 10, 10, 1000)
	_, _, err := b.insert(tx1, baseFee, 2, 125)
	require.NoError(t, err)
	_, _, err = b.insert(tx3, baseFee, 2, 125)
	require.NoError(t, err)

	tx2 := newTx(2, 1, 2, 15, 15, 1000)
	replaced, _, err := b.insert(tx2, baseFee, 2, 125)
	require.NoError(t, err)
	require.Equal(t, tx3.Hash(), replaced.Hash())
	require.Equal(t, 2, b.Len())
	require.Equal(t, []uint64{1, 2}, []uint64{b.txs[0].Nonce(), b.txs[1].Nonce()})

	// A third distinct nonce at the tail now fails PER_ACCOUNT_FULL.
	tx4 := newTx(4, 1, 4, 10, 10, 1000)
	_, _, err = b.insert(tx4, baseFee, 2, 125)
	require.ErrorIs(t, err, ErrPerAccountFull)
}

// Exercises the suffix cost check evicting the tail once cumulative cost
// exceeds the cached balance.
func TestAccountBucketSuffixEviction(t *testing.T) {
	b := newBucket(100)
	baseFee := uint256.NewInt(1)

	n1 := newTx(1, 1, 1, 10, 10, 40)
	n2 := newTx(2, 1, 2, 10, 10, 40)
	_, _, err := b.insert(n1, baseFee, 4, 125)
	require.NoError(t, err)
	_, underfunded, err := b.insert(n2, baseFee, 4, 125)
	require.NoError(t, err)
	require.Empty(t, underfunded)

	n0 := newTx(0, 1, 0, 10, 10, 30)
	_, underfunded, err = b.insert(n0, baseFee, 4, 125)
	require.NoError(t, err)
	require.Len(t, underfunded, 1)
	require.Equal(t, n2.Hash(), underfunded[0].Hash())
	require.Equal(t, 2, b.Len())
	require.Equal(t, []uint64{0, 1}, []uint64{b.txs[0].Nonce(), b.txs[1].Nonce()})
}

func TestAccountBucketInsufficientFunds(t *testing.T) {
	b := newBucket(50)
	baseFee := uint256.NewInt(1)

	tx := newTx(1, 1, 1, 10, 10, 60)
	_, _, err := b.insert(tx, baseFee, 4, 125)
	require.True(t, errors.Is(err, ErrInsufficientFunds))
	require.True(t, b.Empty())
}

// Exercises reorg confirmation dropping nonces <= account.nonce.
func TestAccountBucketPruneConfirmedOrObsolete(t *testing.T) {
	b := newBucket(1_000_000)
	baseFee := uint256.NewInt(1)
	for _, n := range []uint64{5, 6, 7} {
		_, _, err := b.insert(newTx(byte(n), 1, n, 10, 10, 1000), baseFee, 8, 125)
		require.NoError(t, err)
	}
	b.setAccount(types.AccountInfo{Nonce: 6, Balance: uint256.NewInt(1_000_000)})
	dropped := b.pruneConfirmedOrObsolete()
	require.Len(t, dropped, 2)
	require.Equal(t, 1, b.Len())
	require.EqualValues(t, 7, b.txs[0].Nonce())
}

func TestBumpThresholdDefault(t *testing.T) {
	old := uint256.NewInt(112)
	// 112 * 1.125 = 126.
	require.Equal(t, uint256.NewInt(126), bumpThreshold(old, 125))
}
