// Package rpc is the thin adapter exposing the mempool's external RPC
// surface over a txpool.Pool. The transport itself (gRPC glue) is out of
// scope; this package only shapes the request/response types and forwards
// to Pool, logging at Trace level for per-call detail that would
// otherwise be too noisy at Debug.
package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum/log"
	"github.com/luxfi/mempool/txpool"
	"github.com/luxfi/mempool/types"
)

// Version is the three-part semantic version this service answers with.
type Version struct {
	Major, Minor, Patch uint32
}

// protocolVersion is the version this adapter implements.
var protocolVersion = Version{Major: 1, Minor: 0, Patch: 0}

// TxResult is the per-transaction outcome of Add: either Accepted, or
// Err naming why it was rejected.
type TxResult struct {
	Accepted bool
	Err      error
}

// Service exposes the mempool's external RPC surface over a Pool.
type Service struct {
	pool *txpool.Pool
}

// NewService wraps pool for RPC access.
func NewService(pool *txpool.Pool) *Service {
	return &Service{pool: pool}
}

// Version returns the implemented protocol version.
func (s *Service) Version() Version {
	return protocolVersion
}

// FindUnknown returns the order-preserving subset of hashes not held by
// the pool.
func (s *Service) FindUnknown(hashes []types.Hash) []types.Hash {
	log.Trace("rpc: FindUnknown", "count", len(hashes))
	return s.pool.FilterUnknown(hashes)
}

// Add admits a batch of RLP-encoded transactions, returning one TxResult
// per input in order.
func (s *Service) Add(ctx context.Context, rlpTxs [][]byte) []TxResult {
	log.Trace("rpc: Add", "count", len(rlpTxs))
	errs := s.pool.Add(ctx, rlpTxs)
	results := make([]TxResult, len(errs))
	for i, err := range errs {
		results[i] = TxResult{Accepted: err == nil, Err: err}
	}
	return results
}

// Transactions resolves hashes to transactions, preserving order and
// length; unknown hashes map to a nil entry.
func (s *Service) Transactions(hashes []types.Hash) []types.Transaction {
	log.Trace("rpc: Transactions", "count", len(hashes))
	return s.pool.Find(hashes)
}

// OnAdd streams every newly inserted transaction until ctx is cancelled,
// at which point the returned channel is closed and the subscription torn
// down.
func (s *Service) OnAdd(ctx context.Context) <-chan types.Transaction {
	events := make(chan txpool.Event, 256)
	sub := s.pool.SubscribeEvents(events)

	out := make(chan types.Transaction, 256)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				if err != nil {
					log.Debug("rpc: OnAdd subscription ended", "err", err)
				}
				return
			case evt := <-events:
				if evt.Kind != txpool.EventInserted {
					continue
				}
				select {
				case out <- evt.Tx:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
