package txpool

import "errors"

// Outward error kinds, returned from Pool.Add and AccountBucket.insert. Checked with errors.Is, the standard sentinel-error
// convention for a package that may wrap or compare these across packages.
var (
	// ErrDecode is returned when a raw transaction could not be decoded.
	// Not recoverable: the input is malformed.
	ErrDecode = errors.New("txpool: could not decode transaction")

	// ErrAuthorUnknown is returned when the sender could not be recovered
	// from the transaction's signature.
	ErrAuthorUnknown = errors.New("txpool: could not recover sender")

	// ErrAlreadyPresent is returned when a transaction with the same hash
	// is already held by the pool. Benign: the caller already succeeded.
	ErrAlreadyPresent = errors.New("txpool: transaction already present")

	// ErrNonceTooLow is returned when tx.Nonce() <= account.Nonce: the
	// transaction is already confirmed or impossible to ever execute.
	ErrNonceTooLow = errors.New("txpool: nonce too low")

	// ErrPerAccountFull is returned when AccountBucket.insert would need to
	// grow the bucket past the per-account limit and the new transaction
	// sorts at the tail.
	ErrPerAccountFull = errors.New("txpool: account transaction limit reached")

	// ErrReplaceUnderpriced is returned when a same-nonce replacement does
	// not clear the configured price-bump threshold.
	ErrReplaceUnderpriced = errors.New("txpool: replacement transaction underpriced")

	// ErrInsufficientFunds is returned by the AccountBucket prefix cost
	// check: tx.MaxCost() exceeds the balance left after txs[0:insert_pos].
	ErrInsufficientFunds = errors.New("txpool: insufficient funds for transaction")

	// ErrPoolFullUnderpriced is returned when the global HashIndex is at
	// capacity and the incoming transaction does not outscore the current
	// worst entry.
	ErrPoolFullUnderpriced = errors.New("txpool: pool full, transaction underpriced")

	// ErrStaleAccount is returned when the chain tip kept moving out from
	// under an import's optimistic retry loop past the retry cap, or when
	// the account oracle's transport failed after retries.
	ErrStaleAccount = errors.New("txpool: account state too stale to validate transaction")

	// ErrAccountUnknown is returned when a brand-new AccountBucket is about
	// to be created but no oracle consultation actually happened for it —
	// a caller-visible signal to retry the import.
	ErrAccountUnknown = errors.New("txpool: account state not yet known, retry")

	// ErrPoolClosed is returned by Pool.Add once Close has been called.
	// The other Pool methods do not check for closure.
	ErrPoolClosed = errors.New("txpool: pool is closed")
)

// RemovalReason tags why a transaction left the pool, attached to REMOVED
// events. These are never returned from calls, only observed by
// subscribers.
type RemovalReason uint8

const (
	ReasonReplaced RemovalReason = iota + 1
	ReasonUnderfunded
	ReasonLimitHit
	ReasonTimeout
	ReasonRemovedOnDemand
	ReasonConfirmedOrObsolete
)

func (r RemovalReason) String() string {
	switch r {
	case ReasonReplaced:
		return "REPLACED"
	case ReasonUnderfunded:
		return "UNDERFUNDED"
	case ReasonLimitHit:
		return "LIMIT_HIT"
	case ReasonTimeout:
		return "TIMEOUT"
	case ReasonRemovedOnDemand:
		return "REMOVED_ON_DEMAND"
	case ReasonConfirmedOrObsolete:
		return "CONFIRMED_OR_OBSOLETE"
	default:
		return "UNKNOWN"
	}
}
