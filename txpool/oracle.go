package txpool

import (
	"context"

	"github.com/luxfi/mempool/types"
)

// Decoder turns a raw wire-encoded transaction into a Transaction. The RLP
// codec itself is out of scope here; this is the seam the embedder plugs a
// real codec into.
type Decoder interface {
	Decode(raw []byte) (types.Transaction, error)
}

// AccountOracle is the required world-state capability: it must return
// account info reflecting the state at exactly the requested block hash.
// A value bound to a stale block hash is invalid and must not be returned
// as ok=true.
type AccountOracle interface {
	Get(ctx context.Context, sender types.Address, blockHash types.Hash) (types.AccountInfo, bool, error)
}

// cachedOracle is a thin pass-through to an AccountOracle and holds no
// cache of its own. The per-sender account cache Pool relies on is the
// AccountInfo kept in each AccountBucket: created on first reference to a
// sender, refreshed on chain updates.
type cachedOracle struct {
	oracle AccountOracle
}

func newCachedOracle(oracle AccountOracle) *cachedOracle {
	return &cachedOracle{oracle: oracle}
}

// fetch consults the oracle without holding any pool lock, since the
// lookup may suspend. The caller is responsible for validating the result
// against the chain tip hash it observed before and after the call.
func (c *cachedOracle) fetch(ctx context.Context, sender types.Address, blockHash types.Hash) (types.AccountInfo, bool, error) {
	return c.oracle.Get(ctx, sender, blockHash)
}
