package txpool

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// maintenanceLoop runs the periodic maintenance sweep on a ticker until ctx
// is cancelled (by Pool.Close). It is run under the Pool's internal
// errgroup.Group, which Close cancels and waits on.
func (p *Pool) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runMaintenance()
		}
	}
}

// runMaintenance performs one sweep: expiring stalled HashIndex entries and
// compacting the ScoreIndex once its tombstone count crosses the
// configured threshold.
func (p *Pool) runMaintenance() {
	p.mu.Lock()
	now := time.Now()
	stale := p.hashes.StaleBefore(now, p.cfg.TxTimeout)
	var evts []Event
	for _, hash := range stale {
		tx := p.hashes.Find(hash)
		if tx == nil {
			continue
		}
		p.evictFull(tx)
		evts = append(evts, Event{Kind: EventRemoved, Tx: tx, Reason: ReasonTimeout})
	}
	if p.scores.PendingRemovalCount() > p.cfg.MaxPendingRemovals {
		p.compactScoresLocked()
	}
	p.mu.Unlock()

	if len(evts) > 0 {
		log.Debug("txpool: maintenance expired stale transactions", "count", len(evts))
	}
	for _, e := range evts {
		p.announcer.publish(e)
	}
}
