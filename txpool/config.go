package txpool

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Config holds the recognized mempool options. CLI/flag parsing that would
// populate this struct is out of scope here; only the structured surface
// lives in this package.
type Config struct {
	// PerAccount caps the number of queued transactions per sender.
	PerAccount int
	// Global caps the total number of transactions held by the pool.
	Global int
	// TxTimeout is the stalled-entry sweep threshold.
	TxTimeout time.Duration
	// MaintenanceInterval is how often the periodic maintenance task runs.
	MaintenanceInterval time.Duration
	// PriceBumpPercent is the minimum score increase, in per mille of the
	// replaced transaction's score, required for a same-nonce replacement
	// to be accepted. Defaults to 125 (12.5%) but stays configurable for
	// tests that want to exercise the boundary with round numbers.
	PriceBumpPercent uint64
	// MaxPendingRemovals is the ScoreIndex tombstone threshold that forces
	// a compaction.
	MaxPendingRemovals int
	// ImportRetries bounds the optimistic chain-tip retry loop in Pool.Add.
	ImportRetries int
	// PeerKnownHashesCap bounds each PeerSession's known-hash LRU.
	PeerKnownHashesCap int
	// AnnounceCoalesceWindow is the PeerSet fan-out batching interval.
	AnnounceCoalesceWindow time.Duration
}

// DefaultConfig holds the package's recommended defaults.
var DefaultConfig = Config{
	PerAccount:             16,
	Global:                 10000,
	TxTimeout:              300 * time.Second,
	MaintenanceInterval:    30 * time.Second,
	PriceBumpPercent:       125, // 12.5% in per mille, i.e. 1.125x: see bumpThreshold
	MaxPendingRemovals:     100,
	ImportRetries:          8,
	PeerKnownHashesCap:     1024,
	AnnounceCoalesceWindow: 50 * time.Millisecond,
}

// sanitize clamps zero or invalid fields to their defaults and returns the
// adjusted copy. It logs a warning when it corrects PerAccount, Global or
// TxTimeout; the other fields are reset without a log line.
func (c Config) sanitize() Config {
	conf := c
	if conf.PerAccount <= 0 {
		log.Warn("Sanitizing invalid txpool per-account cap", "provided", conf.PerAccount, "updated", DefaultConfig.PerAccount)
		conf.PerAccount = DefaultConfig.PerAccount
	}
	if conf.Global <= 0 {
		log.Warn("Sanitizing invalid txpool global cap", "provided", conf.Global, "updated", DefaultConfig.Global)
		conf.Global = DefaultConfig.Global
	}
	if conf.TxTimeout <= 0 {
		log.Warn("Sanitizing invalid txpool tx timeout", "provided", conf.TxTimeout, "updated", DefaultConfig.TxTimeout)
		conf.TxTimeout = DefaultConfig.TxTimeout
	}
	if conf.MaintenanceInterval <= 0 {
		conf.MaintenanceInterval = DefaultConfig.MaintenanceInterval
	}
	if conf.PriceBumpPercent == 0 {
		conf.PriceBumpPercent = DefaultConfig.PriceBumpPercent
	}
	if conf.MaxPendingRemovals <= 0 {
		conf.MaxPendingRemovals = DefaultConfig.MaxPendingRemovals
	}
	if conf.ImportRetries <= 0 {
		conf.ImportRetries = DefaultConfig.ImportRetries
	}
	if conf.PeerKnownHashesCap <= 0 {
		conf.PeerKnownHashesCap = DefaultConfig.PeerKnownHashesCap
	}
	if conf.AnnounceCoalesceWindow <= 0 {
		conf.AnnounceCoalesceWindow = DefaultConfig.AnnounceCoalesceWindow
	}
	return conf
}
