package pbft

import "time"

// Config carries the consensus tuning constants the core consumes. The
// CLI layer (see cmd/commands) starts from DefaultConfig and sets only
// ChainID; none of these fields is bound to a flag.
type Config struct {
	ChainID string

	// BaseTimeout is the phase-2/3 timeout before changeCycle scaling.
	BaseTimeout time.Duration

	// KMaxChangeCycle saturates the exponential timeout backoff.
	KMaxChangeCycle uint64

	// OmitEmptyBlock triggers a view change instead of voting when a
	// proposal executes to zero user transactions.
	OmitEmptyBlock bool

	// RebroadcastHeightWindow gates rebroadcast-with-originator-exclusion
	// to suppress ancient replays. Height-only, no time-based filter.
	RebroadcastHeightWindow uint64

	// GCInterval is how often collectGarbage may run, at most once per
	// interval.
	GCInterval time.Duration

	// InboundPollInterval bounds how long the worker loop waits on an
	// empty inbound queue before re-running its periodic duties.
	InboundPollInterval time.Duration
}

// DefaultConfig returns the engine's default tuning constants.
func DefaultConfig() Config {
	return Config{
		BaseTimeout:             3 * time.Second,
		KMaxChangeCycle:         6,
		OmitEmptyBlock:          false,
		RebroadcastHeightWindow: 10,
		GCInterval:              60 * time.Second,
		InboundPollInterval:     5 * time.Millisecond,
	}
}

// timeoutFor computes baseTimeout * 1.5^changeCycle, saturating
// changeCycle at KMaxChangeCycle.
func (c Config) timeoutFor(changeCycle uint64) time.Duration {
	if changeCycle > c.KMaxChangeCycle {
		changeCycle = c.KMaxChangeCycle
	}
	d := float64(c.BaseTimeout)
	for i := uint64(0); i < changeCycle; i++ {
		d *= 1.5
	}
	return time.Duration(d)
}
