package pbft

import (
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// Metrics tracks per-phase counters across the three PBFT phases plus
// view changes, built on rcrowley/go-metrics.
type Metrics struct {
	registry gometrics.Registry

	ProposalsSealed gometrics.Counter
	SignVotesCast   gometrics.Counter
	CommitVotesCast gometrics.Counter
	ViewChanges     gometrics.Counter
	BlocksEmitted   gometrics.Counter
	CommitLatency   gometrics.Histogram
}

func NewMetrics() *Metrics {
	r := gometrics.NewRegistry()
	m := &Metrics{
		registry:        r,
		ProposalsSealed: gometrics.NewCounter(),
		SignVotesCast:   gometrics.NewCounter(),
		CommitVotesCast: gometrics.NewCounter(),
		ViewChanges:     gometrics.NewCounter(),
		BlocksEmitted:   gometrics.NewCounter(),
		CommitLatency:   gometrics.NewHistogram(gometrics.NewUniformSample(1028)),
	}
	r.Register("pbft.proposals_sealed", m.ProposalsSealed)
	r.Register("pbft.sign_votes_cast", m.SignVotesCast)
	r.Register("pbft.commit_votes_cast", m.CommitVotesCast)
	r.Register("pbft.view_changes", m.ViewChanges)
	r.Register("pbft.blocks_emitted", m.BlocksEmitted)
	r.Register("pbft.commit_latency_ns", m.CommitLatency)
	return m
}

func (m *Metrics) ObserveCommitLatency(start time.Time) {
	m.CommitLatency.Update(time.Since(start).Nanoseconds())
}

func (m *Metrics) Registry() gometrics.Registry {
	return m.registry
}
