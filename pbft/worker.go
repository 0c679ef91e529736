package pbft

import (
	"time"

	"github.com/chainbft/pbft-core/types"
)

// pollTimer wraps time.Timer with the drain-before-reset idiom required
// when a timer may fire and be reset from the same select loop.
type pollTimer struct {
	t *time.Timer
	c <-chan time.Time
}

func newPollTimer(d time.Duration) *pollTimer {
	t := time.NewTimer(d)
	return &pollTimer{t: t, c: t.C}
}

func (p *pollTimer) reset(d time.Duration) {
	select {
	case <-p.t.C:
	default:
	}
	p.t.Reset(d)
}

func (p *pollTimer) stop() {
	p.t.Stop()
}

// inboundMsg is one entry in the core's lock-free inbound queue, the only
// boundary between the network goroutines and the single worker thread
// that owns all core state.
type inboundMsg struct {
	kind    types.Kind
	peer    string
	payload []byte
}

// Worker drives the cooperative single-threaded event loop: pop at most
// one inbound message per tick, dispatch it, then always run the periodic
// duties (timeout check, future-prepare drain, garbage collection) before
// looping again.
type Worker struct {
	core   *Core
	inbox  chan inboundMsg
	stopCh chan struct{}
}

// NewWorker wires a bounded inbound queue around core. The queue capacity
// is generous enough that a burst of votes from N peers never blocks the
// network receive goroutines; Enqueue drops the message rather than
// blocking if the queue is ever full.
func NewWorker(core *Core) *Worker {
	return &Worker{
		core:   core,
		inbox:  make(chan inboundMsg, 4096),
		stopCh: make(chan struct{}),
	}
}

// Core returns the worker's underlying consensus core, for collaborators
// that need it directly (metrics reporting, the CLI sealing loop).
func (w *Worker) Core() *Core {
	return w.core
}

// Enqueue hands a received wire message to the worker. Safe to call from
// any number of concurrent network goroutines.
func (w *Worker) Enqueue(kind types.Kind, peer string, payload []byte) {
	select {
	case w.inbox <- inboundMsg{kind: kind, peer: peer, payload: payload}:
	default:
		w.core.logger.Debug("inbound queue full, dropping message", "kind", kind, "peer", peer)
	}
}

// Stop signals Run to return after its current tick.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// Run is the single-threaded consensus event loop. It must be driven
// from exactly one goroutine.
func (w *Worker) Run() {
	timer := newPollTimer(w.core.cfg.InboundPollInterval)
	defer timer.stop()

	for {
		select {
		case <-w.stopCh:
			return
		case m := <-w.inbox:
			w.dispatch(m)
		case <-timer.c:
		}
		w.runPeriodic()
		timer.reset(w.core.cfg.InboundPollInterval)
	}
}

func (w *Worker) dispatch(m inboundMsg) {
	if err := w.core.OnPBFTMsg(m.kind, m.peer, m.payload); err != nil {
		w.core.logger.Debug("inbound message rejected", "kind", m.kind, "peer", m.peer, "err", err)
	}
}

func (w *Worker) runPeriodic() {
	w.core.CheckTimeout()
	w.core.drainFuturePrepare()
	w.core.CollectGarbage()
}
