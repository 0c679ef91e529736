// Package peerseen implements the bounded per-peer, per-kind fingerprint
// filter that suppresses re-broadcast to a peer that has already sent us
// a message or already received it from us.
package peerseen

import (
	"container/list"
	"sync"

	"github.com/chainbft/pbft-core/types"
)

// Caps holds the per-kind capacity of one peer's filter, in the low
// thousands.
type Caps struct {
	Prepare    int
	Sign       int
	Commit     int
	ViewChange int
}

// DefaultCaps returns a low-thousands capacity per kind, per peer.
func DefaultCaps() Caps {
	return Caps{Prepare: 2000, Sign: 2000, Commit: 2000, ViewChange: 2000}
}

func (c Caps) forKind(k types.Kind) int {
	switch k {
	case types.KindPrepare:
		return c.Prepare
	case types.KindSign:
		return c.Sign
	case types.KindCommit:
		return c.Commit
	case types.KindViewChange:
		return c.ViewChange
	default:
		return c.Sign
	}
}

// kindSet is an insertion-ordered, capacity-bounded set of fingerprints for
// one (peer, kind) pair. On overflow the oldest entry is evicted.
type kindSet struct {
	cap     int
	order   *list.List
	entries map[string]*list.Element
}

func newKindSet(cap int) *kindSet {
	return &kindSet{cap: cap, order: list.New(), entries: make(map[string]*list.Element)}
}

func (ks *kindSet) has(key string) bool {
	_, ok := ks.entries[key]
	return ok
}

func (ks *kindSet) mark(key string) {
	if ks.has(key) {
		return
	}
	el := ks.order.PushBack(key)
	ks.entries[key] = el
	if ks.cap > 0 && ks.order.Len() > ks.cap {
		oldest := ks.order.Front()
		if oldest != nil {
			ks.order.Remove(oldest)
			delete(ks.entries, oldest.Value.(string))
		}
	}
}

func (ks *kindSet) size() int {
	return ks.order.Len()
}

// perPeer holds the four kind sets for one peer, guarded by its own small
// mutex so peers don't contend with each other.
type perPeer struct {
	mtx  sync.Mutex
	sets map[types.Kind]*kindSet
}

func newPerPeer(caps Caps) *perPeer {
	return &perPeer{
		sets: map[types.Kind]*kindSet{
			types.KindPrepare:    newKindSet(caps.Prepare),
			types.KindSign:       newKindSet(caps.Sign),
			types.KindCommit:     newKindSet(caps.Commit),
			types.KindViewChange: newKindSet(caps.ViewChange),
		},
	}
}

// Filter tracks, per peer, which fingerprints have already crossed the
// wire in either direction.
type Filter struct {
	mtx   sync.Mutex
	caps  Caps
	peers map[string]*perPeer
}

func New(caps Caps) *Filter {
	return &Filter{caps: caps, peers: make(map[string]*perPeer)}
}

func (f *Filter) peerSet(peerID string) *perPeer {
	f.mtx.Lock()
	p, ok := f.peers[peerID]
	if !ok {
		p = newPerPeer(f.caps)
		f.peers[peerID] = p
	}
	f.mtx.Unlock()
	return p
}

// Seen reports whether fingerprint has already been marked for peerID
// under kind.
func (f *Filter) Seen(peerID string, kind types.Kind, fingerprint string) bool {
	p := f.peerSet(peerID)
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.sets[kind].has(fingerprint)
}

// Mark records fingerprint as seen for peerID under kind, evicting the
// oldest entry for that (peer, kind) if the cap is exceeded.
func (f *Filter) Mark(peerID string, kind types.Kind, fingerprint string) {
	p := f.peerSet(peerID)
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.sets[kind].mark(fingerprint)
}

// Size returns the current number of tracked fingerprints for peerID under
// kind, for capacity-bound property tests.
func (f *Filter) Size(peerID string, kind types.Kind) int {
	p := f.peerSet(peerID)
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.sets[kind].size()
}

// Cap returns the configured capacity for kind.
func (f *Filter) Cap(kind types.Kind) int {
	return f.caps.forKind(kind)
}

// ClearAll wipes every peer's filter. Invoked only when the node
// intentionally rebroadcasts content it previously suppressed (e.g.
// replay of a committed-prepare during recovery), never on an ordinary
// view change.
func (f *Filter) ClearAll() {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.peers = make(map[string]*perPeer)
}
