// Package roster implements the miner roster the consensus core consults
// for primary election and signature verification. It snapshots by height
// so a verifier's result stays reproducible even as the live roster
// changes underneath.
package roster

import (
	"sync"

	"github.com/chainbft/pbft-core/types"
	"github.com/tendermint/tendermint/crypto"
)

// AccountType classifies a roster entry as returned by LookupByKey.
type AccountType int

const (
	AccountUnknown AccountType = iota
	AccountMiner
	AccountObserver
)

// Snapshot is an immutable view of the roster at a given height.
type Snapshot struct {
	Height     uint64
	Validators []*types.Validator
}

func (s *Snapshot) Size() int {
	if s == nil {
		return 0
	}
	return len(s.Validators)
}

func (s *Snapshot) ByIdx(idx int32) *types.Validator {
	if s == nil || idx < 0 || int(idx) >= len(s.Validators) {
		return nil
	}
	return s.Validators[idx]
}

func (s *Snapshot) PubKeys() []crypto.PubKey {
	keys := make([]crypto.PubKey, len(s.Validators))
	for i, v := range s.Validators {
		keys[i] = v.PubKey
	}
	return keys
}

// Roster tracks the live miner set plus a history of snapshots keyed by the
// height at which they took effect, so Snapshot(h) for a past height
// returns what was live then, not what is live now.
type Roster struct {
	mtx sync.RWMutex

	selfIdx int32
	current *Snapshot
	history map[uint64]*Snapshot
}

// New builds a roster whose current (and height-0) snapshot is validators,
// with selfIdx identifying the local node's slot in it (-1 if this node is
// not a miner).
func New(validators []*types.Validator, selfIdx int32) *Roster {
	snap := &Snapshot{Height: 0, Validators: validators}
	return &Roster{
		selfIdx: selfIdx,
		current: snap,
		history: map[uint64]*Snapshot{0: snap},
	}
}

// Advance installs a new roster snapshot effective from height onward,
// keeping the old one addressable by height for verifiers checking older
// blocks.
func (r *Roster) Advance(height uint64, validators []*types.Validator, selfIdx int32) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	snap := &Snapshot{Height: height, Validators: validators}
	r.current = snap
	r.selfIdx = selfIdx
	r.history[height] = snap
}

// SelfIdx returns this node's roster index, or -1 if it is not a miner.
func (r *Roster) SelfIdx() int32 {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.selfIdx
}

// CurrentHeight returns the height of the live snapshot, i.e. the height
// passed to the most recent Advance call (or 0, the genesis snapshot, if
// Advance has never been called).
func (r *Roster) CurrentHeight() uint64 {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.current.Height
}

// MinerCount returns the live roster size.
func (r *Roster) MinerCount() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.current.Size()
}

// PubkeyOf returns the live roster's public key for idx, or nil.
func (r *Roster) PubkeyOf(idx int32) crypto.PubKey {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	v := r.current.ByIdx(idx)
	if v == nil {
		return nil
	}
	return v.PubKey
}

// LookupByKey returns the account type and index of pubkey in the live
// roster.
func (r *Roster) LookupByKey(pubkey crypto.PubKey) (AccountType, int32) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	for _, v := range r.current.Validators {
		if v.PubKey.Equals(pubkey) {
			return AccountMiner, v.Idx
		}
	}
	return AccountUnknown, -1
}

// MinerList returns the ordered public keys of the roster snapshot that
// was in effect at height, or the nearest earlier snapshot if height was
// never recorded exactly (e.g. heights between roster changes).
func (r *Roster) MinerList(height uint64) []crypto.PubKey {
	return r.SnapshotAt(height).PubKeys()
}

// SnapshotAt returns the snapshot in effect at height.
func (r *Roster) SnapshotAt(height uint64) *Snapshot {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	if snap, ok := r.history[height]; ok {
		return snap
	}
	var best *Snapshot
	for h, snap := range r.history {
		if h <= height && (best == nil || h > best.Height) {
			best = snap
		}
	}
	if best == nil {
		return r.current
	}
	return best
}
