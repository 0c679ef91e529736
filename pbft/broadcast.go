package pbft

import (
	"github.com/chainbft/pbft-core/peerseen"
	"github.com/chainbft/pbft-core/types"
	"github.com/tendermint/tendermint/crypto"
)

// broadcaster fans a wire message out to every connected miner peer,
// applying the caller-specified exclusion set and the peer-seen filter.
type broadcaster struct {
	net    PeerNet
	filter *peerseen.Filter
}

func newBroadcaster(net PeerNet, filter *peerseen.Filter) *broadcaster {
	return &broadcaster{net: net, filter: filter}
}

// excludeSet names peers (by transport ID) and/or public keys to skip —
// the message's originator and its claimed sender.
type excludeSet struct {
	peerIDs map[string]bool
	keys    []crypto.PubKey
}

func newExcludeSet(peerIDs ...string) excludeSet {
	m := make(map[string]bool, len(peerIDs))
	for _, id := range peerIDs {
		if id != "" {
			m[id] = true
		}
	}
	return excludeSet{peerIDs: m}
}

func (e excludeSet) withKey(k crypto.PubKey) excludeSet {
	if k != nil {
		e.keys = append(e.keys, k)
	}
	return e
}

func (e excludeSet) excludesPeer(peerID string) bool {
	return e.peerIDs[peerID]
}

func (e excludeSet) excludesKey(k crypto.PubKey) bool {
	for _, ek := range e.keys {
		if ek.Equals(k) {
			return true
		}
	}
	return false
}

// broadcast iterates every connected miner peer and, for each: skips
// non-miner peers (ForEachMinerPeer already filters those out), skips
// excluded peers, consults the peer-seen filter, writes, then marks.
func (b *broadcaster) broadcast(kind types.Kind, fingerprint string, payload []byte, excl excludeSet) {
	b.net.ForEachMinerPeer(func(peerID string, pubKey crypto.PubKey) {
		if excl.excludesPeer(peerID) || excl.excludesKey(pubKey) {
			return
		}
		if b.filter.Seen(peerID, kind, fingerprint) {
			return
		}
		if !b.net.Send(peerID, kind, payload) {
			return
		}
		b.filter.Mark(peerID, kind, fingerprint)
	})
}

// unicast sends directly to one peer without consulting or updating the
// peer-seen filter (used for the fast-view-change catch-up unicast).
func (b *broadcaster) unicast(peerID string, kind types.Kind, payload []byte) {
	b.net.Send(peerID, kind, payload)
}

// clearMask wipes every peer-seen filter. Called only when the node
// intentionally rebroadcasts content it previously suppressed.
func (b *broadcaster) clearMask() {
	b.filter.ClearAll()
}
