package p2pnet

import (
	"github.com/chainbft/pbft-core/pbft"
	"github.com/chainbft/pbft-core/roster"
	"github.com/chainbft/pbft-core/types"
	"github.com/tendermint/tendermint/crypto"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/p2p/conn"
)

// Channel IDs, one per message kind, generalized from the single
// consensus channel a two-phase demo reactor would need.
const (
	ChannelPrepare    = byte(0x20)
	ChannelSign       = byte(0x21)
	ChannelCommit     = byte(0x22)
	ChannelViewChange = byte(0x23)
)

func channelFor(kind types.Kind) byte {
	switch kind {
	case types.KindPrepare:
		return ChannelPrepare
	case types.KindSign:
		return ChannelSign
	case types.KindCommit:
		return ChannelCommit
	case types.KindViewChange:
		return ChannelViewChange
	default:
		return ChannelSign
	}
}

func kindForChannel(chID byte) (types.Kind, bool) {
	switch chID {
	case ChannelPrepare:
		return types.KindPrepare, true
	case ChannelSign:
		return types.KindSign, true
	case ChannelCommit:
		return types.KindCommit, true
	case ChannelViewChange:
		return types.KindViewChange, true
	default:
		return 0, false
	}
}

// Reactor bridges a tendermint p2p.Switch to the consensus worker. It
// implements both p2p.Reactor (inbound wire traffic) and pbft.PeerNet
// (outbound broadcast/unicast), so the core never imports p2p directly.
type Reactor struct {
	p2p.BaseReactor

	rst    *roster.Roster
	worker *pbft.Worker
}

// NewReactor builds a Reactor bound to rst for miner-peer identification.
// SetWorker must be called before the reactor is registered with a
// running Switch; the Switch itself is wired in automatically by
// Switch.AddReactor via the embedded BaseReactor.SetSwitch.
func NewReactor(rst *roster.Roster) *Reactor {
	r := &Reactor{rst: rst}
	r.BaseReactor = *p2p.NewBaseReactor("PBFT", r)
	return r
}

// SetWorker wires the reactor to the consensus worker it feeds.
func (r *Reactor) SetWorker(w *pbft.Worker) {
	r.worker = w
}

// GetChannels implements p2p.Reactor.
func (r *Reactor) GetChannels() []*conn.ChannelDescriptor {
	return []*conn.ChannelDescriptor{
		{ID: ChannelPrepare, Priority: 10, SendQueueCapacity: 100},
		{ID: ChannelSign, Priority: 10, SendQueueCapacity: 1000},
		{ID: ChannelCommit, Priority: 10, SendQueueCapacity: 1000},
		{ID: ChannelViewChange, Priority: 6, SendQueueCapacity: 100},
	}
}

// AddPeer implements p2p.Reactor. No handshake beyond the Switch's own is
// needed: a connected peer's identity is its node key, and roster
// membership is resolved lazily by comparing against validator pubkeys.
func (r *Reactor) AddPeer(peer p2p.Peer) {}

// RemovePeer implements p2p.Reactor.
func (r *Reactor) RemovePeer(peer p2p.Peer, reason interface{}) {}

// Receive implements p2p.Reactor: decode the channel into a message kind
// and hand the raw payload to the worker's inbound queue.
func (r *Reactor) Receive(chID byte, peer p2p.Peer, msgBytes []byte) {
	kind, ok := kindForChannel(chID)
	if !ok || r.worker == nil {
		return
	}
	r.worker.Enqueue(kind, string(peer.ID()), msgBytes)
}

// peerIDForKey returns the p2p identity a validator's consensus pubkey
// would present on the wire. Node identity and consensus identity share
// one keypair in this deployment, so this is a pure hash, not a lookup.
func peerIDForKey(pk crypto.PubKey) p2p.ID {
	return p2p.PubKeyToID(pk)
}

// ForEachMinerPeer implements pbft.PeerNet.
func (r *Reactor) ForEachMinerPeer(fn func(peerID string, pubKey crypto.PubKey)) {
	if r.Switch == nil {
		return
	}
	for _, pk := range r.rst.MinerList(r.rst.CurrentHeight()) {
		if pk == nil {
			continue
		}
		id := peerIDForKey(pk)
		peer := r.Switch.Peers().Get(id)
		if peer == nil {
			continue
		}
		fn(string(id), pk)
	}
}

// IsConnected implements pbft.PeerNet.
func (r *Reactor) IsConnected(pubKey crypto.PubKey) bool {
	if r.Switch == nil || pubKey == nil {
		return false
	}
	return r.Switch.Peers().Has(peerIDForKey(pubKey))
}

// Send implements pbft.PeerNet.
func (r *Reactor) Send(peerID string, kind types.Kind, payload []byte) bool {
	if r.Switch == nil {
		return false
	}
	peer := r.Switch.Peers().Get(p2p.ID(peerID))
	if peer == nil {
		return false
	}
	return peer.Send(channelFor(kind), payload)
}
