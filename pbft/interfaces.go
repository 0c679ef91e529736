// Package pbft implements the PBFT consensus state machine, its
// broadcast layer, block-signature verifier, and worker loop. External
// collaborators are expressed here as interfaces; the core never imports
// a concrete transport, storage, or crypto package.
package pbft

import (
	"github.com/chainbft/pbft-core/roster"
	"github.com/chainbft/pbft-core/types"
	"github.com/tendermint/tendermint/crypto"
)

// ExecutedBlock is what Executor.CheckBlockValid hands back once it has
// re-run a proposal's transactions: the re-derived header (whose Hash may
// differ from the claimed hash if the primary and this peer disagree), the
// re-serialized body, and the user transaction count (consulted by the
// omitEmptyBlock gate).
type ExecutedBlock struct {
	Header  types.Header
	Body    []byte
	NumTxs  int
}

// Executor re-runs a proposed block's transactions against local state.
type Executor interface {
	CheckBlockValid(claimedHash []byte, blockBytes []byte) (*ExecutedBlock, error)
}

// Chain is the block store and chain tip; reportBlock (driven externally)
// is how it tells the core to advance.
type Chain interface {
	AddBlockCache(executed *ExecutedBlock)
	Block(hash []byte) []byte
	Tip() (height uint64, hash []byte)
}

// PeerNet is the P2P transport the broadcast layer fans out over.
type PeerNet interface {
	ForEachMinerPeer(fn func(peerID string, pubKey crypto.PubKey))
	IsConnected(pubKey crypto.PubKey) bool
	Send(peerID string, kind types.Kind, payload []byte) bool
}

// Crypto is the signing/verification primitive the core uses for Sig and
// Sig2 on every message, and for the block-signature certificate.
type Crypto interface {
	Sign(sk crypto.PrivKey, hash []byte) ([]byte, error)
	Verify(pk crypto.PubKey, sig []byte, hash []byte) bool
}

// Roster is the read-only view of the miner set the core consults for
// primary election and signature verification.
type Roster interface {
	LookupByKey(pubkey crypto.PubKey) (roster.AccountType, int32)
	PubkeyOf(idx int32) crypto.PubKey
	MinerCount() int
	MinerList(height uint64) []crypto.PubKey
	SelfIdx() int32
}

// BackupStore is the durable key/value store backing the committed-prepare
// checkpoint.
type BackupStore interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

// SealHandler is invoked at most once per blockHash, once the commit
// certificate is complete (checkAndSave).
type SealHandler func(block *types.SealedBlock, isPrimary bool)
