package pbft

import (
	"testing"
	"time"

	"github.com/chainbft/pbft-core/backupstore"
	"github.com/chainbft/pbft-core/cryptosign"
	"github.com/chainbft/pbft-core/peerseen"
	"github.com/chainbft/pbft-core/roster"
	"github.com/chainbft/pbft-core/types"
	"github.com/tendermint/tendermint/crypto"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/stretchr/testify/require"
)

// newValidatorSet returns n fresh validator identities plus the private
// keys backing them, indexed the same way.
func newValidatorSet(n int) ([]*types.Validator, []crypto.PrivKey) {
	validators := make([]*types.Validator, n)
	privs := make([]crypto.PrivKey, n)
	for i := 0; i < n; i++ {
		privs[i] = cryptosign.GenPrivKey()
		validators[i] = types.NewValidator(privs[i].PubKey(), int32(i))
	}
	return validators, privs
}

// newHandlerCore builds a Core directly against the fake collaborators
// (fakeChain/fakeExecutor/fakeBackup, defined in scenario_test.go) rather
// than the disk-backed backupstore core_test.go uses, since these tests
// drive handlePrepareLocked directly and never need real persistence.
func newHandlerCore(t *testing.T, cfg Config, validators []*types.Validator, privs []crypto.PrivKey, selfIdx int32, net PeerNet, capture *sealCapture) *Core {
	t.Helper()
	core, err := New(Options{
		Config:   cfg,
		Logger:   log.NewNopLogger(),
		Metrics:  NewMetrics(),
		SelfIdx:  selfIdx,
		PrivKey:  privs[selfIdx],
		Roster:   roster.New(validators, selfIdx),
		Chain:    &fakeChain{height: 0, hash: nil},
		Executor: fakeExecutor{},
		Crypto:   cryptosign.New(),
		Backup:   newFakeBackup(),
		PeerNet:  net,
		OnSeal:   capture.onSeal,
		Caps:     peerseen.DefaultCaps(),
	})
	require.NoError(t, err)
	return core
}

// signPrepareFrom signs msg as signer idx's own proposal, the same way
// Core.signMsg would for that identity.
func signPrepareFrom(t *testing.T, privs []crypto.PrivKey, idx int32, msg *types.Msg) {
	t.Helper()
	signer := cryptosign.New()
	sig, err := signer.Sign(privs[idx], msg.SigBytes())
	require.NoError(t, err)
	msg.Sig = sig
	sig2, err := signer.Sign(privs[idx], msg.Sig2Bytes(types.KindPrepare))
	require.NoError(t, err)
	msg.Sig2 = sig2
}

// TestEmptyBlockProposalTriggersViewChange is property S3: a proposal that
// executes to zero user transactions, under OmitEmptyBlock, is never
// signed — it forces the timeout anchors to expire instead of producing a
// sign vote.
func TestEmptyBlockProposalTriggersViewChange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OmitEmptyBlock = true

	validators, privs := newValidatorSet(2)
	capture := &sealCapture{}
	core1 := newHandlerCore(t, cfg, validators, privs, 1, noopPeerNet{}, capture)

	var emptyBlock []byte
	executed, err := (fakeExecutor{}).CheckBlockValid(nil, emptyBlock)
	require.NoError(t, err)
	sealed := core1.sealHeaderLocked(time.Now(), executed.Header, 0, 1)
	hash := sealed.Hash()

	msg := types.Msg{Height: 1, View: types.ViewZero, Idx: 0, Timestamp: time.Now(), BlockHash: hash}
	signPrepareFrom(t, privs, 0, &msg)
	req := &types.Prepare{Msg: msg, Block: emptyBlock, Header: sealed}
	payload, err := encodeJSON(req)
	require.NoError(t, err)

	require.NoError(t, core1.OnPBFTMsg(types.KindPrepare, "peer0", payload))

	require.Equal(t, 0, capture.calls)
	require.Nil(t, core1.prepare)
	require.True(t, core1.leaderFailed)
	require.True(t, core1.lastConsensusTime.IsZero())
	require.True(t, core1.lastSignTime.IsZero())
}

// TestContradictingPrepareAfterCommitIsRejected is property S4: once this
// node has a committed-prepare recorded for a height, a proposal at that
// same height claiming a different block is a split-brain signal, not a
// retry, and is rejected outright rather than voted on.
func TestContradictingPrepareAfterCommitIsRejected(t *testing.T) {
	validators, privs := newValidatorSet(2)
	capture := &sealCapture{}
	core1 := newHandlerCore(t, DefaultConfig(), validators, privs, 1, noopPeerNet{}, capture)

	core1.committedPrepare = &types.Prepare{Msg: types.Msg{
		Height:    1,
		BlockHash: []byte("already-committed-hash"),
	}}

	conflictingBlock := []byte("other-branch-block")
	executed, err := (fakeExecutor{}).CheckBlockValid(nil, conflictingBlock)
	require.NoError(t, err)
	sealed := core1.sealHeaderLocked(time.Now(), executed.Header, 0, 1)
	hash := sealed.Hash()

	msg := types.Msg{Height: 1, View: types.ViewZero, Idx: 0, Timestamp: time.Now(), BlockHash: hash}
	signPrepareFrom(t, privs, 0, &msg)
	req := &types.Prepare{Msg: msg, Block: conflictingBlock, Header: sealed}
	payload, err := encodeJSON(req)
	require.NoError(t, err)

	err = core1.OnPBFTMsg(types.KindPrepare, "peer0", payload)
	require.Equal(t, errBlockMismatch, err)
	require.Equal(t, 0, capture.calls)
}

// recordingPeerNet is a PeerNet with one always-reachable peer, recording
// the kinds it was asked to send so a test can assert a rebroadcast
// happened without inspecting wire bytes.
type recordingPeerNet struct {
	peerID    string
	pubKey    crypto.PubKey
	sentKinds []types.Kind
}

func (r *recordingPeerNet) ForEachMinerPeer(fn func(peerID string, pubKey crypto.PubKey)) {
	fn(r.peerID, r.pubKey)
}
func (r *recordingPeerNet) IsConnected(pubKey crypto.PubKey) bool { return true }
func (r *recordingPeerNet) Send(peerID string, kind types.Kind, payload []byte) bool {
	r.sentKinds = append(r.sentKinds, kind)
	return true
}

// TestRestoredCommittedPrepareRehandlesOnRequest is property S6: a node
// that crashed after reaching sign-quorum but before block persistence
// restores its committed-prepare checkpoint from the backup store on
// restart, and RehandlePrepareReq re-delivers it to peers that may have
// missed it.
func TestRestoredCommittedPrepareRehandlesOnRequest(t *testing.T) {
	validators, privs := newValidatorSet(2)

	committed := &types.Prepare{
		Msg: types.Msg{
			Height:    5,
			View:      types.ViewZero,
			Idx:       0,
			BlockHash: []byte("restored-hash"),
		},
		Block: []byte("restored-block"),
	}
	encoded, err := encodeJSON(committed)
	require.NoError(t, err)

	backup := newFakeBackup()
	require.NoError(t, backup.Put(backupstore.CommittedPrepareKey, encoded))

	net := &recordingPeerNet{peerID: "peer1", pubKey: validators[1].PubKey}
	capture := &sealCapture{}
	core, err := New(Options{
		Config:   DefaultConfig(),
		Logger:   log.NewNopLogger(),
		Metrics:  NewMetrics(),
		SelfIdx:  0,
		PrivKey:  privs[0],
		Roster:   roster.New(validators, 0),
		Chain:    &fakeChain{height: 4, hash: []byte("tip-at-4")},
		Executor: fakeExecutor{},
		Crypto:   cryptosign.New(),
		Backup:   backup,
		PeerNet:  net,
		OnSeal:   capture.onSeal,
		Caps:     peerseen.DefaultCaps(),
	})
	require.NoError(t, err)
	require.NotNil(t, core.committedPrepare)
	require.Equal(t, uint64(5), core.committedPrepare.Height)

	core.RehandlePrepareReq()
	require.Contains(t, net.sentKinds, types.KindPrepare)
}
