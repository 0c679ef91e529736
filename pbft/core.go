package pbft

import (
	"sync"
	"time"

	"github.com/chainbft/pbft-core/backupstore"
	"github.com/chainbft/pbft-core/peerseen"
	"github.com/chainbft/pbft-core/types"
	"github.com/tendermint/tendermint/crypto"
	"github.com/tendermint/tendermint/libs/log"
)

// futureSlot is the single-entry cache for a proposal that arrived ahead
// of this node's current height/view.
type futureSlot struct {
	from     string
	prepare  *types.Prepare
}

// Core is the PBFT consensus state machine. Every exported method
// acquires mtx on entry: a single mutex covers the entire core, and the
// inbound queue (owned by the worker, see worker.go) is the only
// lock-free boundary.
type Core struct {
	mtx sync.Mutex

	cfg     Config
	logger  log.Logger
	metrics *Metrics

	selfIdx int32
	privKey crypto.PrivKey

	roster   Roster
	chain    Chain
	executor Executor
	crypto   Crypto
	backup   BackupStore

	bc *broadcaster

	onSeal SealHandler

	// protocol state
	view   types.View
	toView types.View

	consensusHeight uint64
	chainTip        uint64
	chainTipHash    []byte

	changeCycle  uint64
	leaderFailed bool

	rawPrepare *types.Prepare
	prepare    *types.Prepare

	signs   *signCache
	commits *commitCache
	vcs     *viewChangeCache

	committedPrepare *types.Prepare

	future *futureSlot

	commitTriggered map[string]bool
	commitStarted   map[string]time.Time

	lastConsensusTime time.Time
	lastSignTime      time.Time

	lastGC time.Time
}

// Options bundles the constructor-injected collaborators as a plain
// struct since PBFT has no optional variants worth a functional-options
// API.
type Options struct {
	Config   Config
	Logger   log.Logger
	Metrics  *Metrics
	SelfIdx  int32
	PrivKey  crypto.PrivKey
	Roster   Roster
	Chain    Chain
	Executor Executor
	Crypto   Crypto
	Backup   BackupStore
	PeerNet  PeerNet
	OnSeal   SealHandler
	Caps     peerseen.Caps
}

// New builds a Core and restores the committed-prepare checkpoint from
// the backup store.
func New(o Options) (*Core, error) {
	if o.Logger == nil {
		o.Logger = log.NewNopLogger()
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics()
	}

	c := &Core{
		cfg:             o.Config,
		logger:          o.Logger,
		metrics:         o.Metrics,
		selfIdx:         o.SelfIdx,
		privKey:         o.PrivKey,
		roster:          o.Roster,
		chain:           o.Chain,
		executor:        o.Executor,
		crypto:          o.Crypto,
		backup:          o.Backup,
		bc:              newBroadcaster(o.PeerNet, peerseen.New(o.Caps)),
		onSeal:          o.OnSeal,
		signs:           newSignCache(),
		commits:         newCommitCache(),
		vcs:             newViewChangeCache(),
		commitTriggered: make(map[string]bool),
		commitStarted:   make(map[string]time.Time),
	}

	tip, hash := o.Chain.Tip()
	c.chainTip = tip
	c.chainTipHash = hash
	c.consensusHeight = tip + 1
	c.view = types.ViewZero
	c.toView = types.ViewZero
	c.lastConsensusTime = time.Now()
	c.lastSignTime = time.Now()

	if err := c.restoreCommittedPrepare(); err != nil {
		return nil, err
	}

	return c, nil
}

// Metrics exposes the core's counters/histograms for external reporting
// (a node's metrics endpoint, a MetricSet entry).
func (c *Core) Metrics() *Metrics {
	return c.metrics
}

// CurrentView returns the view the core is currently in, for a host's
// sealing loop deciding whether to call GenerateSeal or the single-node
// GenerateCommit fast path.
func (c *Core) CurrentView() types.View {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.view
}

func (c *Core) restoreCommittedPrepare() error {
	raw, err := c.backup.Get(backupstore.CommittedPrepareKey)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	var p types.Prepare
	if err := decodeJSON(raw, &p); err != nil {
		c.logger.Error("failed to decode restored committed-prepare", "err", err)
		return nil
	}
	c.committedPrepare = &p
	c.logger.Info("restored committed-prepare from backup", "height", p.Height, "view", p.View)
	return nil
}

// primaryIdx computes (view + highest_block_number) mod N for the given
// view, evaluated at height = consensusHeight.
func (c *Core) primaryIdx(view types.View) int32 {
	n := c.roster.MinerCount()
	if n == 0 {
		return -1
	}
	return int32(view.ModN(c.chainTip, uint64(n)))
}

// checkPrimaryConnectedLocked resets the timeout anchors to the zero
// time when the current view's primary has no live peer connection, so
// the next CheckTimeout tick treats the primary as failed immediately
// instead of waiting out the full timeout window for a peer that is
// already known to be gone.
func (c *Core) checkPrimaryConnectedLocked() {
	primary := c.primaryIdx(c.view)
	pk := c.roster.PubkeyOf(primary)
	if pk == nil || c.bc.net.IsConnected(pk) {
		return
	}
	c.lastConsensusTime = time.Time{}
	c.lastSignTime = time.Time{}
	c.logger.Debug("primary disconnected, fast-tracking view-change check", "primary", primary, "view", c.view)
}

// quorum returns N - floor((N-1)/3).
func Quorum(n int) int {
	if n <= 0 {
		return 0
	}
	f := (n - 1) / 3
	return n - f
}

func (c *Core) quorum() int {
	return Quorum(c.roster.MinerCount())
}

// ShouldSeal reports whether this node is the elected primary for the
// current view and has not already produced a committed-prepare for the
// current height.
func (c *Core) ShouldSeal() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.shouldSealLocked()
}

func (c *Core) shouldSealLocked() bool {
	if c.selfIdx < 0 {
		return false
	}
	n := c.roster.MinerCount()
	if n == 0 {
		return false
	}
	if c.primaryIdx(c.view) != c.selfIdx {
		c.checkPrimaryConnectedLocked()
		return false
	}
	if c.committedPrepare != nil && c.consensusHeight <= c.committedPrepare.Height {
		// A committed-prepare already exists for this height: rebroadcast
		// it rather than sealing a new block.
		c.rehandlePrepareLocked()
		return false
	}
	return true
}

// rehandlePrepareLocked re-broadcasts the stored committed-prepare with
// the peer-seen mask cleared, so a primary recovering from a crash
// between sign-quorum and block persistence can get its already-committed
// proposal re-delivered to peers that missed it.
func (c *Core) rehandlePrepareLocked() {
	if c.committedPrepare == nil {
		return
	}
	c.bc.clearMask()
	payload, err := encodeJSON(c.committedPrepare)
	if err != nil {
		c.logger.Error("failed to encode committed-prepare for rebroadcast", "err", err)
		return
	}
	c.bc.broadcast(types.KindPrepare, c.committedPrepare.UniqueKey(), payload, newExcludeSet())
	c.logger.Info("rebroadcast committed-prepare", "height", c.committedPrepare.Height)
}

// RehandlePrepareReq exposes the recovery re-broadcast for direct use by a
// host that wants to trigger it outside the sealing gate (e.g. immediately
// after restart).
func (c *Core) RehandlePrepareReq() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.rehandlePrepareLocked()
}

func (c *Core) signMsg(m *types.Msg, kind types.Kind) error {
	sig, err := c.crypto.Sign(c.privKey, m.SigBytes())
	if err != nil {
		return err
	}
	m.Sig = sig
	sig2, err := c.crypto.Sign(c.privKey, m.Sig2Bytes(kind))
	if err != nil {
		return err
	}
	m.Sig2 = sig2
	return nil
}

// verifyMsg checks Sig and Sig2 against the roster's public key for idx.
func (c *Core) verifyMsg(m *types.Msg, kind types.Kind, idx int32) error {
	pk := c.roster.PubkeyOf(idx)
	if pk == nil {
		return errBadSignature
	}
	if !c.crypto.Verify(pk, m.Sig, m.SigBytes()) {
		return errBadSignature
	}
	if !c.crypto.Verify(pk, m.Sig2, m.Sig2Bytes(kind)) {
		return errBadSignature
	}
	return nil
}

// resolvePeerIdxLocked maps a transport peer ID to its roster index by
// scanning the miner peer table for a matching ID and looking its public
// key up in the roster. Returns ok=false if the peer is unknown or not a
// miner.
func (c *Core) resolvePeerIdxLocked(peerID string) (idx int32, ok bool) {
	c.bc.net.ForEachMinerPeer(func(id string, pubKey crypto.PubKey) {
		if ok || id != peerID {
			return
		}
		if _, foundIdx := c.roster.LookupByKey(pubKey); foundIdx >= 0 {
			idx, ok = foundIdx, true
		}
	})
	return idx, ok
}

// sealHeaderLocked finalizes header against the block the executor
// re-derived (carrying its TxsHash) plus the fields only the core knows
// (chain id, height, chain tip, proposer identity, roster hash),
// preserving whatever ProposalTime the caller already set. This is the
// same overlay handlePrepareLocked applies to a verifier's executed
// header, so a proposer's BlockHash and a verifier's re-derived hash
// agree for identical block bytes.
func (c *Core) sealHeaderLocked(proposalTime time.Time, executed types.Header, idx int32, height uint64) types.Header {
	executed.ChainID = c.cfg.ChainID
	executed.Height = height
	executed.LastBlockHash = c.chainTipHash
	executed.ValidatorAddr = validatorAddrOf(c.roster, idx)
	executed.ValidatorsHash = ValidatorsHash(c.roster, height)
	executed.ProposalTime = proposalTime
	executed.InvalidateHash()
	return executed
}

// GenerateSeal is the primary's proposal entry point. It re-executes
// block itself so the BlockHash it signs and broadcasts is built from
// the same TxsHash a verifying peer will derive for identical bytes.
func (c *Core) GenerateSeal(header types.Header, block []byte) (bool, types.View) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	view := c.view
	executed, err := c.executor.CheckBlockValid(nil, block)
	if err != nil {
		c.logger.Error("failed to execute proposal", "err", err)
		return false, view
	}
	sealed := c.sealHeaderLocked(header.ProposalTime, executed.Header, c.selfIdx, c.consensusHeight)
	hash := sealed.Hash()

	p := &types.Prepare{
		Msg: types.Msg{
			Height:    c.consensusHeight,
			View:      view,
			Idx:       c.selfIdx,
			Timestamp: time.Now(),
			BlockHash: hash,
		},
		Block:  executed.Body,
		Header: sealed,
	}
	if err := c.signMsg(&p.Msg, types.KindPrepare); err != nil {
		c.logger.Error("failed to sign proposal", "err", err)
		return false, view
	}

	payload, err := encodeJSON(p)
	if err != nil {
		c.logger.Error("failed to encode proposal", "err", err)
		return false, view
	}

	c.bc.broadcast(types.KindPrepare, p.UniqueKey(), payload, newExcludeSet())
	c.rawPrepare = p
	c.prepare = p
	c.metrics.ProposalsSealed.Inc(1)
	c.logger.Info("sealed proposal", "height", sealed.Height, "view", view, "hash", hash)

	c.castSignLocked(p)
	c.checkAndCommitLocked(hash.String())
	return true, view
}

// GenerateCommit is the single-node fast path: it produces this node's own
// sign vote directly for a block it already built, without waiting on the
// normal proposal/prepare round trip. Used when this node is the sole
// miner and a quorum round trip would only add latency. It still runs the
// block through the executor so the sealed block carries the same header
// (TxsHash included) checkAndSaveLocked would build for any other path.
func (c *Core) GenerateCommit(header types.Header, block []byte, view types.View) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	executed, err := c.executor.CheckBlockValid(nil, block)
	if err != nil {
		c.logger.Error("failed to execute fast-path block", "err", err)
		return false
	}
	sealed := c.sealHeaderLocked(header.ProposalTime, executed.Header, c.selfIdx, c.consensusHeight)
	hash := sealed.Hash()

	p := &types.Prepare{
		Msg: types.Msg{
			Height:    c.consensusHeight,
			View:      view,
			Idx:       c.selfIdx,
			Timestamp: time.Now(),
			BlockHash: hash,
		},
		Block:  executed.Body,
		Header: sealed,
	}
	if err := c.signMsg(&p.Msg, types.KindPrepare); err != nil {
		c.logger.Error("failed to sign fast-path proposal", "err", err)
		return false
	}
	c.rawPrepare = p
	c.prepare = p

	s := &types.Sign{Msg: types.Msg{
		Height:    p.Height,
		View:      p.View,
		Idx:       c.selfIdx,
		Timestamp: time.Now(),
		BlockHash: hash,
	}}
	if err := c.signMsg(&s.Msg, types.KindSign); err != nil {
		c.logger.Error("failed to sign fast-path vote", "err", err)
		return false
	}
	c.signs.add(s)
	c.metrics.SignVotesCast.Inc(1)
	c.checkAndCommitLocked(hash.String())
	return true
}
