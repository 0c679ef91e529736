package pbft

import (
	"time"

	"github.com/chainbft/pbft-core/backupstore"
	"github.com/chainbft/pbft-core/types"
)

// OnPBFTMsg is the inbound wire dispatch. It decodes by kind and hands
// off to the matching handler, all under the single mutex.
func (c *Core) OnPBFTMsg(kind types.Kind, peer string, payload []byte) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	switch kind {
	case types.KindPrepare:
		var p types.Prepare
		if err := decodeJSON(payload, &p); err != nil {
			return err
		}
		return c.handlePrepareLocked(peer, &p)
	case types.KindSign:
		var s types.Sign
		if err := decodeJSON(payload, &s); err != nil {
			return err
		}
		return c.handleSignLocked(peer, &s)
	case types.KindCommit:
		var cm types.Commit
		if err := decodeJSON(payload, &cm); err != nil {
			return err
		}
		return c.handleCommitLocked(peer, &cm)
	case types.KindViewChange:
		var vc types.ViewChange
		if err := decodeJSON(payload, &vc); err != nil {
			return err
		}
		return c.handleViewChangeLocked(peer, &vc)
	default:
		return errBadSignature
	}
}

// handlePrepareLocked validates and processes an inbound phase-1 proposal.
func (c *Core) handlePrepareLocked(from string, req *types.Prepare) error {
	selfOriginated := from == ""

	if c.rawPrepare != nil && c.rawPrepare.UniqueKey() == req.UniqueKey() {
		return errDuplicateMessage
	}
	if req.Idx == c.selfIdx && !selfOriginated {
		return errDuplicateMessage
	}

	if req.Height < c.consensusHeight || req.View.Less(c.view) {
		c.logger.Debug("dropping stale prepare", "height", req.Height, "view", req.View)
		return errStaleMessage
	}
	if req.Height > c.consensusHeight || req.View.Greater(c.view) {
		if c.future == nil || c.future.prepare.BlockHash.String() != req.BlockHash.String() {
			c.future = &futureSlot{from: from, prepare: req}
		}
		c.logger.Debug("parked future prepare", "height", req.Height, "view", req.View)
		return errFutureMessage
	}

	// Current slot.
	if req.Idx != c.primaryIdx(c.view) {
		c.logger.Error("prepare from non-primary", "idx", req.Idx, "expected", c.primaryIdx(c.view))
		return errWrongLeader
	}
	if c.committedPrepare != nil && c.committedPrepare.Height == req.Height &&
		c.committedPrepare.BlockHash.String() != req.BlockHash.String() {
		c.logger.Error("prepare contradicts committed-prepare", "height", req.Height)
		return errBlockMismatch
	}
	if err := c.verifyMsg(&req.Msg, types.KindPrepare, req.Idx); err != nil {
		c.logger.Error("prepare signature invalid", "idx", req.Idx)
		return err
	}

	c.rawPrepare = req
	c.prepare = nil

	executed, err := c.executor.CheckBlockValid(req.BlockHash, req.Block)
	if err != nil {
		c.logger.Error("block execution failed", "err", err)
		return errExecutionFailure
	}
	sealed := c.sealHeaderLocked(req.Header.ProposalTime, executed.Header, req.Idx, req.Height)
	if sealed.Hash().String() != req.BlockHash.String() {
		c.logger.Error("executed hash disagrees with claimed hash", "claimed", req.BlockHash, "got", sealed.Hash())
		return errBlockMismatch
	}

	if executed.NumTxs == 0 && c.cfg.OmitEmptyBlock {
		c.triggerEmptyBlockViewChangeLocked()
		return nil
	}

	reseal := &types.Prepare{
		Msg: types.Msg{
			Height:    req.Height,
			View:      req.View,
			Idx:       req.Idx,
			Timestamp: time.Now(),
			BlockHash: sealed.Hash(),
		},
		Block:  executed.Body,
		Header: sealed,
	}
	if err := c.signMsg(&reseal.Msg, types.KindPrepare); err != nil {
		c.logger.Error("failed to sign re-sealed proposal", "err", err)
		return err
	}
	c.prepare = reseal
	c.castSignLocked(reseal)

	c.rebroadcastLocked(from, req.Idx, types.KindPrepare, req.UniqueKey(), func() ([]byte, error) { return encodeJSON(req) }, req.Height)

	c.checkAndCommitLocked(c.prepare.BlockHash.String())
	return nil
}

// castSignLocked casts and broadcasts this node's own sign vote for p, the
// proposal it just accepted into c.prepare. Every replica does this for a
// proposal it accepts, including the primary for its own proposal: the
// sign phase has no special case for the proposer, so the primary's vote
// counts toward quorum exactly like any other replica's.
func (c *Core) castSignLocked(p *types.Prepare) {
	if c.selfIdx < 0 {
		return
	}
	s := &types.Sign{Msg: types.Msg{
		Height:    p.Height,
		View:      p.View,
		Idx:       c.selfIdx,
		Timestamp: time.Now(),
		BlockHash: p.BlockHash,
	}}
	if err := c.signMsg(&s.Msg, types.KindSign); err != nil {
		c.logger.Error("failed to sign vote", "err", err)
		return
	}
	payload, err := encodeJSON(s)
	if err == nil {
		c.bc.broadcast(types.KindSign, s.UniqueKey(), payload, newExcludeSet())
		c.metrics.SignVotesCast.Inc(1)
	}
	c.signs.add(s)
}

// triggerEmptyBlockViewChangeLocked forces a view change instead of
// voting when the current proposal executed to zero user transactions.
func (c *Core) triggerEmptyBlockViewChangeLocked() {
	c.lastConsensusTime = time.Time{}
	c.lastSignTime = time.Time{}
	c.changeCycle = 0
	c.leaderFailed = true
	c.logger.Info("empty block proposed, triggering view change")
}

// rebroadcastLocked forwards a message to every other miner peer,
// excluding the peer it arrived from and the claimed sender's key, gated
// by the rebroadcast height window.
func (c *Core) rebroadcastLocked(from string, claimedIdx int32, kind types.Kind, fingerprint string, encode func() ([]byte, error), height uint64) {
	if diff := int64(c.chainTip) - int64(height); diff > int64(c.cfg.RebroadcastHeightWindow) || diff < -int64(c.cfg.RebroadcastHeightWindow) {
		return
	}
	payload, err := encode()
	if err != nil {
		return
	}
	excl := newExcludeSet(from).withKey(c.roster.PubkeyOf(claimedIdx))
	c.bc.broadcast(kind, fingerprint, payload, excl)
}

// handleSignLocked validates and processes an inbound phase-2 sign vote.
func (c *Core) handleSignLocked(from string, req *types.Sign) error {
	if from == "" && req.Idx == c.selfIdx {
		return errDuplicateMessage
	}
	if req.Idx == c.selfIdx {
		return errDuplicateMessage
	}

	if c.prepare == nil || c.prepare.BlockHash.String() != req.BlockHash.String() {
		if req.Height > c.consensusHeight || req.View.Greater(c.view) {
			if err := c.verifyMsg(&req.Msg, types.KindSign, req.Idx); err != nil {
				return err
			}
			c.signs.add(req)
			return errFutureMessage
		}
		return errBlockMismatch
	}
	if !req.View.Equal(c.prepare.View) {
		return errBlockMismatch
	}
	if err := c.verifyMsg(&req.Msg, types.KindSign, req.Idx); err != nil {
		return err
	}

	if !c.signs.add(req) {
		return errDuplicateMessage
	}

	c.rebroadcastLocked(from, req.Idx, types.KindSign, req.UniqueKey(), func() ([]byte, error) { return encodeJSON(req) }, req.Height)

	c.checkAndCommitLocked(req.BlockHash.String())
	return nil
}

// checkAndCommitLocked drives the phase 2 -> 3 transition once sign votes
// reach quorum.
func (c *Core) checkAndCommitLocked(hash string) {
	if c.prepare == nil || c.prepare.BlockHash.String() != hash {
		return
	}
	if c.signs.count(hash) < c.quorum() {
		return
	}
	if c.commitTriggered["sign:"+hash] {
		return
	}
	if !c.prepare.View.Equal(c.view) {
		return
	}

	c.commitTriggered["sign:"+hash] = true
	c.committedPrepare = c.rawPrepare
	if c.backup != nil {
		encoded, err := encodeJSON(c.committedPrepare)
		if err != nil {
			c.logger.Error("failed to encode committed-prepare", "err", err)
		} else if err := c.backup.Put(backupstore.CommittedPrepareKey, encoded); err != nil {
			c.logger.Error("backup write failed", "err", err)
		}
	}

	if c.selfIdx >= 0 {
		cm := &types.Commit{Msg: types.Msg{
			Height:    c.prepare.Height,
			View:      c.prepare.View,
			Idx:       c.selfIdx,
			Timestamp: time.Now(),
			BlockHash: c.prepare.BlockHash,
		}}
		if err := c.signMsg(&cm.Msg, types.KindCommit); err == nil {
			payload, err := encodeJSON(cm)
			if err == nil {
				c.bc.broadcast(types.KindCommit, cm.UniqueKey(), payload, newExcludeSet())
				c.metrics.CommitVotesCast.Inc(1)
			}
			c.commits.add(cm)
		}
	}

	c.lastSignTime = time.Now()
	c.commitStarted[hash] = time.Now()
	c.checkAndSaveLocked(hash)
}

// handleCommitLocked mirrors handleSignLocked for phase-3 commit votes.
func (c *Core) handleCommitLocked(from string, req *types.Commit) error {
	if req.Idx == c.selfIdx {
		return errDuplicateMessage
	}
	if c.prepare == nil || c.prepare.BlockHash.String() != req.BlockHash.String() {
		if req.Height > c.consensusHeight || req.View.Greater(c.view) {
			if err := c.verifyMsg(&req.Msg, types.KindCommit, req.Idx); err != nil {
				return err
			}
			c.commits.add(req)
			return errFutureMessage
		}
		return errBlockMismatch
	}
	if !req.View.Equal(c.prepare.View) {
		return errBlockMismatch
	}
	if err := c.verifyMsg(&req.Msg, types.KindCommit, req.Idx); err != nil {
		return err
	}
	if !c.commits.add(req) {
		return errDuplicateMessage
	}

	c.rebroadcastLocked(from, req.Idx, types.KindCommit, req.UniqueKey(), func() ([]byte, error) { return encodeJSON(req) }, req.Height)

	c.checkAndSaveLocked(req.BlockHash.String())
	return nil
}

// checkAndSaveLocked emits the sealed block once both sign and commit
// votes reach quorum at the current view.
func (c *Core) checkAndSaveLocked(hash string) {
	if c.prepare == nil || c.prepare.BlockHash.String() != hash {
		return
	}
	if c.signs.count(hash) < c.quorum() || c.commits.count(hash) < c.quorum() {
		return
	}
	if c.commitTriggered[hash] {
		return
	}
	if !c.prepare.View.Equal(c.view) {
		return
	}
	if c.prepare.Height <= c.chainTip {
		return
	}

	c.commitTriggered[hash] = true

	sealed := &types.SealedBlock{
		Header: c.prepare.Header,
		Body:   c.prepare.Block,
	}
	for _, pk := range c.roster.MinerList(c.prepare.Height) {
		sealed.MinerList = append(sealed.MinerList, pk.Bytes())
	}
	for _, cm := range c.commits.all(hash) {
		sealed.Signatures = append(sealed.Signatures, types.SealedSignature{Idx: cm.Idx, Sig: cm.Sig})
	}

	if started, ok := c.commitStarted[hash]; ok {
		c.metrics.ObserveCommitLatency(started)
		delete(c.commitStarted, hash)
	}
	c.metrics.BlocksEmitted.Inc(1)

	isPrimary := c.prepare.Idx == c.selfIdx
	if c.onSeal != nil {
		c.onSeal(sealed, isPrimary)
	}
	c.logger.Info("sealed block emitted", "height", c.prepare.Height, "isPrimary", isPrimary)
}

func validatorAddrOf(r Roster, idx int32) types.Address {
	pk := r.PubkeyOf(idx)
	if pk == nil {
		return nil
	}
	return types.GetAddress(pk)
}
