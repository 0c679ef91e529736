package pbft

import (
	"bytes"
	"time"

	"github.com/chainbft/pbft-core/types"
)

// handleViewChangeLocked validates and processes an inbound view-change
// vote.
func (c *Core) handleViewChangeLocked(from string, req *types.ViewChange) error {
	if req.Idx == c.selfIdx {
		return errDuplicateMessage
	}
	if existing := c.vcs.get(req.View, req.Idx); existing != nil {
		return errDuplicateMessage
	}
	if req.Height < c.chainTip {
		return errStaleMessage
	}
	if !req.View.Greater(c.view) {
		return errStaleMessage
	}
	if req.Height == c.chainTip && !bytes.Equal(req.BlockHash, c.chainTipHash) {
		return errBlockMismatch
	}
	if err := c.verifyMsg(&req.Msg, types.KindViewChange, req.Idx); err != nil {
		return err
	}

	// Fast-start catch-up: a laggard far behind our toView gets our
	// current ViewChange unicast so it can jump ahead instead of
	// replaying every intermediate view. Sig/Sig2 authenticate req.Idx as
	// the signer but say nothing about who relayed the message to us, so
	// a relayed (not directly delivered) ViewChange must still be matched
	// against the transport peer it actually arrived on before we unicast
	// our catch-up reply there, or it goes to the wrong node.
	if req.View.Add1().Less(c.toView) {
		if fromIdx, ok := c.resolvePeerIdxLocked(from); ok && fromIdx == req.Idx {
			cur := &types.ViewChange{Msg: types.Msg{
				Height:    c.chainTip,
				View:      c.toView,
				Idx:       c.selfIdx,
				Timestamp: time.Now(),
				BlockHash: c.chainTipHash,
			}}
			if err := c.signMsg(&cur.Msg, types.KindViewChange); err == nil {
				if payload, err := encodeJSON(cur); err == nil {
					c.bc.unicast(from, types.KindViewChange, payload)
				}
			}
		}
	}

	c.vcs.add(req)

	if req.View.Equal(c.toView) {
		c.checkAndChangeViewLocked()
		return nil
	}

	// req.View != toView: count distinct signers with any cached
	// view-change at a view greater than toView, keeping each signer's
	// maximum view and minimum height.
	type signerInfo struct {
		maxView types.View
		minHeight uint64
	}
	signers := make(map[int32]signerInfo)
	c.vcs.allAbove(c.toView, func(idx int32, vc *types.ViewChange) {
		info, ok := signers[idx]
		if !ok {
			signers[idx] = signerInfo{maxView: vc.View, minHeight: vc.Height}
			return
		}
		if vc.View.Greater(info.maxView) {
			info.maxView = vc.View
		}
		if vc.Height < info.minHeight {
			info.minHeight = vc.Height
		}
		signers[idx] = info
	})

	n := c.roster.MinerCount()
	f := (n - 1) / 3
	if len(signers) <= f {
		return nil
	}

	var minView types.View
	var minHeight uint64 = ^uint64(0)
	first := true
	for _, info := range signers {
		if first || info.maxView.Less(minView) {
			minView = info.maxView
			first = false
		}
		if info.minHeight < minHeight {
			minHeight = info.minHeight
		}
	}

	antiPremature := minHeight == c.consensusHeight && c.committedPrepare != nil && c.consensusHeight == c.committedPrepare.Height
	if antiPremature {
		return nil
	}

	c.toView = minView.Sub1()
	if c.toView.Uint64() > c.cfg.KMaxChangeCycle {
		c.changeCycle = c.cfg.KMaxChangeCycle
	} else {
		c.changeCycle = c.toView.Uint64()
	}
	c.lastConsensusTime = time.Time{}
	c.lastSignTime = time.Time{}
	c.logger.Info("fast view change jump", "toView", c.toView)
	return nil
}

// checkAndChangeViewLocked commits the pending view once view-change
// votes for it reach quorum.
func (c *Core) checkAndChangeViewLocked() {
	if c.vcs.count(c.toView) < c.quorum()-1 {
		return
	}

	c.view = c.toView
	c.leaderFailed = false
	c.rawPrepare = nil
	c.prepare = nil
	c.signs = newSignCache()
	c.commits = newCommitCache()
	c.commitTriggered = make(map[string]bool)
	c.vcs.purgeViews(func(v types.View) bool { return v.Greater(c.view) })
	c.metrics.ViewChanges.Inc(1)
	c.logger.Info("view changed", "view", c.view)
	// Peer-seen filters are intentionally left intact: clearing them would
	// flood the network with replays of old messages.
}

