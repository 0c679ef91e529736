package pbft

import (
	"bytes"
	"time"

	"github.com/chainbft/pbft-core/types"
)

// CheckTimeout is called unconditionally on every worker tick (see
// worker.go) and is a no-op unless the timeout anchor has expired.
func (c *Core) CheckTimeout() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.checkTimeoutLocked()
}

func (c *Core) checkTimeoutLocked() {
	anchor := c.lastConsensusTime
	if c.lastSignTime.After(anchor) {
		anchor = c.lastSignTime
	}
	if time.Since(anchor) < c.cfg.timeoutFor(c.changeCycle) {
		return
	}

	c.leaderFailed = true
	c.toView = c.toView.Add1()
	if c.changeCycle < c.cfg.KMaxChangeCycle {
		c.changeCycle++
	}
	c.pruneViewChangeAntiFork()

	if c.selfIdx >= 0 {
		vc := &types.ViewChange{Msg: types.Msg{
			Height:    c.chainTip,
			View:      c.toView,
			Idx:       c.selfIdx,
			Timestamp: time.Now(),
			BlockHash: c.chainTipHash,
		}}
		if err := c.signMsg(&vc.Msg, types.KindViewChange); err == nil {
			if payload, err := encodeJSON(vc); err == nil {
				c.bc.broadcast(types.KindViewChange, vc.UniqueKey(), payload, newExcludeSet())
			}
			c.vcs.add(vc)
		}
	}

	c.logger.Info("timeout expired, advancing view", "toView", c.toView, "changeCycle", c.changeCycle)
	c.checkAndChangeViewLocked()
}

// pruneViewChangeAntiFork drops cached view-changes at toView that are
// stale (height behind our tip) or contradict the hash we already
// committed at that height.
func (c *Core) pruneViewChangeAntiFork() {
	m := c.vcs.entries(c.toView)
	for idx, vc := range m {
		if vc.Height < c.chainTip {
			delete(m, idx)
			continue
		}
		if vc.Height == c.chainTip && !bytes.Equal(vc.BlockHash, c.chainTipHash) {
			delete(m, idx)
		}
	}
}
