package pbft

import (
	"time"

	"github.com/chainbft/pbft-core/types"
)

// ReportBlock is called by the host once a sealed block (from this core or
// relayed from a peer) has been appended to the chain, advancing the
// consensus height and resetting per-height state.
func (c *Core) ReportBlock(height uint64, hash []byte) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.reportBlockLocked(height, hash)
}

func (c *Core) reportBlockLocked(height uint64, hash []byte) {
	if height <= c.chainTip {
		return
	}

	c.chainTip = height
	c.chainTipHash = hash
	c.consensusHeight = height + 1

	c.view = types.ViewZero
	c.toView = types.ViewZero
	c.changeCycle = 0
	c.leaderFailed = false

	c.rawPrepare = nil
	c.prepare = nil
	c.committedPrepare = nil
	c.signs = newSignCache()
	c.commits = newCommitCache()
	c.commitTriggered = make(map[string]bool)
	c.commitStarted = make(map[string]time.Time)
	c.future = nil

	c.vcs.purgeViews(func(v types.View) bool { return false })

	now := time.Now()
	c.lastConsensusTime = now
	c.lastSignTime = now

	c.logger.Info("advanced consensus height", "height", c.consensusHeight, "tip", c.chainTip)
}

// CollectGarbage prunes caches of entries made stale by height progress.
// It is cheap enough to call every worker tick; the GCInterval gate keeps
// it from doing real work more often than necessary.
func (c *Core) CollectGarbage() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.collectGarbageLocked()
}

func (c *Core) collectGarbageLocked() {
	now := time.Now()
	if now.Sub(c.lastGC) < c.cfg.GCInterval {
		return
	}
	c.lastGC = now

	for hash, started := range c.commitStarted {
		if now.Sub(started) > c.cfg.GCInterval*4 {
			delete(c.commitStarted, hash)
			delete(c.commitTriggered, hash)
			delete(c.commitTriggered, "sign:"+hash)
			c.signs.purge(hash)
			c.commits.purge(hash)
		}
	}

	c.vcs.purgeViews(func(v types.View) bool { return !v.Less(c.toView) })
}
