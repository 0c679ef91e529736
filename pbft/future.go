package pbft

// drainFuturePrepare replays the single cached future proposal once the
// core's height/view has caught up to it. Called on every worker tick
// rather than only on state transitions, so a prepare parked while this
// node lagged gets retried even if no new message arrives to trigger it.
func (c *Core) drainFuturePrepare() {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	f := c.future
	if f == nil {
		return
	}
	req := f.prepare
	ready := req.Height <= c.consensusHeight && !req.View.Greater(c.view)
	if !ready {
		return
	}
	c.future = nil

	if err := c.handlePrepareLocked(f.from, req); err != nil {
		c.logger.Debug("future prepare replay rejected", "height", req.Height, "view", req.View, "err", err)
	}
}
