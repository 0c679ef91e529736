package pbft

import (
	"github.com/chainbft/pbft-core/types"
)

// signCache maps blockHash -> sigHex -> vote. Duplicate submissions by
// the same signer are rejected rather than double-counted.
type signCache struct {
	byHash map[string]map[string]*types.Sign
}

func newSignCache() *signCache {
	return &signCache{byHash: make(map[string]map[string]*types.Sign)}
}

func (c *signCache) add(s *types.Sign) bool {
	hash := s.BlockHash.String()
	m, ok := c.byHash[hash]
	if !ok {
		m = make(map[string]*types.Sign)
		c.byHash[hash] = m
	}
	key := s.SigHex()
	if _, dup := m[key]; dup {
		return false
	}
	m[key] = s
	return true
}

func (c *signCache) count(hash string) int {
	return len(c.byHash[hash])
}

func (c *signCache) all(hash string) []*types.Sign {
	m := c.byHash[hash]
	out := make([]*types.Sign, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func (c *signCache) purge(hash string) {
	delete(c.byHash, hash)
}

type commitCache struct {
	byHash map[string]map[string]*types.Commit
}

func newCommitCache() *commitCache {
	return &commitCache{byHash: make(map[string]map[string]*types.Commit)}
}

func (c *commitCache) add(v *types.Commit) bool {
	hash := v.BlockHash.String()
	m, ok := c.byHash[hash]
	if !ok {
		m = make(map[string]*types.Commit)
		c.byHash[hash] = m
	}
	key := v.SigHex()
	if _, dup := m[key]; dup {
		return false
	}
	m[key] = v
	return true
}

func (c *commitCache) count(hash string) int {
	return len(c.byHash[hash])
}

func (c *commitCache) all(hash string) []*types.Commit {
	m := c.byHash[hash]
	out := make([]*types.Commit, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func (c *commitCache) purge(hash string) {
	delete(c.byHash, hash)
}

// viewChangeCache maps view -> idx -> vote. Entries are purged by view
// advancement and by height progress.
type viewChangeCache struct {
	byView map[string]map[int32]*types.ViewChange
}

func newViewChangeCache() *viewChangeCache {
	return &viewChangeCache{byView: make(map[string]map[int32]*types.ViewChange)}
}

func (c *viewChangeCache) add(vc *types.ViewChange) bool {
	key := vc.View.String()
	m, ok := c.byView[key]
	if !ok {
		m = make(map[int32]*types.ViewChange)
		c.byView[key] = m
	}
	if _, dup := m[vc.Idx]; dup {
		return false
	}
	m[vc.Idx] = vc
	return true
}

func (c *viewChangeCache) get(view types.View, idx int32) *types.ViewChange {
	m := c.byView[view.String()]
	if m == nil {
		return nil
	}
	return m[idx]
}

func (c *viewChangeCache) count(view types.View) int {
	return len(c.byView[view.String()])
}

func (c *viewChangeCache) entries(view types.View) map[int32]*types.ViewChange {
	return c.byView[view.String()]
}

// purgeViews drops every cached view-change whose key fails keep(view).
func (c *viewChangeCache) purgeViews(keep func(view types.View) bool) {
	for key, m := range c.byView {
		for _, vc := range m {
			if !keep(vc.View) {
				delete(c.byView, key)
			}
			break
		}
	}
}

// allAbove visits every (signer, view-change) pair cached at a view
// strictly greater than floor, used by the fast view-change signer count.
func (c *viewChangeCache) allAbove(floor types.View, visit func(idx int32, vc *types.ViewChange)) {
	for _, m := range c.byView {
		for idx, vc := range m {
			if vc.View.Greater(floor) {
				visit(idx, vc)
			}
		}
	}
}
