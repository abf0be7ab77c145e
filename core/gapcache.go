package core

import (
	"sync"

	"github.com/nanocurrency/nano-node-sub002/crypto"
)

// gapEntry tracks the aggregate voting weight seen for a missing dependency
// (a hash referenced by Previous/Source/Link that isn't in the ledger yet).
type gapEntry struct {
	weight          uint64
	bootstrapStarted bool
}

// GapCache accumulates representative weight behind blocks this node is
// missing. Once the accumulated weight for a gap crosses a configured
// fraction of online weight, it's a strong signal the node has fallen
// behind on a legitimate chain, not just received a stray fork tip, and a
// bootstrap attempt is worth triggering.
type GapCache struct {
	mu   sync.Mutex
	gaps map[crypto.Hash]*gapEntry
}

// NewGapCache creates an empty cache.
func NewGapCache() *GapCache {
	return &GapCache{gaps: make(map[crypto.Hash]*gapEntry)}
}

// Vote records representativeWeight of support for the block at dependency
// (the hash a vote named that this node doesn't have). Returns the gap's
// new total weight.
func (c *GapCache) Vote(dependency crypto.Hash, representativeWeight uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.gaps[dependency]
	if !ok {
		e = &gapEntry{}
		c.gaps[dependency] = e
	}
	e.weight += representativeWeight
	return e.weight
}

// ShouldBootstrap reports whether dependency's accumulated weight meets
// threshold and a bootstrap attempt hasn't already been started for it; if
// so it marks bootstrapStarted so the caller is only told once.
func (c *GapCache) ShouldBootstrap(dependency crypto.Hash, threshold uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.gaps[dependency]
	if !ok || e.bootstrapStarted || e.weight < threshold {
		return false
	}
	e.bootstrapStarted = true
	return true
}

// Erase drops a gap once its dependency has been satisfied (the missing
// block arrived and was processed).
func (c *GapCache) Erase(dependency crypto.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.gaps, dependency)
}
