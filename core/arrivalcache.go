package core

import (
	"sync"
	"time"

	"github.com/nanocurrency/nano-node-sub002/crypto"
)

// arrivalCacheMinSize is the floor below which the cache never trims,
// regardless of age: recent traffic bursts shouldn't evict entries the
// processor hasn't had a chance to consult yet.
const arrivalCacheMinSize = 128

// arrivalTrimAge is how old an entry must be, once the cache is over its
// floor size, before it's evicted.
const arrivalTrimAge = 300 * time.Millisecond

// ArrivalCache is an ordered set of (first_seen, hash) for blocks that
// arrived over live network gossip (never for bootstrap replay). The
// block processor consults it after a block progresses to decide whether
// to start an election immediately: a hash still resident here arrived
// moments ago over the network and deserves one; a hash absent from it
// either never went through this path or arrived so long ago (bootstrap
// catch-up, a backlogged queue) that immediate election is pointless.
type ArrivalCache struct {
	mu      sync.Mutex
	arrived map[crypto.Hash]time.Time
	order   []arrivalEntry
}

type arrivalEntry struct {
	hash crypto.Hash
	at   time.Time
}

// NewArrivalCache creates an empty cache.
func NewArrivalCache() *ArrivalCache {
	return &ArrivalCache{arrived: make(map[crypto.Hash]time.Time)}
}

// Add records hash as having arrived live at now, unless already present.
func (c *ArrivalCache) Add(hash crypto.Hash, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.arrived[hash]; ok {
		return
	}
	c.arrived[hash] = now
	c.order = append(c.order, arrivalEntry{hash: hash, at: now})
	c.trim(now)
}

// Recent reports whether hash is still resident in the cache.
func (c *ArrivalCache) Recent(hash crypto.Hash, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trim(now)
	_, ok := c.arrived[hash]
	return ok
}

// trim evicts entries older than arrivalTrimAge, but only once the cache
// holds more than arrivalCacheMinSize entries. Callers must hold c.mu.
func (c *ArrivalCache) trim(now time.Time) {
	for len(c.order) > arrivalCacheMinSize && now.Sub(c.order[0].at) >= arrivalTrimAge {
		delete(c.arrived, c.order[0].hash)
		c.order = c.order[1:]
	}
}
