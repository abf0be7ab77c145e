package election

import (
	"sync"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
)

// inactiveVoteCacheCapacity bounds how many hashes without a live election
// the cache remembers votes for; oldest entries are evicted first.
const inactiveVoteCacheCapacity = 16 * 1024

// InactiveVoteCacheEntry accumulates votes for a hash that has no election
// yet — the block hasn't arrived, or arrived and is still sitting in the
// unchecked buffer behind a gap.
type InactiveVoteCacheEntry struct {
	Hash             crypto.Hash
	Voters           map[crypto.Hash]*core.Vote // keyed by voter account
	Weight           uint64
	BootstrapStarted bool
	Confirmed        bool
}

// InactiveVoteCache stores InactiveVoteCacheEntry by hash so that, once the
// block those votes were for finally arrives, ActiveElections can import
// the accumulated weight and voter set directly instead of replaying every
// vote's weight addition from scratch.
type InactiveVoteCache struct {
	mu      sync.Mutex
	entries map[crypto.Hash]*InactiveVoteCacheEntry
	order   []crypto.Hash
	weight  WeightFunc
}

// NewInactiveVoteCache creates an empty cache that resolves voter weight
// via weight.
func NewInactiveVoteCache(weight WeightFunc) *InactiveVoteCache {
	return &InactiveVoteCache{entries: make(map[crypto.Hash]*InactiveVoteCacheEntry), weight: weight}
}

// Vote records v against its target hash, returning the entry's new
// aggregate weight. voterAccount is the voter's account hash
// (vote.Account.Account()).
func (c *InactiveVoteCache) Vote(voterAccount crypto.Hash, v *core.Vote) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash := v.Hash()
	e, ok := c.entries[hash]
	if !ok {
		e = &InactiveVoteCacheEntry{Hash: hash, Voters: make(map[crypto.Hash]*core.Vote)}
		c.entries[hash] = e
		c.order = append(c.order, hash)
		c.evictIfFull()
	}
	if stored, ok := e.Voters[voterAccount]; ok && !v.Supersedes(stored) {
		return e.Weight
	}
	e.Voters[voterAccount] = v
	e.Weight = 0
	for voter := range e.Voters {
		e.Weight += c.weight(voter)
	}
	return e.Weight
}

// MarkConfirmed sets the Confirmed flag on hash's entry, if one exists.
// Informational only: it cements nothing, nothing in this module calls it,
// and Drain hands entries to new elections without consulting the flag.
func (c *InactiveVoteCache) MarkConfirmed(hash crypto.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[hash]; ok {
		e.Confirmed = true
	}
}

// MarkBootstrapStarted latches the BootstrapStarted flag on hash's entry,
// returning true only the first time for an existing entry. The flag is
// independent of GapCache's own latch; the two are not linked.
func (c *InactiveVoteCache) MarkBootstrapStarted(hash crypto.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[hash]
	if !ok || e.BootstrapStarted {
		return false
	}
	e.BootstrapStarted = true
	return true
}

// Drain removes and returns hash's entry, called once a live election for
// hash has been created so its accumulated votes can be imported.
func (c *InactiveVoteCache) Drain(hash crypto.Hash) (*InactiveVoteCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[hash]
	if ok {
		delete(c.entries, hash)
	}
	return e, ok
}

// evictIfFull drops the oldest entry once the cache is over capacity.
// Callers must hold c.mu.
func (c *InactiveVoteCache) evictIfFull() {
	for len(c.order) > inactiveVoteCacheCapacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}
