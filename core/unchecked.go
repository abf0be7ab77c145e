package core

import (
	"sync"

	"github.com/nanocurrency/nano-node-sub002/crypto"
)

// UncheckedBuffer holds blocks that arrived before the dependency (Previous
// or Source/Link) they need is in the ledger. It is keyed by the missing
// hash so that once that hash is finally processed, every block waiting on
// it can be retried in one step. In-memory only: an unchecked entry that
// never resolves is meant to be dropped, not persisted forever.
type UncheckedBuffer struct {
	mu      sync.Mutex
	waiting map[crypto.Hash][]*Block
}

// NewUncheckedBuffer creates an empty buffer.
func NewUncheckedBuffer() *UncheckedBuffer {
	return &UncheckedBuffer{waiting: make(map[crypto.Hash][]*Block)}
}

// Put records block as waiting on dependency.
func (u *UncheckedBuffer) Put(dependency crypto.Hash, block *Block) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.waiting[dependency] = append(u.waiting[dependency], block)
}

// Release returns and clears every block waiting on dependency, called once
// that hash has been successfully processed.
func (u *UncheckedBuffer) Release(dependency crypto.Hash) []*Block {
	u.mu.Lock()
	defer u.mu.Unlock()
	blocks := u.waiting[dependency]
	delete(u.waiting, dependency)
	return blocks
}

// Len reports the total number of blocks currently waiting, across every
// dependency, for metrics and backpressure decisions.
func (u *UncheckedBuffer) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, blocks := range u.waiting {
		n += len(blocks)
	}
	return n
}
