package election

import (
	"testing"

	"github.com/nanocurrency/nano-node-sub002/crypto"
)

func TestInactiveVoteCacheAccumulatesWeightAndDrains(t *testing.T) {
	voterA, voterB := hashOf(10), hashOf(11)
	weight := func(rep crypto.Hash) uint64 {
		switch rep {
		case voterA:
			return 30
		case voterB:
			return 70
		}
		return 0
	}
	c := NewInactiveVoteCache(weight)
	target := hashOf(1)

	got := c.Vote(voterA, voteFor(target, 1, false))
	if got != 30 {
		t.Fatalf("weight after first vote = %d, want 30", got)
	}
	got = c.Vote(voterB, voteFor(target, 1, false))
	if got != 100 {
		t.Fatalf("weight after second vote = %d, want 100", got)
	}

	// A lower-sequence resubmission from the same voter must not count twice
	// or replace the stored vote.
	got = c.Vote(voterA, voteFor(target, 0, false))
	if got != 100 {
		t.Fatalf("weight after stale resubmission = %d, want unchanged 100", got)
	}

	entry, ok := c.Drain(target)
	if !ok {
		t.Fatalf("Drain: entry not found")
	}
	if entry.Weight != 100 || len(entry.Voters) != 2 {
		t.Fatalf("drained entry = %+v, want weight 100 with 2 voters", entry)
	}

	if _, ok := c.Drain(target); ok {
		t.Fatalf("Drain: entry should be removed after first drain")
	}
}

func TestInactiveVoteCacheBootstrapLatchFiresOnce(t *testing.T) {
	c := NewInactiveVoteCache(func(crypto.Hash) uint64 { return 1 })
	target := hashOf(1)
	c.Vote(hashOf(10), voteFor(target, 1, false))

	if !c.MarkBootstrapStarted(target) {
		t.Fatalf("first MarkBootstrapStarted = false, want true")
	}
	if c.MarkBootstrapStarted(target) {
		t.Fatalf("second MarkBootstrapStarted = true, want false (already latched)")
	}
}
