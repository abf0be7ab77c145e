package election

import (
	"testing"
	"time"

	"github.com/nanocurrency/nano-node-sub002/crypto"
)

func TestOnlineRepsAggregatesRecentlySeenWeight(t *testing.T) {
	repA, repB := hashOf(1), hashOf(2)
	weight := func(rep crypto.Hash) uint64 {
		switch rep {
		case repA:
			return 100
		case repB:
			return 50
		}
		return 0
	}
	o := NewOnlineReps(weight, 10)
	start := time.Now()
	o.Observe(repA, start)
	o.Observe(repB, start)

	if got := o.Weight(start); got != 150 {
		t.Fatalf("Weight = %d, want 150", got)
	}
}

func TestOnlineRepsDropsStaleEntriesAndFloorsAtMinimum(t *testing.T) {
	rep := hashOf(1)
	weight := func(crypto.Hash) uint64 { return 100 }
	o := NewOnlineReps(weight, 5)
	start := time.Now()
	o.Observe(rep, start)

	// Still within the sample window: full weight counts.
	if got := o.Weight(start.Add(onlineSampleWindow - time.Minute)); got != 100 {
		t.Fatalf("Weight within window = %d, want 100", got)
	}
	// Past the window: rep no longer counts, floor to the configured minimum.
	if got := o.Weight(start.Add(onlineSampleWindow + time.Minute)); got != 5 {
		t.Fatalf("Weight past window = %d, want floor 5", got)
	}
}
