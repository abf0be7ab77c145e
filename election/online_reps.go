package election

import (
	"sync"
	"time"

	"github.com/nanocurrency/nano-node-sub002/crypto"
)

// onlineSampleInterval is the resampling cadence SampleInterval reports.
const onlineSampleInterval = 5 * time.Minute

// onlineSampleWindow is how long a representative's weight counts as
// "recently heard" after its last accepted vote.
const onlineSampleWindow = 2 * time.Hour

// OnlineReps tracks which representatives have been heard from recently
// (each vote the VoteProcessor accepts is recorded) and reports the
// aggregate weight behind them, trimmed to a trailing window rather than
// computed once at startup — a representative that goes offline stops
// counting toward quorum within onlineSampleWindow of its last contact.
type OnlineReps struct {
	mu       sync.Mutex
	weight   WeightFunc
	minimum  uint64
	lastSeen map[crypto.Hash]time.Time
}

// NewOnlineReps creates a sampler that floors its reported weight at
// minimum (the configured online_weight_minimum) and resolves a
// representative's weight via weight.
func NewOnlineReps(weight WeightFunc, minimum uint64) *OnlineReps {
	return &OnlineReps{weight: weight, minimum: minimum, lastSeen: make(map[crypto.Hash]time.Time)}
}

// Observe records that representative was heard from at now; the
// VoteProcessor calls it for each vote it accepts.
func (o *OnlineReps) Observe(representative crypto.Hash, now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastSeen[representative] = now
}

// Weight reports max(sum of weight behind representatives heard from
// within onlineSampleWindow of now, the configured minimum).
func (o *OnlineReps) Weight(now time.Time) uint64 {
	o.mu.Lock()
	reps := make([]crypto.Hash, 0, len(o.lastSeen))
	for rep, seen := range o.lastSeen {
		if now.Sub(seen) <= onlineSampleWindow {
			reps = append(reps, rep)
		} else {
			delete(o.lastSeen, rep)
		}
	}
	o.mu.Unlock()

	var total uint64
	for _, rep := range reps {
		total += o.weight(rep)
	}
	if total < o.minimum {
		return o.minimum
	}
	return total
}

// SampleInterval reports onlineSampleInterval. Nothing in this module
// schedules trims with it; stale entries are dropped lazily inside Weight.
func (o *OnlineReps) SampleInterval() time.Duration { return onlineSampleInterval }
