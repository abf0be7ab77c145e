package election

import (
	"log"
	"sync"
	"time"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
	"github.com/nanocurrency/nano-node-sub002/observer"
)

// voteQueueSize bounds the vote_processor's async queue; past this, vote
// enqueues are dropped rather than blocking the network read loop.
const voteQueueSize = 4096

// replaySequenceGap is how far behind a sender's sequence must trail our
// stored vote before we assist them with a replay of it.
const replaySequenceGap = 10000

// VoteResult is the outcome of processing one vote.
type VoteResult int

const (
	// VoteResultNew means the vote was new and applied against its
	// election (or parked in the inactive-vote cache).
	VoteResultNew VoteResult = iota
	// VoteResultReplay means a stored vote from the same account already
	// has an equal or higher sequence.
	VoteResultReplay
	// VoteResultIndeterminate means a non-final vote came from an account
	// with no weight, or with weight at or below the online_stake/1000
	// noise floor.
	VoteResultIndeterminate
	// VoteResultInvalid means the vote's signature or structure is bad.
	VoteResultInvalid
)

func (r VoteResult) String() string {
	switch r {
	case VoteResultNew:
		return "vote"
	case VoteResultReplay:
		return "replay"
	case VoteResultIndeterminate:
		return "indeterminate"
	case VoteResultInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// weightBand scales a representative's vote cooldown by how much
// delegated weight stands behind them: noisy small reps are throttled
// harder than ones whose vote meaningfully moves quorum.
type weightBand struct {
	minPermille uint64 // weight/online_stake in parts-per-thousand, inclusive floor
	cooldown    time.Duration
}

var weightBands = []weightBand{
	{minPermille: 50, cooldown: time.Second},         // >= 5%
	{minPermille: 10, cooldown: 5 * time.Second},      // >= 1%
	{minPermille: 1, cooldown: 15 * time.Second},       // >= 0.1%
}

// cooldownFor returns the replay cooldown for a representative whose
// weight is weight out of onlineStake total. A weight below every band's
// floor, or an onlineStake of zero, gets the lowest band's cooldown;
// VoteBlocking drops non-final votes at or below the noise floor before
// cooldown is consulted.
func cooldownFor(weight, onlineStake uint64) time.Duration {
	if onlineStake == 0 {
		return weightBands[len(weightBands)-1].cooldown
	}
	permille := weight * 1000 / onlineStake
	for _, b := range weightBands {
		if permille >= b.minPermille {
			return b.cooldown
		}
	}
	return weightBands[len(weightBands)-1].cooldown
}

type voteOrigin struct {
	vote     *core.Vote
	endpoint string
}

// VoteProcessor validates incoming votes, enforces the noise threshold
// and weight-scaled cooldown, assists laggard representatives with
// sequence replays, and forwards accepted votes to ActiveElections.
type VoteProcessor struct {
	active *ActiveElections
	weight WeightFunc
	online *OnlineReps
	bus    *observer.Bus

	mu       sync.Mutex
	lastSeen map[crypto.Hash]*core.Vote   // voter account -> last accepted vote
	lastAt   map[crypto.Hash]time.Time    // voter account -> last accepted time
	replayed map[crypto.Hash]bool         // voter account -> already replay-assisted once

	queue chan voteOrigin
	quit  chan struct{}
	done  chan struct{}
}

// NewVoteProcessor creates a VoteProcessor that forwards validated votes
// to active, resolving weight via weight and online stake via online.
func NewVoteProcessor(active *ActiveElections, weight WeightFunc, online *OnlineReps, bus *observer.Bus) *VoteProcessor {
	return &VoteProcessor{
		active:   active,
		weight:   weight,
		online:   online,
		bus:      bus,
		lastSeen: make(map[crypto.Hash]*core.Vote),
		lastAt:   make(map[crypto.Hash]time.Time),
		replayed: make(map[crypto.Hash]bool),
		queue:    make(chan voteOrigin, voteQueueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Vote enqueues v (received from originEndpoint) for asynchronous
// processing by the worker started with Run. Returns false if the queue
// is full.
func (p *VoteProcessor) Vote(v *core.Vote, originEndpoint string) bool {
	select {
	case p.queue <- voteOrigin{vote: v, endpoint: originEndpoint}:
		return true
	default:
		return false
	}
}

// Run starts the worker goroutine draining the async queue. Returns
// immediately; call Stop to shut it down.
func (p *VoteProcessor) Run() {
	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.quit:
				return
			case vo := <-p.queue:
				p.VoteBlocking(vo.vote, vo.endpoint)
			}
		}
	}()
}

// Stop signals the worker to exit and waits for it to do so.
func (p *VoteProcessor) Stop() {
	close(p.quit)
	<-p.done
}

// VoteBlocking validates and applies v synchronously, returning the
// classification result. originEndpoint is used only for replay
// assistance: an empty endpoint disables it, and a non-empty one is logged.
func (p *VoteProcessor) VoteBlocking(v *core.Vote, originEndpoint string) VoteResult {
	if err := v.Verify(); err != nil {
		return VoteResultInvalid
	}
	voterAccount := v.Account.Account()

	online := p.online.Weight(time.Now())
	w := p.weight(voterAccount)
	if !v.IsFinal() && w == 0 {
		return VoteResultIndeterminate
	}
	if !v.IsFinal() && online > 0 && w*1000 <= online {
		// Below the 0.1% noise floor (weight > online_stake/1000).
		return VoteResultIndeterminate
	}

	p.mu.Lock()
	stored := p.lastSeen[voterAccount]
	lastAt, hasLast := p.lastAt[voterAccount]
	p.mu.Unlock()

	if stored != nil && !v.IsFinal() {
		if v.Sequence <= stored.Sequence {
			p.maybeAssistReplay(v, stored, voterAccount, originEndpoint)
			return VoteResultReplay
		}
		if hasLast {
			cooldown := cooldownFor(w, online)
			if time.Since(lastAt) < cooldown {
				return VoteResultReplay
			}
		}
	}

	p.mu.Lock()
	p.lastSeen[voterAccount] = v
	p.lastAt[voterAccount] = time.Now()
	p.replayed[voterAccount] = false
	p.mu.Unlock()

	p.online.Observe(voterAccount, time.Now())
	p.bus.PublishVote(v)
	p.active.Vote(voterAccount, v)
	return VoteResultNew
}

// maybeAssistReplay rebroadcasts our stored vote, once per lag episode,
// when a sender's sequence has fallen far enough behind that they've
// likely lost their own sequence state. The vote goes out through the
// broadcaster's BroadcastVote fanout; it is not addressed to the sender.
func (p *VoteProcessor) maybeAssistReplay(incoming, stored *core.Vote, voterAccount crypto.Hash, originEndpoint string) {
	if stored.Sequence < incoming.Sequence+replaySequenceGap {
		return
	}
	p.mu.Lock()
	already := p.replayed[voterAccount]
	if !already {
		p.replayed[voterAccount] = true
	}
	p.mu.Unlock()
	if already || originEndpoint == "" {
		return
	}
	log.Printf("[vote_processor] assisting lagging rep %x via %s", voterAccount, originEndpoint)
	p.active.broadcaster.BroadcastVote(stored)
}
