package election

import (
	"testing"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
)

func hashOf(b byte) crypto.Hash {
	var h crypto.Hash
	h[0] = b
	return h
}

func voteFor(hash crypto.Hash, seq uint64, final bool) *core.Vote {
	v := &core.Vote{HashOnly: true, BlockHash: hash, Sequence: seq}
	if final {
		v.Sequence = core.FinalVoteSequence
	}
	return v
}

func TestComputeTallyWinnerAndRunnerUp(t *testing.T) {
	winner := hashOf(1)
	runnerUp := hashOf(2)
	voterA, voterB, voterC := hashOf(10), hashOf(11), hashOf(12)

	votes := map[crypto.Hash]*core.Vote{
		voterA: voteFor(winner, 1, false),
		voterB: voteFor(winner, 1, false),
		voterC: voteFor(runnerUp, 1, false),
	}
	weight := func(rep crypto.Hash) uint64 {
		switch rep {
		case voterA, voterB:
			return 100
		case voterC:
			return 150
		}
		return 0
	}

	tally := computeTally(votes, weight)
	if tally.Winner != winner {
		t.Fatalf("winner = %x, want %x (200 > 150)", tally.Winner, winner)
	}
	if tally.WinnerWeight != 200 || tally.RunnerUpWeight != 150 {
		t.Fatalf("weights = %d/%d, want 200/150", tally.WinnerWeight, tally.RunnerUpWeight)
	}
	if tally.FinalConfirmed {
		t.Fatalf("FinalConfirmed = true, want false")
	}
}

func TestHasQuorumRequiresMarginOverDelta(t *testing.T) {
	tally := Tally{Winner: hashOf(1), WinnerWeight: 700, RunnerUpWeight: 300}
	// delta = 1000 * 67 / 100 = 670; 700 - 300 = 400, not > 670.
	if tally.HasQuorum(1000, 67) {
		t.Fatalf("HasQuorum = true, want false (margin 400 <= delta 670)")
	}
	// Lower the online weight so delta shrinks below the margin.
	if !tally.HasQuorum(100, 67) {
		t.Fatalf("HasQuorum = false, want true (margin 400 > delta 67)")
	}
}

func TestHasQuorumFinalVoteShortCircuits(t *testing.T) {
	winner := hashOf(1)
	voterA := hashOf(10)
	votes := map[crypto.Hash]*core.Vote{
		voterA: voteFor(winner, 0, true),
	}
	weight := func(crypto.Hash) uint64 { return 1 }
	tally := computeTally(votes, weight)
	if !tally.FinalConfirmed {
		t.Fatalf("FinalConfirmed = false, want true")
	}
	if !tally.HasQuorum(1_000_000, 67) {
		t.Fatalf("HasQuorum = false, want true via final-vote short circuit despite negligible weight")
	}
}
