package election

import (
	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
)

// WeightFunc resolves a representative account's current delegated voting
// weight, backed by core.Ledger.Weight.
type WeightFunc func(representative crypto.Hash) uint64

// LedgerWeightFunc adapts ledger's weight lookup (which needs a
// transaction) into a WeightFunc by opening a fresh read transaction on
// store per call.
func LedgerWeightFunc(ledger *core.Ledger, store core.KVStore) WeightFunc {
	return func(representative crypto.Hash) uint64 {
		txn := core.BeginRead(store)
		w, err := ledger.Weight(txn, representative)
		if err != nil {
			return 0
		}
		return w
	}
}

// Tally is the result of summing last_votes into per-variant weight
// buckets: which hash is winning, by how much, and whether any final vote
// named it.
type Tally struct {
	Winner         crypto.Hash
	WinnerWeight   uint64
	RunnerUpWeight uint64
	FinalConfirmed bool
}

// computeTally sums each voter's current weight into the bucket for the
// hash they last voted for. lastVotes is keyed by voter account, already
// deduplicated to one (highest-sequence) vote per voter.
func computeTally(lastVotes map[crypto.Hash]*core.Vote, weight WeightFunc) Tally {
	buckets := make(map[crypto.Hash]uint64)
	final := make(map[crypto.Hash]bool)
	for voter, v := range lastVotes {
		h := v.Hash()
		buckets[h] += weight(voter)
		if v.IsFinal() {
			final[h] = true
		}
	}

	var t Tally
	first := true
	for h, w := range buckets {
		switch {
		case first || w > t.WinnerWeight:
			t.RunnerUpWeight = t.WinnerWeight
			t.Winner = h
			t.WinnerWeight = w
			first = false
		case w > t.RunnerUpWeight:
			t.RunnerUpWeight = w
		}
	}
	t.FinalConfirmed = final[t.Winner]
	return t
}

// HasQuorum reports whether the tally's winner clears quorum: either a
// final vote named it outright, or its weight exceeds the runner-up's by
// more than delta = onlineWeight * quorumPercentage / 100.
func (t Tally) HasQuorum(onlineWeight, quorumPercentage uint64) bool {
	if t.FinalConfirmed {
		return true
	}
	delta := onlineWeight * quorumPercentage / 100
	return t.WinnerWeight > t.RunnerUpWeight+delta
}
