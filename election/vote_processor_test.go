package election

import (
	"testing"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/observer"
)

func TestVoteProcessorAppliesNewVoteAndReplayRejectsStale(t *testing.T) {
	ledger, store, priv, pub := newElectionTestLedger(t)
	blk := openGenesisBlock(priv, pub)

	txn := core.BeginWrite(store)
	if _, err := ledger.Process(txn, blk); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	bus := observer.New()
	weightFn := LedgerWeightFunc(ledger, store)
	online := NewOnlineReps(weightFn, 0)
	inactive := NewInactiveVoteCache(weightFn)
	active := NewActiveElections(Config{
		Ledger: ledger, Store: store, Bus: bus,
		Weight: weightFn, Online: online, Inactive: inactive,
		QuorumPercentage: 67,
	})
	active.StartElection(blk)

	vp := NewVoteProcessor(active, weightFn, online, bus)

	v1 := &core.Vote{Sequence: 5, Block: blk}
	v1.Sign(priv)
	if got := vp.VoteBlocking(v1, "peer-a"); got != VoteResultNew {
		t.Fatalf("first vote result = %s, want vote", got)
	}

	// A replay of an equal-or-lower sequence from the same account must be
	// rejected rather than re-applied.
	v2 := &core.Vote{Sequence: 5, Block: blk}
	v2.Sign(priv)
	if got := vp.VoteBlocking(v2, "peer-a"); got != VoteResultReplay {
		t.Fatalf("replayed vote result = %s, want replay", got)
	}
}

func TestVoteProcessorRejectsBadSignature(t *testing.T) {
	ledger, store, priv, pub := newElectionTestLedger(t)
	blk := openGenesisBlock(priv, pub)
	bus := observer.New()
	weightFn := LedgerWeightFunc(ledger, store)
	online := NewOnlineReps(weightFn, 0)
	inactive := NewInactiveVoteCache(weightFn)
	active := NewActiveElections(Config{
		Ledger: ledger, Store: store, Bus: bus,
		Weight: weightFn, Online: online, Inactive: inactive,
	})
	vp := NewVoteProcessor(active, weightFn, online, bus)

	v := &core.Vote{Sequence: 1, Block: blk}
	v.Sign(priv)
	v.Signature[0] ^= 0xFF // corrupt the signature

	if got := vp.VoteBlocking(v, ""); got != VoteResultInvalid {
		t.Fatalf("corrupted-signature vote result = %s, want invalid", got)
	}
}

func TestVoteProcessorFinalVoteBypassesCooldown(t *testing.T) {
	ledger, store, priv, pub := newElectionTestLedger(t)
	blk := openGenesisBlock(priv, pub)
	txn := core.BeginWrite(store)
	if _, err := ledger.Process(txn, blk); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	bus := observer.New()
	var confirmed int
	bus.Subscribe(observer.KindConfirmation, func(observer.Event) { confirmed++ })

	weightFn := LedgerWeightFunc(ledger, store)
	// A high online-weight floor keeps the genesis representative's vote
	// alone short of quorum, so the first (non-final) vote doesn't confirm
	// the election out from under this test.
	online := NewOnlineReps(weightFn, 2_000_000)
	inactive := NewInactiveVoteCache(weightFn)
	active := NewActiveElections(Config{
		Ledger: ledger, Store: store, Bus: bus,
		Weight: weightFn, Online: online, Inactive: inactive,
		QuorumPercentage: 67,
	})
	active.StartElection(blk)
	vp := NewVoteProcessor(active, weightFn, online, bus)

	v1 := &core.Vote{Sequence: 5, Block: blk}
	v1.Sign(priv)
	if got := vp.VoteBlocking(v1, "peer-a"); got != VoteResultNew {
		t.Fatalf("first vote result = %s, want vote", got)
	}
	if confirmed != 0 {
		t.Fatalf("confirmations after first vote = %d, want 0 (quorum not yet reached)", confirmed)
	}

	// A same-account, higher-sequence but non-final resubmission right
	// after the first is still inside the weight band's cooldown window.
	v2 := &core.Vote{Sequence: 6, Block: blk}
	v2.Sign(priv)
	if got := vp.VoteBlocking(v2, "peer-a"); got != VoteResultReplay {
		t.Fatalf("cooldown-window resubmission result = %s, want replay", got)
	}

	final := &core.Vote{Sequence: core.FinalVoteSequence, Block: blk}
	final.Sign(priv)
	if got := vp.VoteBlocking(final, "peer-a"); got != VoteResultNew {
		t.Fatalf("final vote result = %s, want vote (bypasses cooldown)", got)
	}
	if confirmed != 1 {
		t.Fatalf("confirmations after final vote = %d, want 1 (final vote short-circuits quorum)", confirmed)
	}
}
