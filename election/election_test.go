package election

import (
	"testing"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
	"github.com/nanocurrency/nano-node-sub002/internal/testutil"
	"github.com/nanocurrency/nano-node-sub002/observer"
)

func newElectionTestLedger(t *testing.T) (*core.Ledger, core.KVStore, crypto.PrivateKey, crypto.PublicKey) {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	store := testutil.NewMemDB()
	ledger := core.NewLedger(store, pub.Account(), 1_000_000)
	txn := core.BeginWrite(store)
	if err := ledger.Bootstrap(txn); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return ledger, store, priv, pub
}

func openGenesisBlock(priv crypto.PrivateKey, pub crypto.PublicKey) *core.Block {
	b := &core.Block{
		Type:           core.BlockTypeOpen,
		Source:         pub.Account(),
		Representative: pub.Account(),
		Account:        pub.Account(),
	}
	b.Sign(priv)
	return b
}

func TestActiveElectionsConfirmsOnQuorum(t *testing.T) {
	ledger, store, priv, pub := newElectionTestLedger(t)
	blk := openGenesisBlock(priv, pub)

	txn := core.BeginWrite(store)
	if result, err := ledger.Process(txn, blk); err != nil || result != core.Progress {
		t.Fatalf("Process(open) = %v, %v, want progress", result, err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	bus := observer.New()
	var confirmed []observer.ConfirmationEvent
	bus.Subscribe(observer.KindConfirmation, func(ev observer.Event) {
		confirmed = append(confirmed, *ev.Confirmation)
	})

	weightFn := LedgerWeightFunc(ledger, store)
	online := NewOnlineReps(weightFn, 0)
	inactive := NewInactiveVoteCache(weightFn)
	active := NewActiveElections(Config{
		Ledger:           ledger,
		Store:            store,
		Bus:              bus,
		Weight:           weightFn,
		Online:           online,
		Inactive:         inactive,
		QuorumPercentage: 67,
	})

	active.StartElection(blk)
	if active.Size() != 1 {
		t.Fatalf("Size() = %d, want 1 election live", active.Size())
	}

	v := &core.Vote{Sequence: 1, Block: blk}
	v.Sign(priv)
	active.Vote(pub.Account(), v)

	if len(confirmed) != 1 {
		t.Fatalf("confirmations published = %d, want 1", len(confirmed))
	}
	if confirmed[0].Hash != blk.Hash() {
		t.Fatalf("confirmed hash = %x, want %x", confirmed[0].Hash, blk.Hash())
	}
	if active.Size() != 0 {
		t.Fatalf("Size() after confirmation = %d, want 0 (election retired)", active.Size())
	}
}

func TestActiveElectionsImportsInactiveVotesOnStart(t *testing.T) {
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
	confirmations := 0
	bus.Subscribe(observer.KindConfirmation, func(observer.Event) { confirmations++ })

	weightFn := LedgerWeightFunc(ledger, store)
	online := NewOnlineReps(weightFn, 0)
	inactive := NewInactiveVoteCache(weightFn)

	// Vote arrives before the election exists (block was already in the
	// ledger, but StartElection hasn't fired yet) — must be parked.
	v := &core.Vote{Sequence: 1, Block: blk}
	v.Sign(priv)
	inactive.Vote(pub.Account(), v)

	active := NewActiveElections(Config{
		Ledger: ledger, Store: store, Bus: bus,
		Weight: weightFn, Online: online, Inactive: inactive,
		QuorumPercentage: 67,
	})

	active.StartElection(blk)

	if confirmations != 1 {
		t.Fatalf("confirmations = %d, want 1 (imported inactive vote should reach quorum immediately)", confirmations)
	}
}
