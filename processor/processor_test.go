package processor

import (
	"testing"
	"time"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
	"github.com/nanocurrency/nano-node-sub002/internal/testutil"
	"github.com/nanocurrency/nano-node-sub002/observer"
)

func newTestLedger(t *testing.T) (*core.Ledger, core.KVStore, crypto.PrivateKey, crypto.PublicKey) {
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

func genesisOpen(priv crypto.PrivateKey, pub crypto.PublicKey) *core.Block {
	b := &core.Block{
		Type:           core.BlockTypeOpen,
		Source:         pub.Account(),
		Representative: pub.Account(),
		Account:        pub.Account(),
	}
	b.Sign(priv)
	return b
}

func TestProcessorForceAppliesBlock(t *testing.T) {
	ledger, store, priv, pub := newTestLedger(t)
	bus := observer.New()
	p := New(ledger, store, bus)
	p.SetWorkThreshold(0)
	p.Run()
	defer p.Stop()

	result := p.Force(genesisOpen(priv, pub))
	if result != core.Progress {
		t.Fatalf("Force(open) = %s, want progress", result)
	}

	txn := core.BeginRead(store)
	balance, err := ledger.Balance(txn, pub.Account())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 1_000_000 {
		t.Errorf("balance = %d, want 1000000", balance)
	}
}

func TestProcessorReleasesUncheckedDependents(t *testing.T) {
	ledger, store, priv, pub := newTestLedger(t)
	bus := observer.New()

	var delivered []core.ProcessResult
	bus.Subscribe(observer.KindBlock, func(ev observer.Event) {
		delivered = append(delivered, ev.Block.Result)
	})

	p := New(ledger, store, bus)
	p.SetWorkThreshold(0)
	p.Run()
	defer p.Stop()

	open := genesisOpen(priv, pub)

	sendPriv, sendPub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	send := &core.Block{
		Type:        core.BlockTypeSend,
		Previous:    open.Hash(),
		Destination: sendPub.Account(),
		Balance:     900_000,
	}
	send.Sign(priv)

	receive := &core.Block{
		Type:           core.BlockTypeOpen,
		Source:         send.Hash(),
		Representative: sendPub.Account(),
		Account:        sendPub.Account(),
	}
	receive.Sign(sendPriv)

	// Publish the receive before its dependency (the send) exists: it
	// should park in the unchecked buffer rather than fail outright.
	if !p.Add(receive, time.Now()) {
		t.Fatal("Add(receive) reported full")
	}
	p.Flush()
	if got := p.Unchecked().Len(); got != 1 {
		t.Fatalf("unchecked length = %d, want 1", got)
	}

	if r := p.Force(open); r != core.Progress {
		t.Fatalf("Force(open) = %s, want progress", r)
	}
	if r := p.Force(send); r != core.Progress {
		t.Fatalf("Force(send) = %s, want progress", r)
	}

	// The send's processing should have released the parked receive back
	// onto the queue; give the worker a moment to pick it up.
	deadline := time.Now().Add(time.Second)
	for p.Unchecked().Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	p.Flush()

	if got := p.Unchecked().Len(); got != 0 {
		t.Fatalf("unchecked length = %d, want 0 after dependency resolved", got)
	}

	txn := core.BeginRead(store)
	balance, err := ledger.Balance(txn, sendPub.Account())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 100_000 {
		t.Errorf("receiver balance = %d, want 100000", balance)
	}

	foundGapSource := false
	for _, r := range delivered {
		if r == core.GapSource {
			foundGapSource = true
		}
	}
	if !foundGapSource {
		t.Error("expected a gap_source result to have been published for the early receive")
	}
}

func TestProcessorFull(t *testing.T) {
	ledger, store, _, _ := newTestLedger(t)
	bus := observer.New()
	p := New(ledger, store, bus)
	p.SetWorkThreshold(0)
	// Never Run(): nothing drains the queue, so it fills deterministically.
	now := time.Now()
	for i := 0; i < queueSize; i++ {
		if !p.Add(&core.Block{Type: core.BlockTypeOpen}, now) {
			t.Fatalf("queue reported full early, at %d/%d", i, queueSize)
		}
	}
	if !p.Full() {
		t.Error("Full() = false after filling the queue to capacity")
	}
	if p.Add(&core.Block{Type: core.BlockTypeOpen}, now) {
		t.Error("Add succeeded past capacity")
	}
}

type stubScheduler struct {
	elections int
	forks     int
}

func (s *stubScheduler) StartElection(*core.Block) { s.elections++ }
func (s *stubScheduler) ResolveFork(*core.Block)   { s.forks++ }

func TestProcessorStartsElectionOnLiveProgress(t *testing.T) {
	ledger, store, priv, pub := newTestLedger(t)
	bus := observer.New()
	p := New(ledger, store, bus)
	p.SetWorkThreshold(0)
	sched := &stubScheduler{}
	p.SetScheduler(sched)
	p.Run()
	defer p.Stop()

	p.Force(genesisOpen(priv, pub))
	if sched.elections != 1 {
		t.Errorf("elections = %d, want 1", sched.elections)
	}
	if sched.forks != 0 {
		t.Errorf("forks = %d, want 0", sched.forks)
	}
}

func TestProcessorBootstrapDoesNotStartElection(t *testing.T) {
	ledger, store, priv, pub := newTestLedger(t)
	bus := observer.New()
	p := New(ledger, store, bus)
	p.SetWorkThreshold(0)
	sched := &stubScheduler{}
	p.SetScheduler(sched)
	p.Run()
	defer p.Stop()

	if !p.AddBootstrap(genesisOpen(priv, pub), time.Now()) {
		t.Fatal("AddBootstrap reported full")
	}
	p.Flush()
	if sched.elections != 0 {
		t.Errorf("elections = %d, want 0 for a bootstrap-replayed block", sched.elections)
	}

	txn := core.BeginRead(store)
	balance, err := ledger.Balance(txn, pub.Account())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 1_000_000 {
		t.Errorf("balance = %d, want 1000000", balance)
	}
}
