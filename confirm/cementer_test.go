package confirm

import (
	"testing"

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

func process(t *testing.T, ledger *core.Ledger, store core.KVStore, b *core.Block) {
	t.Helper()
	txn := core.BeginWrite(store)
	result, err := ledger.Process(txn, b)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result != core.Progress {
		t.Fatalf("Process result = %v, want Progress", result)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestCementerWalksMultipleUncementedBlocks(t *testing.T) {
	ledger, store, priv, pub := newTestLedger(t)

	open := &core.Block{Type: core.BlockTypeOpen, Source: pub.Account(), Representative: pub.Account(), Account: pub.Account()}
	open.Sign(priv)
	process(t, ledger, store, open)

	destPriv, destPub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	_ = destPriv

	send := &core.Block{Type: core.BlockTypeSend, Previous: open.Hash(), Destination: destPub.Account(), Balance: 400_000}
	send.Sign(priv)
	process(t, ledger, store, send)

	bus := observer.New()
	var confirmations []observer.ConfirmationEvent
	var pendingHints []observer.AccountBalanceEvent
	bus.Subscribe(observer.KindConfirmation, func(ev observer.Event) {
		confirmations = append(confirmations, *ev.Confirmation)
	})
	bus.Subscribe(observer.KindAccountBalance, func(ev observer.Event) {
		if ev.AccountBal.Pending {
			pendingHints = append(pendingHints, *ev.AccountBal)
		}
	})

	c := NewCementer(ledger, store, bus)
	if err := c.Cement(send.Hash()); err != nil {
		t.Fatalf("Cement: %v", err)
	}

	if len(confirmations) != 2 {
		t.Fatalf("confirmations published = %d, want 2 (open + send)", len(confirmations))
	}
	if confirmations[0].Hash != open.Hash() || confirmations[0].Height != 1 {
		t.Fatalf("first cemented block = %+v, want open at height 1", confirmations[0])
	}
	if confirmations[1].Hash != send.Hash() || confirmations[1].Height != 2 {
		t.Fatalf("second cemented block = %+v, want send at height 2", confirmations[1])
	}

	if len(pendingHints) != 1 {
		t.Fatalf("pending hints published = %d, want 1", len(pendingHints))
	}
	if pendingHints[0].Account != destPub.Account() || pendingHints[0].Balance != 600_000 {
		t.Fatalf("pending hint = %+v, want account=%x amount=600000", pendingHints[0], destPub.Account())
	}

	txn := core.BeginRead(store)
	info, err := ledger.ConfirmationHeightGet(txn, pub.Account())
	if err != nil {
		t.Fatalf("ConfirmationHeightGet: %v", err)
	}
	if info.Height != 2 || info.Frontier != send.Hash() {
		t.Fatalf("confirmation height info = %+v, want height 2 at send", info)
	}
}

func TestCementerIsIdempotent(t *testing.T) {
	ledger, store, priv, pub := newTestLedger(t)
	open := &core.Block{Type: core.BlockTypeOpen, Source: pub.Account(), Representative: pub.Account(), Account: pub.Account()}
	open.Sign(priv)
	process(t, ledger, store, open)

	bus := observer.New()
	count := 0
	bus.Subscribe(observer.KindConfirmation, func(observer.Event) { count++ })

	c := NewCementer(ledger, store, bus)
	if err := c.Cement(open.Hash()); err != nil {
		t.Fatalf("Cement: %v", err)
	}
	if err := c.Cement(open.Hash()); err != nil {
		t.Fatalf("second Cement: %v", err)
	}
	if count != 1 {
		t.Fatalf("confirmations published = %d, want 1 (second cement is a no-op)", count)
	}
}
