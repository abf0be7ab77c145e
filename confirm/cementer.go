// Package confirm advances an account's confirmation height once an
// election settles: it walks the account chain forward from whatever was
// last cemented up to (and including) the newly confirmed block, notifying
// observers once per cemented block instead of once per election.
package confirm

import (
	"log"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
	"github.com/nanocurrency/nano-node-sub002/observer"
)

// maxWalk bounds how many blocks a single confirmation event cements in one
// pass, guarding against a pathologically long uncemented backlog blocking
// the subscriber that delivered the event.
const maxWalk = 100_000

// Cementer subscribes to observer.KindConfirmation and is the sole writer
// of confirmation-height state: every other reader treats it as read-only.
type Cementer struct {
	ledger *core.Ledger
	store  core.KVStore
	bus    *observer.Bus
}

// NewCementer constructs a Cementer wired to ledger/store/bus. Call Start
// once to begin subscribing; constructing without starting is useful in
// tests that want to call Cement directly.
func NewCementer(ledger *core.Ledger, store core.KVStore, bus *observer.Bus) *Cementer {
	return &Cementer{ledger: ledger, store: store, bus: bus}
}

// Start subscribes the Cementer to the bus's confirmation events.
func (c *Cementer) Start() {
	c.bus.Subscribe(observer.KindConfirmation, func(ev observer.Event) {
		if ev.Confirmation == nil {
			return
		}
		if err := c.Cement(ev.Confirmation.Hash); err != nil {
			log.Printf("[confirm] cementing %s: %v", ev.Confirmation.Hash, err)
		}
	})
}

// Cement walks forward from the account's current confirmation frontier to
// target (inclusive), advancing confirmation_height one block at a time
// and publishing a confirmation + balance/pending notification per block.
// It is idempotent: re-cementing an already-cemented hash is a no-op.
func (c *Cementer) Cement(target crypto.Hash) error {
	txn := core.BeginWrite(c.store)

	targetBlock, err := c.ledger.BlockGet(txn, target)
	if err != nil {
		txn.Discard()
		return err
	}
	account := c.accountOf(txn, targetBlock)
	if account.IsZero() {
		txn.Discard()
		return nil
	}

	info, err := c.ledger.ConfirmationHeightGet(txn, account)
	if err != nil {
		info = &core.ConfirmationHeightInfo{}
	}
	if info.Frontier == target {
		txn.Discard()
		return nil // already cemented
	}

	chain, err := c.path(txn, account, info.Frontier, target)
	if err != nil {
		txn.Discard()
		return err
	}

	type cementedBlock struct {
		block  *core.Block
		height uint64
		acct   crypto.Hash
		dest   crypto.Hash
		amount uint64
		hasDest bool
	}
	var cemented []cementedBlock
	height := info.Height
	for _, h := range chain {
		blk, err := c.ledger.BlockGet(txn, h)
		if err != nil {
			txn.Discard()
			return err
		}
		height++
		dest, amount, hasDest := c.ledger.PendingHint(txn, blk)
		cemented = append(cemented, cementedBlock{block: blk, height: height, acct: account, dest: dest, amount: amount, hasDest: hasDest})
	}
	c.ledger.ConfirmationHeightSet(txn, account, core.ConfirmationHeightInfo{Height: height, Frontier: target})

	if err := txn.Commit(); err != nil {
		return err
	}

	for _, cb := range cemented {
		c.bus.PublishConfirmation(cb.block.Hash(), cb.acct, cb.height)
		if cb.hasDest && cb.amount > 0 {
			c.bus.PublishAccountBalance(cb.dest, cb.amount, true)
		}
		bal, err := c.balanceOf(account)
		if err == nil {
			c.bus.PublishAccountBalance(account, bal, false)
		}
	}
	return nil
}

// balanceOf reads account's current ledger balance under a fresh read txn,
// used only for the post-commit observer notification above.
func (c *Cementer) balanceOf(account crypto.Hash) (uint64, error) {
	txn := core.BeginRead(c.store)
	return c.ledger.Balance(txn, account)
}

// path returns the chain of block hashes strictly after `from` up to and
// including `to`, walking forward via successor links. from may be the
// zero hash, meaning "start at the account's open block".
func (c *Cementer) path(txn *core.Txn, account, from, to crypto.Hash) ([]crypto.Hash, error) {
	info, err := c.ledger.AccountInfoGet(txn, account)
	if err != nil {
		return nil, err
	}

	cur := from
	if cur.IsZero() {
		cur = info.OpenBlock
		chain := []crypto.Hash{cur}
		if cur == to {
			return chain, nil
		}
		rest, err := c.walkFrom(txn, cur, to)
		if err != nil {
			return nil, err
		}
		return append(chain, rest...), nil
	}
	return c.walkFrom(txn, cur, to)
}

// walkFrom returns every successor hash strictly after cur up to and
// including to.
func (c *Cementer) walkFrom(txn *core.Txn, cur, to crypto.Hash) ([]crypto.Hash, error) {
	var chain []crypto.Hash
	for i := 0; i < maxWalk; i++ {
		next, err := c.ledger.Successor(txn, cur)
		if err != nil {
			return nil, err
		}
		chain = append(chain, next)
		if next == to {
			return chain, nil
		}
		cur = next
	}
	return nil, core.ErrNotFound
}

// accountOf resolves the owning account of b, walking backward to the
// opening block for legacy (non-State) variants.
func (c *Cementer) accountOf(txn *core.Txn, b *core.Block) crypto.Hash {
	if b.Type == core.BlockTypeOpen || b.Type == core.BlockTypeState {
		return b.Account
	}
	prev, err := c.ledger.BlockGet(txn, b.Previous)
	if err != nil {
		return crypto.Hash{}
	}
	return c.accountOf(txn, prev)
}
