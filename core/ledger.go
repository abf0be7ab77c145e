package core

import (
	"encoding/binary"
	"fmt"

	"github.com/nanocurrency/nano-node-sub002/crypto"
)

// Key prefixes for the ledger's flat keyspace. Every persisted record is
// stored as prefix + fixed-size key so lookups resolve without a secondary
// index scan.
const (
	prefixBlock      = "blk:"  // blk:<hash>        -> encoded Block
	prefixSuccessor  = "succ:" // succ:<hash>       -> successor hash (next block on the same chain)
	prefixAccount    = "acc:"  // acc:<account>     -> encoded AccountInfo
	prefixPending    = "pend:" // pend:<acct><src>  -> encoded PendingEntry
	prefixConfHeight = "ch:"   // ch:<account>      -> encoded ConfirmationHeightInfo
	prefixRepWeight  = "rep:"  // rep:<account>     -> big-endian uint64 delegated weight
	prefixAmount     = "amt:"  // amt:<hash>        -> big-endian uint64, amount this block moved
	prefixPriorRep   = "prep:" // prep:<hash>       -> the account's representative immediately before this block
	prefixReceived   = "recv:" // recv:<hash>       -> 1 byte, non-zero iff this State block was a receive/open
)

// BurnAccount is the reserved all-zero account: sends may target it (coins
// are permanently removed from circulation) but it can never be opened or
// vote.
var BurnAccount = crypto.Hash{}

// Ledger validates and stores blocks and votes for the entire lattice: one
// chain per account instead of one chain for the whole network, with a
// buffered write-transaction (core.Txn) sitting in front of the
// underlying store.
type Ledger struct {
	store           KVStore
	genesisAccount  crypto.Hash
	genesisBalance  uint64
}

// NewLedger constructs a Ledger backed by store. genesisAccount/genesisBalance
// describe the single pre-funded account that seeds the lattice; Bootstrap
// must be called once against a fresh store before any other operation.
func NewLedger(store KVStore, genesisAccount crypto.Hash, genesisBalance uint64) *Ledger {
	return &Ledger{store: store, genesisAccount: genesisAccount, genesisBalance: genesisBalance}
}

// Bootstrap seeds a fresh store with the genesis account's implicit opening
// state: a pending entry of genesisBalance addressed to the genesis account
// with the genesis account itself as source. No AccountInfo is written; the
// genesis Open block must still be Process()ed by the caller, same as any
// other block, and that is what creates the account. This mirrors the real node's
// genesis block being a perfectly ordinary Open block that receives from a
// synthetic pending entry nobody ever sent.
func (l *Ledger) Bootstrap(txn *Txn) error {
	entry := PendingEntry{Account: l.genesisAccount, Source: l.genesisAccount, Amount: l.genesisBalance}
	return l.pendingPut(txn, entry)
}

// --- account / block / successor lookups ---

func accountKey(a crypto.Hash) []byte { return []byte(prefixAccount + string(a[:])) }
func blockKey(h crypto.Hash) []byte   { return []byte(prefixBlock + string(h[:])) }
func successorKey(h crypto.Hash) []byte { return []byte(prefixSuccessor + string(h[:])) }
func confHeightKey(a crypto.Hash) []byte { return []byte(prefixConfHeight + string(a[:])) }
func repWeightKey(a crypto.Hash) []byte  { return []byte(prefixRepWeight + string(a[:])) }
func pendingKey(acct, src crypto.Hash) []byte {
	return []byte(prefixPending + string(acct[:]) + string(src[:]))
}
func amountKey(h crypto.Hash) []byte   { return []byte(prefixAmount + string(h[:])) }
func priorRepKey(h crypto.Hash) []byte { return []byte(prefixPriorRep + string(h[:])) }

// setAmount and setPriorRep record the per-block undo information RollbackFrom
// needs: the value the block moved, and the representative the owning
// account had immediately beforehand. Recording this once at Process() time
// is simpler and cheaper than reconstructing it later by re-walking the
// chain, since ordinary (non-State) blocks don't all carry a balance field.
func (l *Ledger) setAmount(txn *Txn, hash crypto.Hash, amount uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], amount)
	txn.Set(amountKey(hash), buf[:])
}

func (l *Ledger) setPriorRep(txn *Txn, hash crypto.Hash, rep crypto.Hash) {
	txn.Set(priorRepKey(hash), rep.Bytes())
}

func (l *Ledger) priorRep(txn *Txn, hash crypto.Hash) crypto.Hash {
	raw, err := txn.Get(priorRepKey(hash))
	if err != nil {
		return crypto.Hash{}
	}
	var h crypto.Hash
	copy(h[:], raw)
	return h
}

func receivedKey(h crypto.Hash) []byte { return []byte(prefixReceived + string(h[:])) }

func (l *Ledger) setReceived(txn *Txn, hash crypto.Hash, received bool) {
	v := byte(0)
	if received {
		v = 1
	}
	txn.Set(receivedKey(hash), []byte{v})
}

func (l *Ledger) wasReceived(txn *Txn, hash crypto.Hash) bool {
	raw, err := txn.Get(receivedKey(hash))
	return err == nil && len(raw) == 1 && raw[0] != 0
}

// PendingHint reports the destination account and amount a just-cemented
// send (legacy Send, or State with a decreasing balance) left waiting in
// the pending table, so a cementing walk can deliver a pending_account
// observer hint. ok is false for every other block shape, including
// receives, opens, changes, and sends to the burn account.
func (l *Ledger) PendingHint(txn *Txn, b *Block) (account crypto.Hash, amount uint64, ok bool) {
	switch b.Type {
	case BlockTypeSend:
		amt, err := l.Amount(txn, b.Hash())
		if err != nil {
			return crypto.Hash{}, 0, false
		}
		return b.Destination, amt, true
	case BlockTypeState:
		if b.Link == BurnAccount || l.wasReceived(txn, b.Hash()) {
			return crypto.Hash{}, 0, false
		}
		amt, err := l.Amount(txn, b.Hash())
		if err != nil || amt == 0 {
			return crypto.Hash{}, 0, false
		}
		return b.Link, amt, true
	default:
		return crypto.Hash{}, 0, false
	}
}

// Amount returns the value transferred by block hash: the balance increase
// for a receive/open, the balance decrease for a send, recorded once at
// Process() time since reconstructing it afterward would otherwise require
// re-walking the account's whole history.
func (l *Ledger) Amount(txn *Txn, hash crypto.Hash) (uint64, error) {
	raw, err := txn.Get(amountKey(hash))
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

// AccountInfoGet returns the stored head record for account.
func (l *Ledger) AccountInfoGet(txn *Txn, account crypto.Hash) (*AccountInfo, error) {
	raw, err := txn.Get(accountKey(account))
	if err != nil {
		return nil, err
	}
	return decodeAccountInfo(raw)
}

func (l *Ledger) accountInfoPut(txn *Txn, info AccountInfo) {
	txn.Set(accountKey(info.Account), encodeAccountInfo(info))
}

// BlockGet returns the stored block with the given hash.
func (l *Ledger) BlockGet(txn *Txn, hash crypto.Hash) (*Block, error) {
	raw, err := txn.Get(blockKey(hash))
	if err != nil {
		return nil, err
	}
	return decodeBlock(raw)
}

func (l *Ledger) blockPut(txn *Txn, b *Block) {
	txn.Set(blockKey(b.Hash()), encodeBlock(b))
}

// ReplaceIfHigherWork overwrites the stored copy of an already-processed
// block with b if b carries a higher work value. Work is never part of a
// block's signing body, so b.Hash() is unchanged and this can never alter
// ledger semantics — it only lets the network propagate whichever variant
// is cheapest for peers to rebroadcast without re-validating. Returns
// whether a replacement happened.
func (l *Ledger) ReplaceIfHigherWork(txn *Txn, b *Block) (bool, error) {
	stored, err := l.BlockGet(txn, b.Hash())
	if err != nil {
		return false, err
	}
	if b.Work <= stored.Work {
		return false, nil
	}
	l.blockPut(txn, b)
	return true, nil
}

// Successor returns the hash of the block that follows hash on its chain,
// or ErrNotFound if hash is the current head.
func (l *Ledger) Successor(txn *Txn, hash crypto.Hash) (crypto.Hash, error) {
	raw, err := txn.Get(successorKey(hash))
	if err != nil {
		return crypto.Hash{}, err
	}
	var h crypto.Hash
	copy(h[:], raw)
	return h, nil
}

// Latest returns account's current chain head.
func (l *Ledger) Latest(txn *Txn, account crypto.Hash) (crypto.Hash, error) {
	info, err := l.AccountInfoGet(txn, account)
	if err != nil {
		return crypto.Hash{}, err
	}
	return info.Head, nil
}

// Balance returns account's current balance.
func (l *Ledger) Balance(txn *Txn, account crypto.Hash) (uint64, error) {
	info, err := l.AccountInfoGet(txn, account)
	if err != nil {
		if err == ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return info.Balance, nil
}

// Representative returns account's currently delegated-to representative.
func (l *Ledger) Representative(txn *Txn, account crypto.Hash) (crypto.Hash, error) {
	info, err := l.AccountInfoGet(txn, account)
	if err != nil {
		return crypto.Hash{}, err
	}
	return info.Representative, nil
}

// Weight returns the total balance currently delegated to representative.
func (l *Ledger) Weight(txn *Txn, representative crypto.Hash) (uint64, error) {
	raw, err := txn.Get(repWeightKey(representative))
	if err != nil {
		if err == ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (l *Ledger) addWeight(txn *Txn, representative crypto.Hash, delta int64) error {
	if representative.IsZero() {
		return nil
	}
	cur, err := l.Weight(txn, representative)
	if err != nil {
		return err
	}
	next := int64(cur) + delta
	if next < 0 {
		return fmt.Errorf("core: negative weight for %s", representative)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(next))
	txn.Set(repWeightKey(representative), buf[:])
	return nil
}

// --- pending (receivable) index ---

// PendingGet looks up a receivable entry by (destination account, source
// block hash).
func (l *Ledger) PendingGet(txn *Txn, account, source crypto.Hash) (*PendingEntry, error) {
	raw, err := txn.Get(pendingKey(account, source))
	if err != nil {
		return nil, err
	}
	return decodePendingEntry(raw)
}

func (l *Ledger) pendingPut(txn *Txn, entry PendingEntry) error {
	txn.Set(pendingKey(entry.Account, entry.Source), encodePendingEntry(entry))
	return nil
}

func (l *Ledger) pendingDelete(txn *Txn, account, source crypto.Hash) {
	txn.Delete(pendingKey(account, source))
}

// --- confirmation height ---

// ConfirmationHeightGet returns how far account's chain is cemented.
func (l *Ledger) ConfirmationHeightGet(txn *Txn, account crypto.Hash) (*ConfirmationHeightInfo, error) {
	raw, err := txn.Get(confHeightKey(account))
	if err != nil {
		if err == ErrNotFound {
			return &ConfirmationHeightInfo{}, nil
		}
		return nil, err
	}
	return decodeConfirmationHeightInfo(raw)
}

// ConfirmationHeightSet records account's cemented frontier. Called only by
// the confirm package's cementing walker.
func (l *Ledger) ConfirmationHeightSet(txn *Txn, account crypto.Hash, info ConfirmationHeightInfo) {
	txn.Set(confHeightKey(account), encodeConfirmationHeightInfo(info))
}

// --- process ---

// Process validates block against the current ledger state and, on
// success, stores it and updates every derived index (account head,
// successor link, representative weight, pending table). It returns
// Progress on success and a descriptive ProcessResult otherwise; err is
// non-nil only for storage failures, never for ordinary validation
// rejection — validation outcomes are values, not errors.
func (l *Ledger) Process(txn *Txn, b *Block) (ProcessResult, error) {
	if err := b.VerifySignature(l.signerFor(txn, b)); err != nil {
		return BadSignature, nil
	}
	if _, err := l.BlockGet(txn, b.Hash()); err == nil {
		return Old, nil
	}

	switch b.Type {
	case BlockTypeOpen:
		return l.processOpen(txn, b)
	case BlockTypeSend:
		return l.processSend(txn, b)
	case BlockTypeReceive:
		return l.processReceive(txn, b)
	case BlockTypeChange:
		return l.processChange(txn, b)
	case BlockTypeState:
		return l.processState(txn, b)
	default:
		return BlockPosition, nil
	}
}

// signerFor resolves the public key a block's signature should verify
// under: its own Account field for Open/State, or the owning chain's
// account (looked up via Previous) for Send/Receive/Change.
func (l *Ledger) signerFor(txn *Txn, b *Block) crypto.PublicKey {
	if b.Type == BlockTypeOpen || b.Type == BlockTypeState {
		return crypto.AccountFromHash(b.Account)
	}
	prev, err := l.BlockGet(txn, b.Previous)
	if err != nil {
		return nil // verification will fail closed
	}
	return crypto.AccountFromHash(l.chainAccount(txn, prev))
}

// chainAccount resolves the account that owns prev's chain by walking
// Previous links backward until it reaches an Open or State block, whose
// Account field names the owner. It returns the zero hash if a block on the
// way is missing from the store.
func (l *Ledger) chainAccount(txn *Txn, prev *Block) crypto.Hash {
	if prev.Type == BlockTypeOpen || prev.Type == BlockTypeState {
		return prev.Account
	}
	// Recurse toward the opening block. Chains are short enough in practice
	// (bounded by an account's lifetime activity) that this is acceptable.
	grand, err := l.BlockGet(txn, prev.Previous)
	if err != nil {
		return crypto.Hash{}
	}
	return l.chainAccount(txn, grand)
}

func (l *Ledger) processOpen(txn *Txn, b *Block) (ProcessResult, error) {
	if b.Account == BurnAccount {
		return OpenedBurnAccount, nil
	}
	if _, err := l.AccountInfoGet(txn, b.Account); err == nil {
		return Fork, nil
	}
	pending, err := l.PendingGet(txn, b.Account, b.Source)
	if err != nil {
		if _, serr := l.BlockGet(txn, b.Source); serr != nil {
			return GapSource, nil
		}
		return Unreceivable, nil
	}
	l.pendingDelete(txn, b.Account, b.Source)
	l.blockPut(txn, b)
	l.setAmount(txn, b.Hash(), pending.Amount)
	info := AccountInfo{
		Account:        b.Account,
		Head:           b.Hash(),
		OpenBlock:      b.Hash(),
		Representative: b.Representative,
		Balance:        pending.Amount,
		BlockCount:     1,
	}
	l.accountInfoPut(txn, info)
	if err := l.addWeight(txn, b.Representative, int64(pending.Amount)); err != nil {
		return Progress, err
	}
	return Progress, nil
}

func (l *Ledger) processSend(txn *Txn, b *Block) (ProcessResult, error) {
	info, err := l.headInfo(txn, b)
	if err != nil {
		if _, perr := l.BlockGet(txn, b.Previous); perr != nil {
			return GapPrevious, nil
		}
		return Fork, nil
	}
	if b.Balance > info.Balance {
		return NegativeSpend, nil
	}
	amount := info.Balance - b.Balance
	l.blockPut(txn, b)
	l.setAmount(txn, b.Hash(), amount)
	txn.Set(successorKey(b.Previous), b.Hash().Bytes())
	if err := l.pendingPut(txn, PendingEntry{Account: b.Destination, Source: b.Hash(), Amount: amount}); err != nil {
		return Progress, err
	}
	if err := l.addWeight(txn, info.Representative, -int64(amount)); err != nil {
		return Progress, err
	}
	info.Head = b.Hash()
	info.Balance = b.Balance
	info.BlockCount++
	l.accountInfoPut(txn, info)
	return Progress, nil
}

func (l *Ledger) processReceive(txn *Txn, b *Block) (ProcessResult, error) {
	info, err := l.headInfo(txn, b)
	if err != nil {
		if _, perr := l.BlockGet(txn, b.Previous); perr != nil {
			return GapPrevious, nil
		}
		return Fork, nil
	}
	pending, err := l.PendingGet(txn, info.Account, b.Source)
	if err != nil {
		if _, serr := l.BlockGet(txn, b.Source); serr != nil {
			return GapSource, nil
		}
		return Unreceivable, nil
	}
	l.pendingDelete(txn, info.Account, b.Source)
	l.blockPut(txn, b)
	l.setAmount(txn, b.Hash(), pending.Amount)
	txn.Set(successorKey(b.Previous), b.Hash().Bytes())
	if err := l.addWeight(txn, info.Representative, int64(pending.Amount)); err != nil {
		return Progress, err
	}
	info.Head = b.Hash()
	info.Balance += pending.Amount
	info.BlockCount++
	l.accountInfoPut(txn, info)
	return Progress, nil
}

func (l *Ledger) processChange(txn *Txn, b *Block) (ProcessResult, error) {
	info, err := l.headInfo(txn, b)
	if err != nil {
		if _, perr := l.BlockGet(txn, b.Previous); perr != nil {
			return GapPrevious, nil
		}
		return Fork, nil
	}
	l.blockPut(txn, b)
	l.setPriorRep(txn, b.Hash(), info.Representative)
	txn.Set(successorKey(b.Previous), b.Hash().Bytes())
	if err := l.addWeight(txn, info.Representative, -int64(info.Balance)); err != nil {
		return Progress, err
	}
	if err := l.addWeight(txn, b.Representative, int64(info.Balance)); err != nil {
		return Progress, err
	}
	info.Head = b.Hash()
	info.Representative = b.Representative
	info.BlockCount++
	l.accountInfoPut(txn, info)
	return Progress, nil
}

// processState handles the unified State variant, which folds
// send/receive/change/open into one shape distinguished only by the sign
// and target of the implied balance change.
func (l *Ledger) processState(txn *Txn, b *Block) (ProcessResult, error) {
	if b.Account == BurnAccount && b.Previous.IsZero() {
		return OpenedBurnAccount, nil
	}
	info, err := l.AccountInfoGet(txn, b.Account)
	isOpen := err == ErrNotFound
	if err != nil && !isOpen {
		return BlockPosition, nil
	}
	if isOpen {
		if !b.Previous.IsZero() {
			return GapPrevious, nil
		}
		info = &AccountInfo{Account: b.Account}
	} else if info.Head != b.Previous {
		if _, perr := l.BlockGet(txn, b.Previous); perr != nil && !b.Previous.IsZero() {
			return GapPrevious, nil
		}
		return Fork, nil
	}

	oldRep := info.Representative
	switch {
	case b.Balance > info.Balance:
		// receive or initial open: Link names the source block.
		amount := b.Balance - info.Balance
		pending, perr := l.PendingGet(txn, b.Account, b.Link)
		if perr != nil {
			if _, serr := l.BlockGet(txn, b.Link); serr != nil {
				return GapSource, nil
			}
			return Unreceivable, nil
		}
		if pending.Amount != amount {
			return Unreceivable, nil
		}
		l.pendingDelete(txn, b.Account, b.Link)
		l.setAmount(txn, b.Hash(), amount)
		l.setReceived(txn, b.Hash(), true)
	case b.Balance < info.Balance:
		// send: Link names the destination account.
		amount := info.Balance - b.Balance
		l.setAmount(txn, b.Hash(), amount)
		l.setReceived(txn, b.Hash(), false)
		if b.Link == BurnAccount {
			// burns remove supply permanently: no pending entry created.
			break
		}
		if err := l.pendingPut(txn, PendingEntry{Account: b.Link, Source: b.Hash(), Amount: amount}); err != nil {
			return Progress, err
		}
	}

	if err := l.addWeight(txn, info.Representative, -int64(info.Balance)); err != nil {
		return Progress, err
	}
	if err := l.addWeight(txn, b.Representative, int64(b.Balance)); err != nil {
		return Progress, err
	}

	l.blockPut(txn, b)
	l.setPriorRep(txn, b.Hash(), oldRep)
	if !b.Previous.IsZero() {
		txn.Set(successorKey(b.Previous), b.Hash().Bytes())
	}
	info.Head = b.Hash()
	if isOpen {
		info.OpenBlock = b.Hash()
	}
	info.Representative = b.Representative
	info.Balance = b.Balance
	info.BlockCount++
	l.accountInfoPut(txn, *info)
	return Progress, nil
}

// headInfo resolves the AccountInfo whose current Head equals b.Previous,
// the position legacy (non-State) variants must extend.
func (l *Ledger) headInfo(txn *Txn, b *Block) (AccountInfo, error) {
	prev, err := l.BlockGet(txn, b.Previous)
	if err != nil {
		return AccountInfo{}, err
	}
	account := l.chainAccount(txn, prev)
	info, err := l.AccountInfoGet(txn, account)
	if err != nil {
		return AccountInfo{}, err
	}
	if info.Head != b.Previous {
		return AccountInfo{}, fmt.Errorf("core: %s is not %s's head", b.Previous, account)
	}
	return *info, nil
}

// RollbackFrom removes hash and every block that descends from it on the same
// chain, undoing their ledger effects (representative weight, pending
// entries, account head) tip first, one block at a time. Used
// when an election is lost and every block built on top of the losing
// side must be cleanly retracted, not just its tip.
func (l *Ledger) RollbackFrom(txn *Txn, hash crypto.Hash) error {
	b, err := l.BlockGet(txn, hash)
	if err != nil {
		return err
	}
	// Roll back descendants first (depth-first to the tip), so each
	// rollback step sees the chain exactly as it was when that block was
	// the head.
	if succ, err := l.Successor(txn, hash); err == nil {
		if err := l.RollbackFrom(txn, succ); err != nil {
			return err
		}
	}
	return l.rollbackOne(txn, b)
}

// rollbackOne undoes a single block's ledger effects using the amount and
// prior-representative values recorded for it at Process() time, then
// deletes its stored records. It never needs to re-derive state from
// neighboring blocks, which keeps it correct even for legacy block types
// that don't carry a balance field.
func (l *Ledger) rollbackOne(txn *Txn, b *Block) error {
	account := l.blockAccount(txn, b)
	info, err := l.AccountInfoGet(txn, account)
	if err != nil {
		return err
	}
	amount, _ := l.Amount(txn, b.Hash())

	switch b.Type {
	case BlockTypeOpen:
		if err := l.addWeight(txn, b.Representative, -int64(amount)); err != nil {
			return err
		}
		l.pendingPut(txn, PendingEntry{Account: b.Account, Source: b.Source, Amount: amount})
		txn.Delete(accountKey(account))
	case BlockTypeSend:
		l.pendingDelete(txn, b.Destination, b.Hash())
		if err := l.addWeight(txn, info.Representative, int64(amount)); err != nil {
			return err
		}
		l.retreatHead(txn, &info, b.Previous, info.Balance+amount)
	case BlockTypeReceive:
		l.pendingPut(txn, PendingEntry{Account: account, Source: b.Source, Amount: amount})
		if err := l.addWeight(txn, info.Representative, -int64(amount)); err != nil {
			return err
		}
		l.retreatHead(txn, &info, b.Previous, info.Balance-amount)
	case BlockTypeChange:
		prevRep := l.priorRep(txn, b.Hash())
		if err := l.addWeight(txn, info.Representative, -int64(info.Balance)); err != nil {
			return err
		}
		if err := l.addWeight(txn, prevRep, int64(info.Balance)); err != nil {
			return err
		}
		info.Representative = prevRep
		l.retreatHead(txn, &info, b.Previous, info.Balance)
	case BlockTypeState:
		prevRep := l.priorRep(txn, b.Hash())
		if err := l.addWeight(txn, b.Representative, -int64(b.Balance)); err != nil {
			return err
		}
		if b.Previous.IsZero() {
			l.pendingPut(txn, PendingEntry{Account: account, Source: b.Link, Amount: amount})
			txn.Delete(accountKey(account))
			break
		}
		var restored uint64
		if l.wasReceived(txn, b.Hash()) {
			l.pendingPut(txn, PendingEntry{Account: account, Source: b.Link, Amount: amount})
			restored = info.Balance - amount
		} else {
			if b.Link != BurnAccount {
				l.pendingDelete(txn, b.Link, b.Hash())
			}
			restored = info.Balance + amount
		}
		if err := l.addWeight(txn, prevRep, int64(restored)); err != nil {
			return err
		}
		info.Representative = prevRep
		l.retreatHead(txn, &info, b.Previous, restored)
	}

	txn.Delete(amountKey(b.Hash()))
	txn.Delete(priorRepKey(b.Hash()))
	txn.Delete(receivedKey(b.Hash()))
	txn.Delete(successorKey(b.Previous))
	txn.Delete(blockKey(b.Hash()))
	return nil
}

func (l *Ledger) retreatHead(txn *Txn, info *AccountInfo, newHead crypto.Hash, newBalance uint64) {
	info.Head = newHead
	info.Balance = newBalance
	if info.BlockCount > 0 {
		info.BlockCount--
	}
	l.accountInfoPut(txn, *info)
}

// blockAccount resolves the account a block belongs to, via its own
// Account field (Open/State) or by walking to the chain's opening block.
func (l *Ledger) blockAccount(txn *Txn, b *Block) crypto.Hash {
	if b.Type == BlockTypeOpen || b.Type == BlockTypeState {
		return b.Account
	}
	return l.chainAccount(txn, b)
}
