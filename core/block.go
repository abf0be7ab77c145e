// Package core implements the block-lattice data model: blocks, votes,
// account records, and the Ledger state machine that validates and stores
// them. Each account owns its own chain of blocks rather than all accounts
// sharing one linear chain.
package core

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nanocurrency/nano-node-sub002/crypto"
)

// BlockType tags which of the five block variants a Block is, used for a
// tagged-variant dispatch rather than a virtual visitor.
type BlockType byte

const (
	BlockTypeInvalid BlockType = iota
	BlockTypeSend
	BlockTypeReceive
	BlockTypeOpen
	BlockTypeChange
	BlockTypeState
)

func (t BlockType) String() string {
	switch t {
	case BlockTypeSend:
		return "send"
	case BlockTypeReceive:
		return "receive"
	case BlockTypeOpen:
		return "open"
	case BlockTypeChange:
		return "change"
	case BlockTypeState:
		return "state"
	default:
		return "invalid"
	}
}

// Block is the tagged-variant unit of the lattice. Not every field is
// meaningful for every Type — see the per-variant comments below. Fields
// are exported directly (no variant-specific sub-structs) so the signing
// body can lay them out positionally per type, fixed-size per variant.
type Block struct {
	Type     BlockType
	Previous crypto.Hash // zero only for Open (and legacy-equivalent State opens)

	// Send
	Destination crypto.Hash
	Balance     uint64

	// Receive / Open
	Source crypto.Hash

	// Open / Change / State
	Representative crypto.Hash

	// Open / State
	Account crypto.Hash

	// State
	Link crypto.Hash

	Signature crypto.Signature
	Work      uint64

	hash     crypto.Hash
	hashSet  bool
}

// Root returns the election/fork identifier for this block: Previous if
// non-zero, otherwise Account (the opening block of a chain is identified
// by the account itself, since it has no previous block).
func (b *Block) Root() crypto.Hash {
	if !b.Previous.IsZero() {
		return b.Previous
	}
	return b.Account
}

// signingBody returns the canonical, type-specific byte layout that is both
// hashed and signed. Every variant is length-prefix free and fixed size per
// type.
func (b *Block) signingBody() []byte {
	var buf []byte
	appendU64 := func(v uint64) {
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}
	buf = append(buf, byte(b.Type))
	switch b.Type {
	case BlockTypeSend:
		buf = append(buf, b.Previous[:]...)
		buf = append(buf, b.Destination[:]...)
		appendU64(b.Balance)
	case BlockTypeReceive:
		buf = append(buf, b.Previous[:]...)
		buf = append(buf, b.Source[:]...)
	case BlockTypeOpen:
		buf = append(buf, b.Source[:]...)
		buf = append(buf, b.Representative[:]...)
		buf = append(buf, b.Account[:]...)
	case BlockTypeChange:
		buf = append(buf, b.Previous[:]...)
		buf = append(buf, b.Representative[:]...)
	case BlockTypeState:
		buf = append(buf, b.Account[:]...)
		buf = append(buf, b.Previous[:]...)
		buf = append(buf, b.Representative[:]...)
		appendU64(b.Balance)
		buf = append(buf, b.Link[:]...)
	}
	return buf
}

// Hash returns the Blake2b hash of the block's signing body, caching the
// result since blocks are immutable once hashed.
func (b *Block) Hash() crypto.Hash {
	if b.hashSet {
		return b.hash
	}
	h := crypto.BlakeHash(b.signingBody())
	b.hash = h
	b.hashSet = true
	return h
}

// Sign signs the block's hash with priv and sets the Signature field.
func (b *Block) Sign(priv crypto.PrivateKey) {
	b.Signature = crypto.Sign(priv, b.Hash().Bytes())
}

// VerifySignature checks the block's signature under pub. The caller
// supplies pub because, for non-Open/State blocks, the signing account is
// not itself a field of the block — it is the account whose chain this
// block extends, known only to the ledger.
func (b *Block) VerifySignature(pub crypto.PublicKey) error {
	if b.Signature.IsZero() {
		return errors.New("block: missing signature")
	}
	return crypto.Verify(pub, b.Hash().Bytes(), b.Signature)
}

// SignerAccount returns the account whose signature should cover this
// block: for Open/State blocks this is the explicit Account field. For
// Send/Receive/Change it returns the zero hash, since those variants carry
// no account field and their signer is the owner of the chain they extend,
// which only the ledger can resolve.
func (b *Block) SignerAccount() crypto.Hash {
	switch b.Type {
	case BlockTypeOpen, BlockTypeState:
		return b.Account
	default:
		return crypto.Hash{} // resolved by the ledger via the chain's account
	}
}

// String renders a compact human-readable summary, used in log lines.
func (b *Block) String() string {
	return fmt.Sprintf("%s(root=%s hash=%s)", b.Type, b.Root(), b.Hash())
}
