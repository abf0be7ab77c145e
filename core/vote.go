package core

import (
	"encoding/binary"
	"errors"

	"github.com/nanocurrency/nano-node-sub002/crypto"
)

// FinalVoteSequence is the distinguished sequence value (maximum of the u64
// range) marking a final vote: it bypasses cooldown and lets an election
// short-circuit quorum recomputation once any final vote names a winner.
const FinalVoteSequence uint64 = ^uint64(0)

// Vote is a representative's signed ballot for one or more blocks sharing a
// root. Payload is a hash-only ballot (HashOnly==true) or a full-block
// ballot carrying the proposed block itself.
type Vote struct {
	Account   crypto.PublicKey
	Signature crypto.Signature
	Sequence  uint64

	// Payload: exactly one of the following is populated.
	Block     *Block      // full-block payload
	HashOnly  bool        // true when only BlockHash is meaningful
	BlockHash crypto.Hash
}

// IsFinal reports whether this vote carries final-vote semantics.
func (v *Vote) IsFinal() bool {
	return v.Sequence == FinalVoteSequence
}

// Hash returns the hash this vote is actually voting for, regardless of
// payload representation.
func (v *Vote) Hash() crypto.Hash {
	if v.Block != nil {
		return v.Block.Hash()
	}
	return v.BlockHash
}

// signingBody is the canonical (sequence, payload) encoding that the
// signature covers: a vote is valid iff it verifies under Account over
// this encoding.
func (v *Vote) signingBody() []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v.Sequence)
	h := v.Hash()
	out := make([]byte, 0, 8+HashSize)
	out = append(out, buf[:]...)
	out = append(out, h[:]...)
	return out
}

const HashSize = crypto.HashSize

// Sign signs the vote with priv and sets Account/Signature.
func (v *Vote) Sign(priv crypto.PrivateKey) {
	v.Account = priv.Public()
	v.Signature = crypto.Sign(priv, v.signingBody())
}

// Verify checks the vote's signature under its own Account field.
func (v *Vote) Verify() error {
	if len(v.Account) != crypto.PublicKeySize {
		return errors.New("vote: missing account")
	}
	return crypto.Verify(v.Account, v.signingBody(), v.Signature)
}

// Supersedes reports whether this vote strictly supersedes a previously
// stored vote from the same account: a vote (account, sequence) supersedes
// any prior vote from that account with a lower sequence. Final votes
// always supersede (the final sequence is the maximum possible value, so
// this falls out of the comparison too, but is spelled out for clarity).
func (v *Vote) Supersedes(stored *Vote) bool {
	if stored == nil {
		return true
	}
	if v.IsFinal() {
		return true
	}
	return v.Sequence > stored.Sequence
}
