// Package crypto provides the hashing, signing and proof-of-work primitives
// used throughout the ledger: Blake2b-256 block/vote hashing, ed25519
// account signatures, and a threshold proof-of-work check.
package crypto

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the length in bytes of a block or vote hash.
const HashSize = 32

// Hash is a 256-bit Blake2b digest, the unit of block and vote identity.
type Hash [HashSize]byte

// IsZero reports whether h is the all-zero hash (used as the "no previous
// block" sentinel for an account's opening block).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns h as a byte slice, for signing/verification calls.
func (h Hash) Bytes() []byte {
	return h[:]
}

// MarshalJSON renders h as a hex string, so persisted blocks read like the
// node's own RPC/log output instead of a raw byte array.
func (h Hash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.String() + `"`), nil
}

// UnmarshalJSON parses a hex string produced by MarshalJSON.
func (h *Hash) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("crypto: invalid hash json %q", data)
	}
	decoded, err := HashFromHex(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// HashFromHex decodes a hex-encoded hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("crypto: hash must be %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// BlakeHash returns the Blake2b-256 digest of data, the hash function used
// throughout the ledger for block and vote identity.
func BlakeHash(data ...[]byte) Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors for an invalid key length, and we never
		// pass one, so this is unreachable.
		panic(err)
	}
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
