package crypto

import (
	"encoding/binary"
	"math/rand"
)

// WorkThreshold is the default minimum value a work hash must reach (as a
// big-endian uint64 read from the end of the Blake2b digest of
// (work || root)) to be considered valid. Later node revisions scale
// difficulty per block type; this one validates every block against a
// single configured threshold, a deliberate simplification.
const WorkThreshold uint64 = 0xffffffc000000000

// ValidateWork reports whether work is a valid proof-of-work nonce for root
// at the given threshold.
func ValidateWork(root Hash, work uint64, threshold uint64) bool {
	return workValue(root, work) >= threshold
}

// GenerateWork searches for a work value satisfying threshold for root. It
// is a brute-force nonce search, used only by tests and CLI tooling (never
// on the hot path of block validation). Returns the work value found.
func GenerateWork(root Hash, threshold uint64) uint64 {
	// Start from a random offset so concurrent generators covering the same
	// root don't duplicate the same prefix of the search space.
	start := rand.Uint64()
	for work := start; ; work++ {
		if workValue(root, work) >= threshold {
			return work
		}
	}
}

// workValue hashes (work || root) with Blake2b and interprets the last 8
// bytes of the digest as a big-endian integer, matching the original node's
// "more leading one-bits is harder" proof-of-work construction.
func workValue(root Hash, work uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], work)
	digest := BlakeHash(buf[:], root[:])
	return binary.BigEndian.Uint64(digest[len(digest)-8:])
}
