package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// PrivateKey wraps an ed25519 private key.
type PrivateKey []byte

// PublicKey wraps an ed25519 public key — an account's identity.
type PublicKey []byte

// PublicKeySize and PrivateKeySize mirror the ed25519 constants, named here
// so callers don't need to import crypto/ed25519 directly.
const (
	PublicKeySize  = ed25519.PublicKeySize
	PrivateKeySize = ed25519.PrivateKeySize
)

// GenerateKeyPair generates a new ed25519 account key pair.
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return PrivateKey(priv), PublicKey(pub), nil
}

// Account returns the public key reinterpreted as a Hash: in the block
// lattice an account's identity *is* its public key, used directly as the
// root of its opening block.
func (pub PublicKey) Account() Hash {
	var h Hash
	copy(h[:], pub)
	return h
}

// Hex returns the hex-encoded public key.
func (pub PublicKey) Hex() string {
	return hex.EncodeToString(pub)
}

// Hex returns the hex-encoded private key.
func (priv PrivateKey) Hex() string {
	return hex.EncodeToString(priv)
}

// Public derives the ed25519 public key from the private key.
func (priv PrivateKey) Public() PublicKey {
	return PublicKey(ed25519.PrivateKey(priv).Public().(ed25519.PublicKey))
}

// PubKeyFromHex decodes a hex-encoded public key.
func PubKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid pubkey hex: %w", err)
	}
	if len(b) != PublicKeySize {
		return nil, fmt.Errorf("pubkey must be %d bytes, got %d", PublicKeySize, len(b))
	}
	return PublicKey(b), nil
}

// PrivKeyFromHex decodes a hex-encoded private key.
func PrivKeyFromHex(s string) (PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid privkey hex: %w", err)
	}
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("privkey must be %d bytes, got %d", PrivateKeySize, len(b))
	}
	return PrivateKey(b), nil
}

// AccountFromHash reinterprets a Hash as a public key account identity.
func AccountFromHash(h Hash) PublicKey {
	pub := make(PublicKey, HashSize)
	copy(pub, h[:])
	return pub
}
