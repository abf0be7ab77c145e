package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

// SignatureSize is the length in bytes of an ed25519 signature.
const SignatureSize = ed25519.SignatureSize

// Signature is a 512-bit ed25519 signature.
type Signature [SignatureSize]byte

// IsZero reports whether sig is unset.
func (sig Signature) IsZero() bool {
	return sig == Signature{}
}

func (sig Signature) String() string {
	return hex.EncodeToString(sig[:])
}

// MarshalJSON renders sig as a hex string.
func (sig Signature) MarshalJSON() ([]byte, error) {
	return []byte(`"` + sig.String() + `"`), nil
}

// UnmarshalJSON parses a hex string produced by MarshalJSON.
func (sig *Signature) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("crypto: invalid signature json %q", data)
	}
	raw, err := hex.DecodeString(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	if len(raw) != SignatureSize {
		return fmt.Errorf("crypto: signature must be %d bytes, got %d", SignatureSize, len(raw))
	}
	copy(sig[:], raw)
	return nil
}

// Sign signs data with priv and returns the raw signature.
func Sign(priv PrivateKey, data []byte) Signature {
	raw := ed25519.Sign(ed25519.PrivateKey(priv), data)
	var sig Signature
	copy(sig[:], raw)
	return sig
}

// Verify checks sig against data using the public key pub. This node never
// manages private keys on behalf of other accounts, only verifies
// signatures that arrive on the wire or from local wallets.
func Verify(pub PublicKey, data []byte, sig Signature) error {
	if len(pub) != PublicKeySize {
		return fmt.Errorf("invalid public key length %d", len(pub))
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), data, sig[:]) {
		return errors.New("signature verification failed")
	}
	return nil
}
