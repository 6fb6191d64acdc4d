// Package stealth derives one-time stealth addresses on Ed25519, tests
// ownership with a view key and recovers the signing scalar with a spend key.
//
// With spend key (a, A = a·G), view key (v, V) and ephemeral key (r, R):
//
//	shared = X25519(r, V) = X25519(v, R)
//	tweak  = SHA-256(shared) as little-endian integer mod L
//	S      = A + tweak·G
//	s      = a + tweak mod L, so s·G = S
//
// Every function here is pure and safe for concurrent use.
package stealth

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"shadowvest/go-backend/internal/crypto/curveconv"
	"shadowvest/go-backend/internal/crypto/scalar"

	"filippo.io/edwards25519"
)

// Tweak hashes a shared secret to a scalar in [0, L). A zero tweak is valid.
func Tweak(shared [32]byte) *edwards25519.Scalar {
	return scalar.ReduceLE32(sha256.Sum256(shared[:]))
}

// DeriveStealthPub is the sender-side derivation: ECDH(ephPriv, viewPub).
func DeriveStealthPub(spendPub, viewPub, ephPriv []byte) ([32]byte, error) {
	shared, err := curveconv.SharedSecret(ephPriv, viewPub)
	if err != nil {
		return [32]byte{}, fmt.Errorf("shared secret: %w", err)
	}
	return stealthPoint(spendPub, shared)
}

// IsMyStealthAddress recomputes the stealth address from the recipient side,
// ECDH(viewPriv, ephPub), and compares encodings. A mismatch is not an error;
// only malformed keys are.
func IsMyStealthAddress(candidate, ephPub, spendPub, viewPriv []byte) (bool, error) {
	shared, err := curveconv.SharedSecret(viewPriv, ephPub)
	if err != nil {
		return false, fmt.Errorf("shared secret: %w", err)
	}
	expected, err := stealthPoint(spendPub, shared)
	if err != nil {
		return false, err
	}
	return len(candidate) == len(expected) && subtle.ConstantTimeCompare(candidate, expected[:]) == 1, nil
}

// DeriveStealthPrivKey returns a + tweak mod L using ECDH(ephPriv, viewPub).
// The recipient obtains ephPriv from the encrypted payload.
func DeriveStealthPrivKey(spendPriv, viewPub, ephPriv []byte) (*edwards25519.Scalar, error) {
	shared, err := curveconv.SharedSecret(ephPriv, viewPub)
	if err != nil {
		return nil, fmt.Errorf("shared secret: %w", err)
	}
	return stealthScalar(spendPriv, shared)
}

// RecoverStealthPrivKey is DeriveStealthPrivKey from the recipient side,
// ECDH(viewPriv, ephPub). It needs no payload, only the published ephPub.
func RecoverStealthPrivKey(spendPriv, viewPriv, ephPub []byte) (*edwards25519.Scalar, error) {
	shared, err := curveconv.SharedSecret(viewPriv, ephPub)
	if err != nil {
		return nil, fmt.Errorf("shared secret: %w", err)
	}
	return stealthScalar(spendPriv, shared)
}

// PublicFromScalar returns s·G.
func PublicFromScalar(s *edwards25519.Scalar) [32]byte {
	var out [32]byte
	copy(out[:], new(edwards25519.Point).ScalarBaseMult(s).Bytes())
	return out
}

func stealthPoint(spendPub []byte, shared [32]byte) ([32]byte, error) {
	var out [32]byte
	a, err := curveconv.DecodePoint(spendPub)
	if err != nil {
		return out, fmt.Errorf("spend pubkey: %w", err)
	}
	tG := new(edwards25519.Point).ScalarBaseMult(Tweak(shared))
	copy(out[:], new(edwards25519.Point).Add(a, tG).Bytes())
	return out, nil
}

func stealthScalar(spendPriv []byte, shared [32]byte) (*edwards25519.Scalar, error) {
	a, err := scalar.FromSeed(spendPriv)
	if err != nil {
		return nil, fmt.Errorf("spend seed: %w", err)
	}
	return edwards25519.NewScalar().Add(a, Tweak(shared)), nil
}
