// Package curveconv maps Ed25519 keys to their X25519 counterparts and
// performs the Diffie-Hellman exchange between them.
package curveconv

import (
	"bytes"
	"errors"
	"fmt"

	svcrypto "shadowvest/go-backend/internal/crypto"
	"shadowvest/go-backend/internal/crypto/scalar"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
)

// SeedToX25519 converts an Ed25519 private seed to the X25519 scalar with the
// same underlying value: SHA-512(seed)[0:32], clamped.
func SeedToX25519(seed []byte) ([32]byte, error) {
	if len(seed) != scalar.Size {
		return [32]byte{}, fmt.Errorf("%w: seed must be %d bytes", svcrypto.ErrUnsupportedKeyFormat, scalar.Size)
	}
	return scalar.ExpandSeed(seed), nil
}

// DecodePoint parses a canonical Edwards point encoding.
func DecodePoint(pub []byte) (*edwards25519.Point, error) {
	if len(pub) != 32 {
		return nil, fmt.Errorf("%w: point must be 32 bytes, got %d", svcrypto.ErrInvalidEncoding, len(pub))
	}
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", svcrypto.ErrInvalidEncoding, err)
	}
	// SetBytes tolerates non-canonical y coordinates; counterpart
	// implementations do not, so neither do we.
	if !bytes.Equal(p.Bytes(), pub) {
		return nil, fmt.Errorf("%w: non-canonical point", svcrypto.ErrInvalidEncoding)
	}
	return p, nil
}

// EdwardsToMontgomery returns the X25519 u-coordinate of an Ed25519 public key.
func EdwardsToMontgomery(pub []byte) ([32]byte, error) {
	var u [32]byte
	p, err := DecodePoint(pub)
	if err != nil {
		return u, err
	}
	copy(u[:], p.BytesMontgomery())
	return u, nil
}

// SharedSecret computes X25519(seedToX25519(privSeed), toMontgomery(edPub)).
// ephPriv·viewPub and viewPriv·ephPub yield the same value.
func SharedSecret(privSeed, edPub []byte) ([32]byte, error) {
	var shared [32]byte
	x, err := SeedToX25519(privSeed)
	if err != nil {
		return shared, err
	}
	u, err := EdwardsToMontgomery(edPub)
	if err != nil {
		return shared, err
	}
	out, err := curve25519.X25519(x[:], u[:])
	if err != nil {
		// Low-order input points produce an all-zero output.
		return shared, errors.Join(svcrypto.ErrInvalidEncoding, err)
	}
	copy(shared[:], out)
	return shared, nil
}
