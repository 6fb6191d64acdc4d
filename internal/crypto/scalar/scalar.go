// Package scalar implements arithmetic modulo the Ed25519 group order L.
//
// Two representations are used side by side: *big.Int for general integer
// reduction (including negative inputs) and *edwards25519.Scalar for values
// that feed curve multiplication. Both agree on every value in [0, L).
package scalar

import (
	"crypto/sha512"
	"errors"
	"fmt"
	"math/big"

	svcrypto "shadowvest/go-backend/internal/crypto"

	"filippo.io/edwards25519"
)

// Size is the byte length of an encoded scalar.
const Size = 32

var ErrOutOfRange = errors.New("integer does not fit in 32 bytes")

// order is 2^252 + 27742317777372353535851937790883648493.
var order, _ = new(big.Int).SetString("7237005577332262213973186563042994240857116359379907606001950938285454250989", 10)

// Order returns a copy of the group order L.
func Order() *big.Int {
	return new(big.Int).Set(order)
}

// Mod reduces x into [0, L). Negative inputs yield the non-negative residue,
// matching ((x % L) + L) % L.
func Mod(x *big.Int) *big.Int {
	r := new(big.Int).Rem(x, order)
	r.Add(r, order)
	return r.Rem(r, order)
}

// BytesToIntLE interprets b as an unsigned little-endian integer.
func BytesToIntLE(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	return new(big.Int).SetBytes(be)
}

// IntToBytesLE encodes a non-negative x as 32 little-endian bytes.
func IntToBytesLE(x *big.Int) ([Size]byte, error) {
	var out [Size]byte
	if x.Sign() < 0 || x.BitLen() > Size*8 {
		return out, ErrOutOfRange
	}
	be := x.Bytes()
	for i := range be {
		out[i] = be[len(be)-1-i]
	}
	return out, nil
}

// ReduceLE32 reduces a 32-byte little-endian integer mod L.
func ReduceLE32(b [Size]byte) *edwards25519.Scalar {
	var wide [64]byte
	copy(wide[:], b[:])
	s, err := edwards25519.NewScalar().SetUniformBytes(wide[:])
	if err != nil {
		// SetUniformBytes only fails on a wrong length.
		panic("scalar: " + err.Error())
	}
	return s
}

// ReduceWide reduces a 64-byte little-endian integer mod L (SHA-512 digests).
func ReduceWide(digest []byte) (*edwards25519.Scalar, error) {
	s, err := edwards25519.NewScalar().SetUniformBytes(digest)
	if err != nil {
		return nil, fmt.Errorf("reduce wide: %w", err)
	}
	return s, nil
}

// Clamp applies the Ed25519/X25519 bit mask to a 32-byte scalar.
func Clamp(b [Size]byte) [Size]byte {
	b[0] &= 248
	b[31] &= 127
	b[31] |= 64
	return b
}

// ExpandSeed returns the clamped lower half of SHA-512(seed).
func ExpandSeed(seed []byte) [Size]byte {
	digest := sha512.Sum512(seed)
	var h [Size]byte
	copy(h[:], digest[:Size])
	return Clamp(h)
}

// FromSeed derives the signing scalar of an Ed25519 seed: SHA-512, clamp,
// reduce mod L.
func FromSeed(seed []byte) (*edwards25519.Scalar, error) {
	if len(seed) != Size {
		return nil, fmt.Errorf("%w: seed must be %d bytes, got %d", svcrypto.ErrUnsupportedKeyFormat, Size, len(seed))
	}
	h := ExpandSeed(seed)
	return edwards25519.NewScalar().SetBytesWithClamping(h[:])
}

// FromCanonical decodes a 32-byte scalar that is already reduced mod L.
func FromCanonical(b []byte) (*edwards25519.Scalar, error) {
	s, err := edwards25519.NewScalar().SetCanonicalBytes(b)
	if err != nil {
		return nil, fmt.Errorf("scalar is not canonical: %w", err)
	}
	return s, nil
}

// ToInt converts an edwards25519 scalar to its integer value.
func ToInt(s *edwards25519.Scalar) *big.Int {
	return BytesToIntLE(s.Bytes())
}
