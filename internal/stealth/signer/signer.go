// Package signer produces standard Ed25519 signatures from a bare scalar.
//
// A stealth private key is a + tweak mod L. It has no seed, so
// crypto/ed25519.Sign cannot use it. Signatures made here verify with
// crypto/ed25519.Verify against s·G, the stealth address.
package signer

import (
	"crypto"
	"crypto/ed25519"
	"crypto/sha512"
	"errors"
	"io"

	"filippo.io/edwards25519"
)

// SignatureSize matches ed25519.SignatureSize.
const SignatureSize = ed25519.SignatureSize

// prefixTag separates the nonce-prefix derivation from any other use of the
// scalar bytes.
const prefixTag = "shadowvest/scalar-sign/v1"

var (
	ErrNilScalar    = errors.New("signer: nil scalar")
	ErrHashedSigner = errors.New("signer: cannot sign hashed message")
)

// ScalarSigner is an immutable signing key: scalar, public point and nonce
// prefix fixed at construction. The zero value is not usable.
type ScalarSigner struct {
	scalar edwards25519.Scalar
	public [32]byte
	prefix [32]byte
}

// NewScalarSigner precomputes the public point and nonce prefix of s.
func NewScalarSigner(s *edwards25519.Scalar) (ScalarSigner, error) {
	if s == nil {
		return ScalarSigner{}, ErrNilScalar
	}
	var out ScalarSigner
	out.scalar.Set(s)
	copy(out.public[:], new(edwards25519.Point).ScalarBaseMult(s).Bytes())

	h := sha512.New()
	h.Write([]byte(prefixTag))
	h.Write(s.Bytes())
	var digest [64]byte
	h.Sum(digest[:0])
	copy(out.prefix[:], digest[32:])
	return out, nil
}

// PublicKey returns s·G as an Ed25519 public key.
func (k ScalarSigner) PublicKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), k.public[:]...)
}

// Public implements crypto.Signer.
func (k ScalarSigner) Public() crypto.PublicKey { return k.PublicKey() }

// Sign implements crypto.Signer. Ed25519 hashes the message itself, so
// opts.HashFunc() must be zero. rand is ignored; nonces are deterministic.
func (k ScalarSigner) Sign(_ io.Reader, message []byte, opts crypto.SignerOpts) ([]byte, error) {
	if opts != nil && opts.HashFunc() != crypto.Hash(0) {
		return nil, ErrHashedSigner
	}
	return k.sign(message), nil
}

// SignMessage signs message and never fails.
func (k ScalarSigner) SignMessage(message []byte) []byte { return k.sign(message) }

func (k ScalarSigner) sign(message []byte) []byte {
	h := sha512.New()
	var digest [64]byte

	h.Write(k.prefix[:])
	h.Write(message)
	h.Sum(digest[:0])
	r, _ := edwards25519.NewScalar().SetUniformBytes(digest[:])
	R := new(edwards25519.Point).ScalarBaseMult(r).Bytes()

	h.Reset()
	h.Write(R)
	h.Write(k.public[:])
	h.Write(message)
	h.Sum(digest[:0])
	hram, _ := edwards25519.NewScalar().SetUniformBytes(digest[:])

	s := edwards25519.NewScalar().MultiplyAdd(hram, &k.scalar, r)

	sig := make([]byte, SignatureSize)
	copy(sig[:32], R)
	copy(sig[32:], s.Bytes())
	return sig
}

// SignWithScalar is the one-shot form of NewScalarSigner + SignMessage.
func SignWithScalar(s *edwards25519.Scalar, message []byte) ([]byte, error) {
	k, err := NewScalarSigner(s)
	if err != nil {
		return nil, err
	}
	return k.sign(message), nil
}

// Verify checks sig against a 32-byte public key with the standard library.
func Verify(pub, message, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig)
}
