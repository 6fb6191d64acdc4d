package curveconv

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	svcrypto "shadowvest/go-backend/internal/crypto"

	"golang.org/x/crypto/curve25519"
)

func newSeed(t *testing.T) ([]byte, []byte) {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		t.Fatalf("rand: %v", err)
	}
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	return seed, pub
}

func TestSharedSecretIsSymmetric(t *testing.T) {
	for i := 0; i < 50; i++ {
		aSeed, aPub := newSeed(t)
		bSeed, bPub := newSeed(t)
		ab, err := SharedSecret(aSeed, bPub)
		if err != nil {
			t.Fatalf("SharedSecret(a, B): %v", err)
		}
		ba, err := SharedSecret(bSeed, aPub)
		if err != nil {
			t.Fatalf("SharedSecret(b, A): %v", err)
		}
		if ab != ba {
			t.Fatalf("ECDH asymmetry: %x != %x", ab, ba)
		}
	}
}

func TestMontgomeryMatchesX25519BasePoint(t *testing.T) {
	seed, pub := newSeed(t)
	x, err := SeedToX25519(seed)
	if err != nil {
		t.Fatalf("SeedToX25519: %v", err)
	}
	want, err := curve25519.X25519(x[:], curve25519.Basepoint)
	if err != nil {
		t.Fatalf("X25519: %v", err)
	}
	got, err := EdwardsToMontgomery(pub)
	if err != nil {
		t.Fatalf("EdwardsToMontgomery: %v", err)
	}
	if string(got[:]) != string(want) {
		t.Fatalf("u-coordinate mismatch: %x != %x", got, want)
	}
}

func TestDecodePointRejectsMalformed(t *testing.T) {
	cases := map[string][]byte{
		"short": {1, 2, 3},
		// y = p (2^255-19) encoded without reduction: non-canonical.
		"noncanonical": {
			0xed, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
			0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
			0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
			0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f,
		},
	}
	for name, in := range cases {
		if _, err := DecodePoint(in); !errors.Is(err, svcrypto.ErrInvalidEncoding) {
			t.Fatalf("%s: expected ErrInvalidEncoding, got %v", name, err)
		}
	}
}

func TestSharedSecretRejectsIdentity(t *testing.T) {
	seed, _ := newSeed(t)
	identity := make([]byte, 32)
	identity[0] = 1
	if _, err := SharedSecret(seed, identity); !errors.Is(err, svcrypto.ErrInvalidEncoding) {
		t.Fatalf("expected ErrInvalidEncoding for identity point, got %v", err)
	}
}

func TestSeedToX25519RejectsWrongLength(t *testing.T) {
	if _, err := SeedToX25519(make([]byte, 31)); !errors.Is(err, svcrypto.ErrUnsupportedKeyFormat) {
		t.Fatalf("expected ErrUnsupportedKeyFormat, got %v", err)
	}
}
