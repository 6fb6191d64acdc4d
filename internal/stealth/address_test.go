package stealth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"testing"

	svcrypto "shadowvest/go-backend/internal/crypto"
	"shadowvest/go-backend/internal/crypto/keys"
	"shadowvest/go-backend/internal/crypto/scalar"

	"filippo.io/edwards25519"
)

func newMeta(t *testing.T) keys.MetaKeyPair {
	t.Helper()
	kp, err := keys.GenerateMetaKeyPair()
	if err != nil {
		t.Fatalf("meta keypair: %v", err)
	}
	return kp
}

func newEph(t *testing.T) keys.EphemeralKeyPair {
	t.Helper()
	kp, err := keys.GenerateEphemeralKeyPair()
	if err != nil {
		t.Fatalf("ephemeral keypair: %v", err)
	}
	return kp
}

func TestStealthAddressRoundTrip(t *testing.T) {
	for i := 0; i < 64; i++ {
		meta := newMeta(t)
		eph := newEph(t)
		addr, err := DeriveStealthPub(meta.SpendPub[:], meta.ViewPub[:], eph.Priv[:])
		if err != nil {
			t.Fatalf("derive: %v", err)
		}
		ok, err := IsMyStealthAddress(addr[:], eph.Pub[:], meta.SpendPub[:], meta.ViewPriv[:])
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if !ok {
			t.Fatalf("iteration %d: recipient does not recognize its own address", i)
		}
	}
}

func TestStealthAddressForeignViewKey(t *testing.T) {
	for i := 0; i < 256; i++ {
		meta := newMeta(t)
		other := newMeta(t)
		eph := newEph(t)
		addr, err := DeriveStealthPub(meta.SpendPub[:], meta.ViewPub[:], eph.Priv[:])
		if err != nil {
			t.Fatalf("derive: %v", err)
		}
		ok, err := IsMyStealthAddress(addr[:], eph.Pub[:], meta.SpendPub[:], other.ViewPriv[:])
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if ok {
			t.Fatalf("iteration %d: foreign view key matched", i)
		}
	}
}

func TestStealthScalarCorrespondence(t *testing.T) {
	for i := 0; i < 64; i++ {
		meta := newMeta(t)
		eph := newEph(t)
		addr, err := DeriveStealthPub(meta.SpendPub[:], meta.ViewPub[:], eph.Priv[:])
		if err != nil {
			t.Fatalf("derive pub: %v", err)
		}
		s, err := DeriveStealthPrivKey(meta.SpendPriv[:], meta.ViewPub[:], eph.Priv[:])
		if err != nil {
			t.Fatalf("derive priv: %v", err)
		}
		if PublicFromScalar(s) != addr {
			t.Fatalf("iteration %d: s*G does not equal the stealth address", i)
		}
		recovered, err := RecoverStealthPrivKey(meta.SpendPriv[:], meta.ViewPriv[:], eph.Pub[:])
		if err != nil {
			t.Fatalf("recover: %v", err)
		}
		if recovered.Equal(s) != 1 {
			t.Fatalf("iteration %d: sender and recipient scalars differ", i)
		}
	}
}

func TestTweakRange(t *testing.T) {
	l := scalar.Order()
	var shared [32]byte
	for i := 0; i < 10000; i++ {
		if _, err := rand.Read(shared[:]); err != nil {
			t.Fatalf("rand: %v", err)
		}
		v := scalar.ToInt(Tweak(shared))
		if v.Sign() < 0 || v.Cmp(l) >= 0 {
			t.Fatalf("tweak %s out of range", v)
		}
	}
}

func TestTweakMatchesReference(t *testing.T) {
	var shared [32]byte
	for i := 0; i < 100; i++ {
		if _, err := rand.Read(shared[:]); err != nil {
			t.Fatalf("rand: %v", err)
		}
		h := sha256.Sum256(shared[:])
		want := scalar.Mod(scalar.BytesToIntLE(h[:]))
		if got := scalar.ToInt(Tweak(shared)); got.Cmp(want) != 0 {
			t.Fatalf("tweak %s, want %s", got, want)
		}
	}
}

func TestZeroTweakIsNotSpecialCased(t *testing.T) {
	meta := newMeta(t)
	a, err := scalar.FromSeed(meta.SpendPriv[:])
	if err != nil {
		t.Fatalf("spend scalar: %v", err)
	}
	s := edwards25519.NewScalar().Add(a, edwards25519.NewScalar())
	if PublicFromScalar(s) != meta.SpendPub {
		t.Fatal("a + 0 must map back to the spend public key")
	}
}

func TestConcreteScenarioFlippedEphemeralKey(t *testing.T) {
	meta := newMeta(t)
	eph := newEph(t)
	s1, err := DeriveStealthPub(meta.SpendPub[:], meta.ViewPub[:], eph.Priv[:])
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	ok, err := IsMyStealthAddress(s1[:], eph.Pub[:], meta.SpendPub[:], meta.ViewPriv[:])
	if err != nil || !ok {
		t.Fatalf("expected ownership, ok=%v err=%v", ok, err)
	}

	flipped := eph.Pub
	flipped[0] ^= 0x01
	ok, err = IsMyStealthAddress(s1[:], flipped[:], meta.SpendPub[:], meta.ViewPriv[:])
	if err != nil {
		// The flipped encoding may not decode to a curve point at all; that
		// is also a rejection.
		if !errors.Is(err, svcrypto.ErrInvalidEncoding) {
			t.Fatalf("unexpected error class: %v", err)
		}
		return
	}
	if ok {
		t.Fatal("flipped ephemeral key must not match")
	}
}

func TestStealthAddressIsValidEd25519Key(t *testing.T) {
	meta := newMeta(t)
	eph := newEph(t)
	addr, err := DeriveStealthPub(meta.SpendPub[:], meta.ViewPub[:], eph.Priv[:])
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	// ed25519.Verify rejects keys that do not decode; a garbage signature
	// only proves the key parsed.
	if ed25519.Verify(ed25519.PublicKey(addr[:]), []byte("m"), make([]byte, ed25519.SignatureSize)) {
		t.Fatal("zero signature must not verify")
	}
	if _, err := new(edwards25519.Point).SetBytes(addr[:]); err != nil {
		t.Fatalf("stealth address is not a point: %v", err)
	}
}

func TestMalformedInputs(t *testing.T) {
	meta := newMeta(t)
	eph := newEph(t)
	if _, err := DeriveStealthPub(meta.SpendPub[:31], meta.ViewPub[:], eph.Priv[:]); !errors.Is(err, svcrypto.ErrInvalidEncoding) {
		t.Fatalf("short spend pub: %v", err)
	}
	if _, err := DeriveStealthPub(meta.SpendPub[:], meta.ViewPub[:], eph.Priv[:16]); !errors.Is(err, svcrypto.ErrUnsupportedKeyFormat) {
		t.Fatalf("short ephemeral seed: %v", err)
	}
	var identity [32]byte
	identity[0] = 1
	if _, err := IsMyStealthAddress(make([]byte, 32), identity[:], meta.SpendPub[:], meta.ViewPriv[:]); !errors.Is(err, svcrypto.ErrInvalidEncoding) {
		t.Fatalf("identity ephemeral key: %v", err)
	}
	if _, err := DeriveStealthPrivKey(meta.SpendPriv[:5], meta.ViewPub[:], eph.Priv[:]); !errors.Is(err, svcrypto.ErrUnsupportedKeyFormat) {
		t.Fatalf("short spend seed: %v", err)
	}
}
