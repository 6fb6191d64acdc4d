package keys

import (
	"bytes"
	"crypto/ed25519"
	"strings"
	"testing"
)

func TestGenerateMetaKeyPairMatchesEd25519(t *testing.T) {
	kp, err := GenerateMetaKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if kp.SpendPriv == kp.ViewPriv {
		t.Fatal("spend and view seeds must be independent")
	}
	spend := ed25519.NewKeyFromSeed(kp.SpendPriv[:]).Public().(ed25519.PublicKey)
	view := ed25519.NewKeyFromSeed(kp.ViewPriv[:]).Public().(ed25519.PublicKey)
	if !bytes.Equal(spend, kp.SpendPub[:]) {
		t.Fatalf("spend pub mismatch")
	}
	if !bytes.Equal(view, kp.ViewPub[:]) {
		t.Fatalf("view pub mismatch")
	}
}

func TestGenerateFromDeterministicReader(t *testing.T) {
	r := bytes.NewReader(bytes.Repeat([]byte{7}, 64))
	kp, err := generateMetaKeyPair(r)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	again, err := MetaKeyPairFromSeeds(kp.SpendPriv[:], kp.ViewPriv[:])
	if err != nil {
		t.Fatalf("from seeds: %v", err)
	}
	if again != kp {
		t.Fatal("rebuilding from seeds must reproduce the pair")
	}

	if _, err := generateEphemeralKeyPair(bytes.NewReader([]byte{1, 2})); err == nil {
		t.Fatal("expected short reader to fail")
	}
}

func TestEphemeralFromSeedRoundTrip(t *testing.T) {
	eph, err := GenerateEphemeralKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	again, err := EphemeralFromSeed(eph.Priv[:])
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}
	if again != eph {
		t.Fatal("ephemeral rebuild mismatch")
	}
}

func TestMetaAddressParseRoundTrip(t *testing.T) {
	kp, err := GenerateMetaKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	spend, view, err := kp.MetaAddress().Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if spend != kp.SpendPub || view != kp.ViewPub {
		t.Fatal("meta address round trip mismatch")
	}
	if _, _, err := (MetaAddress{SpendPub: "bad!", ViewPub: "x"}).Parse(); err == nil {
		t.Fatal("expected parse failure")
	}
}

func TestMetaAddressIDStable(t *testing.T) {
	kp, err := GenerateMetaKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	id := kp.ID()
	if !strings.HasPrefix(id, "sv1") {
		t.Fatalf("unexpected id prefix: %s", id)
	}
	if id != MetaAddressID(kp.SpendPub[:], kp.ViewPub[:]) {
		t.Fatal("id must be deterministic")
	}
	if id == MetaAddressID(kp.ViewPub[:], kp.SpendPub[:]) {
		t.Fatal("id must depend on key order")
	}
}

func TestMetaKeyPairFromMnemonic(t *testing.T) {
	mnemonic, err := NewMnemonic()
	if err != nil {
		t.Fatalf("mnemonic: %v", err)
	}
	if n := len(strings.Fields(mnemonic)); n != 24 {
		t.Fatalf("expected 24 words, got %d", n)
	}
	a, err := MetaKeyPairFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := MetaKeyPairFromMnemonic("  "+mnemonic+"\n", "")
	if err != nil {
		t.Fatalf("derive again: %v", err)
	}
	if a != b {
		t.Fatal("mnemonic derivation must be deterministic")
	}
	if a.SpendPriv == a.ViewPriv {
		t.Fatal("spend and view seeds must differ")
	}
	c, err := MetaKeyPairFromMnemonic(mnemonic, "other")
	if err != nil {
		t.Fatalf("derive with passphrase: %v", err)
	}
	if c == a {
		t.Fatal("passphrase must change the derived keys")
	}
	if _, err := MetaKeyPairFromMnemonic("not a mnemonic", ""); err != ErrInvalidMnemonic {
		t.Fatalf("expected ErrInvalidMnemonic, got %v", err)
	}
}
