// Package keys generates stealth meta keypairs (spend + view) and per-payment
// ephemeral keypairs.
package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"shadowvest/go-backend/internal/crypto/keyenc"
	"shadowvest/go-backend/internal/crypto/scalar"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58/base58"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
)

const (
	hkdfInfoSpend = "shadowvest/stealth/spend/v1"
	hkdfInfoView  = "shadowvest/stealth/view/v1"

	metaAddressIDPrefix = "sv1"
)

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// MetaKeyPair is a recipient's long-lived spend and view keys. The private
// halves are raw 32-byte seeds, not derived scalars.
type MetaKeyPair struct {
	SpendPriv [32]byte
	SpendPub  [32]byte
	ViewPriv  [32]byte
	ViewPub   [32]byte
}

// EphemeralKeyPair is generated by a sender for a single payment.
type EphemeralKeyPair struct {
	Priv [32]byte
	Pub  [32]byte
}

// MetaAddress is the public half of a MetaKeyPair in base58 form.
type MetaAddress struct {
	SpendPub string `json:"spend_pubkey"`
	ViewPub  string `json:"view_pubkey"`
}

// GenerateMetaKeyPair draws independent spend and view seeds from crypto/rand.
func GenerateMetaKeyPair() (MetaKeyPair, error) {
	return generateMetaKeyPair(rand.Reader)
}

// GenerateEphemeralKeyPair draws a fresh seed from crypto/rand.
func GenerateEphemeralKeyPair() (EphemeralKeyPair, error) {
	return generateEphemeralKeyPair(rand.Reader)
}

func generateMetaKeyPair(r io.Reader) (MetaKeyPair, error) {
	var kp MetaKeyPair
	if _, err := io.ReadFull(r, kp.SpendPriv[:]); err != nil {
		return MetaKeyPair{}, fmt.Errorf("read spend seed: %w", err)
	}
	if _, err := io.ReadFull(r, kp.ViewPriv[:]); err != nil {
		return MetaKeyPair{}, fmt.Errorf("read view seed: %w", err)
	}
	return completeMeta(kp)
}

func generateEphemeralKeyPair(r io.Reader) (EphemeralKeyPair, error) {
	var kp EphemeralKeyPair
	if _, err := io.ReadFull(r, kp.Priv[:]); err != nil {
		return EphemeralKeyPair{}, fmt.Errorf("read ephemeral seed: %w", err)
	}
	pub, err := PublicFromSeed(kp.Priv[:])
	if err != nil {
		return EphemeralKeyPair{}, err
	}
	kp.Pub = pub
	return kp, nil
}

// MetaKeyPairFromSeeds rebuilds a MetaKeyPair from stored private seeds.
func MetaKeyPairFromSeeds(spendPriv, viewPriv []byte) (MetaKeyPair, error) {
	var kp MetaKeyPair
	if len(spendPriv) != 32 || len(viewPriv) != 32 {
		return MetaKeyPair{}, fmt.Errorf("seeds must be 32 bytes")
	}
	copy(kp.SpendPriv[:], spendPriv)
	copy(kp.ViewPriv[:], viewPriv)
	return completeMeta(kp)
}

// EphemeralFromSeed rebuilds an EphemeralKeyPair, e.g. after payload decryption.
func EphemeralFromSeed(priv []byte) (EphemeralKeyPair, error) {
	var kp EphemeralKeyPair
	if len(priv) != 32 {
		return EphemeralKeyPair{}, fmt.Errorf("ephemeral seed must be 32 bytes")
	}
	copy(kp.Priv[:], priv)
	pub, err := PublicFromSeed(priv)
	if err != nil {
		return EphemeralKeyPair{}, err
	}
	kp.Pub = pub
	return kp, nil
}

func completeMeta(kp MetaKeyPair) (MetaKeyPair, error) {
	spendPub, err := PublicFromSeed(kp.SpendPriv[:])
	if err != nil {
		return MetaKeyPair{}, err
	}
	viewPub, err := PublicFromSeed(kp.ViewPriv[:])
	if err != nil {
		return MetaKeyPair{}, err
	}
	kp.SpendPub = spendPub
	kp.ViewPub = viewPub
	return kp, nil
}

// PublicFromSeed computes scalar·G for the standard seed expansion.
func PublicFromSeed(seed []byte) ([32]byte, error) {
	var out [32]byte
	s, err := scalar.FromSeed(seed)
	if err != nil {
		return out, err
	}
	copy(out[:], new(edwards25519.Point).ScalarBaseMult(s).Bytes())
	return out, nil
}

// MetaAddress returns the base58-encoded public points.
func (kp MetaKeyPair) MetaAddress() MetaAddress {
	return MetaAddress{
		SpendPub: base58.Encode(kp.SpendPub[:]),
		ViewPub:  base58.Encode(kp.ViewPub[:]),
	}
}

// ID returns the registry identifier of the meta-address.
func (kp MetaKeyPair) ID() string {
	return MetaAddressID(kp.SpendPub[:], kp.ViewPub[:])
}

// Parse decodes both base58 points.
func (m MetaAddress) Parse() (spendPub, viewPub [32]byte, err error) {
	spendPub, err = keyenc.Normalize(keyenc.Base58(m.SpendPub))
	if err != nil {
		return spendPub, viewPub, fmt.Errorf("spend pubkey: %w", err)
	}
	viewPub, err = keyenc.Normalize(keyenc.Base58(m.ViewPub))
	if err != nil {
		return spendPub, viewPub, fmt.Errorf("view pubkey: %w", err)
	}
	return spendPub, viewPub, nil
}

// MetaAddressID is "sv1" + base58(blake2b-256(spendPub ‖ viewPub)).
func MetaAddressID(spendPub, viewPub []byte) string {
	buf := make([]byte, 0, len(spendPub)+len(viewPub))
	buf = append(buf, spendPub...)
	buf = append(buf, viewPub...)
	h := blake2b.Sum256(buf)
	return metaAddressIDPrefix + base58.Encode(h[:])
}

// NewMnemonic returns a fresh 24-word BIP-39 phrase.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// MetaKeyPairFromMnemonic derives spend and view seeds from a BIP-39 phrase
// with HKDF-SHA256 under distinct info labels.
func MetaKeyPairFromMnemonic(mnemonic, passphrase string) (MetaKeyPair, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return MetaKeyPair{}, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	spend, err := hkdfExpand(seed, hkdfInfoSpend)
	if err != nil {
		return MetaKeyPair{}, err
	}
	view, err := hkdfExpand(seed, hkdfInfoView)
	if err != nil {
		return MetaKeyPair{}, err
	}
	return MetaKeyPairFromSeeds(spend, view)
}

func hkdfExpand(seed []byte, info string) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, 32)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
