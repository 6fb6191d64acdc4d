package app

import (
	"time"

	"shadowvest/go-backend/internal/crypto/keyenc"
	"shadowvest/go-backend/internal/crypto/keys"
	"shadowvest/go-backend/internal/nullifier"
	"shadowvest/go-backend/internal/stealth"
)

// KeyRef carries caller-held keys for one request. Omitted fields fall back
// to the unlocked keystore.
type KeyRef struct {
	SpendPub  *keyenc.KeyParam `json:"spend_pubkey,omitempty"`
	SpendPriv *keyenc.KeyParam `json:"spend_priv,omitempty"`
	ViewPriv  *keyenc.KeyParam `json:"view_priv,omitempty"`
}

type GeneratedMeta struct {
	ID          string           `json:"id"`
	MetaAddress keys.MetaAddress `json:"meta_address"`
	SpendPriv   keyenc.KeyParam  `json:"spend_priv"`
	ViewPriv    keyenc.KeyParam  `json:"view_priv"`
	Mnemonic    string           `json:"mnemonic,omitempty"`
}

// DeriveRequest names the recipient either by registered owner or by an
// explicit public pair.
type DeriveRequest struct {
	Owner    *keyenc.KeyParam `json:"owner,omitempty"`
	SpendPub *keyenc.KeyParam `json:"spend_pubkey,omitempty"`
	ViewPub  *keyenc.KeyParam `json:"view_pubkey,omitempty"`
	Note     string           `json:"note,omitempty"`
	Format   string           `json:"format,omitempty"`
}

type DeriveResult struct {
	StealthAddress   keyenc.KeyParam `json:"stealth_address"`
	EphemeralPub     keyenc.KeyParam `json:"ephemeral_pubkey"`
	EncryptedPayload string          `json:"encrypted_payload"`
	Format           string          `json:"format"`
	MetaID           string          `json:"meta_id"`
}

type OwnershipRequest struct {
	StealthAddress keyenc.KeyParam `json:"stealth_address"`
	EphemeralPub   keyenc.KeyParam `json:"ephemeral_pubkey"`
	Keys           KeyRef          `json:"keys"`
}

// RecoveredKey never carries the scalar itself.
type RecoveredKey struct {
	StealthAddress keyenc.KeyParam `json:"stealth_address"`
	PublicKey      keyenc.KeyParam `json:"public_key"`
	Owned          bool            `json:"owned"`
}

type ClaimRequest struct {
	StealthAddress keyenc.KeyParam `json:"stealth_address"`
	EphemeralPub   keyenc.KeyParam `json:"ephemeral_pubkey"`
	Destination    keyenc.KeyParam `json:"destination"`
	PositionID     uint64          `json:"position_id"`
	Keys           KeyRef          `json:"keys"`
}

type SignedClaim struct {
	StealthAddress keyenc.KeyParam     `json:"stealth_address"`
	Destination    keyenc.KeyParam     `json:"destination"`
	PositionID     uint64              `json:"position_id"`
	Nullifier      nullifier.Nullifier `json:"nullifier"`
	Message        string              `json:"message"`
	Signature      string              `json:"signature"`
}

type NullifierRequest struct {
	StealthAddress keyenc.KeyParam `json:"stealth_address"`
	PositionID     uint64          `json:"position_id"`
}

type NullifierStatus struct {
	Nullifier  nullifier.Nullifier `json:"nullifier"`
	Consumed   bool                `json:"consumed"`
	ConsumedAt *time.Time          `json:"consumed_at,omitempty"`
}

type AuthorizeRequest struct {
	StealthAddress keyenc.KeyParam `json:"stealth_address"`
	Destination    keyenc.KeyParam `json:"destination"`
	PositionID     uint64          `json:"position_id"`
	Signature      string          `json:"signature"`
}

// ClaimReceipt is returned once per nullifier. ServiceSignature is present
// only when the service has a signing key.
type ClaimReceipt struct {
	Nullifier        nullifier.Nullifier `json:"nullifier"`
	PositionID       uint64              `json:"position_id"`
	StealthAddress   keyenc.KeyParam     `json:"stealth_address"`
	Destination      keyenc.KeyParam     `json:"destination"`
	ConsumedAt       time.Time           `json:"consumed_at"`
	ServicePub       string              `json:"service_pubkey,omitempty"`
	ServiceSignature string              `json:"service_signature,omitempty"`
}

type MetaRequest struct {
	Owner    keyenc.KeyParam `json:"owner"`
	SpendPub keyenc.KeyParam `json:"spend_pubkey"`
	ViewPub  keyenc.KeyParam `json:"view_pubkey"`
}

type ScanRequest struct {
	Events []stealth.PaymentEvent `json:"events"`
	Keys   KeyRef                 `json:"keys"`
}

type OwnedEvent struct {
	Event           stealth.PaymentEvent `json:"event"`
	Nullifier       nullifier.Nullifier  `json:"nullifier"`
	Claimed         bool                 `json:"claimed"`
	Note            string               `json:"note,omitempty"`
	PayloadFormat   string               `json:"payload_format,omitempty"`
	PayloadVerified bool                 `json:"payload_verified"`
	PayloadError    string               `json:"payload_error,omitempty"`
}

type ScanFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type ScanReport struct {
	Owned   []OwnedEvent  `json:"owned"`
	Errors  []ScanFailure `json:"errors,omitempty"`
	Scanned int           `json:"scanned"`
}

type DecryptRequest struct {
	Payload      string          `json:"encrypted_payload"`
	EphemeralPub keyenc.KeyParam `json:"ephemeral_pubkey"`
	Format       string          `json:"format,omitempty"`
	Keys         KeyRef          `json:"keys"`
}

// DecryptedPayload reports what the payload revealed. The recovered
// ephemeral private key stays inside the service.
type DecryptedPayload struct {
	Format   string `json:"format"`
	Verified bool   `json:"verified"`
	Note     string `json:"note,omitempty"`
}

type KeystoreInfo struct {
	MetaID      string           `json:"meta_id"`
	MetaAddress keys.MetaAddress `json:"meta_address"`
	Mnemonic    string           `json:"mnemonic,omitempty"`
}

type ServiceStatus struct {
	KeystoreConfigured bool   `json:"keystore_configured"`
	KeystoreExists     bool   `json:"keystore_exists"`
	Unlocked           bool   `json:"unlocked"`
	MetaID             string `json:"meta_id,omitempty"`
	LedgerBackend      string `json:"ledger_backend"`
	ConsumedNullifiers int    `json:"consumed_nullifiers"`
	RegisteredMetas    int    `json:"registered_metas"`
	PayloadFormat      string `json:"payload_format"`
	ServicePub         string `json:"service_pubkey,omitempty"`
}
