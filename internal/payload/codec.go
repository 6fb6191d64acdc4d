// Package payload publishes the sender's ephemeral private key (and an
// optional note) so that only the holder of the matching view key can
// recover it.
//
// Envelope: nonce(24) ‖ plaintext XOR key[i mod len(key)]. The nonce is
// carried for framing only and does not enter the keystream, so a key is
// reused across every payload sent under the same shared secret.
//
// Two wire formats exist:
//
//	A  key = SHA-256(shared) (32 bytes); plaintext is the hex string of
//	   ephPriv; envelope padded to 128 bytes; text form base58.
//	B  key = k1 ‖ SHA-256(k1‖0x01) ‖ SHA-256(k1‖0x02) with k1 = SHA-256(shared)
//	   (96 bytes); plaintext ephPriv ‖ ephPub ‖ noteLen ‖ note; text form
//	   standard base64.
package payload

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	svcrypto "shadowvest/go-backend/internal/crypto"

	"github.com/mr-tron/base58/base58"
)

// NonceSize is the length of the envelope prefix.
const NonceSize = 24

const (
	// FormatAEnvelopeSize matches the fixed encrypted_payload field of a
	// stealth payment event.
	FormatAEnvelopeSize = 128
	formatAContentSize  = 64
	formatBHeaderSize   = 32 + 32 + 1
	// MaxNoteSize is bounded by the single length byte of format B.
	MaxNoteSize = 255
)

var (
	ErrUnknownFormat = errors.New("unknown payload format")
	ErrNoteTooLong   = errors.New("payload note too long")
	ErrNoteFormatA   = errors.New("format A payloads cannot carry a note")
)

// Format selects the key schedule, plaintext shape and text encoding.
type Format int

const (
	FormatA Format = iota + 1
	FormatB
)

func (f Format) String() string {
	switch f {
	case FormatA:
		return "A"
	case FormatB:
		return "B"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat accepts "a"/"b" and the aliases "fixed"/"extended".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "fixed", "legacy":
		return FormatA, nil
	case "b", "extended", "":
		return FormatB, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// minContent is the shortest meaningful ciphertext after the nonce.
func (f Format) minContent() int {
	if f == FormatA {
		return formatAContentSize
	}
	return formatBHeaderSize
}

// KeySchedule returns the XOR key for the format.
func KeySchedule(shared [32]byte, f Format) ([]byte, error) {
	k1 := sha256.Sum256(shared[:])
	switch f {
	case FormatA:
		return k1[:], nil
	case FormatB:
		k2 := sha256.Sum256(append(k1[:], 0x01))
		k3 := sha256.Sum256(append(k1[:], 0x02))
		key := make([]byte, 0, 96)
		key = append(key, k1[:]...)
		key = append(key, k2[:]...)
		return append(key, k3[:]...), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
}

// Seal encrypts plaintext under a fresh random nonce.
func Seal(shared [32]byte, plaintext []byte, f Format) ([]byte, error) {
	key, err := KeySchedule(shared, f)
	if err != nil {
		return nil, err
	}
	out := make([]byte, NonceSize+len(plaintext))
	if _, err := rand.Read(out[:NonceSize]); err != nil {
		return nil, err
	}
	xorKey(out[NonceSize:], plaintext, key)
	return out, nil
}

// Open strips the nonce and reverses the XOR. It does not enforce a minimum
// content length; the ephemeral-key layer does.
func Open(shared [32]byte, envelope []byte, f Format) ([]byte, error) {
	if len(envelope) < NonceSize {
		return nil, fmt.Errorf("%w: %d bytes", svcrypto.ErrPayloadTooShort, len(envelope))
	}
	key, err := KeySchedule(shared, f)
	if err != nil {
		return nil, err
	}
	body := envelope[NonceSize:]
	out := make([]byte, len(body))
	xorKey(out, body, key)
	return out, nil
}

func xorKey(dst, src, key []byte) {
	for i := range src {
		dst[i] = src[i] ^ key[i%len(key)]
	}
}

// Encode renders an envelope in the text alphabet of its format.
func Encode(envelope []byte, f Format) (string, error) {
	switch f {
	case FormatA:
		return base58.Encode(envelope), nil
	case FormatB:
		return base64.StdEncoding.EncodeToString(envelope), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
}

// DecodeAs decodes text known to be in format f and requires enough
// content for an ephemeral-key payload.
func DecodeAs(text string, f Format) ([]byte, error) {
	return decodeAs(text, f, f.minContent())
}

// DecodeEnvelope decodes a generic envelope, which may carry any amount of
// content after the nonce. Short generic envelopes cannot be told apart by
// alphabet, so the format is always explicit here.
func DecodeEnvelope(text string, f Format) ([]byte, error) {
	return decodeAs(text, f, 0)
}

func decodeAs(text string, f Format, minContent int) ([]byte, error) {
	text = strings.TrimSpace(text)
	var (
		raw []byte
		err error
	)
	switch f {
	case FormatA:
		raw, err = base58.Decode(text)
	case FormatB:
		raw, err = base64.StdEncoding.DecodeString(text)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownFormat, f, err)
	}
	if len(raw) < NonceSize+minContent {
		return nil, fmt.Errorf("%w: %d bytes for format %s", svcrypto.ErrPayloadTooShort, len(raw), f)
	}
	return raw, nil
}

// base64Only lists characters of the standard base64 alphabet that base58
// excludes. Base58 has no characters of its own, so only B can be told
// apart by alphabet alone.
const base64Only = "0OIl+/="

// DetectFormat picks the format from the text alphabet. Text drawn only
// from the base58 alphabet is A.
func DetectFormat(text string) Format {
	if strings.ContainsAny(text, base64Only) {
		return FormatB
	}
	return FormatA
}

// Decode auto-detects the format of an ephemeral-key payload by alphabet.
// Text containing base64-only characters is B; anything else is A, padded
// or not, as long as it carries a full format A body.
func Decode(text string) ([]byte, Format, error) {
	text = strings.TrimSpace(text)
	f := DetectFormat(text)
	raw, err := DecodeAs(text, f)
	if err != nil {
		return nil, 0, err
	}
	return raw, f, nil
}
