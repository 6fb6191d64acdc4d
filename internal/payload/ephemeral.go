package payload

import (
	"bytes"
	"encoding/hex"
	"fmt"

	svcrypto "shadowvest/go-backend/internal/crypto"
	"shadowvest/go-backend/internal/crypto/curveconv"
	"shadowvest/go-backend/internal/crypto/keys"
)

// Decrypted is the result of opening an ephemeral-key payload.
//
// Verified reports whether the recovered private key regenerates the
// ephemeral public key the caller supplied. A false value is the non-fatal
// verification-mismatch signal: the caller decides whether to skip or
// retry with other keys.
type Decrypted struct {
	EphPriv  [32]byte
	EphPub   [32]byte
	Note     []byte
	Format   Format
	Verified bool
}

// EncryptBytes seals arbitrary plaintext under ECDH(ephPriv, viewPub) and
// returns the text form.
func EncryptBytes(f Format, plaintext, ephPriv, viewPub []byte) (string, error) {
	shared, err := curveconv.SharedSecret(ephPriv, viewPub)
	if err != nil {
		return "", fmt.Errorf("shared secret: %w", err)
	}
	env, err := Seal(shared, plaintext, f)
	if err != nil {
		return "", err
	}
	return Encode(env, f)
}

// DecryptBytes opens text produced by EncryptBytes under
// ECDH(viewPriv, ephPub).
func DecryptBytes(text string, f Format, viewPriv, ephPub []byte) ([]byte, error) {
	env, err := DecodeEnvelope(text, f)
	if err != nil {
		return nil, err
	}
	shared, err := curveconv.SharedSecret(viewPriv, ephPub)
	if err != nil {
		return nil, fmt.Errorf("shared secret: %w", err)
	}
	return Open(shared, env, f)
}

// EncryptEphemeral builds the payload a sender publishes next to the
// stealth address. Only format B carries a note.
func EncryptEphemeral(f Format, ephPriv, viewPub, note []byte) (string, error) {
	eph, err := keys.EphemeralFromSeed(ephPriv)
	if err != nil {
		return "", fmt.Errorf("%w: %v", svcrypto.ErrUnsupportedKeyFormat, err)
	}
	shared, err := curveconv.SharedSecret(ephPriv, viewPub)
	if err != nil {
		return "", fmt.Errorf("shared secret: %w", err)
	}

	var env []byte
	switch f {
	case FormatA:
		if len(note) > 0 {
			return "", ErrNoteFormatA
		}
		plain := []byte(hex.EncodeToString(eph.Priv[:]))
		env, err = Seal(shared, plain, FormatA)
		if err != nil {
			return "", err
		}
		padded := make([]byte, FormatAEnvelopeSize)
		copy(padded, env)
		env = padded
	case FormatB:
		if len(note) > MaxNoteSize {
			return "", fmt.Errorf("%w: %d bytes", ErrNoteTooLong, len(note))
		}
		plain := make([]byte, 0, formatBHeaderSize+len(note))
		plain = append(plain, eph.Priv[:]...)
		plain = append(plain, eph.Pub[:]...)
		plain = append(plain, byte(len(note)))
		plain = append(plain, note...)
		env, err = Seal(shared, plain, FormatB)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
	return Encode(env, f)
}

// DecryptEphemeral recovers the ephemeral private key from a payload using
// the view private key and the published ephemeral public key.
func DecryptEphemeral(text string, viewPriv, ephPub []byte) (Decrypted, error) {
	env, f, err := Decode(text)
	if err != nil {
		return Decrypted{}, err
	}
	return openEphemeral(env, f, viewPriv, ephPub)
}

// DecryptEphemeralAs skips format detection.
func DecryptEphemeralAs(text string, f Format, viewPriv, ephPub []byte) (Decrypted, error) {
	env, err := DecodeAs(text, f)
	if err != nil {
		return Decrypted{}, err
	}
	return openEphemeral(env, f, viewPriv, ephPub)
}

func openEphemeral(env []byte, f Format, viewPriv, ephPub []byte) (Decrypted, error) {
	shared, err := curveconv.SharedSecret(viewPriv, ephPub)
	if err != nil {
		return Decrypted{}, fmt.Errorf("shared secret: %w", err)
	}
	return openWithShared(env, f, shared, ephPub)
}

func openWithShared(env []byte, f Format, shared [32]byte, ephPub []byte) (Decrypted, error) {
	plain, err := Open(shared, env, f)
	if err != nil {
		return Decrypted{}, err
	}
	out := Decrypted{Format: f}
	switch f {
	case FormatA:
		if len(plain) < formatAContentSize {
			return Decrypted{}, fmt.Errorf("%w: format A content %d bytes", svcrypto.ErrPayloadTooShort, len(plain))
		}
		priv, err := hex.DecodeString(string(plain[:formatAContentSize]))
		if err != nil {
			// A wrong view key yields non-hex garbage; report it as a mismatch.
			return out, nil
		}
		copy(out.EphPriv[:], priv)
	case FormatB:
		if len(plain) < formatBHeaderSize {
			return Decrypted{}, fmt.Errorf("%w: format B content %d bytes", svcrypto.ErrPayloadTooShort, len(plain))
		}
		noteLen := int(plain[64])
		if len(plain) < formatBHeaderSize+noteLen {
			// Length byte points past the end: wrong key or corrupted payload.
			return out, nil
		}
		copy(out.EphPriv[:], plain[:32])
		if noteLen > 0 {
			out.Note = append([]byte(nil), plain[formatBHeaderSize:formatBHeaderSize+noteLen]...)
		}
	default:
		return Decrypted{}, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}

	eph, err := keys.EphemeralFromSeed(out.EphPriv[:])
	if err != nil {
		return Decrypted{}, err
	}
	out.EphPub = eph.Pub
	out.Verified = bytes.Equal(eph.Pub[:], ephPub)
	return out, nil
}
