// Package keyenc normalizes the textual and binary key encodings accepted at
// the API boundary into raw 32-byte buffers.
package keyenc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	svcrypto "shadowvest/go-backend/internal/crypto"

	"github.com/mr-tron/base58/base58"
)

// KeySize is the length of every key, point and scalar crossing the boundary.
const KeySize = 32

// KeyEncoding is one of Raw, Base58 or Hex.
type KeyEncoding interface {
	decode() ([]byte, error)
}

// Raw is an already-decoded byte buffer.
type Raw []byte

// Base58 is a base58 (Bitcoin alphabet) string.
type Base58 string

// Hex is a 64-character hexadecimal string.
type Hex string

func (r Raw) decode() ([]byte, error) { return []byte(r), nil }

func (b Base58) decode() ([]byte, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return nil, fmt.Errorf("%w: empty base58", svcrypto.ErrUnsupportedKeyFormat)
	}
	out, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", svcrypto.ErrUnsupportedKeyFormat, err)
	}
	return out, nil
}

func (h Hex) decode() ([]byte, error) {
	s := trimHexPrefix(strings.TrimSpace(string(h)))
	out, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", svcrypto.ErrUnsupportedKeyFormat, err)
	}
	return out, nil
}

// Normalize decodes enc and requires exactly 32 bytes.
func Normalize(enc KeyEncoding) ([KeySize]byte, error) {
	var out [KeySize]byte
	if enc == nil {
		return out, svcrypto.ErrUnsupportedKeyFormat
	}
	raw, err := enc.decode()
	if err != nil {
		return out, err
	}
	if len(raw) != KeySize {
		return out, fmt.Errorf("%w: decoded %d bytes, want %d", svcrypto.ErrUnsupportedKeyFormat, len(raw), KeySize)
	}
	copy(out[:], raw)
	return out, nil
}

// Parse classifies a textual key: 64 hex characters, optionally prefixed
// with 0x, are Hex; anything else is tried as Base58.
func Parse(s string) KeyEncoding {
	s = strings.TrimSpace(s)
	if digits := trimHexPrefix(s); len(digits) == 2*KeySize && isHex(digits) {
		return Hex(s)
	}
	return Base58(s)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// ParseString is Normalize(Parse(s)).
func ParseString(s string) ([KeySize]byte, error) {
	return Normalize(Parse(s))
}

// EncodeBase58 is the canonical textual form used in responses.
func EncodeBase58(b []byte) string {
	return base58.Encode(b)
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// BufferJSON is a compatibility shim for the {"type":"Buffer","data":[...]}
// shape that one collaborator produces when it marshals byte buffers.
type BufferJSON struct {
	Type string `json:"type"`
	Data []int  `json:"data"`
}

func (b BufferJSON) decode() ([]byte, error) {
	if b.Type != "Buffer" {
		return nil, fmt.Errorf("%w: tagged object type %q", svcrypto.ErrUnsupportedKeyFormat, b.Type)
	}
	out := make([]byte, len(b.Data))
	for i, v := range b.Data {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range", svcrypto.ErrUnsupportedKeyFormat, i)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// KeyParam is a JSON-decodable key: a string (hex or base58) or a BufferJSON
// object. It normalizes eagerly so a decoded KeyParam is always 32 bytes.
type KeyParam [KeySize]byte

func (k *KeyParam) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	var enc KeyEncoding
	switch {
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", svcrypto.ErrUnsupportedKeyFormat, err)
		}
		enc = Parse(s)
	case strings.HasPrefix(trimmed, "{"):
		var buf BufferJSON
		if err := json.Unmarshal(data, &buf); err != nil {
			return fmt.Errorf("%w: %v", svcrypto.ErrUnsupportedKeyFormat, err)
		}
		enc = buf
	default:
		return svcrypto.ErrUnsupportedKeyFormat
	}
	out, err := Normalize(enc)
	if err != nil {
		return err
	}
	*k = out
	return nil
}

func (k KeyParam) MarshalJSON() ([]byte, error) {
	return json.Marshal(base58.Encode(k[:]))
}

// Bytes returns the key as a fresh slice.
func (k KeyParam) Bytes() []byte {
	return append([]byte(nil), k[:]...)
}
