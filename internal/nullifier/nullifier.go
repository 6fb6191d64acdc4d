// Package nullifier derives the one-time claim tag of a vesting position and
// records consumed tags so a claim is processed at most once.
package nullifier

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Size is the byte length of a nullifier.
const Size = sha256.Size

// Nullifier is SHA-256(stealthAddress ‖ positionID as 8-byte little-endian).
type Nullifier [Size]byte

// Derive is pure: equal inputs always give the same nullifier.
func Derive(stealthAddress [32]byte, positionID uint64) Nullifier {
	var buf [32 + 8]byte
	copy(buf[:32], stealthAddress[:])
	binary.LittleEndian.PutUint64(buf[32:], positionID)
	return sha256.Sum256(buf[:])
}

func (n Nullifier) String() string { return hex.EncodeToString(n[:]) }

func (n Nullifier) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

func (n *Nullifier) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// Parse reads the hex form produced by String.
func Parse(s string) (Nullifier, error) {
	var n Nullifier
	raw, err := hex.DecodeString(s)
	if err != nil {
		return n, ErrMalformed
	}
	if len(raw) != Size {
		return n, ErrMalformed
	}
	copy(n[:], raw)
	return n, nil
}
