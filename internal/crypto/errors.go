// Package crypto holds the error taxonomy shared by the stealth primitives.
// The arithmetic lives in the subpackages.
package crypto

import "errors"

var (
	// ErrUnsupportedKeyFormat is returned when an input cannot be normalized to 32 raw bytes.
	ErrUnsupportedKeyFormat = errors.New("unsupported key format")
	// ErrInvalidEncoding is returned when bytes are not a valid curve point encoding.
	ErrInvalidEncoding = errors.New("invalid point encoding")
	// ErrPayloadTooShort is returned when an encrypted payload cannot hold nonce and content.
	ErrPayloadTooShort = errors.New("encrypted payload too short")
)
