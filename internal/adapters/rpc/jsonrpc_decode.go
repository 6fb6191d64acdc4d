package rpc

import (
	"bytes"
	"encoding/json"
	"errors"

	"shadowvest/go-backend/internal/crypto/keyenc"
)

var errInvalidParams = errors.New("invalid params")

// decodeObjectParams accepts the params object directly or wrapped in a
// one-element array. Unknown fields are rejected so typos in key names do
// not silently fall back to keystore keys.
func decodeObjectParams(raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	if raw[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil || len(arr) != 1 {
			return errInvalidParams
		}
		raw = arr[0]
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

type ownerParams struct {
	Owner keyenc.KeyParam `json:"owner"`
}

type passphraseParams struct {
	Passphrase string `json:"passphrase"`
}

type importParams struct {
	Mnemonic   string `json:"mnemonic"`
	Passphrase string `json:"passphrase"`
}

type generateParams struct {
	WithMnemonic bool `json:"with_mnemonic"`
}
