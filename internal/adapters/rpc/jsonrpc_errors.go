package rpc

import (
	"context"
	"errors"

	"shadowvest/go-backend/internal/app"
	svcrypto "shadowvest/go-backend/internal/crypto"
	"shadowvest/go-backend/internal/crypto/keys"
	"shadowvest/go-backend/internal/keystore"
	"shadowvest/go-backend/internal/nullifier"
	"shadowvest/go-backend/internal/payload"
	"shadowvest/go-backend/internal/registry"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602

	codeServiceError       = -32000
	codeUnsupportedKey     = -32010
	codeInvalidEncoding    = -32011
	codePayloadTooShort    = -32012
	codeNullifierUsed      = -32013
	codeInvalidSignature   = -32014
	codeNotOwner           = -32015
	codeKeysLocked         = -32020
	codeKeystoreAuth       = -32021
	codeMetaNotFound       = -32030
	codeMetaConflict       = -32031
	codeMetaNotActive      = -32032
	codeRequestCancelled   = -32040
	codeVersionUnsupported = -32080
	codeVersionDeprecated  = -32081
	codeServiceUnavailable = -32099
)

func rpcInvalidParams() *rpcError {
	return &rpcError{Code: codeInvalidParams, Message: "invalid params"}
}

// mapServiceError assigns a stable code per sentinel. The message is the
// error text, which never contains key material.
func mapServiceError(err error) *rpcError {
	code := codeServiceError
	switch {
	case errors.Is(err, svcrypto.ErrUnsupportedKeyFormat):
		code = codeUnsupportedKey
	case errors.Is(err, svcrypto.ErrInvalidEncoding):
		code = codeInvalidEncoding
	case errors.Is(err, svcrypto.ErrPayloadTooShort):
		code = codePayloadTooShort
	case errors.Is(err, nullifier.ErrNullifierUsed):
		code = codeNullifierUsed
	case errors.Is(err, app.ErrInvalidSignature):
		code = codeInvalidSignature
	case errors.Is(err, app.ErrNotOwner):
		code = codeNotOwner
	case errors.Is(err, app.ErrKeysLocked), errors.Is(err, keystore.ErrNotFound):
		code = codeKeysLocked
	case errors.Is(err, keystore.ErrInvalidPassphrase), errors.Is(err, keystore.ErrLocked):
		code = codeKeystoreAuth
	case errors.Is(err, registry.ErrMetaNotFound):
		code = codeMetaNotFound
	case errors.Is(err, registry.ErrMetaExists), errors.Is(err, keystore.ErrExists):
		code = codeMetaConflict
	case errors.Is(err, registry.ErrMetaNotActive):
		code = codeMetaNotActive
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = codeRequestCancelled
	case errors.Is(err, app.ErrInvalidArgument),
		errors.Is(err, app.ErrBatchTooLarge),
		errors.Is(err, payload.ErrUnknownFormat),
		errors.Is(err, payload.ErrNoteTooLong),
		errors.Is(err, payload.ErrNoteFormatA),
		errors.Is(err, keys.ErrInvalidMnemonic),
		errors.Is(err, keystore.ErrPassphraseRequired):
		code = codeInvalidParams
	}
	return &rpcError{Code: code, Message: err.Error()}
}
