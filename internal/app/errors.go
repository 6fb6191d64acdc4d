package app

import "errors"

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrKeysLocked       = errors.New("no keys supplied and keystore is locked")
	ErrKeystoreDisabled = errors.New("keystore path is not configured")
	ErrNotOwner         = errors.New("stealth address is not owned by these keys")
	ErrInvalidSignature = errors.New("claim signature does not verify")
	ErrBatchTooLarge    = errors.New("scan batch exceeds configured maximum")
	ErrStorage          = errors.New("storage failure")
)
