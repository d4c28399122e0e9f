package token

import "errors"

// Public, stable errors for callers.
var (
	ErrPassphraseMissing  = errors.New("store passphrase missing")
	ErrPassphraseTooShort = errors.New("store passphrase too short")
	ErrSealedMalformed    = errors.New("sealed payload malformed")
	ErrSealedAuth         = errors.New("sealed payload failed authentication")
	ErrNotJWT             = errors.New("credential is not a JWT")
)
