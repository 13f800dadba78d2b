package keys

import "errors"

// Public, stable errors for callers.
var (
	ErrHMACKeyMissing  = errors.New("requestor HMAC key missing")
	ErrHMACKeyTooShort = errors.New("requestor HMAC key too short")
	ErrNotRSAKey       = errors.New("requestor key is not an RSA private key")
)
