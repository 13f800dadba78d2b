package requestor

import "errors"

var (
	ErrUnsupportedMethod  = errors.New("unsupported requestor authentication method")
	ErrNotASessionRequest = errors.New("not a session request")
	ErrInvalidKey         = errors.New("invalid requestor key")
)
