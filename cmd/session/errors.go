package session

import "errors"

var (
	// ErrInvalidOptions matches every Options validation failure.
	ErrInvalidOptions = errors.New("invalid session options")

	// ErrUnsupportedMethod is returned for an unknown presentation method.
	ErrUnsupportedMethod = errors.New("unsupported session method")
)
