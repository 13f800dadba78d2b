package transport

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStatus matches every non-2xx response error.
var ErrStatus = errors.New("unexpected http status")

// Error is a non-success HTTP response.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *Error) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("%s %s: %s", strings.ToLower(e.Method), e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %s: %s", strings.ToLower(e.Method), e.URL, e.Status, body)
}

func (e *Error) Unwrap() error { return ErrStatus }
