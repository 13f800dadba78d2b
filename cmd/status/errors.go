package status

import (
	"errors"
	"fmt"

	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

var (
	// ErrUnexpectedStatus matches every *UnexpectedStatusError.
	ErrUnexpectedStatus = errors.New("unexpected session status")

	errPushIdle   = errors.New("status events: no message before timeout")
	errPushClosed = errors.New("status events: stream closed")
)

// UnexpectedStatusError is returned when a watch resolved to a status other
// than the one the phase waited for, e.g. CANCELLED while waiting for CONNECTED.
type UnexpectedStatusError struct {
	Want v1.Status
	Got  v1.Status
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%s: %s (waiting for %s)", ErrUnexpectedStatus.Error(), e.Got, e.Want)
}

func (e *UnexpectedStatusError) Unwrap() error { return ErrUnexpectedStatus }

// StatusOf extracts the session status carried by err, if any.
func StatusOf(err error) (v1.Status, bool) {
	var ue *UnexpectedStatusError
	if errors.As(err, &ue) {
		return ue.Got, true
	}
	return "", false
}
