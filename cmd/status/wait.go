package status

import (
	"context"

	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

// WaitFor watches from status from and expects the next status to be want.
// Any other status is returned together with an *UnexpectedStatusError.
func (w *Watcher) WaitFor(ctx context.Context, address string, from, want v1.Status) (v1.Status, error) {
	st, err := w.Watch(ctx, address, from)
	if err != nil {
		return "", err
	}
	if st != want {
		return st, &UnexpectedStatusError{Want: want, Got: st}
	}
	return st, nil
}

// WaitConnected waits until the app connected to the session.
// CANCELLED and TIMEOUT surface as *UnexpectedStatusError.
func (w *Watcher) WaitConnected(ctx context.Context, address string) (v1.Status, error) {
	return w.WaitFor(ctx, address, v1.StatusInitialized, v1.StatusConnected)
}

// WaitDone waits until a connected session completed.
func (w *Watcher) WaitDone(ctx context.Context, address string) (v1.Status, error) {
	return w.WaitFor(ctx, address, v1.StatusConnected, v1.StatusDone)
}
