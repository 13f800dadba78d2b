package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/privacybydesign/irmajs/cmd/transport"
	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

const viaPolling = "polling"

// Watcher resolves status transitions of sessions. It holds no per-session
// state and may be shared by concurrent sessions.
type Watcher struct {
	cfg Config
	tr  *transport.Transport
	sub Subscriber
	log *slog.Logger
	obs Observer
}

// New builds a Watcher. A nil tr builds a transport from cfg.HTTPClient.
func New(cfg Config, tr *transport.Transport) *Watcher {
	cfg = cfg.withDefaults()
	if tr == nil {
		tr = transport.New(cfg.HTTPClient, cfg.Logger)
	}

	sub := cfg.Subscriber
	if sub == nil {
		switch cfg.Push {
		case ModeSSE:
			sub = NewSSESubscriber(cfg.HTTPClient)
		case ModeWebSocket:
			sub = NewWebSocketSubscriber(cfg.HTTPClient)
		}
	}

	return &Watcher{cfg: cfg, tr: tr, sub: sub, log: cfg.Logger, obs: cfg.Observer}
}

// ShouldPoll decides whether a watch continues with polling after the push
// phase ended without a status. Polling is used when no push was attempted or
// when the push channel failed before delivering anything.
func ShouldPoll(attemptedPush bool, received int) bool {
	return !attemptedPush || received == 0
}

// Watch returns the first status of the session at address that differs from last.
func (w *Watcher) Watch(ctx context.Context, address string, last v1.Status) (v1.Status, error) {
	attempted, received := false, 0

	if w.sub != nil {
		attempted = true
		st, n, err := w.push(ctx, address, last)
		if err == nil {
			w.obs.WatchResolved(string(w.cfg.Push), st)
			return st, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		received = n

		if !ShouldPoll(attempted, received) {
			w.log.Warn("status.push.fail", "url", address, "received", received, "err", err)
			return "", fmt.Errorf("status events %s: %w", address, err)
		}

		reason := "unavailable"
		if errors.Is(err, errPushIdle) {
			reason = "idle"
		}
		w.log.Info("status.push.fallback", "url", address, "reason", reason, "err", err)
		w.obs.PushFallback(reason)
	}

	st, err := w.poll(ctx, address, last)
	if err != nil {
		return "", err
	}
	w.obs.WatchResolved(viaPolling, st)
	return st, nil
}

// push runs one subscription and returns the first status distinct from last,
// together with the number of messages received. The subscription is always
// closed before push returns.
func (w *Watcher) push(parent context.Context, address string, last v1.Status) (v1.Status, int, error) {
	ctx, cancel := context.WithCancel(parent)

	msgs := make(chan []byte)
	done := make(chan error, 1)
	go func() {
		done <- w.sub.Subscribe(ctx, sessionAt(address).EventsURL(), func(b []byte) {
			select {
			case msgs <- b:
			case <-ctx.Done():
			}
		})
	}()

	exited := false
	defer func() {
		cancel()
		if !exited {
			<-done
		}
	}()

	idle := time.NewTimer(w.cfg.PushTimeout)
	defer idle.Stop()
	idleC := idle.C

	received := 0
	for {
		select {
		case b := <-msgs:
			received++
			idleC = nil

			st, err := v1.DecodeEvent(b)
			if err != nil {
				return "", received, err
			}
			w.log.Debug("status.push.message", "url", address, "status", st)
			if st != last {
				return st, received, nil
			}

		case err := <-done:
			exited = true
			if err == nil {
				err = errPushClosed
			}
			return "", received, err

		case <-idleC:
			return "", received, errPushIdle

		case <-parent.Done():
			return "", received, parent.Err()
		}
	}
}

// sessionAt returns the pointer whose status endpoints are watched.
func sessionAt(address string) v1.Pointer { return v1.Pointer{U: address} }

func (w *Watcher) poll(ctx context.Context, address string, last v1.Status) (v1.Status, error) {
	timer := time.NewTimer(w.cfg.PollInterval)
	defer timer.Stop()

	for {
		b, err := w.tr.Get(ctx, sessionAt(address).StatusURL())
		if err != nil {
			return "", err
		}
		st, err := v1.DecodeStatus(b)
		if err != nil {
			return "", err
		}
		if st != last {
			w.log.Debug("status.poll.changed", "url", address, "status", st, "last", last)
			return st, nil
		}

		timer.Reset(w.cfg.PollInterval)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}
