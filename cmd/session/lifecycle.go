package session

import (
	"context"
	"log/slog"

	"github.com/privacybydesign/irmajs/cmd/status"
	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

// outcome is the value passed between lifecycle phases. A finished outcome
// is passed through the remaining phases untouched.
type outcome struct {
	status   v1.Status
	finished bool
	result   any
}

func proceed(s v1.Status) outcome { return outcome{status: s} }

func finish(s v1.Status, result any) outcome {
	return outcome{status: s, finished: true, result: result}
}

type phase func(ctx context.Context, in outcome) (outcome, error)

type lifecycle struct {
	c    *Client
	sess Session
	opts Options
	log  *slog.Logger
}

func (l *lifecycle) run(ctx context.Context) (outcome, error) {
	out := proceed(v1.StatusInitialized)
	for _, p := range []phase{l.present, l.connected, l.done} {
		if out.finished {
			break
		}
		next, err := p(ctx, out)
		if err != nil {
			l.fail(ctx, err)
			return outcome{}, err
		}
		if next.status != out.status {
			l.log.Info("session.status", "status", next.status)
		}
		out = next
	}
	return out, nil
}

// present renders the pointer and waits for the app to connect.
func (l *lifecycle) present(ctx context.Context, _ outcome) (outcome, error) {
	if err := l.render(ctx); err != nil {
		return outcome{}, err
	}
	if l.opts.ReturnStatus == v1.StatusInitialized {
		return finish(v1.StatusInitialized, nil), nil
	}

	st, err := l.c.watch.WaitConnected(ctx, l.sess.Pointer.U)
	if err != nil {
		return outcome{}, err
	}
	return proceed(st), nil
}

// connected waits for the app to complete the session.
func (l *lifecycle) connected(ctx context.Context, in outcome) (outcome, error) {
	l.showStatus(ctx, in.status)
	if l.opts.ReturnStatus == v1.StatusConnected {
		return finish(in.status, nil), nil
	}

	st, err := l.c.watch.WaitDone(ctx, l.sess.Pointer.U)
	if err != nil {
		return outcome{}, err
	}
	return proceed(st), nil
}

// done fetches the result when a server was configured.
func (l *lifecycle) done(ctx context.Context, in outcome) (outcome, error) {
	l.showStatus(ctx, in.status)
	if l.opts.Server == "" {
		return finish(in.status, nil), nil
	}

	res, err := l.c.result(ctx, l.opts.Server, l.sess.Token, l.opts.resultKind(), l.opts.ResultParser)
	if err != nil {
		return outcome{}, err
	}
	return finish(in.status, res), nil
}

func (l *lifecycle) render(ctx context.Context) error {
	p := Presentation{
		Pointer:             l.sess.Pointer,
		Method:              l.opts.Method,
		Language:            l.opts.Language,
		DisableAutoRedirect: l.opts.DisableAutoRedirect,
		TraceID:             l.sess.TraceID,
	}

	switch {
	case l.opts.Method == MethodImmediate:
		return nil
	case l.opts.Renderer == nil:
		// Headless without renderer.
		l.log.Info("session.pointer", "u", p.Pointer.U, "irmaqr", p.Pointer.Type)
		return nil
	default:
		return l.opts.Renderer.Render(ctx, p)
	}
}

func (l *lifecycle) showStatus(ctx context.Context, s v1.Status) {
	if sr, ok := l.opts.Renderer.(StatusRenderer); ok && l.opts.Method != MethodImmediate {
		sr.ShowStatus(ctx, s)
	}
}

func (l *lifecycle) fail(ctx context.Context, err error) {
	if st, ok := status.StatusOf(err); ok {
		l.showStatus(ctx, st)
	}
}
