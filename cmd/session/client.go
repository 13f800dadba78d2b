package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/privacybydesign/irmajs/cmd/internal/ids"
	"github.com/privacybydesign/irmajs/cmd/security/requestor"
	"github.com/privacybydesign/irmajs/cmd/status"
	"github.com/privacybydesign/irmajs/cmd/transport"
	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

// abortTimeout bounds the best-effort delete of a cancelled or timed out session.
const abortTimeout = 5 * time.Second

// Observer receives session outcomes. Implementations must be safe for concurrent use.
type Observer interface {
	SessionStarted(t v1.Type)
	// SessionFinished receives the final status, or "" when the session
	// failed without one (e.g. a transport error).
	SessionFinished(s v1.Status)
}

type nopObserver struct{}

func (nopObserver) SessionStarted(v1.Type)    {}
func (nopObserver) SessionFinished(v1.Status) {}

// Config configures a Client.
type Config struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	Watch      status.Config
	Observer   Observer
}

// Client is the requestor-side session client. It holds no per-session
// state; concurrent sessions are independent.
type Client struct {
	tr    *transport.Transport
	watch *status.Watcher
	log   *slog.Logger
	obs   Observer
	now   func() time.Time
}

// New builds a Client. The logger defaults to a discarding logger.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Watch.HTTPClient == nil {
		cfg.Watch.HTTPClient = cfg.HTTPClient
	}
	if cfg.Watch.Logger == nil {
		cfg.Watch.Logger = cfg.Logger
	}

	tr := transport.New(cfg.HTTPClient, cfg.Logger)
	return &Client{
		tr:    tr,
		watch: status.New(cfg.Watch, tr),
		log:   cfg.Logger,
		obs:   cfg.Observer,
		now:   time.Now,
	}
}

// Session is a started session.
type Session struct {
	Pointer v1.Pointer
	// Token is the requestor token used for result retrieval.
	Token string
	// TraceID tags every log line of the session.
	TraceID string
}

// Outcome is the value a handled session resolves with. Result is nil unless
// a result was fetched.
type Outcome struct {
	Status v1.Status
	Result any
}

// Start creates a session at server.
func (c *Client) Start(ctx context.Context, server string, request any, auth requestor.Auth) (Session, error) {
	trace, err := ids.NewTraceID(c.now())
	if err != nil {
		return Session{}, err
	}
	return c.start(ctx, trace, server, request, auth)
}

func (c *Client) start(ctx context.Context, trace, server string, request any, auth requestor.Auth) (Session, error) {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	log := c.log.With("trace_id", trace)

	enc, err := requestor.Encode(request, auth)
	if err != nil {
		return Session{}, err
	}

	body, err := c.tr.Post(ctx, server+"/session", enc.Body, enc.Header)
	if err != nil {
		log.Error("session.start.fail", "server", server, "err", err)
		return Session{}, err
	}

	var resp v1.StartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Session{}, fmt.Errorf("decode session pointer: %w", err)
	}
	if resp, err = resp.Normalize(server); err != nil {
		return Session{}, err
	}

	sess := Session{Pointer: resp.Pointer, Token: resp.Token, TraceID: trace}
	log.Info("session.started", "u", sess.Pointer.U, "irmaqr", sess.Pointer.Type)
	c.obs.SessionStarted(sess.Pointer.Type)
	return sess, nil
}

// Run validates opts, starts a session and handles it until opts.ReturnStatus.
func (c *Client) Run(ctx context.Context, server string, request any, auth requestor.Auth, opts Options) (Outcome, error) {
	opts, err := opts.Validate()
	if err != nil {
		return Outcome{}, err
	}

	trace, err := ids.NewTraceID(c.now())
	if err != nil {
		return Outcome{}, err
	}
	c.log.Debug("session.created", "trace_id", trace, "method", opts.Method, "return_status", opts.ReturnStatus)

	sess, err := c.start(ctx, trace, server, request, auth)
	if err != nil {
		return Outcome{}, err
	}
	return c.handle(ctx, sess, opts)
}

// Handle drives an already started session until opts.ReturnStatus.
func (c *Client) Handle(ctx context.Context, sess Session, opts Options) (Outcome, error) {
	opts, err := opts.Validate()
	if err != nil {
		return Outcome{}, err
	}
	return c.handle(ctx, sess, opts)
}

func (c *Client) handle(ctx context.Context, sess Session, opts Options) (Outcome, error) {
	log := c.log.With("trace_id", sess.TraceID)
	l := &lifecycle{c: c, sess: sess, opts: opts, log: log}

	out, err := l.run(ctx)
	if err != nil {
		st, _ := status.StatusOf(err)
		if st == v1.StatusCancelled || st == v1.StatusTimeout {
			c.abort(ctx, log, sess.Pointer)
		}
		log.Warn("session.failed", "status", st, "err", err)
		c.obs.SessionFinished(st)
		return Outcome{}, err
	}

	log.Info("session.finished", "status", out.status, "result", out.result != nil)
	c.obs.SessionFinished(out.status)
	return Outcome{Status: out.status, Result: out.result}, nil
}

// abort deletes a session on the server. Failures are logged and dropped.
func (c *Client) abort(ctx context.Context, log *slog.Logger, ptr v1.Pointer) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	if err := c.tr.Delete(ctx, ptr.U); err != nil {
		log.Debug("session.delete.fail", "u", ptr.U, "err", err)
	}
}

// WaitConnected waits until the app connected to the session at ptr.
func (c *Client) WaitConnected(ctx context.Context, ptr v1.Pointer) (v1.Status, error) {
	return c.watch.WaitConnected(ctx, ptr.U)
}

// WaitDone waits until the connected session at ptr completed.
func (c *Client) WaitDone(ctx context.Context, ptr v1.Pointer) (v1.Status, error) {
	return c.watch.WaitDone(ctx, ptr.U)
}

// WaitStatus waits for the transition into want, which must be Connected or Done.
func (c *Client) WaitStatus(ctx context.Context, ptr v1.Pointer, want v1.Status) (v1.Status, error) {
	switch want {
	case v1.StatusConnected:
		return c.WaitConnected(ctx, ptr)
	case v1.StatusDone:
		return c.WaitDone(ctx, ptr)
	default:
		return "", fmt.Errorf("%w: cannot wait for %q", ErrInvalidOptions, want)
	}
}

// Result fetches the result of the finished session token at server.
// ResultJSON decodes into map[string]any; the JWT kinds return the body text unchanged.
func (c *Client) Result(ctx context.Context, server, token string, kind ResultKind) (any, error) {
	return c.result(ctx, strings.TrimRight(server, "/"), token, kind, parseJSONResult)
}

func (c *Client) result(ctx context.Context, server, token string, kind ResultKind, parse ResultParser) (any, error) {
	if token == "" {
		return nil, errors.New("result: missing session token")
	}
	body, err := c.tr.Get(ctx, server+"/session/"+token+"/"+kind.endpoint())
	if err != nil {
		return nil, err
	}
	if kind != ResultJSON {
		return string(body), nil
	}
	return parse(body)
}

// Cancel deletes the session at ptr, as a user-initiated abort.
func (c *Client) Cancel(ctx context.Context, ptr v1.Pointer) error {
	return c.tr.Delete(ctx, ptr.U)
}

func parseJSONResult(body []byte) (any, error) {
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}
