package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/privacybydesign/irmajs/cmd/internal/sessiontest"
	"github.com/privacybydesign/irmajs/cmd/security/requestor"
	"github.com/privacybydesign/irmajs/cmd/status"
	"github.com/privacybydesign/irmajs/cmd/transport"
	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

const request = `{"@context":"https://irma.app/ld/request/disclosure/v2","disclose":[[["irma-demo.MijnOverheid.ageLower.over18"]]]}`

type fakeRenderer struct {
	mu       sync.Mutex
	rendered []Presentation
	statuses []v1.Status
	host     bool
}

func (r *fakeRenderer) Render(_ context.Context, p Presentation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered = append(r.rendered, p)
	return nil
}

func (r *fakeRenderer) ShowStatus(_ context.Context, s v1.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

type hostRenderer struct {
	fakeRenderer
}

func (r *hostRenderer) CanRender() bool { return r.host }

type countingObserver struct {
	mu       sync.Mutex
	started  []v1.Type
	finished []v1.Status
}

func (o *countingObserver) SessionStarted(t v1.Type) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, t)
}

func (o *countingObserver) SessionFinished(s v1.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, s)
}

func newTestClient(srv *sessiontest.Server, obs Observer) *Client {
	return New(Config{
		HTTPClient: srv.Client(),
		Observer:   obs,
		Watch: status.Config{
			Push:         status.ModeNone,
			PollInterval: 5 * time.Millisecond,
		},
	})
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRunReachesDone(t *testing.T) {
	t.Parallel()

	srv := sessiontest.New(t, sessiontest.WithStatuses(
		v1.StatusInitialized, v1.StatusInitialized, v1.StatusConnected, v1.StatusConnected, v1.StatusDone,
	))
	obs := &countingObserver{}
	c := newTestClient(srv, obs)

	out, err := c.Run(testContext(t), srv.URL, request, requestor.Auth{}, Options{Method: MethodImmediate})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != v1.StatusDone || out.Result != nil {
		t.Fatalf("Run=%+v want status=DONE result=nil", out)
	}
	if n := srv.Count(sessiontest.KindDelete); n != 0 {
		t.Fatalf("deletes=%d want=0", n)
	}
	if n := srv.Count(sessiontest.KindResult); n != 0 {
		t.Fatalf("result fetches=%d want=0", n)
	}
	if len(obs.started) != 1 || obs.started[0] != v1.TypeDisclosing {
		t.Fatalf("started=%v", obs.started)
	}
	if len(obs.finished) != 1 || obs.finished[0] != v1.StatusDone {
		t.Fatalf("finished=%v", obs.finished)
	}
}

func TestRunCancelledDeletesOnce(t *testing.T) {
	t.Parallel()

	srv := sessiontest.New(t, sessiontest.WithStatuses(v1.StatusInitialized, v1.StatusCancelled))
	obs := &countingObserver{}
	c := newTestClient(srv, obs)
	r := &fakeRenderer{}

	_, err := c.Run(testContext(t), srv.URL, request, requestor.Auth{}, Options{Method: MethodCustomCanvas, Renderer: r})
	if !errors.Is(err, status.ErrUnexpectedStatus) {
		t.Fatalf("Run err=%v want ErrUnexpectedStatus", err)
	}
	if st, ok := status.StatusOf(err); !ok || st != v1.StatusCancelled {
		t.Fatalf("StatusOf=%q,%v want CANCELLED", st, ok)
	}
	if n := srv.Count(sessiontest.KindDelete); n != 1 {
		t.Fatalf("deletes=%d want=1", n)
	}
	if len(r.statuses) != 1 || r.statuses[0] != v1.StatusCancelled {
		t.Fatalf("renderer statuses=%v", r.statuses)
	}
	if len(obs.finished) != 1 || obs.finished[0] != v1.StatusCancelled {
		t.Fatalf("finished=%v", obs.finished)
	}
}

func TestRunTimeoutWhileConnectedDeletes(t *testing.T) {
	t.Parallel()

	srv := sessiontest.New(t, sessiontest.WithStatuses(v1.StatusConnected, v1.StatusTimeout))
	c := newTestClient(srv, nil)

	_, err := c.Run(testContext(t), srv.URL, request, requestor.Auth{}, Options{Method: MethodHeadless})
	if st, ok := status.StatusOf(err); !ok || st != v1.StatusTimeout {
		t.Fatalf("Run err=%v want TIMEOUT", err)
	}
	if n := srv.Count(sessiontest.KindDelete); n != 1 {
		t.Fatalf("deletes=%d want=1", n)
	}
}

func TestRunReturnsAtInitializedWithoutWatching(t *testing.T) {
	t.Parallel()

	srv := sessiontest.New(t, sessiontest.WithEvents(sessiontest.PushEvents, v1.StatusConnected))
	c := New(Config{HTTPClient: srv.Client()})
	r := &fakeRenderer{}

	out, err := c.Run(testContext(t), srv.URL, request, requestor.Auth{}, Options{
		Method:       MethodCustomCanvas,
		Renderer:     r,
		ReturnStatus: v1.StatusInitialized,
		Language:     "nl",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != v1.StatusInitialized {
		t.Fatalf("Run status=%q want INITIALIZED", out.Status)
	}
	if n := srv.Count(sessiontest.KindStatus) + srv.Count(sessiontest.KindEvents); n != 0 {
		t.Fatalf("status watch requests=%d want=0", n)
	}
	if len(r.rendered) != 1 {
		t.Fatalf("rendered=%d want=1", len(r.rendered))
	}
	p := r.rendered[0]
	if p.Pointer != srv.Pointer() || p.Language != "nl" || p.TraceID == "" {
		t.Fatalf("presentation=%+v", p)
	}
}

func TestRunReturnsAtConnected(t *testing.T) {
	t.Parallel()

	srv := sessiontest.New(t, sessiontest.WithStatuses(v1.StatusInitialized, v1.StatusConnected, v1.StatusDone))
	c := newTestClient(srv, nil)
	r := &fakeRenderer{}

	out, err := c.Run(testContext(t), srv.URL, request, requestor.Auth{}, Options{
		Method:       MethodCustomCanvas,
		Renderer:     r,
		ReturnStatus: v1.StatusConnected,
	})
	if err != nil || out.Status != v1.StatusConnected {
		t.Fatalf("Run=%+v,%v want CONNECTED", out, err)
	}
	if n := srv.Count(sessiontest.KindStatus); n != 2 {
		t.Fatalf("status requests=%d want=2", n)
	}
	if len(r.statuses) != 1 || r.statuses[0] != v1.StatusConnected {
		t.Fatalf("renderer statuses=%v", r.statuses)
	}
}

func TestRunFetchesResult(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		opts func(server string) Options
		kind string
		want func(t *testing.T, res any)
	}{
		{
			name: "json",
			opts: func(server string) Options { return Options{Method: MethodImmediate, Server: server} },
			kind: sessiontest.KindResult,
			want: func(t *testing.T, res any) {
				m, ok := res.(map[string]any)
				if !ok || m["proofStatus"] != "VALID" {
					t.Fatalf("result=%#v", res)
				}
			},
		},
		{
			name: "token",
			opts: func(server string) Options {
				return Options{Method: MethodImmediate, Server: server, ResultAsToken: true}
			},
			kind: sessiontest.KindResultJWT,
			want: func(t *testing.T, res any) {
				if res != "header.payload.sig" {
					t.Fatalf("result=%#v want raw text", res)
				}
			},
		},
		{
			name: "legacy",
			opts: func(server string) Options {
				return Options{Method: MethodImmediate, Server: server, LegacyResultJWT: true}
			},
			kind: sessiontest.KindGetProof,
			want: func(t *testing.T, res any) {
				if res != "header.payload.sig" {
					t.Fatalf("result=%#v want raw text", res)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := sessiontest.New(t,
				sessiontest.WithStatuses(v1.StatusConnected, v1.StatusDone),
				sessiontest.WithResultJWT("header.payload.sig"),
			)
			c := newTestClient(srv, nil)

			out, err := c.Run(testContext(t), srv.URL, request, requestor.Auth{}, tc.opts(srv.URL))
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if out.Status != v1.StatusDone {
				t.Fatalf("status=%q", out.Status)
			}
			tc.want(t, out.Result)
			if n := srv.Count(tc.kind); n != 1 {
				t.Fatalf("%s requests=%d want=1", tc.kind, n)
			}
		})
	}
}

func TestRunCustomResultParser(t *testing.T) {
	t.Parallel()

	srv := sessiontest.New(t,
		sessiontest.WithStatuses(v1.StatusConnected, v1.StatusDone),
		sessiontest.WithResult(`{"status":"DONE"}`),
	)
	c := newTestClient(srv, nil)

	out, err := c.Run(testContext(t), srv.URL, request, requestor.Auth{}, Options{
		Method:       MethodImmediate,
		Server:       srv.URL,
		ResultParser: func(b []byte) (any, error) { return string(b), nil },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Result != `{"status":"DONE"}` {
		t.Fatalf("result=%#v", out.Result)
	}
}

func TestRunValidatesBeforeNetwork(t *testing.T) {
	t.Parallel()

	srv := sessiontest.New(t)
	c := newTestClient(srv, nil)

	cases := []struct {
		name string
		opts Options
		want error
	}{
		{name: "return status", opts: Options{Method: MethodImmediate, ReturnStatus: v1.StatusCancelled}, want: ErrInvalidOptions},
		{name: "token without server", opts: Options{Method: MethodImmediate, ResultAsToken: true}, want: ErrInvalidOptions},
		{name: "server before done", opts: Options{Method: MethodImmediate, Server: srv.URL, ReturnStatus: v1.StatusConnected}, want: ErrInvalidOptions},
		{name: "unknown method", opts: Options{Method: "popup"}, want: ErrUnsupportedMethod},
		{name: "interactive without renderer", opts: Options{}, want: ErrInvalidOptions},
		{name: "canvas without renderer", opts: Options{Method: MethodCustomCanvas}, want: ErrInvalidOptions},
		{name: "host cannot render", opts: Options{Renderer: &hostRenderer{}}, want: ErrUnsupportedMethod},
	}

	for _, tc := range cases {
		if _, err := c.Run(testContext(t), srv.URL, request, requestor.Auth{}, tc.opts); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err=%v want=%v", tc.name, err, tc.want)
		}
	}
	if n := srv.Count(sessiontest.KindStart); n != 0 {
		t.Fatalf("starts=%d want=0", n)
	}
}

func TestOptionsDefaults(t *testing.T) {
	t.Parallel()

	r := &hostRenderer{fakeRenderer: fakeRenderer{host: true}}
	got, err := Options{Renderer: r, Server: "https://irma.example/"}.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.Method != MethodInteractive || got.ReturnStatus != v1.StatusDone || got.Language != "en" {
		t.Fatalf("defaults=%+v", got)
	}
	if got.Server != "https://irma.example" || got.ResultParser == nil {
		t.Fatalf("server=%q parser=%v", got.Server, got.ResultParser != nil)
	}

	for _, rs := range []v1.Status{v1.StatusInitialized, v1.StatusConnected, v1.StatusDone} {
		if _, err := (Options{Method: MethodImmediate, ReturnStatus: rs}).Validate(); err != nil {
			t.Fatalf("Validate(returnStatus=%s): %v", rs, err)
		}
	}
}

func TestStartSendsEncodedRequest(t *testing.T) {
	t.Parallel()

	srv := sessiontest.New(t, sessiontest.WithBareStartResponse(), sessiontest.WithSessionType(v1.TypeSigning))
	c := newTestClient(srv, nil)

	sess, err := c.Start(testContext(t), srv.URL+"/", request, requestor.Auth{Method: requestor.MethodToken, Key: "secret"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.Pointer != srv.Pointer() {
		t.Fatalf("pointer=%+v want=%+v", sess.Pointer, srv.Pointer())
	}
	// The bare response carries no token; it is taken from the pointer.
	if sess.Token != srv.ClientToken || len(sess.TraceID) != 26 {
		t.Fatalf("session=%+v", sess)
	}

	start := srv.LastStart()
	if start.Authorization != "secret" || start.ContentType != "application/json" || string(start.Body) != request {
		t.Fatalf("start request=%+v", start)
	}
}

func TestStartSignedRequest(t *testing.T) {
	t.Parallel()

	srv := sessiontest.New(t)
	c := newTestClient(srv, nil)

	sess, err := c.Start(testContext(t), srv.URL, request, requestor.Auth{
		Method: requestor.MethodHMAC,
		Key:    []byte("0123456789abcdef0123456789abcdef"),
		Name:   "tests",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.Token != srv.Token {
		t.Fatalf("token=%q want=%q", sess.Token, srv.Token)
	}
	if start := srv.LastStart(); start.ContentType != "text/plain" {
		t.Fatalf("content type=%q", start.ContentType)
	}
}

func TestStartSurfacesTransportError(t *testing.T) {
	t.Parallel()

	srv := sessiontest.New(t)
	c := newTestClient(srv, nil)

	if _, err := c.Start(testContext(t), srv.URL+"/missing", request, requestor.Auth{}); !errors.Is(err, transport.ErrStatus) {
		t.Fatalf("Start err=%v want transport.ErrStatus", err)
	}
}

func TestCancelAndWaitStatus(t *testing.T) {
	t.Parallel()

	srv := sessiontest.New(t, sessiontest.WithStatuses(v1.StatusInitialized, v1.StatusConnected))
	c := newTestClient(srv, nil)
	ctx := testContext(t)

	st, err := c.WaitStatus(ctx, srv.Pointer(), v1.StatusConnected)
	if err != nil || st != v1.StatusConnected {
		t.Fatalf("WaitStatus=%q,%v", st, err)
	}
	if _, err := c.WaitStatus(ctx, srv.Pointer(), v1.StatusTimeout); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("WaitStatus(TIMEOUT) err=%v", err)
	}

	if err := c.Cancel(ctx, srv.Pointer()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if n := srv.Count(sessiontest.KindDelete); n != 1 {
		t.Fatalf("deletes=%d want=1", n)
	}
}

func TestResult(t *testing.T) {
	t.Parallel()

	srv := sessiontest.New(t, sessiontest.WithResultJWT("a.b.c"))
	c := newTestClient(srv, nil)
	ctx := testContext(t)

	res, err := c.Result(ctx, srv.URL, srv.Token, ResultJWT)
	if err != nil || res != "a.b.c" {
		t.Fatalf("Result(jwt)=%#v,%v", res, err)
	}
	if _, err := c.Result(ctx, srv.URL, "unknown", ResultJSON); !errors.Is(err, transport.ErrStatus) {
		t.Fatalf("Result(unknown) err=%v", err)
	}
}

func TestResultTextIsNotRewritten(t *testing.T) {
	t.Parallel()

	const body = " a.b.c\n"
	srv := sessiontest.New(t, sessiontest.WithResultJWT(body))
	c := newTestClient(srv, nil)
	ctx := testContext(t)

	for _, kind := range []ResultKind{ResultJWT, ResultLegacyJWT} {
		res, err := c.Result(ctx, srv.URL, srv.Token, kind)
		if err != nil {
			t.Fatalf("Result(%v): %v", kind, err)
		}
		if res != body {
			t.Fatalf("Result(%v)=%q want=%q", kind, res, body)
		}
	}
}
