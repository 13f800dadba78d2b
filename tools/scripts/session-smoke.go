// Package main provides a CI-friendly smoke test against a live IRMA server.
//
// It validates:
//   - session start with the configured requestor authentication
//   - pointer shape and requestor token
//   - GET {u}/status reports INITIALIZED
//   - a requestor-side cancel is observed by the status watcher as CANCELLED
//   - the cancelled session no longer serves a result
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/privacybydesign/irmajs/cmd/security/requestor"
	"github.com/privacybydesign/irmajs/cmd/session"
	"github.com/privacybydesign/irmajs/cmd/status"
	"github.com/privacybydesign/irmajs/cmd/transport"
	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

const defaultRequest = `{"@context":"https://irma.app/ld/request/disclosure/v2","disclose":[[["irma-demo.MijnOverheid.ageLower.over18"]]]}`

func main() {
	var (
		server  = flag.String("server", "http://127.0.0.1:8088", "IRMA server URL")
		push    = flag.String("push", "sse", "status push mechanism: sse, websocket or none")
		method  = flag.String("auth-method", "none", "requestor authentication method")
		key     = flag.String("auth-key", "", "requestor token or HMAC key")
		timeout = flag.Duration("timeout", 10*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	mode, err := status.ParseMode(*push)
	if err != nil {
		fatalf("invalid -push: %v", err)
	}
	authMethod, err := requestor.ParseMethod(*method)
	if err != nil {
		fatalf("invalid -auth-method: %v", err)
	}
	auth := requestor.Auth{Method: authMethod, Name: "session-smoke"}
	switch authMethod {
	case requestor.MethodToken:
		auth.Key = *key
	case requestor.MethodHMAC:
		auth.Key = []byte(*key)
	case requestor.MethodPublicKey:
		fatalf("-auth-method publickey is not supported by the smoke test")
	}

	log := slog.New(slog.DiscardHandler)
	if *verbose {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	hc := &http.Client{Transport: transport.WithRequestLogging(http.DefaultTransport, log, nil)}
	client := session.New(session.Config{HTTPClient: hc, Logger: log, Watch: status.Config{Push: mode}})
	tr := transport.New(hc, log)

	root := context.Background()

	sess := mustStart(root, client, *server, auth, *timeout)
	if *verbose {
		fmt.Printf("started: u=%s irmaqr=%s trace_id=%s\n", sess.Pointer.U, sess.Pointer.Type, sess.TraceID)
	}

	mustStatus(root, tr, sess.Pointer, v1.StatusInitialized, *timeout)
	mustCancelObserved(root, client, sess.Pointer, *timeout)
	mustNoResult(root, client, *server, sess.Token, *timeout)

	fmt.Printf("OK: u=%s push=%s trace_id=%s\n", sess.Pointer.U, mode, sess.TraceID)
}

func mustStart(parent context.Context, c *session.Client, server string, auth requestor.Auth, stepTimeout time.Duration) session.Session {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	sess, err := c.Start(ctx, server, defaultRequest, auth)
	if err != nil {
		fatalf("start: %v", err)
	}
	if sess.Pointer.Type != v1.TypeDisclosing && sess.Pointer.Type != v1.TypeRedirect {
		fatalf("pointer irmaqr mismatch: got=%q want=%q", sess.Pointer.Type, v1.TypeDisclosing)
	}
	if sess.Token == "" {
		fatalf("start response missing token")
	}
	return sess
}

func mustStatus(parent context.Context, tr *transport.Transport, ptr v1.Pointer, want v1.Status, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := tr.Get(ctx, ptr.StatusURL())
	if err != nil {
		fatalf("status: %v", err)
	}
	got, err := v1.DecodeStatus(b)
	if err != nil {
		fatalf("status: %v", err)
	}
	if got != want {
		fatalf("status mismatch: got=%s want=%s", got, want)
	}
}

func mustCancelObserved(parent context.Context, c *session.Client, ptr v1.Pointer, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	if err := c.Cancel(ctx, ptr); err != nil {
		fatalf("cancel: %v", err)
	}

	_, err := c.WaitConnected(ctx, ptr)
	if !errors.Is(err, status.ErrUnexpectedStatus) {
		fatalf("wait after cancel: got err=%v want %v", err, status.ErrUnexpectedStatus)
	}
	if st, _ := status.StatusOf(err); st != v1.StatusCancelled {
		fatalf("wait after cancel: got=%s want=%s", st, v1.StatusCancelled)
	}
}

func mustNoResult(parent context.Context, c *session.Client, server, token string, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	res, err := c.Result(ctx, server, token, session.ResultJSON)
	if err != nil {
		return
	}
	m, _ := res.(map[string]any)
	if m["status"] != string(v1.StatusCancelled) {
		fatalf("result of cancelled session: %v", res)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
