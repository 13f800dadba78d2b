// Package sessiontest provides a scripted IRMA session server for tests.
//
// The server answers session starts, status polls, status events (SSE or
// websocket), session deletes and result fetches, and counts every request so
// tests can assert which network calls a client made.
package sessiontest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	sse "github.com/tmaxmax/go-sse"

	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

// Request kinds counted by the server.
const (
	KindStart     = "start"
	KindStatus    = "status"
	KindEvents    = "statusevents"
	KindDelete    = "delete"
	KindResult    = "result"
	KindResultJWT = "result-jwt"
	KindGetProof  = "getproof"
)

// PushMode scripts the behaviour of {u}/statusevents.
type PushMode int

const (
	// PushOff answers 404, as a server without status events does.
	PushOff PushMode = iota
	// PushEvents sends every scripted event and keeps the stream open.
	PushEvents
	// PushBreakAfterFirst sends the first scripted event and ends the stream.
	PushBreakAfterFirst
	// PushSilent opens the stream and never sends an event.
	PushSilent
)

// StartRequest is the last session start received.
type StartRequest struct {
	ContentType   string
	Authorization string
	Body          []byte
}

// Server is a scripted session server.
type Server struct {
	*httptest.Server

	ClientToken string
	Token       string

	mu        sync.Mutex
	statuses  []v1.Status
	events    []v1.Status
	push      PushMode
	websocket bool
	bare      bool
	typ       v1.Type
	result    []byte
	resultJWT string
	counts    map[string]int
	start     StartRequest

	quit chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithStatuses scripts successive GET {u}/status answers; the last one repeats.
func WithStatuses(s ...v1.Status) Option {
	return func(srv *Server) { srv.statuses = append([]v1.Status(nil), s...) }
}

// WithEvents scripts the status events endpoint.
func WithEvents(mode PushMode, s ...v1.Status) Option {
	return func(srv *Server) {
		srv.push = mode
		srv.events = append([]v1.Status(nil), s...)
	}
}

// WithWebSocket serves status events over a websocket instead of SSE.
func WithWebSocket() Option {
	return func(srv *Server) { srv.websocket = true }
}

// WithSessionType sets the irmaqr value of the pointer.
func WithSessionType(t v1.Type) Option {
	return func(srv *Server) { srv.typ = t }
}

// WithBareStartResponse answers session starts with the bare pointer.
func WithBareStartResponse() Option {
	return func(srv *Server) { srv.bare = true }
}

// WithResult sets the JSON body served by the result endpoint.
func WithResult(body string) Option {
	return func(srv *Server) { srv.result = []byte(body) }
}

// WithResultJWT sets the text served by the result-jwt and getproof endpoints.
func WithResultJWT(token string) Option {
	return func(srv *Server) { srv.resultJWT = token }
}

// New starts a Server that is closed when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		ClientToken: "client-token-1",
		Token:       "requestor-token-1",
		statuses:    []v1.Status{v1.StatusInitialized},
		typ:         v1.TypeDisclosing,
		result:      []byte(`{"status":"DONE","proofStatus":"VALID"}`),
		resultJWT:   "eyJhbGciOiJSUzI1NiJ9.e30.c2ln",
		counts:      make(map[string]int),
		quit:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", s.handleStart)
	mux.HandleFunc("GET /irma/session/{client}/status", s.handleStatus)
	mux.HandleFunc("GET /irma/session/{client}/statusevents", s.handleEvents)
	mux.HandleFunc("DELETE /irma/session/{client}", s.handleDelete)
	mux.HandleFunc("GET /session/{token}/result", s.handleResult(KindResult))
	mux.HandleFunc("GET /session/{token}/result-jwt", s.handleResult(KindResultJWT))
	mux.HandleFunc("GET /session/{token}/getproof", s.handleResult(KindGetProof))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(func() {
		close(s.quit)
		s.Server.Close()
	})
	return s
}

// PointerURL is the u field handed out by the server.
func (s *Server) PointerURL() string {
	return s.URL + "/irma/session/" + s.ClientToken
}

// Pointer is the pointer handed out by the server.
func (s *Server) Pointer() v1.Pointer {
	return v1.Pointer{U: s.PointerURL(), Type: s.typ}
}

// Count returns how many requests of kind the server received.
func (s *Server) Count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[kind]
}

// LastStart returns the last session start request.
func (s *Server) LastStart() StartRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start
}

func (s *Server) hit(kind string) {
	s.mu.Lock()
	s.counts[kind]++
	s.mu.Unlock()
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.hit(KindStart)
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.start = StartRequest{
		ContentType:   r.Header.Get("Content-Type"),
		Authorization: r.Header.Get("Authorization"),
		Body:          body,
	}
	bare := s.bare
	s.mu.Unlock()

	ptr := s.Pointer()
	w.Header().Set("Content-Type", "application/json")
	if bare {
		_ = json.NewEncoder(w).Encode(ptr)
		return
	}
	_ = json.NewEncoder(w).Encode(v1.StartResponse{Pointer: ptr, Token: s.Token})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.ownsClient(w, r) {
		return
	}
	s.hit(KindStatus)

	s.mu.Lock()
	st := s.statuses[0]
	if len(s.statuses) > 1 {
		s.statuses = s.statuses[1:]
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.ownsClient(w, r) {
		return
	}
	s.hit(KindDelete)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResult(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("token") != s.Token {
			http.Error(w, `{"error":"SESSION_UNKNOWN"}`, http.StatusBadRequest)
			return
		}
		s.hit(kind)

		s.mu.Lock()
		result, jwt := s.result, s.resultJWT
		s.mu.Unlock()

		if kind == KindResult {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(result)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(jwt))
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.ownsClient(w, r) {
		return
	}
	s.hit(KindEvents)

	s.mu.Lock()
	mode, events, ws := s.push, append([]v1.Status(nil), s.events...), s.websocket
	s.mu.Unlock()

	if mode == PushOff {
		http.NotFound(w, r)
		return
	}
	if mode == PushBreakAfterFirst && len(events) > 1 {
		events = events[:1]
	}

	if ws {
		s.serveWebSocket(w, r, mode, events)
		return
	}
	s.serveSSE(w, r, mode, events)
}

func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request, mode PushMode, events []v1.Status) {
	sess, err := sse.Upgrade(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ready := &sse.Message{}
	ready.AppendComment("ready")
	if err := sess.Send(ready); err != nil {
		return
	}
	_ = sess.Flush()

	for _, st := range events {
		msg := &sse.Message{}
		msg.AppendData(`"` + string(st) + `"`)
		if err := sess.Send(msg); err != nil {
			return
		}
		_ = sess.Flush()
	}

	if mode == PushBreakAfterFirst {
		return
	}
	s.hold(r)
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request, mode PushMode, events []v1.Status) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.CloseNow() }()

	for _, st := range events {
		b, _ := json.Marshal(v1.NewStatusEnvelope(st, time.Now()))
		if err := conn.Write(r.Context(), websocket.MessageText, b); err != nil {
			return
		}
	}

	if mode == PushBreakAfterFirst {
		_ = conn.Close(websocket.StatusInternalError, "stream broken")
		return
	}

	// Reading is required to observe the client's close frame.
	go func() {
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}()
	s.hold(r)
}

func (s *Server) hold(r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-s.quit:
	}
}

func (s *Server) ownsClient(w http.ResponseWriter, r *http.Request) bool {
	if r.PathValue("client") != s.ClientToken {
		http.Error(w, `{"error":"SESSION_UNKNOWN"}`, http.StatusNotFound)
		return false
	}
	return true
}
