// Package v1 defines the IRMA session wire contract as seen by clients.
//
// This package is intentionally stable and dependency-light.
// It is shared between the session client, the status watcher and test servers
// so that status values and pointer shapes stay authoritative in one place.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Status is the status of an IRMA session as reported by the server.
type Status string

const (
	StatusInitialized Status = "INITIALIZED" // The session has been started and is waiting for the app to connect
	StatusConnected   Status = "CONNECTED"   // The app has retrieved the session request, we wait for its response
	StatusCancelled   Status = "CANCELLED"   // The session is cancelled, possibly due to an error
	StatusDone        Status = "DONE"        // The session has completed successfully
	StatusTimeout     Status = "TIMEOUT"     // The session expired before completion
)

// ErrUnknownStatus is returned when a payload does not carry one of the five statuses.
var ErrUnknownStatus = errors.New("unknown session status")

// Valid reports whether s is one of the five wire statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusInitialized, StatusConnected, StatusCancelled, StatusDone, StatusTimeout:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition can follow s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusDone || s == StatusTimeout
}

func (s Status) String() string { return string(s) }

// ParseStatus accepts exactly one of the five statuses (case-insensitive, trimmed).
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// DecodeStatus decodes a status payload as served by GET {u}/status and by
// status events: either a JSON string ("DONE") or a bare token (DONE).
func DecodeStatus(payload []byte) (Status, error) {
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnknownStatus, err)
		}
		trimmed = s
	}
	return ParseStatus(trimmed)
}

// Type is the session type discriminator carried in the pointer's irmaqr field.
type Type string

const (
	TypeDisclosing Type = "disclosing"
	TypeIssuing    Type = "issuing"
	TypeSigning    Type = "signing"

	// TypeRedirect is sent by newer servers that hand out a frontend pointer.
	// It carries no session-type semantics.
	TypeRedirect Type = "redirect"
)

// Known reports whether t is one of the three session types.
func (t Type) Known() bool {
	return t == TypeDisclosing || t == TypeIssuing || t == TypeSigning
}

// Pointer is the opaque session reference handed out by the server.
type Pointer struct {
	U    string `json:"u"`
	Type Type   `json:"irmaqr"`
}

// StatusURL is the polling address of the session.
func (p Pointer) StatusURL() string { return p.U + "/status" }

// EventsURL is the push-notification address of the session.
func (p Pointer) EventsURL() string { return p.U + "/statusevents" }

// Validate performs structural validation of a received pointer.
func (p Pointer) Validate() error {
	if strings.TrimSpace(p.U) == "" {
		return errors.New("missing field: u")
	}
	if strings.TrimSpace(string(p.Type)) == "" {
		return errors.New("missing field: irmaqr")
	}
	return nil
}

// StartResponse is the body returned by POST {server}/session.
//
// Servers answer either with {"sessionPtr": {...}, "token": "..."} or with
// the bare pointer, optionally carrying the token next to u and irmaqr.
type StartResponse struct {
	Pointer Pointer
	Token   string
}

func (r *StartResponse) UnmarshalJSON(b []byte) error {
	var aux struct {
		SessionPtr *Pointer `json:"sessionPtr"`
		Token      string   `json:"token"`
		U          string   `json:"u"`
		Type       Type     `json:"irmaqr"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.SessionPtr != nil {
		r.Pointer = *aux.SessionPtr
	} else {
		r.Pointer = Pointer{U: aux.U, Type: aux.Type}
	}
	r.Token = aux.Token
	return r.Pointer.Validate()
}

func (r StartResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SessionPtr Pointer `json:"sessionPtr"`
		Token      string  `json:"token,omitempty"`
	}{SessionPtr: r.Pointer, Token: r.Token})
}

// Normalize fixes up the URL shape of a start response once, at session start.
//
// Trailing slashes are dropped from u, a relative u is resolved against server,
// and a missing requestor token is taken from the last path segment of u.
func (r StartResponse) Normalize(server string) (StartResponse, error) {
	u := strings.TrimRight(strings.TrimSpace(r.Pointer.U), "/")
	parsed, err := url.Parse(u)
	if err != nil {
		return StartResponse{}, fmt.Errorf("pointer url: %w", err)
	}
	if !parsed.IsAbs() {
		base, err := url.Parse(strings.TrimRight(server, "/") + "/")
		if err != nil {
			return StartResponse{}, fmt.Errorf("server url: %w", err)
		}
		u = strings.TrimRight(base.ResolveReference(parsed).String(), "/")
	}

	out := StartResponse{Pointer: Pointer{U: u, Type: r.Pointer.Type}, Token: r.Token}
	if out.Token == "" {
		out.Token = u[strings.LastIndex(u, "/")+1:]
	}
	return out, nil
}
