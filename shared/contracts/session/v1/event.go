package v1

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	Version = 1

	// TypeStatus is the only event type servers push on the websocket channel.
	TypeStatus = "status"
)

// Envelope wraps a status event on the websocket push channel.
type Envelope struct {
	V      int       `json:"v"`
	Type   string    `json:"type"`
	Status Status    `json:"status"`
	TS     time.Time `json:"ts,omitempty"`
}

// NewStatusEnvelope builds a wire-valid status envelope.
func NewStatusEnvelope(s Status, now time.Time) Envelope {
	return Envelope{V: Version, Type: TypeStatus, Status: s, TS: now.UTC()}
}

func (e Envelope) Validate() error {
	if e.V != Version {
		return fmt.Errorf("invalid protocol version: got=%d want=%d", e.V, Version)
	}
	if e.Type != TypeStatus {
		return fmt.Errorf("unsupported type: %s", e.Type)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, e.Status)
	}
	return nil
}

// DecodeEvent decodes one pushed status event. SSE servers send the plain status
// payload; websocket servers may wrap it in an Envelope.
func DecodeEvent(data []byte) (Status, error) {
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return "", fmt.Errorf("decode event: %w", err)
		}
		if err := env.Validate(); err != nil {
			return "", err
		}
		return env.Status, nil
	}
	return DecodeStatus(data)
}
