package status

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

const (
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultPushTimeout bounds how long a fresh subscription may stay silent
	// before polling takes over. It is not a session deadline.
	DefaultPushTimeout = 2 * time.Second
)

// Mode selects the push mechanism used before polling.
type Mode string

const (
	ModeSSE       Mode = "sse"
	ModeWebSocket Mode = "websocket"
	ModeNone      Mode = "none"
)

// ParseMode parses a push mode; empty means ModeSSE.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return ModeSSE, nil
	case ModeSSE, ModeWebSocket, ModeNone:
		return m, nil
	default:
		return "", fmt.Errorf("unknown push mode %q", raw)
	}
}

// Observer receives watch outcomes. Implementations must be safe for concurrent use.
type Observer interface {
	WatchResolved(via string, s v1.Status)
	PushFallback(reason string)
}

type nopObserver struct{}

func (nopObserver) WatchResolved(string, v1.Status) {}
func (nopObserver) PushFallback(string)             {}

// Config configures a Watcher.
type Config struct {
	Push         Mode
	PollInterval time.Duration
	PushTimeout  time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
	Observer   Observer

	// Subscriber overrides the subscriber selected by Push.
	Subscriber Subscriber
}

func (c Config) withDefaults() Config {
	if c.Push == "" {
		c.Push = ModeSSE
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PushTimeout <= 0 {
		c.PushTimeout = DefaultPushTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	return c
}
