package status

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	sse "github.com/tmaxmax/go-sse"
)

// maxEventBytes bounds a single pushed websocket frame.
const maxEventBytes = 64 << 10 // 64 KiB

// Subscriber is a push-notification mechanism.
//
// Subscribe blocks and hands every pushed payload to onMessage, in order,
// until ctx is done (it then returns nil) or the stream fails.
type Subscriber interface {
	Subscribe(ctx context.Context, url string, onMessage func([]byte)) error
}

// streamClient returns a copy of hc without a client-wide timeout:
// a status stream is long-lived and bounded by its context instead.
func streamClient(hc *http.Client) *http.Client {
	if hc == nil {
		return &http.Client{}
	}
	cp := *hc
	cp.Timeout = 0
	return &cp
}

// SSESubscriber receives status events as server-sent events.
type SSESubscriber struct {
	client *sse.Client
}

func NewSSESubscriber(hc *http.Client) *SSESubscriber {
	return &SSESubscriber{client: &sse.Client{
		HTTPClient: streamClient(hc),
		// Reconnecting is the watcher's call (fallback to polling), not the stream's.
		Backoff: sse.Backoff{MaxRetries: -1},
	}}
}

func (s *SSESubscriber) Subscribe(ctx context.Context, url string, onMessage func([]byte)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}

	conn := s.client.NewConnection(req)
	remove := conn.SubscribeMessages(func(ev sse.Event) {
		onMessage([]byte(ev.Data))
	})
	defer remove()

	if err := conn.Connect(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// WebSocketSubscriber receives status events over a websocket.
type WebSocketSubscriber struct {
	hc *http.Client
}

func NewWebSocketSubscriber(hc *http.Client) *WebSocketSubscriber {
	return &WebSocketSubscriber{hc: streamClient(hc)}
}

func (s *WebSocketSubscriber) Subscribe(ctx context.Context, url string, onMessage func([]byte)) error {
	conn, resp, err := websocket.Dial(ctx, wsURL(url), &websocket.DialOptions{HTTPClient: s.hc})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer func() { _ = conn.CloseNow() }()

	conn.SetReadLimit(maxEventBytes)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w (close status %d)", err, websocket.CloseStatus(err))
		}
		onMessage(data)
	}
}

func wsURL(u string) string {
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}
