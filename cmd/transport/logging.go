package transport

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestObserver receives the outcome of every outgoing request.
type RequestObserver interface {
	RequestDone(method string, code int, d time.Duration)
}

// WithRequestLogging wraps rt and logs every outgoing request.
// Successful requests log at debug, 4xx at warn, 5xx and network errors at error.
// obs may be nil.
func WithRequestLogging(rt http.RoundTripper, log *slog.Logger, obs RequestObserver) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := rt.RoundTrip(r)
		d := time.Since(start)

		code := 0
		if resp != nil {
			code = resp.StatusCode
		}
		if obs != nil {
			obs.RequestDone(r.Method, code, d)
		}

		if err != nil {
			log.Error("http.request.fail",
				"method", r.Method,
				"url", r.URL.String(),
				"duration_ms", d.Milliseconds(),
				"err", err,
			)
			return resp, err
		}

		level, result := requestLogMeta(code)
		log.Log(r.Context(), level, "http.request",
			"method", r.Method,
			"url", r.URL.String(),
			"status", code,
			"result", result,
			"duration_ms", d.Milliseconds(),
		)
		return resp, nil
	})
}

func requestLogMeta(code int) (slog.Level, string) {
	switch {
	case code >= 500:
		return slog.LevelError, "server_error"
	case code >= 400:
		return slog.LevelWarn, "client_error"
	case code >= 300:
		return slog.LevelDebug, "redirect"
	default:
		return slog.LevelDebug, "success"
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
