// Package metrics exports session client metrics to prometheus.
//
// A *Metrics satisfies the observer hooks of the session client, the status
// watcher and the transport request logger.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

const namespace = "irma"

type Metrics struct {
	sessionsStarted  *prometheus.CounterVec
	sessionsFinished *prometheus.CounterVec
	watches          *prometheus.CounterVec
	pushFallbacks    *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_started_total",
				Help:      "Sessions started, by session type.",
			},
			[]string{"type"},
		),
		sessionsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_finished_total",
				Help:      "Handled sessions, by final status.",
			},
			[]string{"status"},
		),
		watches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_watch_total",
				Help:      "Resolved status watches, by mechanism and status.",
			},
			[]string{"mode", "status"},
		),
		pushFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "push_fallback_total",
				Help:      "Status watches that fell back from push to polling.",
			},
			[]string{"reason"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Outgoing HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "code"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.sessionsStarted, m.sessionsFinished, m.watches, m.pushFallbacks, m.httpDuration)
	}
	return m
}

func (m *Metrics) SessionStarted(t v1.Type) {
	m.sessionsStarted.WithLabelValues(string(t)).Inc()
}

// SessionFinished records s; an empty status is recorded as "error".
func (m *Metrics) SessionFinished(s v1.Status) {
	label := string(s)
	if label == "" {
		label = "error"
	}
	m.sessionsFinished.WithLabelValues(label).Inc()
}

func (m *Metrics) WatchResolved(via string, s v1.Status) {
	m.watches.WithLabelValues(via, string(s)).Inc()
}

func (m *Metrics) PushFallback(reason string) {
	m.pushFallbacks.WithLabelValues(reason).Inc()
}

// RequestDone records an outgoing request; code 0 means a network error.
func (m *Metrics) RequestDone(method string, code int, d time.Duration) {
	m.httpDuration.WithLabelValues(method, strconv.Itoa(code)).Observe(d.Seconds())
}
