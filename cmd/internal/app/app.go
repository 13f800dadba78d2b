// Package app wires the irmasession CLI runtime: config, logging, the
// session client and the metrics endpoint.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/privacybydesign/irmajs/cmd/internal/metrics"
	"github.com/privacybydesign/irmajs/cmd/session"
	"github.com/privacybydesign/irmajs/cmd/transport"
)

// App owns the session client and its metrics for one CLI invocation.
type App struct {
	cfg Config
	log *slog.Logger

	reg     *prometheus.Registry
	metrics *metrics.Metrics
	client  *session.Client
}

// New constructs a wired App from a validated config.
func New(cfg Config, log *slog.Logger) *App {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	hc := &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: transport.WithRequestLogging(http.DefaultTransport, log, m),
	}

	watch := cfg.watchConfig()
	watch.Observer = m

	return &App{
		cfg:     cfg,
		log:     log,
		reg:     reg,
		metrics: m,
		client: session.New(session.Config{
			HTTPClient: hc,
			Logger:     log,
			Watch:      watch,
			Observer:   m,
		}),
	}
}

// Client is the session client of the App.
func (a *App) Client() *session.Client { return a.client }

// ServeMetrics serves /metrics and /healthz on cfg.MetricsAddr until ctx is
// done. ready, when non-nil, receives the bound address.
func (a *App) ServeMetrics(ctx context.Context, ready chan<- string) error {
	ln, err := net.Listen("tcp", a.cfg.MetricsAddr)
	if err != nil {
		a.log.Error("metrics.listen.fail", "addr", a.cfg.MetricsAddr, "err", err)
		return err
	}

	mux := http.NewServeMux()
	registerHTTP(mux, a.reg, a.log)

	srv := &http.Server{
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.log.Info("metrics.start", "addr", ln.Addr().String())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Debug("metrics.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("metrics.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("metrics.shutdown.fail", "err", err)
		return err
	}
	a.log.Debug("metrics.stopped")
	return nil
}

// withMetrics runs fn while the metrics endpoint is served, when configured.
func (a *App) withMetrics(ctx context.Context, fn func(context.Context) error) error {
	if a.cfg.MetricsAddr == "" {
		return fn(ctx)
	}

	mctx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- a.ServeMetrics(mctx, nil) }()

	err := fn(ctx)
	stop()
	if merr := <-done; merr != nil && err == nil {
		err = merr
	}
	return err
}
