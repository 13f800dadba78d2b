package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxBodyBytes bounds every response body read by the transport.
const maxBodyBytes = 1 << 20 // 1 MiB

// Transport is a thin HTTP client for session server endpoints.
type Transport struct {
	HTTP *http.Client
	log  *slog.Logger
}

// New builds a Transport. A nil client means http.DefaultClient, a nil logger discards.
func New(hc *http.Client, log *slog.Logger) *Transport {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Transport{HTTP: hc, log: log}
}

// Post sends body with the given headers and returns the response body.
func (t *Transport) Post(ctx context.Context, url string, body []byte, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return t.do(req)
}

// Get returns the raw response body of url.
func (t *Transport) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	return t.do(req)
}

// Delete issues a DELETE to url and discards the response body.
func (t *Transport) Delete(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, http.NoBody)
	if err != nil {
		return err
	}
	_, err = t.do(req)
	return err
}

func (t *Transport) do(req *http.Request) ([]byte, error) {
	resp, err := t.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", req.Method, req.URL, err)
	}
	if len(body) > maxBodyBytes {
		body = body[:maxBodyBytes]
		t.log.Warn("http.body.truncated", "method", req.Method, "url", req.URL.String(), "limit", maxBodyBytes)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &Error{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       body,
		}
	}
	return body, nil
}
