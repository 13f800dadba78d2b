package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// NewLogger creates a structured logger writing to w.
// format is "json" (with source locations) or "pretty" (key=value, coloured
// when w is a terminal).
func NewLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		opts.AddSource = true
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "pretty":
		return slog.New(newPrettyHandler(w, opts, isTerminal(w))), nil
	default:
		return nil, fmt.Errorf("%w: log format %q", ErrConfig, format)
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
