package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := ansiBlue + "INFO" + ansiReset + " plain " + ansiRed + "ERR" + ansiReset
	got := stripANSI(in)
	want := "INFO plain ERR"
	if got != want {
		t.Fatalf("stripANSI()=%q want=%q", got, want)
	}
}

func TestPrettyHandlerPlain(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false))
	log.With("trace_id", "01TRACE").Info("session.status",
		"status", "CONNECTED",
		"duration_ms", int64(12),
		"note", "two words",
	)

	out := buf.String()
	for _, want := range []string{
		"lvl=[INFO]",
		"msg=session.status",
		"trace_id=01TRACE",
		"status=CONNECTED",
		"duration=12ms",
		`note="two words"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q: %q", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("unexpected colour codes: %q", out)
	}
}

func TestPrettyHandlerGroupsAndColour(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, true)).WithGroup("http")
	log.Warn("http.request", "method", "delete", "status", 404)
	log.Debug("hidden")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record written at info level: %q", out)
	}
	plain := stripANSI(out)
	for _, want := range []string{"lvl=[WARN]", "http.method=DELETE", "http.status=404"} {
		if !strings.Contains(plain, want) {
			t.Fatalf("output missing %q: %q", want, plain)
		}
	}
	if !strings.Contains(out, ansiYellow+"404"+ansiReset) {
		t.Fatalf("4xx not coloured: %q", out)
	}
}

func TestColorizeSessionStatus(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"DONE":      ansiGreen,
		"CANCELLED": ansiRed,
		"TIMEOUT":   ansiRed,
		"CONNECTED": ansiYellow,
	}
	for in, code := range cases {
		if got := colorizeSessionStatus(in, true); got != code+in+ansiReset {
			t.Fatalf("colorizeSessionStatus(%q)=%q", in, got)
		}
	}
	if got := colorizeSessionStatus("DONE", false); got != "DONE" {
		t.Fatalf("uncoloured=%q", got)
	}
}
