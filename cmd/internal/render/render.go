// Package render presents session pointers on a terminal or in logs.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/privacybydesign/irmajs/cmd/session"
	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

// Console renders a session for a person at a terminal: the translated
// session text, the pointer to scan and status updates.
type Console struct {
	Out io.Writer
	// Terminal reports whether Out is an interactive terminal.
	Terminal bool

	mu   sync.Mutex
	lang string
}

// NewConsole renders on f, which is interactive when it is a terminal.
func NewConsole(f *os.File) *Console {
	return &Console{Out: f, Terminal: term.IsTerminal(int(f.Fd()))}
}

func (c *Console) CanRender() bool { return c.Terminal }

func (c *Console) Render(_ context.Context, p session.Presentation) error {
	ptr, err := json.Marshal(p.Pointer)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.lang = p.Language
	c.mu.Unlock()

	title, body := TypeText(p.Language, p.Pointer.Type)
	if title != "" {
		if _, err := fmt.Fprintf(c.Out, "IRMA %s\n%s\n\n", title, body); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(c.Out, "%s\n\n%s (Ctrl+C)\n", ptr, Translate(p.Language, "Common.Cancel"))
	return err
}

func (c *Console) ShowStatus(_ context.Context, s v1.Status) {
	c.mu.Lock()
	lang := c.lang
	c.mu.Unlock()

	switch s {
	case v1.StatusConnected:
		_, _ = fmt.Fprintln(c.Out, Translate(lang, "Messages.FollowInstructions"))
	default:
		_, _ = fmt.Fprintf(c.Out, "%s\n", s)
	}
}

// Headless writes the pointer as a single JSON line, for another process
// to present.
type Headless struct {
	Out io.Writer
}

type headlessLine struct {
	Pointer             v1.Pointer `json:"sessionPtr"`
	Language            string     `json:"language"`
	DisableAutoRedirect bool       `json:"disableAutoRedirect,omitempty"`
	TraceID             string     `json:"traceId"`
}

func (h *Headless) Render(_ context.Context, p session.Presentation) error {
	return json.NewEncoder(h.Out).Encode(headlessLine{
		Pointer:             p.Pointer,
		Language:            p.Language,
		DisableAutoRedirect: p.DisableAutoRedirect,
		TraceID:             p.TraceID,
	})
}

// ForMethod returns the renderer the CLI uses for method, writing to w.
func ForMethod(m session.Method, w io.Writer) session.Renderer {
	switch m {
	case session.MethodInteractive, session.MethodCustomCanvas:
		if f, ok := w.(*os.File); ok {
			return NewConsole(f)
		}
		return &Console{Out: w}
	case session.MethodHeadless:
		return &Headless{Out: w}
	default:
		return nil
	}
}
