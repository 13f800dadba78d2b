package session

import (
	"context"

	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

// Presentation is what a Renderer presents for one session.
type Presentation struct {
	Pointer             v1.Pointer
	Method              Method
	Language            string
	DisableAutoRedirect bool
	TraceID             string
}

// Renderer presents a session pointer to the user. Nothing the lifecycle
// does depends on what it renders.
type Renderer interface {
	Render(ctx context.Context, p Presentation) error
}

// Host is implemented by renderers that can tell whether their host is able
// to render interactively (e.g. a terminal is attached).
type Host interface {
	CanRender() bool
}

// StatusRenderer is implemented by renderers that follow status changes,
// including the failure status that ended a session.
type StatusRenderer interface {
	ShowStatus(ctx context.Context, s v1.Status)
}
