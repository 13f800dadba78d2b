package session

import (
	"fmt"
	"strings"

	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

// Method selects how the session pointer is presented.
type Method string

const (
	// MethodImmediate never renders; the caller presents the pointer itself.
	MethodImmediate Method = "immediate"
	// MethodInteractive renders through a Renderer on a host able to render.
	MethodInteractive Method = "interactive"
	// MethodHeadless renders through a Renderer when given, else logs the pointer.
	MethodHeadless Method = "headless"
	// MethodCustomCanvas renders onto a caller-provided Renderer.
	MethodCustomCanvas Method = "custom-canvas"
)

// ParseMethod parses a method name; empty means MethodInteractive.
func ParseMethod(raw string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return MethodInteractive, nil
	case MethodImmediate, MethodInteractive, MethodHeadless, MethodCustomCanvas:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, raw)
	}
}

// ResultKind selects the result endpoint.
type ResultKind int

const (
	ResultJSON      ResultKind = iota // GET {server}/session/{token}/result
	ResultJWT                         // GET {server}/session/{token}/result-jwt
	ResultLegacyJWT                   // GET {server}/session/{token}/getproof
)

func (k ResultKind) endpoint() string {
	switch k {
	case ResultJWT:
		return "result-jwt"
	case ResultLegacyJWT:
		return "getproof"
	default:
		return "result"
	}
}

// ResultParser decodes a JSON result body.
type ResultParser func(body []byte) (any, error)

// Options configures one handled session.
type Options struct {
	Method Method

	// ReturnStatus is the status at which the lifecycle hands control back.
	// One of Initialized, Connected or Done (default).
	ReturnStatus v1.Status

	// Server, when set, is the server the result is fetched from once Done.
	Server string

	// ResultAsToken fetches the signed result-jwt instead of the JSON result.
	ResultAsToken bool
	// LegacyResultJWT fetches the signed result from the legacy getproof endpoint.
	LegacyResultJWT bool

	Language            string
	DisableAutoRedirect bool

	Renderer     Renderer
	ResultParser ResultParser
}

// Validate checks o and returns it with defaults applied.
// It never touches the network.
func (o Options) Validate() (Options, error) {
	m, err := ParseMethod(string(o.Method))
	if err != nil {
		return Options{}, err
	}
	o.Method = m

	if o.ReturnStatus == "" {
		o.ReturnStatus = v1.StatusDone
	}
	switch o.ReturnStatus {
	case v1.StatusInitialized, v1.StatusConnected, v1.StatusDone:
	default:
		return Options{}, fmt.Errorf("%w: returnStatus %q", ErrInvalidOptions, o.ReturnStatus)
	}

	o.Server = strings.TrimRight(strings.TrimSpace(o.Server), "/")
	if (o.ResultAsToken || o.LegacyResultJWT) && o.Server == "" {
		return Options{}, fmt.Errorf("%w: result token requires server", ErrInvalidOptions)
	}
	if o.Server != "" && o.ReturnStatus != v1.StatusDone {
		return Options{}, fmt.Errorf("%w: server requires returnStatus %s", ErrInvalidOptions, v1.StatusDone)
	}

	switch o.Method {
	case MethodInteractive:
		if o.Renderer == nil {
			return Options{}, fmt.Errorf("%w: method %s requires a renderer", ErrInvalidOptions, o.Method)
		}
		if h, ok := o.Renderer.(Host); ok && !h.CanRender() {
			return Options{}, fmt.Errorf("%w: method %s: host cannot render", ErrUnsupportedMethod, o.Method)
		}
	case MethodCustomCanvas:
		if o.Renderer == nil {
			return Options{}, fmt.Errorf("%w: method %s requires a renderer", ErrInvalidOptions, o.Method)
		}
	}

	if o.Language == "" {
		o.Language = "en"
	}
	if o.ResultParser == nil {
		o.ResultParser = parseJSONResult
	}
	return o, nil
}

func (o Options) resultKind() ResultKind {
	switch {
	case o.LegacyResultJWT:
		return ResultLegacyJWT
	case o.ResultAsToken:
		return ResultJWT
	default:
		return ResultJSON
	}
}
