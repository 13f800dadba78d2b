package requestor

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Encoded is a session start request ready to POST.
type Encoded struct {
	Body   []byte
	Header http.Header
}

// Encode prepares request for POST {server}/session under auth.
// Methods none and token never sign.
func Encode(request any, auth Auth) (Encoded, error) {
	method := auth.Method
	if method == "" {
		method = MethodNone
	}

	switch method {
	case MethodNone, MethodToken:
		body, err := marshalRequest(request)
		if err != nil {
			return Encoded{}, err
		}
		h := http.Header{}
		h.Set("Content-Type", "application/json")
		if method == MethodToken {
			token, ok := auth.Key.(string)
			if !ok || token == "" {
				return Encoded{}, fmt.Errorf("%w: token method needs a string key", ErrInvalidKey)
			}
			h.Set("Authorization", token)
		}
		return Encoded{Body: body, Header: h}, nil

	case MethodHMAC, MethodPublicKey:
		signed, err := Sign(request, auth)
		if err != nil {
			return Encoded{}, err
		}
		h := http.Header{}
		h.Set("Content-Type", "text/plain")
		return Encoded{Body: []byte(signed), Header: h}, nil

	default:
		return Encoded{}, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
}

func marshalRequest(request any) ([]byte, error) {
	switch r := request.(type) {
	case json.RawMessage:
		return r, nil
	case []byte:
		return r, nil
	case string:
		return []byte(r), nil
	}
	b, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return b, nil
}
