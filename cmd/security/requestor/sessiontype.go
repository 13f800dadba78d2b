package requestor

import (
	"encoding/json"
	"fmt"

	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

const ldContextPrefix = "https://irma.app/ld/request/"

var contexts = map[string]v1.Type{
	ldContextPrefix + "disclosure/v2": v1.TypeDisclosing,
	ldContextPrefix + "issuance/v2":   v1.TypeIssuing,
	ldContextPrefix + "signature/v2":  v1.TypeSigning,
}

type claimNames struct {
	field   string
	subject string
}

var claims = map[v1.Type]claimNames{
	v1.TypeDisclosing: {field: "sprequest", subject: "verification_request"},
	v1.TypeIssuing:    {field: "iprequest", subject: "issue_request"},
	v1.TypeSigning:    {field: "absrequest", subject: "signature_request"},
}

// SessionType determines the session type of a request from its legacy
// "type" member or its "@context" member.
func SessionType(request any) (v1.Type, error) {
	m, err := asObject(request)
	if err != nil {
		return "", err
	}
	return sessionType(m)
}

func sessionType(m map[string]any) (v1.Type, error) {
	if s, ok := m["type"].(string); ok {
		if t := v1.Type(s); t.Known() {
			return t, nil
		}
	}
	if s, ok := m["@context"].(string); ok {
		if t, ok := contexts[s]; ok {
			return t, nil
		}
	}
	// Wrapped requests carry the type on the inner request.
	if inner, ok := m["request"].(map[string]any); ok {
		return sessionType(inner)
	}
	return "", ErrNotASessionRequest
}

// asObject returns request as a decoded JSON object.
func asObject(request any) (map[string]any, error) {
	var raw []byte
	switch r := request.(type) {
	case map[string]any:
		return r, nil
	case json.RawMessage:
		raw = r
	case []byte:
		raw = r
	case string:
		raw = []byte(r)
	default:
		b, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotASessionRequest, err)
		}
		raw = b
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrNotASessionRequest)
	}
	return m, nil
}
