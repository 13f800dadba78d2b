package requestor

import (
	"fmt"
	"strings"
)

// Method is the requestor authentication method.
type Method string

const (
	MethodNone      Method = "none"
	MethodToken     Method = "token"
	MethodHMAC      Method = "hmac"
	MethodPublicKey Method = "publickey"
)

// ParseMethod parses a method name; empty means MethodNone.
func ParseMethod(raw string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return MethodNone, nil
	case MethodNone, MethodToken, MethodHMAC, MethodPublicKey:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, raw)
	}
}

// Signs reports whether requests are sent as a signed JWT.
func (m Method) Signs() bool {
	return m == MethodHMAC || m == MethodPublicKey
}

// Auth is the requestor authentication configuration.
//
// Key is the token string for MethodToken, a []byte or string secret for
// MethodHMAC and an *rsa.PrivateKey or PEM/OpenSSH bytes for MethodPublicKey.
// Name is the requestor name, sent as the JWT issuer.
type Auth struct {
	Method Method
	Key    any
	Name   string
}
