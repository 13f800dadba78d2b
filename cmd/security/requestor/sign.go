package requestor

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/privacybydesign/irmajs/cmd/security/keys"
)

var now = time.Now

// Sign returns the requestor JWT for request.
func Sign(request any, auth Auth) (string, error) {
	if !auth.Method.Signs() {
		return "", fmt.Errorf("%w: %q cannot sign", ErrUnsupportedMethod, auth.Method)
	}

	m, err := asObject(request)
	if err != nil {
		return "", err
	}
	typ, err := sessionType(m)
	if err != nil {
		return "", err
	}
	names := claims[typ]

	payload := any(map[string]any{"request": m})
	if _, wrapped := m["request"]; wrapped {
		payload = m
	}

	c := jwt.MapClaims{
		"iat":       now().Unix(),
		"sub":       names.subject,
		names.field: payload,
	}
	if auth.Name != "" {
		c["iss"] = auth.Name
	}

	switch auth.Method {
	case MethodHMAC:
		key, err := hmacKey(auth.Key)
		if err != nil {
			return "", err
		}
		return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(key)
	default:
		key, err := rsaKey(auth.Key)
		if err != nil {
			return "", err
		}
		return jwt.NewWithClaims(jwt.SigningMethodRS256, c).SignedString(key)
	}
}

func hmacKey(k any) ([]byte, error) {
	switch v := k.(type) {
	case []byte:
		if len(v) > 0 {
			return v, nil
		}
	case string:
		if v != "" {
			return []byte(v), nil
		}
	}
	return nil, fmt.Errorf("%w: hmac needs a non-empty []byte or string key, got %T", ErrInvalidKey, k)
}

func rsaKey(k any) (*rsa.PrivateKey, error) {
	switch v := k.(type) {
	case *rsa.PrivateKey:
		if v != nil {
			return v, nil
		}
	case []byte:
		key, err := keys.RSAPrivateKey(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
		return key, nil
	case string:
		return rsaKey([]byte(v))
	}
	return nil, fmt.Errorf("%w: publickey needs an RSA private key, got %T", ErrInvalidKey, k)
}
