package keys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// MinHMACBytes is the minimum HS256 key size accepted.
const MinHMACBytes = 32

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// HMACKey returns the key bytes of raw (trimmed).
// A value that decodes as base64 to at least MinHMACBytes is used decoded;
// otherwise the raw bytes are used.
func HMACKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	for _, enc := range base64Encodings {
		if b, err := enc.DecodeString(raw); err == nil && len(b) >= MinHMACBytes {
			return b, nil
		}
	}
	if len(raw) < MinHMACBytes {
		return nil, fmt.Errorf("%w: %d bytes, want >= %d", ErrHMACKeyTooShort, len(raw), MinHMACBytes)
	}
	return []byte(raw), nil
}

// RSAPrivateKey parses a PEM (PKCS#1, PKCS#8) or OpenSSH RSA private key.
func RSAPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrNotRSAKey)
	}

	var (
		key any
		err error
	)
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	default:
		key, err = ssh.ParseRawPrivateKey(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", strings.ToLower(block.Type), err)
	}

	rk, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotRSAKey, key)
	}
	return rk, nil
}

// LoadFile reads a key file, trimming surrounding whitespace.
func LoadFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- path is operator configuration
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return []byte(strings.TrimSpace(string(b))), nil
}
