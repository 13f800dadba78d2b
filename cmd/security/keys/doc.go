// Package keys loads requestor keys.
//
// It is the single source of truth for requestor key material:
//   - HMAC keys: base64 (standard or URL alphabet, padded or not) or raw bytes,
//     at least MinHMACBytes long.
//   - RSA private keys: PEM encoded PKCS#1 or PKCS#8, or OpenSSH private keys.
package keys
