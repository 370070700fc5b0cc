// Package crypto provides the signature primitives the provider adapters
// verify inbound webhooks with.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
)

// HMACSHA256Hex computes the hex-encoded HMAC-SHA256 of data under secret.
func HMACSHA256Hex(secret, data []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HMACSHA512Hex computes the hex-encoded HMAC-SHA512 of data under secret.
func HMACSHA512Hex(secret, data []byte) string {
	h := hmac.New(sha512.New, secret)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SHA256Hex computes the hex-encoded SHA-256 digest of data, with no key —
// used by the adapters to derive a fallback idempotency key from the raw
// body.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EqualHex does a constant-time comparison of two hex-encoded digests.
func EqualHex(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

// VerifyAnySecret tries compute against each candidate secret in order
// (enabling rotation) until one produces a match, consistent with the
// signature-verification loop (multiple active keys, first match wins).
func VerifyAnySecret(secrets []string, data []byte, signature string, compute func(secret []byte, data []byte) string) bool {
	for _, secret := range secrets {
		expected := compute([]byte(secret), data)
		if EqualHex(expected, signature) {
			return true
		}
	}
	return false
}
