package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"payhook.dev/ledger/pkg/crypto"
)

func TestHMACSHA256Hex_MatchesEqualHex(t *testing.T) {
	sig := crypto.HMACSHA256Hex([]byte("secret"), []byte("payload"))
	assert.True(t, crypto.EqualHex(sig, sig))
	assert.False(t, crypto.EqualHex(sig, "deadbeef"))
}

func TestHMACSHA512Hex_DiffersFromSHA256(t *testing.T) {
	a := crypto.HMACSHA256Hex([]byte("secret"), []byte("payload"))
	b := crypto.HMACSHA512Hex([]byte("secret"), []byte("payload"))
	assert.NotEqual(t, a, b)
}

func TestVerifyAnySecret_RotationSupport(t *testing.T) {
	payload := []byte("payload")
	oldSecret := "old_secret"
	newSecret := "new_secret"
	sig := crypto.HMACSHA256Hex([]byte(oldSecret), payload)

	ok := crypto.VerifyAnySecret([]string{newSecret, oldSecret}, payload, sig, func(secret, data []byte) string {
		return crypto.HMACSHA256Hex(secret, data)
	})
	assert.True(t, ok)

	ok = crypto.VerifyAnySecret([]string{newSecret}, payload, sig, func(secret, data []byte) string {
		return crypto.HMACSHA256Hex(secret, data)
	})
	assert.False(t, ok)
}

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t, crypto.SHA256Hex([]byte("abc")), crypto.SHA256Hex([]byte("abc")))
	assert.NotEqual(t, crypto.SHA256Hex([]byte("abc")), crypto.SHA256Hex([]byte("abd")))
}
