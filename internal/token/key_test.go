package token

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSigningKey_Distinct(t *testing.T) {
	a, err := GenerateSigningKey()
	require.NoError(t, err)
	b, err := GenerateSigningKey()
	require.NoError(t, err)

	assert.False(t, a.IsZero())
	assert.NotEqual(t, a.b, b.b)
}

func TestSigningKeyFromBase64(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}

	key, err := SigningKeyFromBase64(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, key.b)

	key, err = SigningKeyFromBase64(base64.RawURLEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, key.b)
}

func TestSigningKeyFromBase64_TooShort(t *testing.T) {
	_, err := SigningKeyFromBase64(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestSigningKeyFromBase64_NotBase64(t *testing.T) {
	_, err := SigningKeyFromBase64("***not-base64***")
	assert.Error(t, err)
}

func TestSigningKey_ZeroValue(t *testing.T) {
	var k SigningKey
	assert.True(t, k.IsZero())
}
