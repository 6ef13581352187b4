package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateValidKey() string {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestNewAESGCMFromBase64Key(t *testing.T) {
	t.Run("creates encrypter with valid 32-byte key", func(t *testing.T) {
		encrypter, err := NewAESGCMFromBase64Key(generateValidKey())
		require.NoError(t, err)
		assert.NotNil(t, encrypter)
	})

	t.Run("returns error for empty key", func(t *testing.T) {
		_, err := NewAESGCMFromBase64Key("")
		assert.ErrorContains(t, err, "encryption key is empty")
	})

	t.Run("returns error for invalid base64", func(t *testing.T) {
		_, err := NewAESGCMFromBase64Key("not-valid-base64!!!")
		assert.Error(t, err)
	})

	t.Run("returns error for short key", func(t *testing.T) {
		_, err := NewAESGCMFromBase64Key(base64.StdEncoding.EncodeToString([]byte("short")))
		assert.ErrorContains(t, err, "32 bytes")
	})
}

func TestAESEncrypter_RoundTrip(t *testing.T) {
	enc, err := NewAESGCMFromBase64Key(generateValidKey())
	require.NoError(t, err)

	first, err := enc.Encrypt([]byte("4111111111111111"))
	require.NoError(t, err)
	second, err := enc.Encrypt([]byte("4111111111111111"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "nonce must differ per call")

	plain, err := enc.Decrypt(first)
	require.NoError(t, err)
	assert.Equal(t, "4111111111111111", string(plain))

	_, err = enc.Decrypt([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	first[len(first)-1] ^= 0xff
	_, err = enc.Decrypt(first)
	assert.Error(t, err)
}

func TestFieldCipher(t *testing.T) {
	enc, err := NewAESGCMFromPassphrase("dev-only")
	require.NoError(t, err)
	fc := NewFieldCipher(enc)

	stored, err := fc.EncryptString("ES9121000418450200051332")
	require.NoError(t, err)
	assert.NotContains(t, stored, "ES9121")

	plain, err := fc.DecryptString(stored)
	require.NoError(t, err)
	assert.Equal(t, "ES9121000418450200051332", plain)

	empty, err := fc.EncryptString("")
	require.NoError(t, err)
	assert.Empty(t, empty)
	plain, err = fc.DecryptString("")
	require.NoError(t, err)
	assert.Empty(t, plain)

	_, err = fc.DecryptString("%%%")
	assert.Error(t, err)

	other, err := NewAESGCMFromPassphrase("another")
	require.NoError(t, err)
	_, err = NewFieldCipher(other).DecryptString(stored)
	assert.Error(t, err)
}
