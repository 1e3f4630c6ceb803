package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	cipher, err := NewCipher(key)
	require.NoError(t, err)

	plaintext := []byte(`{"api_key":"super-secret"}`)
	sealed, err := cipher.Seal(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "super-secret")

	opened, err := cipher.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSealUsesFreshNonces(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	cipher, err := NewCipher(key)
	require.NoError(t, err)

	a, err := cipher.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := cipher.Seal([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpenRejectsTamperedAndForeignCiphertext(t *testing.T) {
	keyA, err := GenerateKey()
	require.NoError(t, err)
	keyB, err := GenerateKey()
	require.NoError(t, err)
	cipherA, err := NewCipher(keyA)
	require.NoError(t, err)
	cipherB, err := NewCipher(keyB)
	require.NoError(t, err)

	sealed, err := cipherA.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = cipherB.Open(sealed)
	assert.ErrorIs(t, err, ErrCiphertextInvalid)

	_, err = cipherA.Open("not base64!!!")
	assert.ErrorIs(t, err, ErrCiphertextInvalid)

	_, err = cipherA.Open("")
	assert.ErrorIs(t, err, ErrCiphertextInvalid)
}

func TestNewCipherRejectsBadKeys(t *testing.T) {
	_, err := NewCipher("too-short")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewCipher("")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
