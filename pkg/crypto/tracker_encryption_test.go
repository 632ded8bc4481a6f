package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptor(t *testing.T) {
	enc, err := NewEncryptor("secret")
	require.NoError(t, err)

	ct, err := enc.Encrypt("ya29.token")
	require.NoError(t, err)
	assert.NotEqual(t, "ya29.token", ct)

	pt, err := enc.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "ya29.token", pt)

	again, err := enc.Encrypt("ya29.token")
	require.NoError(t, err)
	assert.NotEqual(t, ct, again, "nonce must differ per call")
}

func TestEncryptor_Empty(t *testing.T) {
	enc, err := NewEncryptor("secret")
	require.NoError(t, err)

	ct, err := enc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, ct)

	pt, err := enc.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, pt)
}

func TestEncryptor_WrongKey(t *testing.T) {
	a, _ := NewEncryptor("one")
	b, _ := NewEncryptor("two")

	ct, err := a.Encrypt("value")
	require.NoError(t, err)

	_, err = b.Decrypt(ct)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncryptor_Invalid(t *testing.T) {
	_, err := NewEncryptor("")
	assert.ErrorIs(t, err, ErrEmptySecret)

	enc, _ := NewEncryptor("secret")
	_, err = enc.Decrypt("c2hvcnQ=")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = enc.Decrypt("%%%")
	assert.Error(t, err)
}
