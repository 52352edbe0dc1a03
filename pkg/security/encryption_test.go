package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustKey(t *testing.T) string {
	t.Helper()
	key, err := GenerateFieldKey()
	require.NoError(t, err)
	return key
}

func TestRoundTrip(t *testing.T) {
	enc, err := NewFieldEncryptor(mustKey(t))
	require.NoError(t, err)

	for _, plaintext := range []string{
		"Jane",
		"555-0100",
		"multi\nline\nassessment text",
		"unicode: émilie Ḑ 北",
	} {
		ct, err := enc.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, []byte(plaintext), ct)

		got, err := enc.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEmptyValueShortCircuit(t *testing.T) {
	enc, err := NewFieldEncryptor(mustKey(t))
	require.NoError(t, err)

	ct, err := enc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, ct)

	got, err := enc.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	got, err = enc.Decrypt(nil)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestKeyRotation(t *testing.T) {
	oldKey := mustKey(t)
	newKey := mustKey(t)

	oldEnc, err := NewFieldEncryptor(oldKey)
	require.NoError(t, err)
	ct, err := oldEnc.Encrypt("written under the old key")
	require.NoError(t, err)

	// New key prepended: old ciphertexts still readable.
	rotated, err := NewFieldEncryptor(newKey + "," + oldKey)
	require.NoError(t, err)
	got, err := rotated.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "written under the old key", got)

	// New encryptions use the first key only.
	ct2, err := rotated.Encrypt("written after rotation")
	require.NoError(t, err)
	newOnly, err := NewFieldEncryptor(newKey)
	require.NoError(t, err)
	got, err = newOnly.Decrypt(ct2)
	require.NoError(t, err)
	assert.Equal(t, "written after rotation", got)

	// The old key alone cannot read post-rotation data.
	_, err = oldEnc.Decrypt(ct2)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptFailureIsDistinguishable(t *testing.T) {
	enc, err := NewFieldEncryptor(mustKey(t))
	require.NoError(t, err)

	ct, err := enc.Encrypt("sensitive")
	require.NoError(t, err)

	// Tampering must be detected, not decrypted to garbage.
	ct[len(ct)-1] ^= 0xff
	got, err := enc.Decrypt(ct)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
	assert.Empty(t, got)

	// Truncated below nonce size.
	_, err = enc.Decrypt([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestKeyListValidation(t *testing.T) {
	_, err := NewFieldEncryptor("")
	assert.ErrorIs(t, err, ErrNoKeys)

	_, err = NewFieldEncryptor(" , ,")
	assert.ErrorIs(t, err, ErrNoKeys)

	_, err = NewFieldEncryptor("not-base64!!")
	assert.ErrorIs(t, err, ErrInvalidKey)

	// Right encoding, wrong length.
	_, err = NewFieldEncryptor("c2hvcnQ=")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
