package cryptox

import (
	"bytes"
	"testing"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)

	cases := [][]byte{
		[]byte("hello"),
		[]byte(""),
		bytes.Repeat([]byte{0xAB}, 4096),
		{0x00},
	}

	for _, plaintext := range cases {
		blob, err := Encrypt(key, plaintext)
		require.NoError(t, err)

		got, err := Decrypt(key, blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncrypt_NonceIsFresh(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)

	a, err := Encrypt(key, []byte("same input"))
	require.NoError(t, err)
	b, err := Encrypt(key, []byte("same input"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "two encryptions of the same plaintext must differ")
}

func TestDecrypt_WrongKey(t *testing.T) {
	keyA := common.GenerateRandByteArray(KeySize)
	keyB := common.GenerateRandByteArray(KeySize)

	blob, err := Encrypt(keyA, []byte("secret"))
	require.NoError(t, err)

	_, err = Decrypt(keyB, blob)
	require.ErrorIs(t, err, common.ErrDecryption)
}

func TestDecrypt_Tampered(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)

	blob, err := Encrypt(key, []byte("secret"))
	require.NoError(t, err)

	blob[len(blob)-1] ^= 0xFF
	_, err = Decrypt(key, blob)
	require.ErrorIs(t, err, common.ErrDecryption)
}

func TestDecrypt_Truncated(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	_, err := Decrypt(key, []byte{1, 2, 3})
	require.ErrorIs(t, err, common.ErrDecryption)
}

func TestDeriveKey_DeterministicAndSaltSensitive(t *testing.T) {
	password := []byte("correct horse battery staple")
	saltA := common.GenerateRandByteArray(SaltSize)
	saltB := common.GenerateRandByteArray(SaltSize)

	k1 := DeriveKey(password, saltA)
	k2 := DeriveKey(password, saltA)
	k3 := DeriveKey(password, saltB)

	assert.Len(t, k1, KeySize)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestMakeVerifier_StableAndKeyed(t *testing.T) {
	k1 := common.GenerateRandByteArray(KeySize)
	k2 := common.GenerateRandByteArray(KeySize)

	assert.Equal(t, MakeVerifier(k1), MakeVerifier(k1))
	assert.NotEqual(t, MakeVerifier(k1), MakeVerifier(k2))
}
