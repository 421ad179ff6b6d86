package apicrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeyIsDeterministic(t *testing.T) {
	key1 := DeriveKey("imei-1", "secret")
	key2 := DeriveKey("imei-1", "secret")
	key3 := DeriveKey("imei-2", "secret")

	assert.Len(t, key1, 16)
	assert.Equal(t, key1, key2)
	assert.NotEqual(t, key1, key3)
}

func TestNewCipherRejectsBadKeySize(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	assert.Error(t, err)
}

func TestEncryptDecryptParams(t *testing.T) {
	c, err := NewCipher(DeriveKey("imei-1", "secret"))
	require.NoError(t, err)

	params := map[string]string{
		"thread_id": "g-42",
		"message":   "hello",
	}

	encoded, err := c.EncryptParams(params)
	require.NoError(t, err)
	assert.NotContains(t, encoded, "hello")

	decoded, err := c.DecryptParams(encoded)
	require.NoError(t, err)
	assert.Equal(t, params, decoded)
}

func TestDecryptParamsRejectsGarbage(t *testing.T) {
	c, err := NewCipher(DeriveKey("imei-1", "secret"))
	require.NoError(t, err)

	_, err = c.DecryptParams("not base64 at all!")
	assert.Error(t, err)

	_, err = c.DecryptParams("AAAA")
	assert.Error(t, err)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	c1, err := NewCipher(DeriveKey("imei-1", "secret"))
	require.NoError(t, err)
	c2, err := NewCipher(DeriveKey("imei-2", "secret"))
	require.NoError(t, err)

	encoded, err := c1.EncryptParams(map[string]string{"k": "v"})
	require.NoError(t, err)

	_, err = c2.DecryptParams(encoded)
	assert.Error(t, err)
}
