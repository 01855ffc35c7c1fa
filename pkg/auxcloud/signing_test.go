package auxcloud

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	// SHA1 over password||salt, hex encoded.
	assert.Equal(t, "8d61ac230285438b935352d0a935edf5262e58f8", hashPassword("hunter2"))
	assert.NotEqual(t, hashPassword("hunter2"), hashPassword("hunter3"))
}

func TestBodyToken(t *testing.T) {
	assert.Equal(t, "94ac5f9ebf15f4d752d6445f469f2024", bodyToken([]byte(`{"email":"a@b.c"}`)))
}

func TestEncryptionKey(t *testing.T) {
	key := encryptionKey("1700000000.5")
	assert.Equal(t, "31400a7f6fc6a789057048e88ab26dc2", hex.EncodeToString(key))
	assert.Len(t, key, 16)
}

func TestEncryptBodyRoundTrip(t *testing.T) {
	key := encryptionKey("1700000000.5")

	for _, size := range []int{0, 1, 15, 16, 17, 31, 32, 100} {
		plaintext := bytes.Repeat([]byte{0xAB}, size)

		ciphertext, err := encryptBody(key, plaintext)
		require.NoError(t, err)

		// Zero padding always adds at least one byte, so a block
		// aligned input gains a full extra block.
		wantLen := size + (16 - size%16)
		assert.Equal(t, wantLen, len(ciphertext), "size %d", size)

		decrypted, err := decryptBody(key, ciphertext)
		require.NoError(t, err)

		assert.Equal(t, plaintext, decrypted[:size], "size %d", size)
		assert.Equal(t, bytes.Repeat([]byte{0}, wantLen-size), decrypted[size:], "size %d padding", size)
	}
}

func TestEncryptBodyDeterministic(t *testing.T) {
	// The IV is fixed by the protocol, so identical inputs must yield
	// identical ciphertext.
	key := encryptionKey("1700000000.5")

	a, err := encryptBody(key, []byte("same input"))
	require.NoError(t, err)
	b, err := encryptBody(key, []byte("same input"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestDecryptBodyRejectsPartialBlock(t *testing.T) {
	_, err := decryptBody(encryptionKey("1"), make([]byte, 17))
	assert.Error(t, err)
}
