package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

func newTestCipher(t *testing.T, secret string) *EnvelopeCipher {
	t.Helper()

	key, err := DeriveMasterKey(secret)
	require.NoError(t, err)

	c, err := NewEnvelopeCipher(key)
	require.NoError(t, err)
	return c
}

func TestDeriveMasterKey(t *testing.T) {
	a, err := DeriveMasterKey("correct horse battery staple")
	require.NoError(t, err)
	assert.Len(t, a, KeySize)

	b, err := DeriveMasterKey("correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, a, b, "derivation must be deterministic")

	other, err := DeriveMasterKey("another secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestDeriveMasterKey_Empty(t *testing.T) {
	_, err := DeriveMasterKey("")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestNewEnvelopeCipher_RejectsBadKeyLength(t *testing.T) {
	_, err := NewEnvelopeCipher(make([]byte, 16))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestEnvelopeCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t, "master")

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{name: "empty", plaintext: []byte{}},
		{name: "short", plaintext: []byte("p@ss!")},
		{name: "binary", plaintext: []byte{0x00, 0xff, 0x10, 0x00}},
		{name: "large", plaintext: bytes.Repeat([]byte("s3cr3t"), 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := c.Encrypt(tt.plaintext)
			require.NoError(t, err)
			assert.Len(t, blob, len(tt.plaintext)+Overhead)

			got, err := c.Decrypt(blob)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, got)
		})
	}
}

func TestEnvelopeCipher_DistinctBlobs(t *testing.T) {
	c := newTestCipher(t, "master")
	seen := make(map[string]struct{}, 1000)

	for range 1000 {
		blob, err := c.Encrypt([]byte("same plaintext"))
		require.NoError(t, err)
		seen[string(blob)] = struct{}{}
	}

	assert.Len(t, seen, 1000)
}

func TestEnvelopeCipher_EveryBitFlipFails(t *testing.T) {
	c := newTestCipher(t, "master")

	blob, err := c.Encrypt([]byte("hunter2"))
	require.NoError(t, err)

	for i := range len(blob) * 8 {
		tampered := bytes.Clone(blob)
		tampered[i/8] ^= 1 << (i % 8)

		got, err := c.Decrypt(tampered)
		require.ErrorIs(t, err, model.ErrIntegrity, "bit %d", i)
		assert.Nil(t, got, "bit %d", i)
	}
}

func TestEnvelopeCipher_WrongKey(t *testing.T) {
	blob, err := newTestCipher(t, "key-one").Encrypt([]byte("hunter2"))
	require.NoError(t, err)

	got, err := newTestCipher(t, "key-two").Decrypt(blob)
	assert.ErrorIs(t, err, model.ErrIntegrity)
	assert.Nil(t, got)
}

func TestEnvelopeCipher_ShortBlob(t *testing.T) {
	c := newTestCipher(t, "master")

	for _, n := range []int{0, 1, NonceSize, Overhead - 1} {
		_, err := c.Decrypt(make([]byte, n))
		assert.ErrorIs(t, err, model.ErrIntegrity, "length %d", n)
	}
}
