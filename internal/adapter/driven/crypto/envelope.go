// Package crypto provides the at-rest encryption used for credential secrets:
// a SHA-256 master key deriver and an AES-256-GCM envelope cipher.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/awnumar/memguard"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

const (
	// KeySize is the length of the derived AES-256 key.
	KeySize = sha256.Size

	// NonceSize is the GCM nonce length prepended to every blob.
	NonceSize = 12

	// TagSize is the GCM authentication tag length appended to every blob.
	TagSize = 16

	// Overhead is the number of bytes a blob carries beyond the plaintext.
	Overhead = NonceSize + TagSize
)

// Compile-time interface satisfaction check.
var _ driven.SecretCipher = (*EnvelopeCipher)(nil)

// DeriveMasterKey turns the operator-supplied master secret into a 32-byte
// AES-256 key. The same secret always yields the same key.
func DeriveMasterKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("derive master key: master secret is empty: %w", model.ErrConfiguration)
	}

	sum := sha256.Sum256([]byte(secret))
	key := make([]byte, KeySize)
	copy(key, sum[:])
	memguard.WipeBytes(sum[:])

	return key, nil
}

// EnvelopeCipher seals secrets with AES-256-GCM. Each blob is laid out as
// nonce(12) || ciphertext || tag(16). The AEAD is built once and is safe for
// concurrent use.
type EnvelopeCipher struct {
	aead   cipher.AEAD
	random io.Reader
}

// NewEnvelopeCipher creates an EnvelopeCipher for a 32-byte key. The key slice
// is not retained.
func NewEnvelopeCipher(key []byte) (*EnvelopeCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("envelope cipher: key must be %d bytes, got %d: %w", KeySize, len(key), model.ErrConfiguration)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	return &EnvelopeCipher{aead: aead, random: rand.Reader}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *EnvelopeCipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := io.ReadFull(c.random, nonce); err != nil {
		return nil, fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends to nonce, producing nonce || ciphertext || tag.
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. It never returns partial
// plaintext: any authentication failure yields a nil slice and ErrIntegrity.
func (c *EnvelopeCipher) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < Overhead {
		return nil, fmt.Errorf("decrypt: blob is %d bytes, need at least %d: %w", len(blob), Overhead, model.ErrIntegrity)
	}

	nonce, sealed := blob[:NonceSize], blob[NonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: authentication failed: %w", model.ErrIntegrity)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}

	return plaintext, nil
}
