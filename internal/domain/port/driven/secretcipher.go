package driven

// SecretCipher seals and opens secret payloads. Encrypt output is
// self-contained: it carries everything Decrypt needs except the key.
type SecretCipher interface {
	Encrypt(plaintext []byte) ([]byte, error)

	// Decrypt returns an error wrapping model.ErrIntegrity when the blob is
	// truncated, tampered with, or sealed under a different key.
	Decrypt(blob []byte) ([]byte, error)
}
