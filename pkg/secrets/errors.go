package secrets

import "errors"

var (
	ErrEmptyKey            = errors.New("secrets: empty key")
	ErrInvalidKey          = errors.New("secrets: key must be 32 bytes, base64 encoded")
	ErrKeyDerivationFailed = errors.New("secrets: key derivation failed")
	ErrEncryptionFailed    = errors.New("secrets: encryption failed")
	ErrDecryptionFailed    = errors.New("secrets: decryption failed")
	ErrInvalidCiphertext   = errors.New("secrets: invalid ciphertext format")
)
