package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrNoKeys           = errors.New("no encryption keys configured")
	ErrInvalidKey       = errors.New("invalid encryption key")
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrDecryptionFailed is returned when no configured key can open a
	// ciphertext. It is deliberately distinct from an empty plaintext so
	// callers can tell "field is empty" from "field is unreadable".
	ErrDecryptionFailed = errors.New("decryption failed")
)

// FieldEncryptor encrypts individual sensitive field values for storage.
//
// Rotation: the first key in the configured list encrypts all new values;
// every key is tried, in order, for decryption. To rotate, prepend a new
// key and keep the old one until existing ciphertexts are re-encrypted.
type FieldEncryptor interface {
	Encrypt(plaintext string) ([]byte, error)
	Decrypt(ciphertext []byte) (string, error)
}

type aeadFieldEncryptor struct {
	keys []cipher.AEAD
}

// NewFieldEncryptor builds an AES-GCM field encryptor from a single
// comma-separated config value of base64url-encoded 32-byte keys.
// An empty key list is a configuration error, not a no-op.
func NewFieldEncryptor(keyList string) (FieldEncryptor, error) {
	var keys []cipher.AEAD
	for _, part := range strings.Split(keyList, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		raw, err := base64.URLEncoding.DecodeString(part)
		if err != nil {
			return nil, fmt.Errorf("%w: not base64url", ErrInvalidKey)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("%w: need 32 bytes, got %d", ErrInvalidKey, len(raw))
		}
		block, err := aes.NewCipher(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		keys = append(keys, gcm)
	}
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	return &aeadFieldEncryptor{keys: keys}, nil
}

// GenerateFieldKey returns a fresh base64url key for initial setup.
func GenerateFieldKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

func (e *aeadFieldEncryptor) Encrypt(plaintext string) ([]byte, error) {
	// Empty values never go through the cipher; they round-trip as "".
	if plaintext == "" {
		return []byte{}, nil
	}

	gcm := e.keys[0]
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, ErrEncryptionFailed
	}

	return gcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

func (e *aeadFieldEncryptor) Decrypt(ciphertext []byte) (string, error) {
	if len(ciphertext) == 0 {
		return "", nil
	}

	for _, gcm := range e.keys {
		nonceSize := gcm.NonceSize()
		if len(ciphertext) < nonceSize {
			continue
		}
		nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
		plaintext, err := gcm.Open(nil, nonce, sealed, nil)
		if err == nil {
			return string(plaintext), nil
		}
	}

	return "", ErrDecryptionFailed
}
