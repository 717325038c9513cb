// Package credential resolves a tenant's decrypted upstream bearer token.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 100000
)

var errCiphertextTooShort = errors.New("ciphertext too short")

// Cipher seals tokens with AES-256-GCM under a pbkdf2-derived key.
// Sealed form: base64(salt || nonce || ciphertext).
type Cipher struct {
	secret []byte
}

func NewCipher(secret string) *Cipher {
	return &Cipher{secret: []byte(secret)}
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := c.gcm(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	out := append(salt, nonce...)
	out = gcm.Seal(out, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *Cipher) Decrypt(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(data) < saltSize {
		return "", errCiphertextTooShort
	}

	gcm, err := c.gcm(data[:saltSize])
	if err != nil {
		return "", err
	}

	rest := data[saltSize:]
	if len(rest) < gcm.NonceSize() {
		return "", errCiphertextTooShort
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plaintext), nil
}

func (c *Cipher) gcm(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.secret, salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}
