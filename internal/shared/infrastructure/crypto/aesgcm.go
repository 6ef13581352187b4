// Package crypto encrypts sensitive payment fields before they reach storage.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrCiphertextTooShort is returned for input shorter than the nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Encrypter encrypts and decrypts data.
type Encrypter interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AESEncrypter uses AES-256-GCM with a random nonce prepended to each ciphertext.
type AESEncrypter struct {
	aead cipher.AEAD
}

// NewAESGCMFromBase64Key creates an AESEncrypter from a base64-encoded 32-byte key.
func NewAESGCMFromBase64Key(encodedKey string) (*AESEncrypter, error) {
	if encodedKey == "" {
		return nil, errors.New("encryption key is empty")
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes")
	}
	return newAESEncrypter(key)
}

// NewAESGCMFromPassphrase derives the key with SHA-256. Only meant for
// development databases where no key has been provisioned.
func NewAESGCMFromPassphrase(passphrase string) (*AESEncrypter, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is empty")
	}
	key := sha256.Sum256([]byte(passphrase))
	return newAESEncrypter(key[:])
}

func newAESEncrypter(key []byte) (*AESEncrypter, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESEncrypter{aead: aead}, nil
}

// Encrypt encrypts plaintext and prepends the nonce.
func (e *AESEncrypter) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ciphertext := e.aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ciphertext...), nil
}

// Decrypt decrypts ciphertext with a nonce prefix.
func (e *AESEncrypter) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := e.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrCiphertextTooShort
	}
	return e.aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
}

// FieldCipher turns an Encrypter into a text column transform: values are
// stored as base64 and empty strings stay empty.
type FieldCipher struct {
	enc Encrypter
}

// NewFieldCipher wraps an Encrypter.
func NewFieldCipher(enc Encrypter) *FieldCipher {
	return &FieldCipher{enc: enc}
}

// EncryptString encrypts a field value for storage.
func (c *FieldCipher) EncryptString(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	sealed, err := c.enc.Encrypt([]byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("encrypt field: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func (c *FieldCipher) DecryptString(stored string) (string, error) {
	if stored == "" {
		return "", nil
	}
	sealed, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("decode field: %w", err)
	}
	plain, err := c.enc.Decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("decrypt field: %w", err)
	}
	return string(plain), nil
}
