// Package crypto provides encryption at rest for connection credential bags.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// Errors for the credential cipher
var (
	ErrInvalidKey        = errors.New("crypto: key must be 32 bytes, base64 encoded")
	ErrCiphertextInvalid = errors.New("crypto: ciphertext is corrupt or was sealed with a different key")
)

// Cipher seals and opens small secrets with an authenticated symmetric
// scheme. Each Seal call uses a fresh random nonce prepended to the
// ciphertext, so sealing the same plaintext twice yields different outputs.
type Cipher struct {
	key [keySize]byte
}

// NewCipher creates a cipher from a base64-encoded 32-byte key.
func NewCipher(encodedKey string) (*Cipher, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil || len(raw) != keySize {
		return nil, ErrInvalidKey
	}
	c := &Cipher{}
	copy(c.key[:], raw)
	return c, nil
}

// GenerateKey returns a fresh base64-encoded key suitable for NewCipher.
func GenerateKey() (string, error) {
	raw := make([]byte, keySize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("crypto: generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Seal encrypts plaintext and returns a base64-encoded nonce+ciphertext.
func (c *Cipher) Seal(plaintext []byte) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("crypto: generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &c.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Tampered or foreign ciphertexts
// return ErrCiphertextInvalid.
func (c *Cipher) Open(encoded string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(sealed) < nonceSize {
		return nil, ErrCiphertextInvalid
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &c.key)
	if !ok {
		return nil, ErrCiphertextInvalid
	}
	return plaintext, nil
}
