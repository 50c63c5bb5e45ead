package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Vault encrypts and decrypts opaque secrets (OAuth tokens) before they
// touch the database. AES-256-GCM with a fresh nonce per call; output is
// hex(nonce):hex(ciphertext) so decrypt needs no external state.
type Vault struct {
	keyHex string
}

func NewVault(keyHex string) *Vault {
	return &Vault{keyHex: keyHex}
}

// key validates the configured key material on every use. A missing or
// wrong-length key is a configuration error, not a crypto error.
func (v *Vault) key() ([]byte, error) {
	if v.keyHex == "" {
		return nil, errors.New("ENCRYPTION_KEY is not set")
	}
	key, err := hex.DecodeString(v.keyHex)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY is not valid hex: %v", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}
	return key, nil
}

func (v *Vault) Encrypt(plaintext string) (string, error) {
	key, err := v.key()
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(ciphertext), nil
}

func (v *Vault) Decrypt(encrypted string) (string, error) {
	key, err := v.key()
	if err != nil {
		return "", err
	}

	parts := strings.Split(encrypted, ":")
	if len(parts) != 2 {
		return "", errors.New("invalid encrypted value format")
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", errors.New("invalid encrypted value format")
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", errors.New("invalid encrypted value format")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", errors.New("invalid encrypted value format")
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %v", err)
	}

	return string(plaintext), nil
}
