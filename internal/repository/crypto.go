package repository

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
)

// NewAEADFromKey derives an AES-256-GCM cipher from arbitrary key material.
func NewAEADFromKey(material []byte) (cipher.AEAD, error) {
	if len(material) == 0 {
		return nil, errors.New("empty key material")
	}
	key := sha256.Sum256(material)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

// NewAEADFromKeyFile derives the cipher from the contents of a key file.
func NewAEADFromKeyFile(path string) (cipher.AEAD, error) {
	material, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return NewAEADFromKey(material)
}

// seal encrypts plain and returns base64(nonce || ciphertext).
func seal(aead cipher.AEAD, plain []byte) (string, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ct := aead.Seal(nonce, nonce, plain, nil)
	return base64.StdEncoding.EncodeToString(ct), nil
}

func unseal(aead cipher.AEAD, encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decode sealed payload: %v", ErrCorrupt, err)
	}
	if len(data) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: sealed payload too short", ErrCorrupt)
	}
	nonce, ct := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong key or tampered payload", ErrSealed)
	}
	return plain, nil
}
