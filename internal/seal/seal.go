// Package seal writes optional encrypted copies of run artifacts for
// at-rest protection of shareable report bundles.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Sealer encrypts artifact bytes with AES-256-GCM. A nil Sealer is a no-op,
// matching runs where no key is configured.
type Sealer struct {
	aead cipher.AEAD
}

var errBadKey = errors.New("artifact encryption key must be 64 hex characters (32 bytes)")

// New builds a sealer from a hex-encoded 32-byte key. An empty key returns
// (nil, nil): encryption is opt-in.
func New(hexKey string) (*Sealer, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, nil
	}

	if len(hexKey) != 64 {
		return nil, errBadKey
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadKey, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Sealer{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce, returned as prefix.
func (s *Sealer) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (s *Sealer) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < s.aead.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, sealed := ciphertext[:s.aead.NonceSize()], ciphertext[s.aead.NonceSize():]

	plaintext, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("opening ciphertext: %w", err)
	}

	return plaintext, nil
}

// WriteEncryptedCopy writes path's bytes encrypted to path+".enc" and returns
// the written path. A nil receiver or a missing source file is a no-op.
func (s *Sealer) WriteEncryptedCopy(path string) (string, error) {
	if s == nil {
		return "", nil
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", nil
	}

	plaintext, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading artifact: %w", err)
	}

	ciphertext, err := s.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("encrypting artifact: %w", err)
	}

	out := path + ".enc"
	if err := os.WriteFile(out, ciphertext, 0o600); err != nil {
		return "", fmt.Errorf("writing encrypted copy: %w", err)
	}

	return out, nil
}
