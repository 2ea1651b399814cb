package envelope

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	cryptoDomain "github.com/coregate/gateway/internal/crypto/domain"
	cryptoService "github.com/coregate/gateway/internal/crypto/service"
	apperrors "github.com/coregate/gateway/internal/errors"
)

// localFileKeySize is the size, in bytes, of the local envelope key file.
const localFileKeySize = 32

// LocalBackend wraps/unwraps data keys with a 32-byte AES-256-GCM key read
// from (or created at) a local file path. The file is created on first use
// with cryptographically strong randomness and mode-600 intent; its length
// is validated on every read.
type LocalBackend struct {
	mu     sync.Mutex
	path   string
	key    []byte
	cipher cryptoService.AEAD
}

// NewLocalBackend creates-or-opens the key file at path and returns a
// Backend bound to it.
func NewLocalBackend(path string) (*LocalBackend, error) {
	key, err := getOrCreateLocalKey(path)
	if err != nil {
		return nil, err
	}

	aead, err := cryptoService.NewAESGCM(key)
	if err != nil {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	return &LocalBackend{path: path, key: key, cipher: aead}, nil
}

// getOrCreateLocalKey reads the key file at path, validating its length, or
// generates a fresh 32 random bytes and writes them with mode 0600 if the
// file does not yet exist.
func getOrCreateLocalKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != localFileKeySize {
			return nil, fmt.Errorf("%w: local key file %q has %d bytes, want %d", cryptoDomain.ErrInvalidKeySize, path, len(data), localFileKeySize)
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrBackendFailure, err)
	}

	key := make([]byte, localFileKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate local key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrBackendFailure, err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrBackendFailure, err)
	}

	return key, nil
}

// Wrap encrypts plaintext under the local file key, prefixing the 12-byte
// nonce to the AEAD ciphertext.
func (b *LocalBackend) Wrap(_ context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, cryptoDomain.ErrEmptyPlaintext
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ciphertext, nonce, err := b.cipher.Encrypt(plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrBackendWrap, err)
	}

	return append(nonce, ciphertext...), nil
}

// Unwrap reverses Wrap: splits the nonce prefix and decrypts the remainder.
func (b *LocalBackend) Unwrap(_ context.Context, blob []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	nonceSize := b.cipher.NonceSize()
	if len(blob) < nonceSize {
		return nil, cryptoDomain.ErrInvalidCiphertext
	}

	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := b.cipher.Decrypt(ciphertext, nonce, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrBackendUnwrap, err)
	}

	return plaintext, nil
}

// Generate creates a fresh 32-byte data key and wraps it under the local file key.
func (b *LocalBackend) Generate(ctx context.Context) ([]byte, []byte, error) {
	plaintext := make([]byte, localFileKeySize)
	if _, err := rand.Read(plaintext); err != nil {
		return nil, nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	encrypted, err := b.Wrap(ctx, plaintext)
	if err != nil {
		return nil, nil, err
	}

	return encrypted, plaintext, nil
}
