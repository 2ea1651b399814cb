// Package cipher implements the content cipher: AEAD encryption of UTF-8
// payloads under a single decrypted data encryption key, using the
// nonce-prefixed base64 wire format.
package cipher

import (
	"encoding/base64"
	"fmt"

	cryptoDomain "github.com/coregate/gateway/internal/crypto/domain"
	cryptoService "github.com/coregate/gateway/internal/crypto/service"
)

// EncryptionService encrypts plaintext under one immutable 32-byte DEK.
// Associated data is always empty.
type EncryptionService struct {
	aead cryptoService.AEAD
	key  []byte
}

// DecryptionService decrypts ciphertext under one immutable 32-byte DEK.
type DecryptionService struct {
	aead cryptoService.AEAD
	key  []byte
}

// NewEncryptionService builds an EncryptionService over a decrypted DEK.
// key is retained (not copied) so Close can wipe it.
func NewEncryptionService(manager cryptoService.AEADManager, key []byte, alg cryptoDomain.Algorithm) (*EncryptionService, error) {
	aead, err := manager.CreateCipher(key, alg)
	if err != nil {
		return nil, err
	}
	return &EncryptionService{aead: aead, key: key}, nil
}

// NewDecryptionService builds a DecryptionService over a decrypted DEK.
func NewDecryptionService(manager cryptoService.AEADManager, key []byte, alg cryptoDomain.Algorithm) (*DecryptionService, error) {
	aead, err := manager.CreateCipher(key, alg)
	if err != nil {
		return nil, err
	}
	return &DecryptionService{aead: aead, key: key}, nil
}

// Encrypt returns base64(STANDARD) of nonce(12 bytes) ‖ AEAD-ciphertext.
// Encrypting the same plaintext twice yields distinct output: the nonce is
// freshly generated per call.
func (e *EncryptionService) Encrypt(plaintext string) (string, error) {
	ciphertext, nonce, err := e.aead.Encrypt([]byte(plaintext), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", cryptoDomain.ErrEncryptionFailed, err)
	}

	blob := append(nonce, ciphertext...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Close wipes the held DEK bytes. Safe to call more than once.
func (e *EncryptionService) Close() {
	cryptoDomain.Zero(e.key)
}

// Decrypt reverses Encrypt: base64-decodes, validates minimum length,
// splits the 12-byte nonce, and performs AEAD verification. On any failure
// it returns ErrDecryptionFailed and never partial plaintext.
func (d *DecryptionService) Decrypt(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", cryptoDomain.ErrInvalidCiphertext
	}

	nonceSize := d.aead.NonceSize()
	if len(blob) < nonceSize {
		return "", cryptoDomain.ErrInvalidCiphertext
	}

	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := d.aead.Decrypt(ciphertext, nonce, nil)
	if err != nil {
		return "", cryptoDomain.ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// Close wipes the held DEK bytes. Safe to call more than once.
func (d *DecryptionService) Close() {
	cryptoDomain.Zero(d.key)
}
