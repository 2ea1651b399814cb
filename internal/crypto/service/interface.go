// Package service provides the AEAD cipher primitives used by both the
// envelope back-end adapters (internal/crypto/envelope) and the content
// cipher (internal/crypto/cipher). It has no notion of envelope keys or
// DEKs; it only knows how to encrypt/decrypt bytes under a 32-byte key.
package service

import (
	cryptoDomain "github.com/coregate/gateway/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
//
// Security requirements:
//   - Nonces must be unique for each encryption with the same key
//   - The same AAD used during encryption must be provided during decryption
//
// Implementations: AESGCMCipher, ChaCha20Poly1305Cipher
type AEAD interface {
	// Encrypt encrypts plaintext with optional additional authenticated data
	// (AAD) and returns ciphertext plus the freshly generated nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt verifies and decrypts ciphertext using the given nonce and AAD.
	// Returns no plaintext if authentication fails.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)

	// NonceSize returns the size, in bytes, of the nonce this cipher expects.
	NonceSize() int
}

// AEADManager is a factory for AEAD cipher instances, keyed by algorithm.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher for the specified algorithm.
	// key must be exactly 32 bytes.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}
