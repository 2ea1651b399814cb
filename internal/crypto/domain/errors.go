package domain

import (
	"github.com/coregate/gateway/internal/errors"
)

// Cryptographic and key-repository operation errors.
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates the cryptographic key size is invalid (must be 32 bytes).
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrEncryptionFailed indicates the AEAD cipher itself rejected a Seal
	// call (wrong key size, nonce generation failure) — distinct from a
	// verification failure on decrypt.
	ErrEncryptionFailed = errors.Wrap(errors.ErrCryptoFailure, "encryption failed")

	// ErrDecryptionFailed indicates AEAD verification failed: wrong key, wrong
	// nonce, or corrupted/tampered ciphertext. Never returns partial plaintext.
	ErrDecryptionFailed = errors.Wrap(errors.ErrCryptoFailure, "decryption failed")

	// ErrInvalidCiphertext indicates a ciphertext is shorter than the nonce
	// size or fails base64 decoding.
	ErrInvalidCiphertext = errors.Wrap(errors.ErrCryptoFailure, "invalid ciphertext")

	// ErrEmptyPlaintext indicates a wrap() call was given zero-length key
	// material; KMS requires 1-4096 bytes.
	ErrEmptyPlaintext = errors.Wrap(errors.ErrInvalidInput, "plaintext must not be empty")

	// ErrEnvelopeKeyNotFound indicates an EnvelopeKey with the given ID was not found.
	ErrEnvelopeKeyNotFound = errors.Wrap(errors.ErrNotFound, "envelope key not found")

	// ErrEnvelopeKeyInUse indicates an EnvelopeKey delete was refused because
	// one or more DEKs still reference it.
	ErrEnvelopeKeyInUse = errors.Wrap(errors.ErrInUse, "envelope key in use")

	// ErrDekNotFound indicates a DEK with the specified ID was not found.
	ErrDekNotFound = errors.Wrap(errors.ErrNotFound, "dek not found")

	// ErrAliasNotFound indicates a DekAlias with the specified name was not found.
	ErrAliasNotFound = errors.Wrap(errors.ErrNotFound, "dek alias not found")

	// ErrAliasConflict indicates a DekAlias create collided with an existing alias.
	ErrAliasConflict = errors.Wrap(errors.ErrInUse, "dek alias already exists")

	// ErrBackendUnwrap wraps a failure unwrapping an EncryptedDataKey at the envelope back-end.
	ErrBackendUnwrap = errors.Wrap(errors.ErrBackendFailure, "failed to unwrap data key")

	// ErrBackendWrap wraps a failure wrapping a plaintext data key at the envelope back-end.
	ErrBackendWrap = errors.Wrap(errors.ErrBackendFailure, "failed to wrap data key")
)
