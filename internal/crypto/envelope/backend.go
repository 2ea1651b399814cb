// Package envelope implements the envelope back-end adapters: wrapping and
// unwrapping 32-byte data encryption keys under a KMS-held or local-file
// envelope key, and generating fresh data keys.
package envelope

import (
	"context"

	cryptoDomain "github.com/coregate/gateway/internal/crypto/domain"
)

// Backend wraps and unwraps data keys under a single envelope key. One
// Backend instance is bound to exactly one cryptoDomain.EnvelopeKey.
type Backend interface {
	// Wrap encrypts a plaintext data key (always 32 bytes) and returns the
	// EncryptedDataKey wire format. plaintext must not be empty.
	Wrap(ctx context.Context, plaintext []byte) ([]byte, error)

	// Unwrap decrypts an EncryptedDataKey back to its 32-byte plaintext.
	Unwrap(ctx context.Context, ciphertext []byte) ([]byte, error)

	// Generate creates a fresh 32-byte data key and returns it alongside its
	// wrapped form. For KMS back-ends this should prefer the provider's
	// native "generate data key" primitive where available; the gocloud.dev
	// abstraction used here does not expose one uniformly across providers,
	// so Generate is implemented as crypto/rand + Wrap for both back-ends.
	Generate(ctx context.Context) (encryptedDataKey, plaintext []byte, err error)
}

// Factory resolves the Backend for a given EnvelopeKey.
type Factory interface {
	// Open returns the Backend bound to key. For Kind KMS it opens a
	// gocloud.dev/secrets.Keeper against key.ARN/key.Region; for Kind
	// LocalFile it opens (creating on first use) the file at key.Path.
	Open(ctx context.Context, key cryptoDomain.EnvelopeKey) (Backend, error)
}
