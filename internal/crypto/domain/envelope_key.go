// Package domain defines the core cryptographic domain models for the
// envelope encryption subsystem: envelope keys, data encryption keys,
// aliases, and the AEAD algorithm they use. The hierarchy is two-tier —
// EnvelopeKey wraps DataEncryptionKey, which in turn encrypts application
// data — with no intermediate key-encryption-key tier.
package domain

import "time"

// EnvelopeKeyKind discriminates the back-end that owns an EnvelopeKey.
type EnvelopeKeyKind string

const (
	// EnvelopeKeyKindKMS identifies a key held by a cloud KMS provider.
	EnvelopeKeyKindKMS EnvelopeKeyKind = "kms"

	// EnvelopeKeyKindLocalFile identifies a key held in a local file.
	EnvelopeKeyKindLocalFile EnvelopeKeyKind = "local_file"
)

// EnvelopeKey identifies a master key held by an external back-end. Its
// stable ID is the KMS ARN for Kind KMS, or the filesystem path for Kind
// LocalFile — never a synthetic UUID, since callers address envelope keys
// by the same identifier the back-end itself uses.
//
// Deletable only when no DataEncryptionKey references it (see
// KeyRepository.DeleteEnvelopeKey).
type EnvelopeKey struct {
	// ID is the ARN (KMS) or path (local file); also the primary key.
	ID     string
	Kind   EnvelopeKeyKind
	ARN    string // set when Kind == EnvelopeKeyKindKMS
	Region string // set when Kind == EnvelopeKeyKindKMS; authoritative, never parsed from ARN
	Path   string // set when Kind == EnvelopeKeyKindLocalFile

	CreatedAt time.Time
}
