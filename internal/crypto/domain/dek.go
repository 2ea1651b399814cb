package domain

import (
	"time"

	"github.com/google/uuid"
)

// Dek is a Data Encryption Key: a 256-bit symmetric key that directly
// encrypts application data. The plaintext key never leaves memory; only
// EncryptedKey (wrapped by the EnvelopeKey identified by EnvelopeKeyID) is
// persisted.
//
// Invariants: EnvelopeKeyID must reference an existing EnvelopeKey; the
// plaintext key exists only transiently, in a cached Handles value (see
// internal/crypto/cache), and is wiped with Zero on invalidation.
type Dek struct {
	ID            uuid.UUID
	EnvelopeKeyID string
	Algorithm     Algorithm
	EncryptedKey  []byte // base64-decoded EncryptedDataKey wire form
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DekAlias binds a human-readable name to a Dek. Many aliases may point to
// the same Dek; on Dek delete, aliases cascade; on migration, aliases are
// rebound to the new Dek's ID.
type DekAlias struct {
	Alias     string
	DekID     uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}
