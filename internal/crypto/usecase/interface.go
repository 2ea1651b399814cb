// Package usecase implements the envelope-key/DEK business logic that sits
// above the repository and cache layers: creation, listing, deletion, and
// at-rest migration of data encryption keys.
package usecase

import (
	"context"

	"github.com/google/uuid"

	cryptoDomain "github.com/coregate/gateway/internal/crypto/domain"
	"github.com/coregate/gateway/internal/crypto/envelope"
	"github.com/coregate/gateway/internal/cursor"
)

// KeyRepository is the persistence contract this package depends on (see
// internal/crypto/repository for Postgres/MySQL implementations).
type KeyRepository interface {
	CreateEnvelopeKey(ctx context.Context, key *cryptoDomain.EnvelopeKey) error
	GetEnvelopeKey(ctx context.Context, id string) (*cryptoDomain.EnvelopeKey, error)
	ListEnvelopeKeys(ctx context.Context, page cursor.Page) ([]*cryptoDomain.EnvelopeKey, string, error)
	DeleteEnvelopeKey(ctx context.Context, id string) error

	CreateDek(ctx context.Context, dek *cryptoDomain.Dek) error
	GetDek(ctx context.Context, id uuid.UUID) (*cryptoDomain.Dek, error)
	GetDekWithEnvelopeKey(ctx context.Context, id uuid.UUID) (*cryptoDomain.Dek, *cryptoDomain.EnvelopeKey, error)
	ListDeks(ctx context.Context, page cursor.Page) ([]*cryptoDomain.Dek, string, error)
	DeleteDek(ctx context.Context, id uuid.UUID) error

	CreateAlias(ctx context.Context, alias *cryptoDomain.DekAlias) error
	UpdateAlias(ctx context.Context, alias *cryptoDomain.DekAlias) error
	GetDekByAlias(ctx context.Context, alias string) (uuid.UUID, error)
	ListAliasesForDek(ctx context.Context, dekID uuid.UUID) ([]*cryptoDomain.DekAlias, error)
	DeleteAlias(ctx context.Context, alias string) error
}

// CacheInvalidator is the subset of internal/crypto/cache.Cache this
// package needs, kept as an interface so tests can stub it.
type CacheInvalidator interface {
	Invalidate(dekID uuid.UUID)
}

// BackendFactory resolves the envelope.Backend for an EnvelopeKey.
type BackendFactory interface {
	Open(ctx context.Context, key cryptoDomain.EnvelopeKey) (envelope.Backend, error)
}

// UseCase is the envelope-key/DEK business logic surface.
type UseCase interface {
	CreateEnvelopeKey(ctx context.Context, key *cryptoDomain.EnvelopeKey) error
	GetEnvelopeKey(ctx context.Context, id string) (*cryptoDomain.EnvelopeKey, error)
	ListEnvelopeKeys(ctx context.Context, page cursor.Page) ([]*cryptoDomain.EnvelopeKey, string, error)
	DeleteEnvelopeKey(ctx context.Context, id string) error

	CreateDek(ctx context.Context, envelopeKeyID string, alg cryptoDomain.Algorithm) (*cryptoDomain.Dek, error)
	GetDek(ctx context.Context, id uuid.UUID) (*cryptoDomain.Dek, error)
	ListDeks(ctx context.Context, page cursor.Page) ([]*cryptoDomain.Dek, string, error)
	DeleteDek(ctx context.Context, id uuid.UUID) error

	CreateAlias(ctx context.Context, alias string, dekID uuid.UUID) error
	GetDekByAlias(ctx context.Context, alias string) (uuid.UUID, error)
	ListAliasesForDek(ctx context.Context, dekID uuid.UUID) ([]*cryptoDomain.DekAlias, error)
	DeleteAlias(ctx context.Context, alias string) error

	// MigrateDek re-wraps dekID's plaintext key under newEnvelopeKeyID,
	// rebinds its aliases, deletes the old DEK row, and invalidates both
	// cache entries.
	MigrateDek(ctx context.Context, dekID uuid.UUID, newEnvelopeKeyID string) (*cryptoDomain.Dek, error)
}
