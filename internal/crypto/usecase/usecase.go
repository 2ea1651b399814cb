package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/coregate/gateway/internal/crypto/domain"
	"github.com/coregate/gateway/internal/cursor"
	"github.com/coregate/gateway/internal/database"
	apperrors "github.com/coregate/gateway/internal/errors"
	appvalidation "github.com/coregate/gateway/internal/validation"
)

// cryptoUseCase implements UseCase.
type cryptoUseCase struct {
	txManager      database.TxManager
	repo           KeyRepository
	backendFactory BackendFactory
	cache          CacheInvalidator
}

// New creates the envelope-key/DEK use case. cache may be nil, in which case
// migration and deletion skip invalidation (acceptable for short-lived CLI
// callers that never populate a cache).
func New(txManager database.TxManager, repo KeyRepository, backendFactory BackendFactory, cache CacheInvalidator) UseCase {
	return &cryptoUseCase{
		txManager:      txManager,
		repo:           repo,
		backendFactory: backendFactory,
		cache:          cache,
	}
}

// validateEnvelopeKey checks the kind-specific identity fields before any
// row is written. The region check applies to the configured field only;
// the ARN-embedded region is cross-checked (as a warning) by the envelope
// backend factory, not here.
func validateEnvelopeKey(key *cryptoDomain.EnvelopeKey) error {
	switch key.Kind {
	case cryptoDomain.EnvelopeKeyKindKMS:
		return appvalidation.WrapValidationError(validation.Errors{
			"arn":    validation.Validate(key.ARN, validation.Required, appvalidation.KmsKeyARN),
			"region": validation.Validate(key.Region, validation.Required, appvalidation.AwsRegion),
		}.Filter())
	case cryptoDomain.EnvelopeKeyKindLocalFile:
		return appvalidation.WrapValidationError(validation.Errors{
			"path": validation.Validate(key.Path, validation.Required, appvalidation.AbsolutePath),
		}.Filter())
	default:
		return apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("unknown envelope key kind %q", key.Kind))
	}
}

func (u *cryptoUseCase) CreateEnvelopeKey(ctx context.Context, key *cryptoDomain.EnvelopeKey) error {
	if err := validateEnvelopeKey(key); err != nil {
		return err
	}
	if key.ID == "" {
		if key.Kind == cryptoDomain.EnvelopeKeyKindKMS {
			key.ID = key.ARN
		} else {
			key.ID = key.Path
		}
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	return u.repo.CreateEnvelopeKey(ctx, key)
}

func (u *cryptoUseCase) GetEnvelopeKey(ctx context.Context, id string) (*cryptoDomain.EnvelopeKey, error) {
	return u.repo.GetEnvelopeKey(ctx, id)
}

func (u *cryptoUseCase) ListEnvelopeKeys(ctx context.Context, page cursor.Page) ([]*cryptoDomain.EnvelopeKey, string, error) {
	return u.repo.ListEnvelopeKeys(ctx, page)
}

func (u *cryptoUseCase) DeleteEnvelopeKey(ctx context.Context, id string) error {
	return u.repo.DeleteEnvelopeKey(ctx, id)
}

// CreateDek generates a fresh DEK plaintext, wraps it under envelopeKeyID's
// backend, and persists only the wrapped form.
func (u *cryptoUseCase) CreateDek(ctx context.Context, envelopeKeyID string, alg cryptoDomain.Algorithm) (*cryptoDomain.Dek, error) {
	envKey, err := u.repo.GetEnvelopeKey(ctx, envelopeKeyID)
	if err != nil {
		return nil, err
	}

	backend, err := u.backendFactory.Open(ctx, *envKey)
	if err != nil {
		return nil, err
	}

	encryptedKey, plaintext, err := backend.Generate(ctx)
	cryptoDomain.Zero(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCryptoFailure, err)
	}

	now := time.Now().UTC()
	dek := &cryptoDomain.Dek{
		ID:            uuid.New(),
		EnvelopeKeyID: envelopeKeyID,
		Algorithm:     alg,
		EncryptedKey:  encryptedKey,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := u.repo.CreateDek(ctx, dek); err != nil {
		return nil, err
	}
	return dek, nil
}

func (u *cryptoUseCase) GetDek(ctx context.Context, id uuid.UUID) (*cryptoDomain.Dek, error) {
	return u.repo.GetDek(ctx, id)
}

func (u *cryptoUseCase) ListDeks(ctx context.Context, page cursor.Page) ([]*cryptoDomain.Dek, string, error) {
	return u.repo.ListDeks(ctx, page)
}

func (u *cryptoUseCase) DeleteDek(ctx context.Context, id uuid.UUID) error {
	if err := u.repo.DeleteDek(ctx, id); err != nil {
		return err
	}
	if u.cache != nil {
		u.cache.Invalidate(id)
	}
	return nil
}

func (u *cryptoUseCase) CreateAlias(ctx context.Context, alias string, dekID uuid.UUID) error {
	if err := appvalidation.WrapValidationError(validation.Validate(
		alias, validation.Required, appvalidation.DekAlias,
	)); err != nil {
		return err
	}
	now := time.Now().UTC()
	return u.repo.CreateAlias(ctx, &cryptoDomain.DekAlias{
		Alias:     alias,
		DekID:     dekID,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (u *cryptoUseCase) GetDekByAlias(ctx context.Context, alias string) (uuid.UUID, error) {
	return u.repo.GetDekByAlias(ctx, alias)
}

func (u *cryptoUseCase) ListAliasesForDek(ctx context.Context, dekID uuid.UUID) ([]*cryptoDomain.DekAlias, error) {
	return u.repo.ListAliasesForDek(ctx, dekID)
}

func (u *cryptoUseCase) DeleteAlias(ctx context.Context, alias string) error {
	return u.repo.DeleteAlias(ctx, alias)
}

// MigrateDek re-wraps dekID's plaintext under a different envelope key. It
// never re-wraps the existing EncryptedKey blob in place: the old envelope
// key's backend unwraps the plaintext once, the new envelope key's backend
// wraps that same plaintext into a brand new Dek row, and every alias
// previously bound to dekID is rebound to the new row before the old one is
// deleted. Adapted from the rewrap-batch approach this package used for its
// former KEK tier, narrowed here to a single DEK per call since callers
// drive migration per-key rather than by batch sweep.
func (u *cryptoUseCase) MigrateDek(ctx context.Context, dekID uuid.UUID, newEnvelopeKeyID string) (*cryptoDomain.Dek, error) {
	oldDek, oldEnvKey, err := u.repo.GetDekWithEnvelopeKey(ctx, dekID)
	if err != nil {
		return nil, err
	}

	newEnvKey, err := u.repo.GetEnvelopeKey(ctx, newEnvelopeKeyID)
	if err != nil {
		return nil, err
	}

	oldBackend, err := u.backendFactory.Open(ctx, *oldEnvKey)
	if err != nil {
		return nil, err
	}
	newBackend, err := u.backendFactory.Open(ctx, *newEnvKey)
	if err != nil {
		return nil, err
	}

	plaintext, err := oldBackend.Unwrap(ctx, oldDek.EncryptedKey)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(plaintext)

	newEncryptedKey, err := newBackend.Wrap(ctx, plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCryptoFailure, err)
	}

	now := time.Now().UTC()
	newDek := &cryptoDomain.Dek{
		ID:            uuid.New(),
		EnvelopeKeyID: newEnvelopeKeyID,
		Algorithm:     oldDek.Algorithm,
		EncryptedKey:  newEncryptedKey,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = u.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := u.repo.CreateDek(ctx, newDek); err != nil {
			return err
		}

		aliases, err := u.repo.ListAliasesForDek(ctx, dekID)
		if err != nil {
			return err
		}
		for _, a := range aliases {
			a.DekID = newDek.ID
			a.UpdatedAt = now
			if err := u.repo.UpdateAlias(ctx, a); err != nil {
				return err
			}
		}

		return u.repo.DeleteDek(ctx, dekID)
	})
	if err != nil {
		return nil, err
	}

	if u.cache != nil {
		u.cache.Invalidate(dekID)
		u.cache.Invalidate(newDek.ID)
	}

	return newDek, nil
}
