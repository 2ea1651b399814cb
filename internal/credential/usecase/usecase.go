package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coregate/gateway/internal/credential/controller"
	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
	"github.com/coregate/gateway/internal/cursor"
	apperrors "github.com/coregate/gateway/internal/errors"
)

// credentialUseCase implements UseCase.
//
// Encryption happens here, not inside internal/broker: UserCredentialBroker's
// Start/Resume never receive a cipher service (the controller contract has no
// such parameter), so a brokered outcome's UserCredentialLike always carries
// plaintext secret fields. CreateUserCredential is the single point every
// user credential, brokered or directly registered, passes through on its
// way to storage, and it is the only place that calls
// EncryptUserCredentialConfiguration on that plaintext value before
// persisting — mirroring the "serialized values are always already
// encrypted past this point" invariant the resource-server path gets from
// CreateResourceServerCredential doing the same thing.
type credentialUseCase struct {
	repo            Repository
	resolver        ControllerResolver
	cipher          CipherProvider
	aliases         DekAliasResolver
	defaultDekAlias string
}

// New creates the credential use case. defaultDekAlias names the DEK alias
// new credentials are encrypted under; internal/config exposes it as
// DefaultDekAlias.
func New(repo Repository, resolver ControllerResolver, cipherProvider CipherProvider, aliases DekAliasResolver, defaultDekAlias string) UseCase {
	return &credentialUseCase{
		repo:            repo,
		resolver:        resolver,
		cipher:          cipherProvider,
		aliases:         aliases,
		defaultDekAlias: defaultDekAlias,
	}
}

func (u *credentialUseCase) resolveController(typeID string) (controller.CredentialController, error) {
	ctl, ok := u.resolver.ResolveCredentialController(typeID)
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "unknown credential controller type "+typeID)
	}
	return ctl, nil
}

// CreateResourceServerCredential validates and encrypts raw operator-supplied
// configuration for credentialControllerTypeID, then persists the result.
func (u *credentialUseCase) CreateResourceServerCredential(ctx context.Context, credentialControllerTypeID string, raw []byte) (*credentialDomain.ResourceServerCredential, error) {
	ctl, err := u.resolveController(credentialControllerTypeID)
	if err != nil {
		return nil, err
	}

	dekID, err := u.aliases.GetDekByAlias(ctx, u.defaultDekAlias)
	if err != nil {
		return nil, err
	}
	enc, err := u.cipher.GetEncryptionService(ctx, dekID)
	if err != nil {
		return nil, err
	}

	encrypted, err := ctl.EncryptResourceServerConfiguration(ctx, enc, raw)
	if err != nil {
		return nil, err
	}

	value, err := encrypted.Value()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal resource server credential")
	}

	now := time.Now().UTC()
	cred := credentialDomain.ResourceServerCredential{
		ID:        uuid.New(),
		Inner:     encrypted,
		Metadata:  credentialDomain.Metadata{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	var nextRotation *time.Time
	if rotatable, ok := controller.AsRotatableResourceServerCredential(ctl); ok {
		t := rotatable.NextResourceServerCredentialRotationTime(cred)
		nextRotation = &t
	}

	serialized := &credentialDomain.SerializedCredential{
		ID:               cred.ID,
		TypeID:           encrypted.TypeID(),
		DekAlias:         u.defaultDekAlias,
		Metadata:         cred.Metadata,
		Value:            value,
		CreatedAt:        now,
		UpdatedAt:        now,
		NextRotationTime: nextRotation,
	}

	if err := u.repo.CreateResourceServerCredential(ctx, serialized); err != nil {
		return nil, err
	}

	return &cred, nil
}

// GetResourceServerCredential loads and decrypts a resource server credential.
func (u *credentialUseCase) GetResourceServerCredential(ctx context.Context, id uuid.UUID) (*credentialDomain.ResourceServerCredential, error) {
	serialized, err := u.repo.GetResourceServerCredentialByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.decryptResourceServerCredential(ctx, serialized)
}

// ListResourceServerCredentials loads and decrypts a page of resource server
// credentials.
func (u *credentialUseCase) ListResourceServerCredentials(ctx context.Context, page cursor.Page) ([]*credentialDomain.ResourceServerCredential, string, error) {
	serialized, next, err := u.repo.ListResourceServerCredentials(ctx, page)
	if err != nil {
		return nil, "", err
	}

	creds := make([]*credentialDomain.ResourceServerCredential, 0, len(serialized))
	for _, s := range serialized {
		cred, err := u.decryptResourceServerCredential(ctx, s)
		if err != nil {
			return nil, "", err
		}
		creds = append(creds, cred)
	}
	return creds, next, nil
}

func (u *credentialUseCase) decryptResourceServerCredential(ctx context.Context, serialized *credentialDomain.SerializedCredential) (*credentialDomain.ResourceServerCredential, error) {
	ctl, err := u.resolveController(serialized.TypeID)
	if err != nil {
		return nil, err
	}

	dekID, err := u.aliases.GetDekByAlias(ctx, serialized.DekAlias)
	if err != nil {
		return nil, err
	}
	dec, err := u.cipher.GetDecryptionService(ctx, dekID)
	if err != nil {
		return nil, err
	}

	inner, metadata, err := ctl.ParseResourceServerConfiguration(ctx, dec, serialized.Value)
	if err != nil {
		return nil, err
	}

	return &credentialDomain.ResourceServerCredential{
		ID:        serialized.ID,
		Inner:     inner,
		Metadata:  metadata,
		CreatedAt: serialized.CreatedAt,
		UpdatedAt: serialized.UpdatedAt,
	}, nil
}

// CreateUserCredential encrypts cred's secret fields under the default DEK
// and persists it; resourceServerCredID is not persisted (see below). It satisfies
// internal/broker.UserCredentialMaterializer, so the broker engine calls it
// directly with the plaintext outcome of a successful brokering run; direct
// (non-brokered) user credential registration uses the same path.
func (u *credentialUseCase) CreateUserCredential(ctx context.Context, resourceServerCredID uuid.UUID, cred credentialDomain.UserCredentialLike, metadata credentialDomain.Metadata) (*credentialDomain.UserCredential, error) {
	ctl, err := u.resolveController(cred.TypeID())
	if err != nil {
		return nil, err
	}

	dekID, err := u.aliases.GetDekByAlias(ctx, u.defaultDekAlias)
	if err != nil {
		return nil, err
	}
	enc, err := u.cipher.GetEncryptionService(ctx, dekID)
	if err != nil {
		return nil, err
	}

	raw, err := cred.Value()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal user credential")
	}

	encrypted, err := ctl.EncryptUserCredentialConfiguration(ctx, enc, raw)
	if err != nil {
		return nil, err
	}

	value, err := encrypted.Value()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal encrypted user credential")
	}

	if metadata == nil {
		metadata = credentialDomain.Metadata{}
	}

	now := time.Now().UTC()
	result := credentialDomain.UserCredential{
		ID:        uuid.New(),
		Inner:     encrypted,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var nextRotation *time.Time
	if rotatable, ok := encrypted.(credentialDomain.RotatableCredential); ok {
		t := rotatable.NextRotationTime()
		nextRotation = &t
	}

	serialized := &credentialDomain.SerializedCredential{
		ID:               result.ID,
		TypeID:           encrypted.TypeID(),
		DekAlias:         u.defaultDekAlias,
		Metadata:         metadata,
		Value:            value,
		CreatedAt:        now,
		UpdatedAt:        now,
		NextRotationTime: nextRotation,
	}
	// resourceServerCredID is not stored here: user_credentials carries no
	// such column. The link to the resource server credential is a
	// tool_groups row referencing both ids, written through internal/tool.

	if err := u.repo.CreateUserCredential(ctx, serialized); err != nil {
		return nil, err
	}

	return &result, nil
}

// GetUserCredential loads and decrypts a user credential.
func (u *credentialUseCase) GetUserCredential(ctx context.Context, id uuid.UUID) (*credentialDomain.UserCredential, error) {
	serialized, err := u.repo.GetUserCredentialByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.decryptUserCredential(ctx, serialized)
}

// ListUserCredentials loads and decrypts a page of user credentials.
func (u *credentialUseCase) ListUserCredentials(ctx context.Context, page cursor.Page) ([]*credentialDomain.UserCredential, string, error) {
	serialized, next, err := u.repo.ListUserCredentials(ctx, page)
	if err != nil {
		return nil, "", err
	}

	creds := make([]*credentialDomain.UserCredential, 0, len(serialized))
	for _, s := range serialized {
		cred, err := u.decryptUserCredential(ctx, s)
		if err != nil {
			return nil, "", err
		}
		creds = append(creds, cred)
	}
	return creds, next, nil
}

func (u *credentialUseCase) decryptUserCredential(ctx context.Context, serialized *credentialDomain.SerializedCredential) (*credentialDomain.UserCredential, error) {
	ctl, err := u.resolveController(serialized.TypeID)
	if err != nil {
		return nil, err
	}

	dekID, err := u.aliases.GetDekByAlias(ctx, serialized.DekAlias)
	if err != nil {
		return nil, err
	}
	dec, err := u.cipher.GetDecryptionService(ctx, dekID)
	if err != nil {
		return nil, err
	}

	inner, metadata, err := ctl.ParseUserCredentialConfiguration(ctx, dec, serialized.Value)
	if err != nil {
		return nil, err
	}

	return &credentialDomain.UserCredential{
		ID:        serialized.ID,
		Inner:     inner,
		Metadata:  metadata,
		CreatedAt: serialized.CreatedAt,
		UpdatedAt: serialized.UpdatedAt,
	}, nil
}
