// Package usecase implements the credential business logic that sits above
// the repository, cipher cache, and controller registry: creating and
// listing resource-server/user credentials, and materializing the terminal
// UserCredential produced by a successful brokering run (internal/broker's
// UserCredentialMaterializer).
package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/coregate/gateway/internal/credential/controller"
	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
	"github.com/coregate/gateway/internal/crypto/cipher"
	"github.com/coregate/gateway/internal/cursor"
)

// Repository is the persistence contract this package depends on (see
// internal/credential/repository for Postgres/MySQL implementations).
type Repository interface {
	CreateResourceServerCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error
	GetResourceServerCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error)
	ListResourceServerCredentials(ctx context.Context, page cursor.Page) ([]*credentialDomain.SerializedCredential, string, error)

	CreateUserCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error
	GetUserCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error)
	ListUserCredentials(ctx context.Context, page cursor.Page) ([]*credentialDomain.SerializedCredential, string, error)
}

// ControllerResolver looks up a registered credential controller by its
// stable type id. internal/registry satisfies this; it is
// the same capability internal/broker.ControllerResolver names, kept as its
// own narrow interface here per this codebase's one-interface-per-consumer
// convention.
type ControllerResolver interface {
	ResolveCredentialController(typeID string) (controller.CredentialController, bool)
}

// CipherProvider resolves a DEK id to the cipher services that encrypt or
// decrypt its protected fields. internal/crypto/cache.Cache satisfies this.
type CipherProvider interface {
	GetEncryptionService(ctx context.Context, dekID uuid.UUID) (*cipher.EncryptionService, error)
	GetDecryptionService(ctx context.Context, dekID uuid.UUID) (*cipher.DecryptionService, error)
}

// DekAliasResolver resolves the alias a SerializedCredential.DekAlias names
// to the DEK id CipherProvider understands. internal/crypto/usecase.UseCase
// satisfies this.
type DekAliasResolver interface {
	GetDekByAlias(ctx context.Context, alias string) (uuid.UUID, error)
}

// UseCase is the credential business logic surface.
type UseCase interface {
	CreateResourceServerCredential(ctx context.Context, credentialControllerTypeID string, raw []byte) (*credentialDomain.ResourceServerCredential, error)
	GetResourceServerCredential(ctx context.Context, id uuid.UUID) (*credentialDomain.ResourceServerCredential, error)
	ListResourceServerCredentials(ctx context.Context, page cursor.Page) ([]*credentialDomain.ResourceServerCredential, string, error)

	CreateUserCredential(ctx context.Context, resourceServerCredID uuid.UUID, cred credentialDomain.UserCredentialLike, metadata credentialDomain.Metadata) (*credentialDomain.UserCredential, error)
	GetUserCredential(ctx context.Context, id uuid.UUID) (*credentialDomain.UserCredential, error)
	ListUserCredentials(ctx context.Context, page cursor.Page) ([]*credentialDomain.UserCredential, string, error)
}
