package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coregate/gateway/internal/cursor"

	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
)

// Repository is the persistence contract internal/credential/usecase and
// internal/rotation depend on; both PostgreSQLCredentialRepository and
// MySQLCredentialRepository satisfy it.
type Repository interface {
	CreateResourceServerCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error
	CreateUserCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error
	CreateStaticCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error

	GetResourceServerCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error)
	GetUserCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error)
	GetStaticCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error)

	UpdateResourceServerCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error
	UpdateUserCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error

	ListResourceServerCredentials(ctx context.Context, page cursor.Page) ([]*credentialDomain.SerializedCredential, string, error)
	ListUserCredentials(ctx context.Context, page cursor.Page) ([]*credentialDomain.SerializedCredential, string, error)

	ListDueForRotation(ctx context.Context, now time.Time, limit int) ([]*credentialDomain.SerializedCredential, error)
}

var (
	_ Repository = (*PostgreSQLCredentialRepository)(nil)
	_ Repository = (*MySQLCredentialRepository)(nil)
)
