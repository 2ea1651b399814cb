package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
	credentialRepository "github.com/coregate/gateway/internal/credential/repository"
	credentialUsecase "github.com/coregate/gateway/internal/credential/usecase"
)

// FullCredentialRepository is the union of every credential persistence
// method a consumer package needs: internal/credential/usecase.Repository's
// CRUD surface, internal/invocation.CredentialLookup's static-credential
// read, and internal/rotation.CredentialRepository's update-in-place and
// due-for-rotation poll. Both PostgreSQLCredentialRepository and
// MySQLCredentialRepository satisfy it, so the container can construct one
// concrete repository and hand it to every consumer typed to what it needs.
type FullCredentialRepository interface {
	credentialUsecase.Repository

	GetStaticCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error)
	CreateStaticCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error

	UpdateResourceServerCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error
	UpdateUserCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error

	ListDueForRotation(ctx context.Context, now time.Time, limit int) ([]*credentialDomain.SerializedCredential, error)
}

// CredentialRepository returns the resource-server/user/static credential
// persistence layer.
func (c *Container) CredentialRepository() (FullCredentialRepository, error) {
	var err error
	c.credentialRepoInit.Do(func() {
		c.credentialRepo, err = c.initCredentialRepository()
		if err != nil {
			c.initErrors["credentialRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["credentialRepo"]; exists {
		return nil, storedErr
	}
	return c.credentialRepo, nil
}

// CredentialUseCase returns the credential business logic surface:
// creating, listing, and materializing resource-server and
// user credentials, decrypted via the crypto cache and the type-id-resolved
// credential controller.
func (c *Container) CredentialUseCase() (credentialUsecase.UseCase, error) {
	var err error
	c.credentialUseCaseInit.Do(func() {
		c.credentialUseCase, err = c.initCredentialUseCase()
		if err != nil {
			c.initErrors["credentialUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["credentialUseCase"]; exists {
		return nil, storedErr
	}
	return c.credentialUseCase, nil
}

func (c *Container) initCredentialRepository() (FullCredentialRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for credential repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return credentialRepository.NewMySQLCredentialRepository(db), nil
	case "postgres":
		return credentialRepository.NewPostgreSQLCredentialRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initCredentialUseCase() (credentialUsecase.UseCase, error) {
	repo, err := c.CredentialRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential repository for credential use case: %w", err)
	}

	cryptoCache, err := c.CryptoCache()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto cache for credential use case: %w", err)
	}

	cryptoUseCase, err := c.CryptoUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto use case for credential use case: %w", err)
	}

	baseUseCase := credentialUsecase.New(repo, c.Registry(), cryptoCache, cryptoUseCase, c.config.DefaultDekAlias)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for credential use case: %w", err)
		}
		return credentialUsecase.NewUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
