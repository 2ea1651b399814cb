package app

import (
	"fmt"

	outboxUsecase "github.com/coregate/gateway/internal/outbox/usecase"
	"github.com/coregate/gateway/internal/rotation"
)

// RotationUseCase returns the out-of-band credential rotation scheduler:
// poll credentials due for rotation, invoke the resolved
// controller's rotator capability, persist the refreshed ciphertext, and
// publish a credential.rotated outbox event so the crypto cache can
// invalidate any handle the rotation re-aliased.
func (c *Container) RotationUseCase() (*rotation.UseCase, error) {
	var err error
	c.rotationUseCaseInit.Do(func() {
		c.rotationUseCase, err = c.initRotationUseCase()
		if err != nil {
			c.initErrors["rotationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rotationUseCase"]; exists {
		return nil, storedErr
	}
	return c.rotationUseCase, nil
}

func (c *Container) initRotationUseCase() (*rotation.UseCase, error) {
	credentialRepo, err := c.CredentialRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential repository for rotation use case: %w", err)
	}

	toolRepo, err := c.ToolRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get tool repository for rotation use case: %w", err)
	}

	cryptoCache, err := c.CryptoCache()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto cache for rotation use case: %w", err)
	}

	cryptoUseCase, err := c.CryptoUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto use case for rotation use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for rotation use case: %w", err)
	}

	cfg := rotation.Config{
		Interval:   c.config.WorkerInterval,
		BatchSize:  c.config.WorkerBatchSize,
		MaxRetries: c.config.WorkerMaxRetries,
	}

	publisher := outboxUsecase.NewCredentialRotationPublisher(outboxRepo)

	return rotation.New(cfg, credentialRepo, toolRepo, c.Registry(), cryptoCache, cryptoUseCase, publisher, c.Logger()), nil
}
