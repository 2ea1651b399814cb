package app

import (
	"fmt"

	"github.com/coregate/gateway/internal/invocation"
)

// InvocationUseCase returns the tool invocation pipeline:
// join tool-instance+tool-group+credentials, resolve the provider's
// function and credential controllers, and delegate field-level decryption
// to the resolved FunctionController itself.
func (c *Container) InvocationUseCase() (invocation.UseCase, error) {
	var err error
	c.invocationUseCaseInit.Do(func() {
		c.invocationUseCase, err = c.initInvocationUseCase()
		if err != nil {
			c.initErrors["invocationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["invocationUseCase"]; exists {
		return nil, storedErr
	}
	return c.invocationUseCase, nil
}

func (c *Container) initInvocationUseCase() (invocation.UseCase, error) {
	toolRepo, err := c.ToolRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get tool repository for invocation use case: %w", err)
	}

	credentialRepo, err := c.CredentialRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential repository for invocation use case: %w", err)
	}

	cryptoCache, err := c.CryptoCache()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto cache for invocation use case: %w", err)
	}

	cryptoUseCase, err := c.CryptoUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto use case for invocation use case: %w", err)
	}

	baseUseCase := invocation.New(toolRepo, credentialRepo, c.Registry(), cryptoCache, cryptoUseCase)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for invocation use case: %w", err)
		}
		return invocation.NewUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
