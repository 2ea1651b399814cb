package app

import (
	"fmt"

	"github.com/coregate/gateway/internal/crypto/cache"
	"github.com/coregate/gateway/internal/crypto/envelope"
	cryptoRepository "github.com/coregate/gateway/internal/crypto/repository"
	cryptoService "github.com/coregate/gateway/internal/crypto/service"
	cryptoUsecase "github.com/coregate/gateway/internal/crypto/usecase"
)

// BackendFactory returns the envelope-key backend factory (KMS or local
// file), shared by the crypto cache and the crypto use case.
func (c *Container) BackendFactory() cryptoUsecase.BackendFactory {
	c.backendFactoryInit.Do(func() {
		c.backendFactory = envelope.NewBackendFactory(c.Logger())
	})
	return c.backendFactory
}

// AEADManager returns the content-cipher factory (AES-256-GCM or
// ChaCha20-Poly1305), shared by every Handles pair the crypto cache mints.
func (c *Container) AEADManager() cryptoService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
	})
	return c.aeadManager
}

// KeyRepository returns the envelope-key/DEK/alias persistence layer.
func (c *Container) KeyRepository() (cryptoUsecase.KeyRepository, error) {
	var err error
	c.keyRepoInit.Do(func() {
		c.keyRepo, err = c.initKeyRepository()
		if err != nil {
			c.initErrors["keyRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyRepo"]; exists {
		return nil, storedErr
	}
	return c.keyRepo, nil
}

// CryptoCache returns the process-wide singleflight-coalesced encryption/
// decryption handle cache.
func (c *Container) CryptoCache() (*cache.Cache, error) {
	var err error
	c.cryptoCacheInit.Do(func() {
		c.cryptoCache, err = c.initCryptoCache()
		if err != nil {
			c.initErrors["cryptoCache"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["cryptoCache"]; exists {
		return nil, storedErr
	}
	return c.cryptoCache, nil
}

// CryptoUseCase returns the envelope-key/DEK/alias business logic surface.
func (c *Container) CryptoUseCase() (cryptoUsecase.UseCase, error) {
	var err error
	c.cryptoUseCaseInit.Do(func() {
		c.cryptoUseCase, err = c.initCryptoUseCase()
		if err != nil {
			c.initErrors["cryptoUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["cryptoUseCase"]; exists {
		return nil, storedErr
	}
	return c.cryptoUseCase, nil
}

func (c *Container) initKeyRepository() (cryptoUsecase.KeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for key repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return cryptoRepository.NewMySQLKeyRepository(db), nil
	case "postgres":
		return cryptoRepository.NewPostgreSQLKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initCryptoCache() (*cache.Cache, error) {
	keyRepo, err := c.KeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get key repository for crypto cache: %w", err)
	}
	return cache.New(keyRepo, c.BackendFactory(), c.AEADManager()), nil
}

func (c *Container) initCryptoUseCase() (cryptoUsecase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for crypto use case: %w", err)
	}
	keyRepo, err := c.KeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get key repository for crypto use case: %w", err)
	}
	cryptoCache, err := c.CryptoCache()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto cache for crypto use case: %w", err)
	}
	return cryptoUsecase.New(txManager, keyRepo, c.BackendFactory(), cryptoCache), nil
}
