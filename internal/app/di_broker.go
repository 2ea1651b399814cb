package app

import (
	"fmt"

	"github.com/coregate/gateway/internal/broker"
	brokerRepository "github.com/coregate/gateway/internal/broker/repository"
)

// BrokerRepository returns the BrokerState persistence layer.
func (c *Container) BrokerRepository() (broker.StateStore, error) {
	var err error
	c.brokerRepoInit.Do(func() {
		c.brokerRepo, err = c.initBrokerRepository()
		if err != nil {
			c.initErrors["brokerRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["brokerRepo"]; exists {
		return nil, storedErr
	}
	return c.brokerRepo, nil
}

// BrokerEngine returns the brokering state machine.
func (c *Container) BrokerEngine() (*broker.Engine, error) {
	var err error
	c.brokerEngineInit.Do(func() {
		c.brokerEngine, err = c.initBrokerEngine()
		if err != nil {
			c.initErrors["brokerEngine"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["brokerEngine"]; exists {
		return nil, storedErr
	}
	return c.brokerEngine, nil
}

// BrokerSweeper returns the BrokerState TTL sweeper. Callers
// start it alongside the rotation and outbox schedulers.
func (c *Container) BrokerSweeper() (*broker.Sweeper, error) {
	var err error
	c.brokerSweeperInit.Do(func() {
		c.brokerSweeper, err = c.initBrokerSweeper()
		if err != nil {
			c.initErrors["brokerSweeper"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["brokerSweeper"]; exists {
		return nil, storedErr
	}
	return c.brokerSweeper, nil
}

func (c *Container) initBrokerRepository() (broker.StateStore, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for broker repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return brokerRepository.NewMySQLBrokerStateRepository(db), nil
	case "postgres":
		return brokerRepository.NewPostgreSQLBrokerStateRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initBrokerEngine() (*broker.Engine, error) {
	states, err := c.BrokerRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get broker repository for broker engine: %w", err)
	}

	credentialUseCase, err := c.CredentialUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential use case for broker engine: %w", err)
	}

	return broker.New(c.Registry(), states, credentialUseCase), nil
}

func (c *Container) initBrokerSweeper() (*broker.Sweeper, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for broker sweeper: %w", err)
	}

	var states broker.SweepableStateStore
	switch c.config.DBDriver {
	case "mysql":
		states = brokerRepository.NewMySQLBrokerStateRepository(db)
	case "postgres":
		states = brokerRepository.NewPostgreSQLBrokerStateRepository(db)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}

	return broker.NewSweeper(states, c.config.BrokerStateTTL, c.config.BrokerSweepInterval, c.Logger()), nil
}
