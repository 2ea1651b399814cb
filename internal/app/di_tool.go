package app

import (
	"fmt"

	toolRepository "github.com/coregate/gateway/internal/tool/repository"
	toolUsecase "github.com/coregate/gateway/internal/tool/usecase"
)

// ToolRepository returns the tool-group/tool-instance persistence layer.
func (c *Container) ToolRepository() (toolRepository.Repository, error) {
	var err error
	c.toolRepoInit.Do(func() {
		c.toolRepo, err = c.initToolRepository()
		if err != nil {
			c.initErrors["toolRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["toolRepo"]; exists {
		return nil, storedErr
	}
	return c.toolRepo, nil
}

// ToolUseCase returns the tool group/tool instance management use case.
func (c *Container) ToolUseCase() (toolUsecase.UseCase, error) {
	var err error
	c.toolUseCaseInit.Do(func() {
		c.toolUseCase, err = c.initToolUseCase()
		if err != nil {
			c.initErrors["toolUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["toolUseCase"]; exists {
		return nil, storedErr
	}
	return c.toolUseCase, nil
}

func (c *Container) initToolRepository() (toolRepository.Repository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tool repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return toolRepository.NewMySQLToolRepository(db), nil
	case "postgres":
		return toolRepository.NewPostgreSQLToolRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initToolUseCase() (toolUsecase.UseCase, error) {
	repo, err := c.ToolRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get tool repository for tool use case: %w", err)
	}
	return toolUsecase.New(repo), nil
}
