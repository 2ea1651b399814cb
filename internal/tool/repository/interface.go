package repository

import (
	"context"

	"github.com/google/uuid"

	toolDomain "github.com/coregate/gateway/internal/tool/domain"
)

// Repository is the persistence contract internal/tool/usecase and
// internal/invocation depend on; both PostgreSQLToolRepository and
// MySQLToolRepository satisfy it.
type Repository interface {
	CreateToolGroup(ctx context.Context, group *toolDomain.ToolGroup) error
	GetToolGroupByID(ctx context.Context, id uuid.UUID) (*toolDomain.ToolGroup, error)
	// GetToolGroupByUserCredentialID finds the tool group a user credential
	// was issued under, so callers (internal/rotation chief among them) can
	// recover the resource-server credential a rotator needs without the
	// credential tables themselves carrying that foreign key.
	GetToolGroupByUserCredentialID(ctx context.Context, userCredentialID uuid.UUID) (*toolDomain.ToolGroup, error)
	UpdateToolGroupStatus(ctx context.Context, id uuid.UUID, status toolDomain.Status) error

	CreateTool(ctx context.Context, tool *toolDomain.Tool) error
	GetInvocationTargetByToolID(ctx context.Context, toolID uuid.UUID) (*toolDomain.InvocationTarget, error)
}

var (
	_ Repository = (*PostgreSQLToolRepository)(nil)
	_ Repository = (*MySQLToolRepository)(nil)
)
