// Package repository persists tool groups and tool instances: the
// deployment-level binding of a provider's credential controller and its
// resolved credentials to a set of callable tools.
package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/coregate/gateway/internal/database"
	apperrors "github.com/coregate/gateway/internal/errors"
	toolDomain "github.com/coregate/gateway/internal/tool/domain"
)

// PostgreSQLToolRepository persists tool groups and tool instances in
// PostgreSQL.
//
// Schema requirements:
//
//	tool_groups(id UUID PRIMARY KEY, display_name TEXT, provider_type_id TEXT, credential_controller_type_id TEXT,
//	    resource_server_credential_id UUID, user_credential_id UUID NULL, static_credential_id UUID NULL,
//	    status TEXT, return_on_successful_brokering JSONB NULL, created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ)
//	tool_instances(id UUID PRIMARY KEY, tool_group_id UUID REFERENCES tool_groups, tool_type_id TEXT,
//	    created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ, UNIQUE(tool_group_id, tool_type_id))
type PostgreSQLToolRepository struct {
	db *sql.DB
}

// NewPostgreSQLToolRepository creates a new PostgreSQLToolRepository.
func NewPostgreSQLToolRepository(db *sql.DB) *PostgreSQLToolRepository {
	return &PostgreSQLToolRepository{db: db}
}

func (p *PostgreSQLToolRepository) CreateToolGroup(ctx context.Context, group *toolDomain.ToolGroup) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO tool_groups
			  (id, display_name, provider_type_id, credential_controller_type_id, resource_server_credential_id,
			   user_credential_id, static_credential_id, status, return_on_successful_brokering, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := querier.ExecContext(ctx, query,
		group.ID, group.DisplayName, group.ProviderTypeID, group.CredentialControllerTypeID, group.ResourceServerCredentialID,
		group.UserCredentialID, group.StaticCredentialID, group.Status, nullableJSON(group.ReturnOnSuccessfulBrokering), group.CreatedAt, group.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create tool group")
	}
	return nil
}

func (p *PostgreSQLToolRepository) GetToolGroupByID(ctx context.Context, id uuid.UUID) (*toolDomain.ToolGroup, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, display_name, provider_type_id, credential_controller_type_id, resource_server_credential_id,
			   user_credential_id, static_credential_id, status, return_on_successful_brokering, created_at, updated_at
			  FROM tool_groups WHERE id = $1`

	group, err := scanToolGroup(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get tool group")
	}
	return group, nil
}

// GetToolGroupByUserCredentialID looks up the tool group that references
// userCredentialID, so a rotator with a bare user-credential row in hand
// (internal/rotation's poll query) can recover the resource-server
// credential it was brokered against.
func (p *PostgreSQLToolRepository) GetToolGroupByUserCredentialID(ctx context.Context, userCredentialID uuid.UUID) (*toolDomain.ToolGroup, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, display_name, provider_type_id, credential_controller_type_id, resource_server_credential_id,
			   user_credential_id, static_credential_id, status, return_on_successful_brokering, created_at, updated_at
			  FROM tool_groups WHERE user_credential_id = $1`

	group, err := scanToolGroup(querier.QueryRowContext(ctx, query, userCredentialID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get tool group by user credential")
	}
	return group, nil
}

func (p *PostgreSQLToolRepository) UpdateToolGroupStatus(ctx context.Context, id uuid.UUID, status toolDomain.Status) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `UPDATE tool_groups SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update tool group status")
	}
	return requireRowsAffected(result)
}

func (p *PostgreSQLToolRepository) CreateTool(ctx context.Context, tool *toolDomain.Tool) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO tool_instances (id, tool_group_id, tool_type_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`

	_, err := querier.ExecContext(ctx, query, tool.ID, tool.ToolGroupID, tool.ToolTypeID, tool.CreatedAt, tool.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create tool instance")
	}
	return nil
}

// GetInvocationTargetByToolID is invoke_function's step 1: a single query
// joining tool_instances to its owning tool_groups row, so the pipeline
// never needs a second round trip to resolve routing.
func (p *PostgreSQLToolRepository) GetInvocationTargetByToolID(ctx context.Context, toolID uuid.UUID) (*toolDomain.InvocationTarget, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ti.id, ti.tool_type_id, tg.id, tg.provider_type_id, tg.credential_controller_type_id,
			   tg.resource_server_credential_id, tg.user_credential_id, tg.static_credential_id, tg.status
			  FROM tool_instances ti JOIN tool_groups tg ON tg.id = ti.tool_group_id
			  WHERE ti.id = $1`

	target, err := scanInvocationTarget(querier.QueryRowContext(ctx, query, toolID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrToolNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get invocation target")
	}
	return target, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToolGroup(row scanner) (*toolDomain.ToolGroup, error) {
	var (
		group      toolDomain.ToolGroup
		userCredID uuid.NullUUID
		staticID   uuid.NullUUID
		returnRaw  []byte
	)

	if err := row.Scan(&group.ID, &group.DisplayName, &group.ProviderTypeID, &group.CredentialControllerTypeID,
		&group.ResourceServerCredentialID, &userCredID, &staticID, &group.Status, &returnRaw, &group.CreatedAt, &group.UpdatedAt); err != nil {
		return nil, err
	}
	if userCredID.Valid {
		group.UserCredentialID = &userCredID.UUID
	}
	if staticID.Valid {
		group.StaticCredentialID = &staticID.UUID
	}
	if len(returnRaw) > 0 {
		group.ReturnOnSuccessfulBrokering = returnRaw
	}
	return &group, nil
}

func scanInvocationTarget(row scanner) (*toolDomain.InvocationTarget, error) {
	var (
		target     toolDomain.InvocationTarget
		userCredID uuid.NullUUID
		staticID   uuid.NullUUID
	)

	if err := row.Scan(&target.ToolID, &target.ToolTypeID, &target.ToolGroupID, &target.ProviderTypeID,
		&target.CredentialControllerTypeID, &target.ResourceServerCredentialID, &userCredID, &staticID, &target.Status); err != nil {
		return nil, err
	}
	if userCredID.Valid {
		target.UserCredentialID = &userCredID.UUID
	}
	if staticID.Valid {
		target.StaticCredentialID = &staticID.UUID
	}
	return &target, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func requireRowsAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
