package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/coregate/gateway/internal/database"
	apperrors "github.com/coregate/gateway/internal/errors"
	toolDomain "github.com/coregate/gateway/internal/tool/domain"
)

// MySQLToolRepository persists tool groups and tool instances in MySQL.
// Same schema shape as PostgreSQLToolRepository, using `?` placeholders and
// BINARY(16) id columns.
type MySQLToolRepository struct {
	db *sql.DB
}

// NewMySQLToolRepository creates a new MySQLToolRepository.
func NewMySQLToolRepository(db *sql.DB) *MySQLToolRepository {
	return &MySQLToolRepository{db: db}
}

func (m *MySQLToolRepository) CreateToolGroup(ctx context.Context, group *toolDomain.ToolGroup) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO tool_groups
			  (id, display_name, provider_type_id, credential_controller_type_id, resource_server_credential_id,
			   user_credential_id, static_credential_id, status, return_on_successful_brokering, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, query,
		group.ID[:], group.DisplayName, group.ProviderTypeID, group.CredentialControllerTypeID, group.ResourceServerCredentialID[:],
		nullableUUIDBytes(group.UserCredentialID), nullableUUIDBytes(group.StaticCredentialID), group.Status,
		nullableJSON(group.ReturnOnSuccessfulBrokering), group.CreatedAt, group.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create tool group")
	}
	return nil
}

func (m *MySQLToolRepository) GetToolGroupByID(ctx context.Context, id uuid.UUID) (*toolDomain.ToolGroup, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, display_name, provider_type_id, credential_controller_type_id, resource_server_credential_id,
			   user_credential_id, static_credential_id, status, return_on_successful_brokering, created_at, updated_at
			  FROM tool_groups WHERE id = ?`

	group, err := scanMySQLToolGroup(querier.QueryRowContext(ctx, query, id[:]))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get tool group")
	}
	return group, nil
}

// GetToolGroupByUserCredentialID mirrors the PostgreSQL variant.
func (m *MySQLToolRepository) GetToolGroupByUserCredentialID(ctx context.Context, userCredentialID uuid.UUID) (*toolDomain.ToolGroup, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, display_name, provider_type_id, credential_controller_type_id, resource_server_credential_id,
			   user_credential_id, static_credential_id, status, return_on_successful_brokering, created_at, updated_at
			  FROM tool_groups WHERE user_credential_id = ?`

	group, err := scanMySQLToolGroup(querier.QueryRowContext(ctx, query, userCredentialID[:]))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get tool group by user credential")
	}
	return group, nil
}

func (m *MySQLToolRepository) UpdateToolGroupStatus(ctx context.Context, id uuid.UUID, status toolDomain.Status) error {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx, `UPDATE tool_groups SET status = ? WHERE id = ?`, status, id[:])
	if err != nil {
		return apperrors.Wrap(err, "failed to update tool group status")
	}
	return requireRowsAffected(result)
}

func (m *MySQLToolRepository) CreateTool(ctx context.Context, tool *toolDomain.Tool) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO tool_instances (id, tool_group_id, tool_type_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, query, tool.ID[:], tool.ToolGroupID[:], tool.ToolTypeID, tool.CreatedAt, tool.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create tool instance")
	}
	return nil
}

func (m *MySQLToolRepository) GetInvocationTargetByToolID(ctx context.Context, toolID uuid.UUID) (*toolDomain.InvocationTarget, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ti.id, ti.tool_type_id, tg.id, tg.provider_type_id, tg.credential_controller_type_id,
			   tg.resource_server_credential_id, tg.user_credential_id, tg.static_credential_id, tg.status
			  FROM tool_instances ti JOIN tool_groups tg ON tg.id = ti.tool_group_id
			  WHERE ti.id = ?`

	target, err := scanMySQLInvocationTarget(querier.QueryRowContext(ctx, query, toolID[:]))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrToolNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get invocation target")
	}
	return target, nil
}

func nullableUUIDBytes(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id[:]
}

func scanMySQLToolGroup(row scanner) (*toolDomain.ToolGroup, error) {
	var (
		group         toolDomain.ToolGroup
		idBytes       []byte
		resourceBytes []byte
		userCredBytes []byte
		staticBytes   []byte
		returnRaw     []byte
	)

	if err := row.Scan(&idBytes, &group.DisplayName, &group.ProviderTypeID, &group.CredentialControllerTypeID,
		&resourceBytes, &userCredBytes, &staticBytes, &group.Status, &returnRaw, &group.CreatedAt, &group.UpdatedAt); err != nil {
		return nil, err
	}

	id, err := uuid.FromBytes(idBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse tool group id")
	}
	group.ID = id

	resourceID, err := uuid.FromBytes(resourceBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse resource server credential id")
	}
	group.ResourceServerCredentialID = resourceID

	if u, err := parseOptionalUUIDBytes(userCredBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse user credential id")
	} else {
		group.UserCredentialID = u
	}
	if u, err := parseOptionalUUIDBytes(staticBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse static credential id")
	} else {
		group.StaticCredentialID = u
	}
	if len(returnRaw) > 0 {
		group.ReturnOnSuccessfulBrokering = returnRaw
	}

	return &group, nil
}

func scanMySQLInvocationTarget(row scanner) (*toolDomain.InvocationTarget, error) {
	var (
		target        toolDomain.InvocationTarget
		toolIDBytes   []byte
		groupIDBytes  []byte
		resourceBytes []byte
		userCredBytes []byte
		staticBytes   []byte
	)

	if err := row.Scan(&toolIDBytes, &target.ToolTypeID, &groupIDBytes, &target.ProviderTypeID,
		&target.CredentialControllerTypeID, &resourceBytes, &userCredBytes, &staticBytes, &target.Status); err != nil {
		return nil, err
	}

	toolID, err := uuid.FromBytes(toolIDBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse tool id")
	}
	target.ToolID = toolID

	groupID, err := uuid.FromBytes(groupIDBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse tool group id")
	}
	target.ToolGroupID = groupID

	resourceID, err := uuid.FromBytes(resourceBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse resource server credential id")
	}
	target.ResourceServerCredentialID = resourceID

	if u, err := parseOptionalUUIDBytes(userCredBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse user credential id")
	} else {
		target.UserCredentialID = u
	}
	if u, err := parseOptionalUUIDBytes(staticBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse static credential id")
	} else {
		target.StaticCredentialID = u
	}

	return &target, nil
}

func parseOptionalUUIDBytes(raw []byte) (*uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
