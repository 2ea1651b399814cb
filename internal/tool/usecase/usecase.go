// Package usecase implements tool group and tool instance management: the
// add_tool_group/update_tool_group/add_tool_instance operations, backed by
// internal/tool/repository.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/coregate/gateway/internal/errors"
	toolDomain "github.com/coregate/gateway/internal/tool/domain"
	"github.com/coregate/gateway/internal/tool/repository"
)

// UseCase manages tool groups and the tools deployed on them.
type UseCase interface {
	CreateToolGroup(ctx context.Context, group *toolDomain.ToolGroup) error
	ActivateToolGroup(ctx context.Context, id uuid.UUID) error
	AddTool(ctx context.Context, toolGroupID uuid.UUID, toolTypeID string) (*toolDomain.Tool, error)
}

type toolUseCase struct {
	repo repository.Repository
}

// New creates a new tool group/tool use case.
func New(repo repository.Repository) UseCase {
	return &toolUseCase{repo: repo}
}

// CreateToolGroup persists a new tool group. Callers set Status explicitly:
// StatusPending when a brokering flow still needs to complete before a user
// credential exists, StatusActive otherwise.
func (u *toolUseCase) CreateToolGroup(ctx context.Context, group *toolDomain.ToolGroup) error {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	now := time.Now().UTC()
	group.CreatedAt, group.UpdatedAt = now, now
	if group.Status == "" {
		group.Status = toolDomain.StatusPending
	}

	if err := u.repo.CreateToolGroup(ctx, group); err != nil {
		return apperrors.Wrap(err, "failed to create tool group")
	}
	return nil
}

// ActivateToolGroup flips a tool group from pending to active — called once
// its brokering flow has materialized a user credential or, for
// credential controllers needing none, immediately after creation.
func (u *toolUseCase) ActivateToolGroup(ctx context.Context, id uuid.UUID) error {
	return u.repo.UpdateToolGroupStatus(ctx, id, toolDomain.StatusActive)
}

// AddTool enables one function on an existing tool group, giving it the
// surrogate id invoke_function addresses via tool_instance_id.
func (u *toolUseCase) AddTool(ctx context.Context, toolGroupID uuid.UUID, toolTypeID string) (*toolDomain.Tool, error) {
	if _, err := u.repo.GetToolGroupByID(ctx, toolGroupID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tool := &toolDomain.Tool{
		ID:          uuid.New(),
		ToolGroupID: toolGroupID,
		ToolTypeID:  toolTypeID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.repo.CreateTool(ctx, tool); err != nil {
		return nil, apperrors.Wrap(err, "failed to add tool")
	}
	return tool, nil
}
