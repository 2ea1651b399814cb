package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/coregate/gateway/internal/errors"
	toolDomain "github.com/coregate/gateway/internal/tool/domain"
)

type mockRepository struct{ mock.Mock }

func (m *mockRepository) CreateToolGroup(ctx context.Context, group *toolDomain.ToolGroup) error {
	return m.Called(ctx, group).Error(0)
}
func (m *mockRepository) GetToolGroupByID(ctx context.Context, id uuid.UUID) (*toolDomain.ToolGroup, error) {
	args := m.Called(ctx, id)
	group, _ := args.Get(0).(*toolDomain.ToolGroup)
	return group, args.Error(1)
}
func (m *mockRepository) UpdateToolGroupStatus(ctx context.Context, id uuid.UUID, status toolDomain.Status) error {
	return m.Called(ctx, id, status).Error(0)
}
func (m *mockRepository) CreateTool(ctx context.Context, tool *toolDomain.Tool) error {
	return m.Called(ctx, tool).Error(0)
}
func (m *mockRepository) GetInvocationTargetByToolID(ctx context.Context, toolID uuid.UUID) (*toolDomain.InvocationTarget, error) {
	args := m.Called(ctx, toolID)
	target, _ := args.Get(0).(*toolDomain.InvocationTarget)
	return target, args.Error(1)
}
func (m *mockRepository) GetToolGroupByUserCredentialID(ctx context.Context, userCredentialID uuid.UUID) (*toolDomain.ToolGroup, error) {
	args := m.Called(ctx, userCredentialID)
	group, _ := args.Get(0).(*toolDomain.ToolGroup)
	return group, args.Error(1)
}

func TestCreateToolGroup_AssignsIDAndDefaultStatus(t *testing.T) {
	repo := &mockRepository{}
	repo.On("CreateToolGroup", mock.Anything, mock.Anything).Return(nil)
	u := New(repo)

	group := &toolDomain.ToolGroup{DisplayName: "github prod"}
	err := u.CreateToolGroup(context.Background(), group)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, group.ID)
	assert.Equal(t, toolDomain.StatusPending, group.Status)
	repo.AssertExpectations(t)
}

func TestActivateToolGroup_DelegatesToRepository(t *testing.T) {
	repo := &mockRepository{}
	id := uuid.New()
	repo.On("UpdateToolGroupStatus", mock.Anything, id, toolDomain.StatusActive).Return(nil)
	u := New(repo)

	err := u.ActivateToolGroup(context.Background(), id)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestAddTool_FailsWhenToolGroupMissing(t *testing.T) {
	repo := &mockRepository{}
	groupID := uuid.New()
	repo.On("GetToolGroupByID", mock.Anything, groupID).Return(nil, apperrors.ErrNotFound)
	u := New(repo)

	tool, err := u.AddTool(context.Background(), groupID, "list_repos")

	assert.Nil(t, tool)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	repo.AssertExpectations(t)
}

func TestAddTool_PersistsTool(t *testing.T) {
	repo := &mockRepository{}
	groupID := uuid.New()
	repo.On("GetToolGroupByID", mock.Anything, groupID).Return(&toolDomain.ToolGroup{ID: groupID}, nil)
	repo.On("CreateTool", mock.Anything, mock.Anything).Return(nil)
	u := New(repo)

	tool, err := u.AddTool(context.Background(), groupID, "list_repos")

	require.NoError(t, err)
	assert.Equal(t, groupID, tool.ToolGroupID)
	assert.Equal(t, "list_repos", tool.ToolTypeID)
	repo.AssertExpectations(t)
}
