package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
	"github.com/coregate/gateway/internal/cursor"
	"github.com/coregate/gateway/internal/metrics"
)

// mockBusinessMetrics is a mock implementation of metrics.BusinessMetrics for testing.
type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

var _ metrics.BusinessMetrics = (*mockBusinessMetrics)(nil)

// MockUseCase is a mock implementation of UseCase.
type MockUseCase struct {
	mock.Mock
}

func (m *MockUseCase) CreateResourceServerCredential(ctx context.Context, typeID string, raw []byte) (*credentialDomain.ResourceServerCredential, error) {
	args := m.Called(ctx, typeID, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentialDomain.ResourceServerCredential), args.Error(1)
}

func (m *MockUseCase) GetResourceServerCredential(ctx context.Context, id uuid.UUID) (*credentialDomain.ResourceServerCredential, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentialDomain.ResourceServerCredential), args.Error(1)
}

func (m *MockUseCase) ListResourceServerCredentials(ctx context.Context, page cursor.Page) ([]*credentialDomain.ResourceServerCredential, string, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]*credentialDomain.ResourceServerCredential), args.String(1), args.Error(2)
}

func (m *MockUseCase) CreateUserCredential(ctx context.Context, resourceServerCredID uuid.UUID, cred credentialDomain.UserCredentialLike, metadata credentialDomain.Metadata) (*credentialDomain.UserCredential, error) {
	args := m.Called(ctx, resourceServerCredID, cred, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentialDomain.UserCredential), args.Error(1)
}

func (m *MockUseCase) GetUserCredential(ctx context.Context, id uuid.UUID) (*credentialDomain.UserCredential, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentialDomain.UserCredential), args.Error(1)
}

func (m *MockUseCase) ListUserCredentials(ctx context.Context, page cursor.Page) ([]*credentialDomain.UserCredential, string, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]*credentialDomain.UserCredential), args.String(1), args.Error(2)
}

func TestNewUseCaseWithMetrics(t *testing.T) {
	decorator := NewUseCaseWithMetrics(&MockUseCase{}, &mockBusinessMetrics{})

	assert.NotNil(t, decorator)
	assert.Implements(t, (*UseCase)(nil), decorator)
}

func TestMetricsDecorator_CreateResourceServerCredential(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_RecordsSuccessMetrics", func(t *testing.T) {
		next := &MockUseCase{}
		m := &mockBusinessMetrics{}
		decorator := NewUseCaseWithMetrics(next, m)

		expected := &credentialDomain.ResourceServerCredential{ID: uuid.New()}
		next.On("CreateResourceServerCredential", ctx, "type-a", []byte(`{}`)).Return(expected, nil)
		m.On("RecordOperation", ctx, "credentials", "resource_server_create", "success").Return()
		m.On("RecordDuration", ctx, "credentials", "resource_server_create", mock.AnythingOfType("time.Duration"), "success").Return()

		cred, err := decorator.CreateResourceServerCredential(ctx, "type-a", []byte(`{}`))

		assert.NoError(t, err)
		assert.Equal(t, expected, cred)
		next.AssertExpectations(t)
		m.AssertExpectations(t)
	})

	t.Run("Error_RecordsErrorMetrics", func(t *testing.T) {
		next := &MockUseCase{}
		m := &mockBusinessMetrics{}
		decorator := NewUseCaseWithMetrics(next, m)

		wantErr := errors.New("boom")
		next.On("CreateResourceServerCredential", ctx, "type-a", []byte(`{}`)).Return(nil, wantErr)
		m.On("RecordOperation", ctx, "credentials", "resource_server_create", "error").Return()
		m.On("RecordDuration", ctx, "credentials", "resource_server_create", mock.AnythingOfType("time.Duration"), "error").Return()

		cred, err := decorator.CreateResourceServerCredential(ctx, "type-a", []byte(`{}`))

		assert.Nil(t, cred)
		assert.ErrorIs(t, err, wantErr)
		m.AssertExpectations(t)
	})
}

func TestMetricsDecorator_CreateUserCredential(t *testing.T) {
	ctx := context.Background()
	next := &MockUseCase{}
	m := &mockBusinessMetrics{}
	decorator := NewUseCaseWithMetrics(next, m)

	rsID := uuid.New()
	inner := credentialDomain.NoAuthUserCredential{}
	expected := &credentialDomain.UserCredential{ID: uuid.New()}

	next.On("CreateUserCredential", ctx, rsID, inner, credentialDomain.Metadata(nil)).Return(expected, nil)
	m.On("RecordOperation", ctx, "credentials", "user_create", "success").Return()
	m.On("RecordDuration", ctx, "credentials", "user_create", mock.AnythingOfType("time.Duration"), "success").Return()

	cred, err := decorator.CreateUserCredential(ctx, rsID, inner, nil)

	assert.NoError(t, err)
	assert.Equal(t, expected, cred)
	next.AssertExpectations(t)
	m.AssertExpectations(t)
}

func TestMetricsDecorator_ListUserCredentials(t *testing.T) {
	ctx := context.Background()
	next := &MockUseCase{}
	m := &mockBusinessMetrics{}
	decorator := NewUseCaseWithMetrics(next, m)

	page := cursor.Page{PageSize: 10}
	expected := []*credentialDomain.UserCredential{{ID: uuid.New()}}

	next.On("ListUserCredentials", ctx, page).Return(expected, "next-token", nil)
	m.On("RecordOperation", ctx, "credentials", "user_list", "success").Return()
	m.On("RecordDuration", ctx, "credentials", "user_list", mock.AnythingOfType("time.Duration"), "success").Return()

	creds, token, err := decorator.ListUserCredentials(ctx, page)

	assert.NoError(t, err)
	assert.Equal(t, expected, creds)
	assert.Equal(t, "next-token", token)
	m.AssertExpectations(t)
}
