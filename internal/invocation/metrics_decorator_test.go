package invocation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

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

func (m *MockUseCase) InvokeFunction(ctx context.Context, toolID uuid.UUID, params json.RawMessage) (json.RawMessage, error) {
	args := m.Called(ctx, toolID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func TestNewUseCaseWithMetrics(t *testing.T) {
	decorator := NewUseCaseWithMetrics(&MockUseCase{}, &mockBusinessMetrics{})

	assert.NotNil(t, decorator)
	assert.Implements(t, (*UseCase)(nil), decorator)
}

func TestMetricsDecorator_InvokeFunction(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_RecordsSuccessMetrics", func(t *testing.T) {
		next := &MockUseCase{}
		m := &mockBusinessMetrics{}
		decorator := NewUseCaseWithMetrics(next, m)

		toolID := uuid.New()
		params := json.RawMessage(`{"q":"x"}`)
		expected := json.RawMessage(`{"result":"ok"}`)

		next.On("InvokeFunction", ctx, toolID, params).Return(expected, nil)
		m.On("RecordOperation", ctx, "invocation", "invoke_function", "success").Return()
		m.On("RecordDuration", ctx, "invocation", "invoke_function", mock.AnythingOfType("time.Duration"), "success").Return()

		result, err := decorator.InvokeFunction(ctx, toolID, params)

		assert.NoError(t, err)
		assert.Equal(t, expected, result)
		next.AssertExpectations(t)
		m.AssertExpectations(t)
	})

	t.Run("Error_RecordsErrorMetrics", func(t *testing.T) {
		next := &MockUseCase{}
		m := &mockBusinessMetrics{}
		decorator := NewUseCaseWithMetrics(next, m)

		toolID := uuid.New()
		wantErr := errors.New("provider unavailable")

		next.On("InvokeFunction", ctx, toolID, mock.Anything).Return(nil, wantErr)
		m.On("RecordOperation", ctx, "invocation", "invoke_function", "error").Return()
		m.On("RecordDuration", ctx, "invocation", "invoke_function", mock.AnythingOfType("time.Duration"), "error").Return()

		result, err := decorator.InvokeFunction(ctx, toolID, json.RawMessage(`{}`))

		assert.Nil(t, result)
		assert.ErrorIs(t, err, wantErr)
		m.AssertExpectations(t)
	})
}
