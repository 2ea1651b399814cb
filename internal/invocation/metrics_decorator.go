package invocation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/coregate/gateway/internal/metrics"
)

// useCaseWithMetrics decorates UseCase with metrics instrumentation.
type useCaseWithMetrics struct {
	next    UseCase
	metrics metrics.BusinessMetrics
}

// NewUseCaseWithMetrics wraps a UseCase with metrics recording.
func NewUseCaseWithMetrics(useCase UseCase, m metrics.BusinessMetrics) UseCase {
	return &useCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// InvokeFunction records invocation count and latency per outcome.
func (u *useCaseWithMetrics) InvokeFunction(
	ctx context.Context,
	toolID uuid.UUID,
	params json.RawMessage,
) (json.RawMessage, error) {
	start := time.Now()
	result, err := u.next.InvokeFunction(ctx, toolID, params)

	status := "success"
	if err != nil {
		status = "error"
	}
	u.metrics.RecordOperation(ctx, "invocation", "invoke_function", status)
	u.metrics.RecordDuration(ctx, "invocation", "invoke_function", time.Since(start), status)

	return result, err
}
