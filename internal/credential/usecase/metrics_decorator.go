package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
	"github.com/coregate/gateway/internal/cursor"
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

func (u *useCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	u.metrics.RecordOperation(ctx, "credentials", operation, status)
	u.metrics.RecordDuration(ctx, "credentials", operation, time.Since(start), status)
}

func (u *useCaseWithMetrics) CreateResourceServerCredential(
	ctx context.Context,
	credentialControllerTypeID string,
	raw []byte,
) (*credentialDomain.ResourceServerCredential, error) {
	start := time.Now()
	cred, err := u.next.CreateResourceServerCredential(ctx, credentialControllerTypeID, raw)
	u.record(ctx, "resource_server_create", start, err)
	return cred, err
}

func (u *useCaseWithMetrics) GetResourceServerCredential(
	ctx context.Context,
	id uuid.UUID,
) (*credentialDomain.ResourceServerCredential, error) {
	start := time.Now()
	cred, err := u.next.GetResourceServerCredential(ctx, id)
	u.record(ctx, "resource_server_get", start, err)
	return cred, err
}

func (u *useCaseWithMetrics) ListResourceServerCredentials(
	ctx context.Context,
	page cursor.Page,
) ([]*credentialDomain.ResourceServerCredential, string, error) {
	start := time.Now()
	creds, next, err := u.next.ListResourceServerCredentials(ctx, page)
	u.record(ctx, "resource_server_list", start, err)
	return creds, next, err
}

func (u *useCaseWithMetrics) CreateUserCredential(
	ctx context.Context,
	resourceServerCredID uuid.UUID,
	cred credentialDomain.UserCredentialLike,
	metadata credentialDomain.Metadata,
) (*credentialDomain.UserCredential, error) {
	start := time.Now()
	result, err := u.next.CreateUserCredential(ctx, resourceServerCredID, cred, metadata)
	u.record(ctx, "user_create", start, err)
	return result, err
}

func (u *useCaseWithMetrics) GetUserCredential(
	ctx context.Context,
	id uuid.UUID,
) (*credentialDomain.UserCredential, error) {
	start := time.Now()
	cred, err := u.next.GetUserCredential(ctx, id)
	u.record(ctx, "user_get", start, err)
	return cred, err
}

func (u *useCaseWithMetrics) ListUserCredentials(
	ctx context.Context,
	page cursor.Page,
) ([]*credentialDomain.UserCredential, string, error) {
	start := time.Now()
	creds, next, err := u.next.ListUserCredentials(ctx, page)
	u.record(ctx, "user_list", start, err)
	return creds, next, err
}
