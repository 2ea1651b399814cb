package envelope

import (
	"context"
	"log/slog"
	"regexp"

	cryptoDomain "github.com/coregate/gateway/internal/crypto/domain"
)

// arnRegionPattern extracts the region segment of an
// arn:aws:kms:<region>:<account>:key/<uuid> (or alias/<name>) ARN. Used
// only as a cross-check against the explicit Region field, never as the
// source of truth.
var arnRegionPattern = regexp.MustCompile(`^arn:aws:kms:([^:]+):`)

// BackendFactory opens Backend instances for EnvelopeKeys, caching nothing
// itself — callers that want cached handles use internal/crypto/cache.
type BackendFactory struct {
	logger *slog.Logger
}

// NewBackendFactory creates a BackendFactory.
func NewBackendFactory(logger *slog.Logger) *BackendFactory {
	return &BackendFactory{logger: logger}
}

// Open resolves and opens the Backend for key.
func (f *BackendFactory) Open(ctx context.Context, key cryptoDomain.EnvelopeKey) (Backend, error) {
	switch key.Kind {
	case cryptoDomain.EnvelopeKeyKindKMS:
		f.warnOnRegionMismatch(key)
		return OpenKMSBackend(ctx, key.ARN, key.Region)
	case cryptoDomain.EnvelopeKeyKindLocalFile:
		return NewLocalBackend(key.Path)
	default:
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
}

// warnOnRegionMismatch logs (never fails) when the ARN's embedded region
// disagrees with the EnvelopeKey's explicit Region field.
func (f *BackendFactory) warnOnRegionMismatch(key cryptoDomain.EnvelopeKey) {
	if f.logger == nil {
		return
	}
	m := arnRegionPattern.FindStringSubmatch(key.ARN)
	if m == nil || m[1] == key.Region {
		return
	}
	f.logger.Warn("envelope key ARN region disagrees with configured region",
		slog.String("envelope_key_id", key.ID),
		slog.String("arn_region", m[1]),
		slog.String("configured_region", key.Region),
	)
}
