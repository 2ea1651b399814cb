package rotation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coregate/gateway/internal/credential/controller"
	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
	apperrors "github.com/coregate/gateway/internal/errors"
	toolDomain "github.com/coregate/gateway/internal/tool/domain"
)

// ToolGroupLookup recovers the tool group a user credential was brokered
// under, so a JWT-bearer-style rotator that needs the resource-server
// credential can be given one even though user_credentials carries no such
// foreign key itself (see internal/tool/repository.Repository.GetToolGroupByUserCredentialID).
type ToolGroupLookup interface {
	GetToolGroupByUserCredentialID(ctx context.Context, userCredentialID uuid.UUID) (*toolDomain.ToolGroup, error)
}

// Config controls scheduler cadence and backoff, mirroring internal/outbox's
// Config shape. Unlike outbox, a credential is never marked terminally
// failed: MaxRetries only caps how far the backoff exponent grows, since a
// credential's rotation is retried forever rather than given up on.
type Config struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// backoffFor returns the delay before the next rotation attempt after
// retries consecutive failures: interval doubled once per retry, capped at
// 2^MaxRetries*interval (a MaxRetries below 1 is treated as 1) so a
// credential that keeps failing settles into a bounded retry cadence instead
// of growing forever.
func (c Config) backoffFor(retries int) time.Duration {
	maxExponent := c.MaxRetries
	if maxExponent < 1 {
		maxExponent = 1
	}
	if retries > maxExponent {
		retries = maxExponent
	}
	backoff := c.Interval
	for i := 0; i < retries; i++ {
		backoff *= 2
	}
	return backoff
}

// UseCase implements the rotation scheduler.
type UseCase struct {
	cfg        Config
	creds      CredentialRepository
	toolGroups ToolGroupLookup
	resolver   ControllerResolver
	cipher     CipherProvider
	aliases    DekAliasResolver
	publisher  ChangePublisher
	logger     *slog.Logger
}

// New creates a rotation UseCase.
func New(cfg Config, creds CredentialRepository, toolGroups ToolGroupLookup, resolver ControllerResolver, cipherProvider CipherProvider, aliases DekAliasResolver, publisher ChangePublisher, logger *slog.Logger) *UseCase {
	return &UseCase{
		cfg:        cfg,
		creds:      creds,
		toolGroups: toolGroups,
		resolver:   resolver,
		cipher:     cipherProvider,
		aliases:    aliases,
		publisher:  publisher,
		logger:     logger,
	}
}

// Start runs ProcessDue on cfg.Interval until ctx is cancelled, the same
// ticker-loop shape internal/outbox/usecase.OutboxUseCase.Start uses.
func (u *UseCase) Start(ctx context.Context) error {
	if u.logger != nil {
		u.logger.Info("starting credential rotation scheduler",
			slog.Duration("interval", u.cfg.Interval),
			slog.Int("batch_size", u.cfg.BatchSize),
		)
	}

	ticker := time.NewTicker(u.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := u.ProcessDue(ctx); err != nil && u.logger != nil {
				u.logger.Error("rotation sweep failed", slog.Any("error", err))
			}
		}
	}
}

// ProcessDue polls for user credentials whose NextRotationTime has passed
// and rotates each in turn. A single credential's failure never aborts the
// sweep or deletes the credential; it is retried with exponential backoff.
func (u *UseCase) ProcessDue(ctx context.Context) error {
	due, err := u.creds.ListDueForRotation(ctx, time.Now().UTC(), u.cfg.BatchSize)
	if err != nil {
		return apperrors.Wrap(err, "failed to list credentials due for rotation")
	}
	if len(due) == 0 {
		return nil
	}

	if u.logger != nil {
		u.logger.Info("rotating due credentials", slog.Int("count", len(due)))
	}

	for _, cred := range due {
		if err := u.rotateOne(ctx, cred); err != nil && u.logger != nil {
			u.logger.Error("failed to rotate credential",
				slog.String("credential_id", cred.ID.String()),
				slog.String("type_id", cred.TypeID),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

// rotateOne rotates a single user credential. If the resolved controller
// has no rotation capability the credential is skipped — not an error, just
// a credential whose next_rotation_time should never have been set. Any
// other failure is recorded on serialized (RotationRetries, LastRotationError,
// an exponentially backed-off NextRotationTime) rather than left for an
// immediate retry on the next tick. Failed rotations back off and never
// deleting or disabling the credential.
func (u *UseCase) rotateOne(ctx context.Context, serialized *credentialDomain.SerializedCredential) (err error) {
	defer func() {
		if err != nil {
			u.recordRotationFailure(ctx, serialized, err)
		}
	}()

	ctl, ok := u.resolver.ResolveCredentialController(serialized.TypeID)
	if !ok {
		return apperrors.Wrap(apperrors.ErrNotFound, "no controller registered for credential type "+serialized.TypeID)
	}

	rotator, ok := controller.AsRotatableUserCredential(ctl)
	if !ok {
		if u.logger != nil {
			u.logger.Warn("credential is not rotatable, skipping", slog.String("credential_id", serialized.ID.String()))
		}
		return nil
	}

	dekID, err := u.aliases.GetDekByAlias(ctx, serialized.DekAlias)
	if err != nil {
		return apperrors.Wrap(err, "failed to resolve dek alias")
	}
	dec, err := u.cipher.GetDecryptionService(ctx, dekID)
	if err != nil {
		return apperrors.Wrap(err, "failed to obtain decryption service")
	}

	userLike, metadata, err := ctl.ParseUserCredentialConfiguration(ctx, dec, serialized.Value)
	if err != nil {
		return apperrors.Wrap(err, "failed to parse user credential")
	}
	userCred := credentialDomain.UserCredential{
		ID:        serialized.ID,
		Inner:     userLike,
		Metadata:  metadata,
		CreatedAt: serialized.CreatedAt,
		UpdatedAt: serialized.UpdatedAt,
	}

	resourceServerCred, err := u.loadResourceServerCredential(ctx, serialized.ID)
	if err != nil {
		return err
	}

	enc, err := u.cipher.GetEncryptionService(ctx, dekID)
	if err != nil {
		return apperrors.Wrap(err, "failed to obtain encryption service")
	}

	encrypted, err := rotator.RotateUserCredential(ctx, enc, *resourceServerCred, userCred)
	if err != nil {
		return apperrors.Wrap(err, "rotate failed")
	}
	value, err := encrypted.Value()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal encrypted rotated credential")
	}

	var nextRotation *time.Time
	if r, ok := encrypted.(credentialDomain.RotatableCredential); ok {
		t := r.NextRotationTime()
		nextRotation = &t
	}

	serialized.Value = value
	serialized.UpdatedAt = time.Now().UTC()
	serialized.NextRotationTime = nextRotation
	serialized.RotationRetries = 0
	serialized.LastRotationError = nil

	if err := u.creds.UpdateUserCredential(ctx, serialized); err != nil {
		return apperrors.Wrap(err, "failed to persist rotated credential")
	}

	if u.publisher != nil {
		if err := u.publisher.PublishCredentialRotated(ctx, serialized.ID, serialized.DekAlias); err != nil && u.logger != nil {
			u.logger.Error("failed to publish rotation event", slog.Any("error", err))
		}
	}
	return nil
}

// recordRotationFailure bumps serialized's retry counter and schedules the
// next attempt with exponential backoff instead of leaving NextRotationTime
// in the past (which would make ProcessDue retry it again on the very next
// tick). Persisting this is best-effort: a failure here just means the
// credential is retried sooner than the backoff intends, never lost.
func (u *UseCase) recordRotationFailure(ctx context.Context, serialized *credentialDomain.SerializedCredential, rotateErr error) {
	serialized.RotationRetries++
	msg := rotateErr.Error()
	serialized.LastRotationError = &msg

	next := time.Now().UTC().Add(u.cfg.backoffFor(serialized.RotationRetries))
	serialized.NextRotationTime = &next
	serialized.UpdatedAt = time.Now().UTC()

	if err := u.creds.UpdateUserCredential(ctx, serialized); err != nil && u.logger != nil {
		u.logger.Error("failed to persist rotation backoff state",
			slog.String("credential_id", serialized.ID.String()),
			slog.Any("error", err),
		)
	}
}

func (u *UseCase) loadResourceServerCredential(ctx context.Context, userCredentialID uuid.UUID) (*credentialDomain.ResourceServerCredential, error) {
	group, err := u.toolGroups.GetToolGroupByUserCredentialID(ctx, userCredentialID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find owning tool group")
	}

	serialized, err := u.creds.GetResourceServerCredentialByID(ctx, group.ResourceServerCredentialID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load resource server credential")
	}

	ctl, ok := u.resolver.ResolveCredentialController(serialized.TypeID)
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "no controller registered for resource server credential type "+serialized.TypeID)
	}

	dekID, err := u.aliases.GetDekByAlias(ctx, serialized.DekAlias)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to resolve resource server dek alias")
	}
	resourceDec, err := u.cipher.GetDecryptionService(ctx, dekID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to obtain resource server decryption service")
	}

	resourceLike, metadata, err := ctl.ParseResourceServerConfiguration(ctx, resourceDec, serialized.Value)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse resource server credential")
	}

	return &credentialDomain.ResourceServerCredential{
		ID:        serialized.ID,
		Inner:     resourceLike,
		Metadata:  metadata,
		CreatedAt: serialized.CreatedAt,
		UpdatedAt: serialized.UpdatedAt,
	}, nil
}
