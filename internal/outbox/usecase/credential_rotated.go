package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/coregate/gateway/internal/outbox/domain"
)

// EventTypeCredentialRotated marks an outbox event recording that a
// credential's ciphertext was re-encrypted under a (possibly different) DEK
// alias: publish a change event so the crypto cache can
// invalidate any related DEK handle if the update also re-aliased the DEK."
const EventTypeCredentialRotated = "credential.rotated"

// credentialRotatedPayload is EventTypeCredentialRotated's JSON payload.
type credentialRotatedPayload struct {
	CredentialID uuid.UUID `json:"credential_id"`
	DekAlias     string    `json:"dek_alias"`
}

// CredentialRotationPublisher records a credential.rotated outbox event for
// every rotated credential, satisfying internal/rotation.ChangePublisher.
// Writing through the outbox rather than invalidating the cache inline
// keeps the rotation scheduler's write path free of a direct dependency on
// internal/crypto/cache and lets any number of subscribers react to the
// same event (metrics, audit, the cache invalidator below).
type CredentialRotationPublisher struct {
	repo OutboxEventRepository
}

// NewCredentialRotationPublisher creates a CredentialRotationPublisher.
func NewCredentialRotationPublisher(repo OutboxEventRepository) *CredentialRotationPublisher {
	return &CredentialRotationPublisher{repo: repo}
}

// PublishCredentialRotated appends a pending credential.rotated event.
func (p *CredentialRotationPublisher) PublishCredentialRotated(ctx context.Context, credentialID uuid.UUID, dekAlias string) error {
	payload, err := json.Marshal(credentialRotatedPayload{CredentialID: credentialID, DekAlias: dekAlias})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return p.repo.Create(ctx, &domain.OutboxEvent{
		ID:        uuid.New(),
		EventType: EventTypeCredentialRotated,
		Payload:   string(payload),
		Status:    domain.OutboxEventStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// CacheInvalidator is the subset of internal/crypto/cache.Cache the
// credential-rotation event processor needs.
type CacheInvalidator interface {
	Invalidate(dekID uuid.UUID)
}

// DekAliasResolver resolves a dek_alias to the dek id the crypto cache
// indexes by.
type DekAliasResolver interface {
	GetDekByAlias(ctx context.Context, alias string) (uuid.UUID, error)
}

// CredentialRotationProcessor is an EventProcessor that invalidates the
// crypto cache entry for a rotated credential's (possibly new) DEK alias,
// draining the outbox queue the rotation scheduler writes to.
type CredentialRotationProcessor struct {
	aliases DekAliasResolver
	cache   CacheInvalidator
}

// NewCredentialRotationProcessor creates a CredentialRotationProcessor.
func NewCredentialRotationProcessor(aliases DekAliasResolver, cache CacheInvalidator) *CredentialRotationProcessor {
	return &CredentialRotationProcessor{aliases: aliases, cache: cache}
}

// Process invalidates the cache entry for the rotated credential's DEK
// alias. Unknown event types are ignored, not an error, since the same
// outbox table may carry other event kinds over the application's life.
func (p *CredentialRotationProcessor) Process(ctx context.Context, event *domain.OutboxEvent) error {
	if event.EventType != EventTypeCredentialRotated {
		return nil
	}

	var payload credentialRotatedPayload
	if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
		return err
	}

	dekID, err := p.aliases.GetDekByAlias(ctx, payload.DekAlias)
	if err != nil {
		return err
	}
	p.cache.Invalidate(dekID)
	return nil
}
