// Package cache implements the process-wide crypto service cache: a
// dek_id -> Handles map that loads on miss, coalesces concurrent misses for
// the same key, and wipes plaintext key material on invalidation.
package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/coregate/gateway/internal/crypto/cipher"
	cryptoDomain "github.com/coregate/gateway/internal/crypto/domain"
	"github.com/coregate/gateway/internal/crypto/envelope"
	cryptoService "github.com/coregate/gateway/internal/crypto/service"
	apperrors "github.com/coregate/gateway/internal/errors"
)

// DekRepository is the slice of the key repository the cache needs:
// a single fully-materialized DEK row, joined with its EnvelopeKey.
type DekRepository interface {
	GetDekWithEnvelopeKey(ctx context.Context, id uuid.UUID) (*cryptoDomain.Dek, *cryptoDomain.EnvelopeKey, error)
}

// Handles bundles the encryption and decryption services for one DEK. Both
// share the same underlying plaintext key slice; Close wipes it once,
// invalidating both services simultaneously.
type Handles struct {
	Encryption *cipher.EncryptionService
	Decryption *cipher.DecryptionService
	key        []byte
}

// Close wipes the plaintext DEK bytes backing both services.
func (h *Handles) Close() {
	cryptoDomain.Zero(h.key)
}

// Cache is the process-wide crypto service cache.
type Cache struct {
	repo           DekRepository
	backendFactory envelope.Factory
	aeadManager    cryptoService.AEADManager

	mu      sync.RWMutex
	handles map[uuid.UUID]*Handles
	group   singleflight.Group
}

// New creates a Cache.
func New(repo DekRepository, backendFactory envelope.Factory, aeadManager cryptoService.AEADManager) *Cache {
	return &Cache{
		repo:           repo,
		backendFactory: backendFactory,
		aeadManager:    aeadManager,
		handles:        make(map[uuid.UUID]*Handles),
	}
}

// GetEncryptionService returns the cached (or newly loaded) EncryptionService for dekID.
func (c *Cache) GetEncryptionService(ctx context.Context, dekID uuid.UUID) (*cipher.EncryptionService, error) {
	h, err := c.getHandles(ctx, dekID)
	if err != nil {
		return nil, err
	}
	return h.Encryption, nil
}

// GetDecryptionService returns the cached (or newly loaded) DecryptionService for dekID.
func (c *Cache) GetDecryptionService(ctx context.Context, dekID uuid.UUID) (*cipher.DecryptionService, error) {
	h, err := c.getHandles(ctx, dekID)
	if err != nil {
		return nil, err
	}
	return h.Decryption, nil
}

// getHandles returns the cached Handles for dekID, loading on miss. Concurrent
// misses for the same dekID are coalesced by singleflight so the DEK is
// unwrapped exactly once regardless of how many goroutines ask for it at
// the same time.
func (c *Cache) getHandles(ctx context.Context, dekID uuid.UUID) (*Handles, error) {
	c.mu.RLock()
	h, ok := c.handles[dekID]
	c.mu.RUnlock()
	if ok {
		return h, nil
	}

	v, err, _ := c.group.Do(dekID.String(), func() (interface{}, error) {
		// Re-check under the singleflight key: another goroutine may have
		// finished loading between our RUnlock above and Do() being scheduled.
		c.mu.RLock()
		if h, ok := c.handles[dekID]; ok {
			c.mu.RUnlock()
			return h, nil
		}
		c.mu.RUnlock()

		h, err := c.load(ctx, dekID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.handles[dekID] = h
		c.mu.Unlock()

		return h, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Handles), nil
}

// load resolves the DEK row, selects its envelope back-end, unwraps the
// plaintext key, and constructs Handles.
func (c *Cache) load(ctx context.Context, dekID uuid.UUID) (*Handles, error) {
	dek, envKey, err := c.repo.GetDekWithEnvelopeKey(ctx, dekID)
	if err != nil {
		return nil, err
	}

	backend, err := c.backendFactory.Open(ctx, *envKey)
	if err != nil {
		return nil, err
	}

	plaintext, err := backend.Unwrap(ctx, dek.EncryptedKey)
	if err != nil {
		return nil, err
	}

	enc, err := cipher.NewEncryptionService(c.aeadManager, plaintext, dek.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCryptoFailure, err)
	}
	dec, err := cipher.NewDecryptionService(c.aeadManager, plaintext, dek.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCryptoFailure, err)
	}

	return &Handles{Encryption: enc, Decryption: dec, key: plaintext}, nil
}

// Invalidate removes dekID's cached Handles, wiping its plaintext key. Once
// Invalidate returns, no in-flight getHandles call for dekID can return the
// pre-invalidation handle: either it already returned before this call (and
// holds a reference to a now-wiped key, matching spec's cancellation rule
// that plaintext lives only in structures that wipe on drop), or it is
// still loading and will populate a fresh entry afterward.
func (c *Cache) Invalidate(dekID uuid.UUID) {
	c.mu.Lock()
	h, ok := c.handles[dekID]
	delete(c.handles, dekID)
	c.mu.Unlock()

	if ok {
		h.Close()
	}
}
