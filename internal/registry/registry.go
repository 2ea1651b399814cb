// Package registry implements the process-wide provider registry: the set
// of providers (e.g. "github", "slack") available to broker credentials
// and invoke tools against, looked up by stable type id.
package registry

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coregate/gateway/internal/credential/controller"
	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
	"github.com/coregate/gateway/internal/crypto/cipher"
	apperrors "github.com/coregate/gateway/internal/errors"
)

// CredentialDecryption bundles the DecryptionService resolved for each of a
// tool invocation's three credential tiers. Each tier's serialized value may
// carry its own dek_alias, so each gets its own service; a tier absent from
// the call (e.g. no static credential registered) leaves its field nil.
type CredentialDecryption struct {
	Static         *cipher.DecryptionService
	ResourceServer *cipher.DecryptionService
	User           *cipher.DecryptionService
}

// FunctionController is one callable tool a provider exposes: a typed
// parameter/output schema pair and the Invoke operation that exercises it
// against a resolved credential triple.
type FunctionController interface {
	TypeID() string
	Name() string
	Documentation() string
	ParametersSchema() json.RawMessage
	OutputSchema() json.RawMessage

	// Invoke calls the tool. staticCred, resourceServerCred and userCred
	// are still in serialized (encrypted) form; Invoke performs whatever
	// field-level decryption it needs using decryption, rather than
	// receiving a pre-decrypted typed credential.
	Invoke(ctx context.Context, decryption CredentialDecryption, staticCred, resourceServerCred, userCred *credentialDomain.SerializedCredential, params json.RawMessage) (json.RawMessage, error)
}

// ProviderController is one integration: its name/documentation, the
// credential controllers it supports, and the functions (tools) it exposes.
type ProviderController interface {
	TypeID() string
	Name() string
	Documentation() string
	Functions() []FunctionController
	CredentialControllers() []controller.CredentialController
}

// Registry is the process-wide, concurrency-safe provider directory. Once
// poisoned (a panic was recovered during a write), every subsequent
// operation fails with ErrRegistryPoisoned rather than risk serving from
// partially-mutated state.
type Registry struct {
	mu        sync.RWMutex
	poisoned  bool
	providers map[string]ProviderController
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{providers: make(map[string]ProviderController)}
}

// Register adds p, keyed by its TypeID. Registering a type id twice
// overwrites the previous entry — callers register once at startup.
func (r *Registry) Register(p ProviderController) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() {
		if rec := recover(); rec != nil {
			r.poisoned = true
			err = apperrors.ErrRegistryPoisoned
		}
	}()

	if r.poisoned {
		return apperrors.ErrRegistryPoisoned
	}
	r.providers[p.TypeID()] = p
	return nil
}

// ResolveProvider looks up a provider by its type id.
func (r *Registry) ResolveProvider(typeID string) (ProviderController, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.poisoned {
		return nil, false
	}
	p, ok := r.providers[typeID]
	return p, ok
}

// List returns every registered provider, in no particular order.
func (r *Registry) List() ([]ProviderController, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.poisoned {
		return nil, apperrors.ErrRegistryPoisoned
	}

	providers := make([]ProviderController, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers, nil
}

// ResolveCredentialController searches every registered provider's
// credential controllers for typeID. Credential controller type ids are
// unique across the whole registry, so the
// first match wins; this satisfies internal/broker.ControllerResolver and
// internal/credential/usecase.ControllerResolver without either package
// depending on this one.
func (r *Registry) ResolveCredentialController(typeID string) (controller.CredentialController, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.poisoned {
		return nil, false
	}

	for _, p := range r.providers {
		for _, c := range p.CredentialControllers() {
			if c.TypeID() == typeID {
				return c, true
			}
		}
	}
	return nil, false
}

// ResolveFunctionController looks up one provider's function controller by
// its type id.
func (r *Registry) ResolveFunctionController(providerTypeID, functionTypeID string) (FunctionController, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.poisoned {
		return nil, false
	}

	p, ok := r.providers[providerTypeID]
	if !ok {
		return nil, false
	}
	for _, f := range p.Functions() {
		if f.TypeID() == functionTypeID {
			return f, true
		}
	}
	return nil, false
}
