// Package controller defines the CredentialController contract every
// provider's credential handling must implement: encrypting raw
// configuration into a credential variant, parsing a persisted (encrypted)
// variant back into its decrypted view, and declaring which optional
// capabilities (user brokering, rotation) it supports.
package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	brokerDomain "github.com/coregate/gateway/internal/broker/domain"
	"github.com/coregate/gateway/internal/crypto/cipher"

	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
	apperrors "github.com/coregate/gateway/internal/errors"
)

// BrokerAction, BrokerInput, BrokerOutcome, and BrokerState alias the
// broker package's domain types so implementers of UserCredentialBroker
// don't need a second import for the same concepts this interface speaks.
type (
	BrokerAction  = brokerDomain.Action
	BrokerInput   = brokerDomain.Input
	BrokerOutcome = brokerDomain.Outcome
	BrokerState   = brokerDomain.BrokerState
)

// SchemaItem documents the shape of one credential controller's raw (pre
// encryption) resource-server and user-credential configuration forms. Field values are
// free-form JSON Schema documents; validated by callers, not this package.
type SchemaItem struct {
	ResourceServer json.RawMessage `json:"resource_server"`
	UserCredential json.RawMessage `json:"user_credential"`
}

// ConfigurationSchema maps credential controller type id to its SchemaItem.
type ConfigurationSchema map[string]SchemaItem

// CredentialController is the contract a provider implements for one
// credential_controller_type_id: it knows how to turn raw operator/user
// input into an encrypted credential variant, and how to recover the
// decrypted view of a persisted one.
type CredentialController interface {
	TypeID() string
	Name() string
	Documentation() string
	ConfigurationSchema() ConfigurationSchema

	// EncryptResourceServerConfiguration validates raw and encrypts any
	// secret fields (via enc), returning the variant ready to persist.
	EncryptResourceServerConfiguration(ctx context.Context, enc *cipher.EncryptionService, raw json.RawMessage) (credentialDomain.ResourceServerCredentialLike, error)

	// EncryptUserCredentialConfiguration is the user-credential analogue.
	EncryptUserCredentialConfiguration(ctx context.Context, enc *cipher.EncryptionService, raw json.RawMessage) (credentialDomain.UserCredentialLike, error)

	// ParseResourceServerConfiguration decrypts a persisted variant's secret
	// fields (via dec) back into the variant's decrypted Go form.
	ParseResourceServerConfiguration(ctx context.Context, dec *cipher.DecryptionService, raw json.RawMessage) (credentialDomain.ResourceServerCredentialLike, credentialDomain.Metadata, error)

	// ParseUserCredentialConfiguration is the user-credential analogue.
	ParseUserCredentialConfiguration(ctx context.Context, dec *cipher.DecryptionService, raw json.RawMessage) (credentialDomain.UserCredentialLike, credentialDomain.Metadata, error)
}

// UserCredentialBroker is an optional capability: controllers that manage a
// multi-step, externally-driven flow (OAuth2 authorization code) implement
// this so internal/broker can drive start/resume against them.
type UserCredentialBroker interface {
	Start(ctx context.Context, resourceServerCred credentialDomain.ResourceServerCredential) (BrokerAction, BrokerOutcome, error)
	Resume(ctx context.Context, state BrokerState, input BrokerInput) (BrokerAction, BrokerOutcome, error)
}

// RotatableResourceServerCredential is an optional capability: controllers
// whose resource server credential itself expires (signing keys, client
// secrets with lifetimes) implement this so internal/rotation can drive it.
type RotatableResourceServerCredential interface {
	RotateResourceServerCredential(ctx context.Context, cred credentialDomain.ResourceServerCredential) (credentialDomain.ResourceServerCredential, error)
	NextResourceServerCredentialRotationTime(cred credentialDomain.ResourceServerCredential) time.Time
}

// RotatableUserCredential is the user-credential analogue, used for
// refresh-token and assertion renewal. Unlike the initial-creation path,
// rotated secret material (a freshly minted access token, say) has no raw
// operator/user JSON to route through EncryptUserCredentialConfiguration, so
// RotateUserCredential takes the EncryptionService itself and returns the
// already-encrypted variant ready to persist, rather than a decrypted
// credentialDomain.UserCredential a caller would have to re-encrypt blind.
type RotatableUserCredential interface {
	RotateUserCredential(ctx context.Context, enc *cipher.EncryptionService, resourceServerCred credentialDomain.ResourceServerCredential, userCred credentialDomain.UserCredential) (credentialDomain.UserCredentialLike, error)
}

// AsUserCredentialBroker type-asserts c's optional UserCredentialBroker
// capability, returning ok=false (never panicking) when unsupported — the
// "optional capability, not a required method" pattern.
func AsUserCredentialBroker(c CredentialController) (UserCredentialBroker, bool) {
	b, ok := c.(UserCredentialBroker)
	return b, ok
}

// AsRotatableResourceServerCredential mirrors AsUserCredentialBroker for the
// resource-server rotation capability.
func AsRotatableResourceServerCredential(c CredentialController) (RotatableResourceServerCredential, bool) {
	r, ok := c.(RotatableResourceServerCredential)
	return r, ok
}

// AsRotatableUserCredential mirrors AsUserCredentialBroker for the
// user-credential rotation capability.
func AsRotatableUserCredential(c CredentialController) (RotatableUserCredential, bool) {
	r, ok := c.(RotatableUserCredential)
	return r, ok
}

// wrapUnmarshal wraps a json.Unmarshal failure on raw controller input as an
// invalid-input error.
func wrapUnmarshal(err error) error {
	return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
}
