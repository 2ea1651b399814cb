// Package domain defines the credential type system: the enumerated set of
// static, resource-server, and user credential variants a provider
// controller can produce, wrapped in the generic Credential envelope that
// carries identity, metadata, and timestamps alongside the variant payload.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Metadata is an arbitrary, provider-defined JSON object attached to a
// credential or broker state. Always present, possibly empty.
type Metadata map[string]any

// Credential wraps a credential payload of type T with its storage
// identity. T is one of the *Like interfaces below (StaticCredential,
// ResourceServerCredential, UserCredential are all Credential[T]
// instantiations).
type Credential[T any] struct {
	Inner     T
	Metadata  Metadata
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RotatableCredential is implemented by credential variants that expire and
// must be refreshed before NextRotationTime.
type RotatableCredential interface {
	NextRotationTime() time.Time
}

// StaticCredentialLike is a credential variant with no external resource
// server or user context — a fixed value configured once.
type StaticCredentialLike interface {
	TypeID() string
	Value() (json.RawMessage, error)
}

// ResourceServerCredentialLike is a credential variant describing how the
// gateway itself authenticates to a resource server (client id/secret,
// signing key, etc.), independent of any individual end user.
type ResourceServerCredentialLike interface {
	TypeID() string
	Value() (json.RawMessage, error)
}

// UserCredentialLike is a credential variant representing one end user's
// delegated access to a resource server (access token, assertion, etc.).
type UserCredentialLike interface {
	TypeID() string
	Value() (json.RawMessage, error)
}

// StaticCredential is the closed-world enumerated variant set for
// StaticCredentialLike. New variants are added here, never via an
// open-ended interface implemented outside this package.
type StaticCredential = Credential[StaticCredentialLike]

// ResourceServerCredential is the closed-world enumerated variant set for
// ResourceServerCredentialLike.
type ResourceServerCredential = Credential[ResourceServerCredentialLike]

// UserCredential is the closed-world enumerated variant set for
// UserCredentialLike.
type UserCredential = Credential[UserCredentialLike]

// Type ids. Stable, persisted strings; a closed enumeration.
const (
	TypeStaticNoAuth                          = "static_no_auth"
	TypeResourceServerNoAuth                  = "resource_server_no_auth"
	TypeUserNoAuth                            = "no_auth"
	TypeResourceServerOAuth2AuthorizationCode = "resource_server_oauth2_authorization_code_flow"
	TypeResourceServerOAuth2JWTBearer         = "resource_server_oauth2_jwt_bearer_assertion_flow"
	TypeUserOAuth2AuthorizationCode           = "oauth2_authorization_code_flow"
	TypeUserOAuth2JWTBearer                   = "oauth2_jwt_bearer_assertion_flow"
)

func marshalSelf(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}

// NoAuthStaticCredentialConfiguration is the trivial static credential: no
// secret material, only metadata.
type NoAuthStaticCredentialConfiguration struct {
	Metadata Metadata `json:"metadata"`
}

func (c NoAuthStaticCredentialConfiguration) TypeID() string { return TypeStaticNoAuth }
func (c NoAuthStaticCredentialConfiguration) Value() (json.RawMessage, error) {
	return marshalSelf(c)
}

// NoAuthResourceServerCredential is a resource server with no credential
// material at all (public endpoints, IP allowlisting handled elsewhere).
type NoAuthResourceServerCredential struct {
	Metadata Metadata `json:"metadata"`
}

func (c NoAuthResourceServerCredential) TypeID() string { return TypeResourceServerNoAuth }
func (c NoAuthResourceServerCredential) Value() (json.RawMessage, error) {
	return marshalSelf(c)
}

// OAuth2AuthorizationCodeResourceServerCredential is a resource server's
// registered OAuth2 client, used by the authorization-code flow to
// broker user credentials.
type OAuth2AuthorizationCodeResourceServerCredential struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"` // ciphertext
	RedirectURI  string   `json:"redirect_uri"`
	Metadata     Metadata `json:"metadata"`
}

func (c OAuth2AuthorizationCodeResourceServerCredential) TypeID() string {
	return TypeResourceServerOAuth2AuthorizationCode
}
func (c OAuth2AuthorizationCodeResourceServerCredential) Value() (json.RawMessage, error) {
	return marshalSelf(c)
}

// OAuth2JWTBearerResourceServerCredential is a resource server's registered
// OAuth2 client for the JWT-bearer-assertion flow.
type OAuth2JWTBearerResourceServerCredential struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Metadata     Metadata `json:"metadata"`
}

func (c OAuth2JWTBearerResourceServerCredential) TypeID() string {
	return TypeResourceServerOAuth2JWTBearer
}
func (c OAuth2JWTBearerResourceServerCredential) Value() (json.RawMessage, error) {
	return marshalSelf(c)
}

// NoAuthUserCredential represents a user with no individual credential of
// their own (the resource server credential alone is sufficient).
type NoAuthUserCredential struct {
	Metadata Metadata `json:"metadata"`
}

func (c NoAuthUserCredential) TypeID() string { return TypeUserNoAuth }
func (c NoAuthUserCredential) Value() (json.RawMessage, error) {
	return marshalSelf(c)
}

// OAuth2AuthorizationCodeUserCredential is one user's delegated OAuth2
// access and refresh tokens obtained via the authorization-code flow.
type OAuth2AuthorizationCodeUserCredential struct {
	Code         string    `json:"code"` // ciphertext
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiryTime   time.Time `json:"expiry_time"`
	Subject      string    `json:"sub"`
	Metadata     Metadata  `json:"metadata"`
}

func (c OAuth2AuthorizationCodeUserCredential) TypeID() string {
	return TypeUserOAuth2AuthorizationCode
}
func (c OAuth2AuthorizationCodeUserCredential) Value() (json.RawMessage, error) {
	return marshalSelf(c)
}
func (c OAuth2AuthorizationCodeUserCredential) NextRotationTime() time.Time { return c.ExpiryTime }

// OAuth2JWTBearerUserCredential is one user's delegated access obtained via
// the JWT-bearer-assertion flow.
type OAuth2JWTBearerUserCredential struct {
	Assertion  string    `json:"assertion"`
	Token      string    `json:"token"`
	ExpiryTime time.Time `json:"expiry_time"`
	Subject    string    `json:"sub"`
	Metadata   Metadata  `json:"metadata"`
}

func (c OAuth2JWTBearerUserCredential) TypeID() string { return TypeUserOAuth2JWTBearer }
func (c OAuth2JWTBearerUserCredential) Value() (json.RawMessage, error) {
	return marshalSelf(c)
}
func (c OAuth2JWTBearerUserCredential) NextRotationTime() time.Time { return c.ExpiryTime }

// SerializedCredential is the wire/storage form of a ResourceServerCredential
// or UserCredential: Value is the variant's already-encrypted JSON (secret
// fields are base64 AEAD blobs), keyed by TypeID for controller dispatch on
// read. NextRotationTime is nil for credential kinds that never rotate.
type SerializedCredential struct {
	ID        uuid.UUID
	TypeID    string
	DekAlias  string // alias resolving to the DEK protecting Value's secret fields, not the DEK id itself
	Metadata  Metadata
	Value     json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time

	NextRotationTime *time.Time

	// RotationRetries counts consecutive rotation failures since the last
	// success; it drives the scheduler's exponential backoff and is reset to
	// zero on the next successful rotation. LastRotationError is the most
	// recent failure's message, kept for operator visibility — a credential
	// is never deleted or disabled for repeated rotation failure.
	RotationRetries   int
	LastRotationError *string
}
