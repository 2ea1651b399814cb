// Package domain defines the persisted brokering state machine: the
// in-flight record of a multi-step, externally-driven credential exchange
// (e.g. an OAuth2 authorization-code redirect round trip), and the small
// vocabulary of actions/inputs/outcomes that drive it forward.
package domain

import (
	"time"

	"github.com/google/uuid"

	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
)

// BrokerState is the durable record of one in-progress brokering attempt.
// It lives between a Start call that produced a Redirect action and the
// Resume call that completes (or continues) the exchange.
type BrokerState struct {
	ID                         uuid.UUID
	ResourceServerCredID       uuid.UUID
	ProviderControllerTypeID   string
	CredentialControllerTypeID string
	Metadata                   credentialDomain.Metadata
	Action                     Action
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// ActionKind discriminates the Action union.
type ActionKind string

const (
	// ActionKindRedirect tells the caller to send the end user to URL to
	// continue the exchange (e.g. an OAuth2 authorization endpoint).
	ActionKindRedirect ActionKind = "redirect"
	// ActionKindNone means no further external step is required.
	ActionKindNone ActionKind = "none"
)

// Action is what a controller's Start/Resume call asks the caller to do
// next. Only URL is populated when Kind is ActionKindRedirect.
type Action struct {
	Kind ActionKind
	URL  string
}

// InputKind discriminates the Input union the caller supplies to Resume.
type InputKind string

const (
	InputKindOAuth2AuthorizationCodeFlow         InputKind = "oauth2_authorization_code_flow"
	InputKindOAuth2AuthorizationCodeFlowWithPKCE InputKind = "oauth2_authorization_code_flow_with_pkce"
)

// Input is the external event data a caller hands to Resume — the
// authorization code and, for PKCE, its verifier.
type Input struct {
	Kind         InputKind
	Code         string
	CodeVerifier string
}

// OutcomeKind discriminates the Outcome union a controller's Start/Resume
// call returns.
type OutcomeKind string

const (
	// OutcomeKindSuccess means the flow completed: UserCredential is set.
	OutcomeKindSuccess OutcomeKind = "success"
	// OutcomeKindContinue means another Resume call is still required;
	// the caller must persist the returned BrokerState and Action.
	OutcomeKindContinue OutcomeKind = "continue"
)

// Outcome is the result of one Start/Resume step.
type Outcome struct {
	Kind           OutcomeKind
	UserCredential credentialDomain.UserCredentialLike
	Metadata       credentialDomain.Metadata
}
