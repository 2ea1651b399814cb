// Package broker implements the brokering state machine: the
// start/resume transitions that drive a multi-step credential exchange
// (OAuth2 authorization code, PKCE, JWT-bearer, no-auth) to a terminal
// UserCredential.
package broker

import (
	"context"
	"time"

	"github.com/google/uuid"

	brokerDomain "github.com/coregate/gateway/internal/broker/domain"
	"github.com/coregate/gateway/internal/credential/controller"
	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
	apperrors "github.com/coregate/gateway/internal/errors"
)

// ControllerResolver looks up a registered credential controller by its
// stable type id. internal/registry satisfies this.
type ControllerResolver interface {
	ResolveCredentialController(typeID string) (controller.CredentialController, bool)
}

// StateStore persists BrokerState rows between start and resume.
type StateStore interface {
	Create(ctx context.Context, state *brokerDomain.BrokerState) error
	GetByID(ctx context.Context, id uuid.UUID) (*brokerDomain.BrokerState, error)
	Update(ctx context.Context, state *brokerDomain.BrokerState) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserCredentialMaterializer turns a successful broker Outcome into a
// persisted UserCredential, via the same create path direct (non-brokered)
// credential creation uses.
type UserCredentialMaterializer interface {
	CreateUserCredential(ctx context.Context, resourceServerCredID uuid.UUID, cred credentialDomain.UserCredentialLike, metadata credentialDomain.Metadata) (*credentialDomain.UserCredential, error)
}

// Engine drives start/resume against whichever controller a BrokerState or
// caller names, never trusting the caller's own notion of which controller
// applies.
type Engine struct {
	resolver     ControllerResolver
	states       StateStore
	materializer UserCredentialMaterializer
}

// New creates an Engine.
func New(resolver ControllerResolver, states StateStore, materializer UserCredentialMaterializer) *Engine {
	return &Engine{resolver: resolver, states: states, materializer: materializer}
}

// Start begins a brokering flow for resourceServerCred, whose decrypted
// view must already have been assembled by the credential controller's
// parse operation. On Outcome.Continue it persists a new BrokerState; on
// Outcome.Success it materializes the UserCredential immediately, with no
// BrokerState row ever created.
func (e *Engine) Start(
	ctx context.Context,
	credentialControllerTypeID, providerControllerTypeID string,
	resourceServerCredID uuid.UUID,
	resourceServerCred credentialDomain.ResourceServerCredential,
) (brokerDomain.Action, *brokerDomain.BrokerState, error) {
	ctl, ok := e.resolver.ResolveCredentialController(credentialControllerTypeID)
	if !ok {
		return brokerDomain.Action{}, nil, apperrors.ErrBrokerUnsupported
	}

	broker, ok := controller.AsUserCredentialBroker(ctl)
	if !ok {
		return brokerDomain.Action{}, nil, apperrors.ErrBrokerUnsupported
	}

	action, outcome, err := broker.Start(ctx, resourceServerCred)
	if err != nil {
		return brokerDomain.Action{}, nil, err
	}

	if outcome.Kind == brokerDomain.OutcomeKindSuccess {
		if _, err := e.materializer.CreateUserCredential(ctx, resourceServerCredID, outcome.UserCredential, outcome.Metadata); err != nil {
			return brokerDomain.Action{}, nil, err
		}
		return action, nil, nil
	}

	now := time.Now().UTC()
	state := &brokerDomain.BrokerState{
		ID:                         uuid.New(),
		ResourceServerCredID:       resourceServerCredID,
		ProviderControllerTypeID:   providerControllerTypeID,
		CredentialControllerTypeID: credentialControllerTypeID,
		Metadata:                   outcome.Metadata,
		Action:                     action,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	if state.Metadata == nil {
		state.Metadata = credentialDomain.Metadata{}
	}

	if err := e.states.Create(ctx, state); err != nil {
		return brokerDomain.Action{}, nil, err
	}

	return action, state, nil
}

// Resume advances an in-flight BrokerState with the caller-supplied input.
// The controller is resolved from the state's own
// CredentialControllerTypeID, never from input or any caller-asserted
// value. This is the guard against cross-protocol confusion.
func (e *Engine) Resume(
	ctx context.Context, stateID uuid.UUID, input brokerDomain.Input,
) (brokerDomain.Action, error) {
	state, err := e.states.GetByID(ctx, stateID)
	if err != nil {
		return brokerDomain.Action{}, err
	}

	ctl, ok := e.resolver.ResolveCredentialController(state.CredentialControllerTypeID)
	if !ok {
		return brokerDomain.Action{}, apperrors.ErrBrokerUnsupported
	}

	broker, ok := controller.AsUserCredentialBroker(ctl)
	if !ok {
		return brokerDomain.Action{}, apperrors.ErrBrokerUnsupported
	}

	action, outcome, err := broker.Resume(ctx, *state, input)
	if err != nil {
		return brokerDomain.Action{}, err
	}

	switch outcome.Kind {
	case brokerDomain.OutcomeKindSuccess:
		if _, err := e.materializer.CreateUserCredential(ctx, state.ResourceServerCredID, outcome.UserCredential, outcome.Metadata); err != nil {
			return brokerDomain.Action{}, err
		}
		if err := e.states.Delete(ctx, state.ID); err != nil {
			return brokerDomain.Action{}, err
		}
		return action, nil

	case brokerDomain.OutcomeKindContinue:
		state.Action = action
		state.Metadata = outcome.Metadata
		if state.Metadata == nil {
			state.Metadata = credentialDomain.Metadata{}
		}
		state.UpdatedAt = time.Now().UTC()
		if err := e.states.Update(ctx, state); err != nil {
			return brokerDomain.Action{}, err
		}
		return action, nil

	default:
		return brokerDomain.Action{}, apperrors.ErrBrokerStateMismatch
	}
}
