// Package invocation implements the tool invocation pipeline:
// given a tool_instance_id, resolve its owning tool group, the provider's
// function and credential controllers, obtain a DecryptionService per
// credential's dek_alias, and delegate to the function controller — which
// performs whatever field-level decryption it needs itself.
package invocation

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
	"github.com/coregate/gateway/internal/crypto/cipher"
	apperrors "github.com/coregate/gateway/internal/errors"
	"github.com/coregate/gateway/internal/registry"
	toolDomain "github.com/coregate/gateway/internal/tool/domain"
)

type invocationUseCase struct {
	tools    ToolResolver
	creds    CredentialLookup
	registry Registry
	cipher   CipherProvider
	aliases  DekAliasResolver
}

// New creates a new tool invocation use case.
func New(tools ToolResolver, creds CredentialLookup, reg Registry, cipherProvider CipherProvider, aliases DekAliasResolver) UseCase {
	return &invocationUseCase{tools: tools, creds: creds, registry: reg, cipher: cipherProvider, aliases: aliases}
}

// InvokeFunction routes one tool call: load, authorize, resolve, decrypt, delegate.
func (u *invocationUseCase) InvokeFunction(ctx context.Context, toolID uuid.UUID, params json.RawMessage) (json.RawMessage, error) {
	target, err := u.tools.GetInvocationTargetByToolID(ctx, toolID)
	if err != nil {
		return nil, err
	}
	if target.Status != toolDomain.StatusActive {
		return nil, apperrors.ErrToolNotFound
	}

	fn, ok := u.registry.ResolveFunctionController(target.ProviderTypeID, target.ToolTypeID)
	if !ok {
		return nil, apperrors.ErrToolNotFound
	}
	if _, ok := u.registry.ResolveCredentialController(target.CredentialControllerTypeID); !ok {
		return nil, apperrors.ErrToolNotFound
	}

	resourceServerCred, err := u.creds.GetResourceServerCredentialByID(ctx, target.ResourceServerCredentialID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load resource server credential")
	}
	resourceServerDec, err := u.decryptionServiceFor(ctx, resourceServerCred.DekAlias)
	if err != nil {
		return nil, err
	}

	var userCred *credentialDomain.SerializedCredential
	var userDec *cipher.DecryptionService
	if target.UserCredentialID != nil {
		userCred, err = u.creds.GetUserCredentialByID(ctx, *target.UserCredentialID)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to load user credential")
		}
		dec, err := u.decryptionServiceFor(ctx, userCred.DekAlias)
		if err != nil {
			return nil, err
		}
		userDec = dec
	}

	var staticCred *credentialDomain.SerializedCredential
	var staticDec *cipher.DecryptionService
	if target.StaticCredentialID != nil {
		staticCred, err = u.creds.GetStaticCredentialByID(ctx, *target.StaticCredentialID)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to load static credential")
		}
		dec, err := u.decryptionServiceFor(ctx, staticCred.DekAlias)
		if err != nil {
			return nil, err
		}
		staticDec = dec
	}

	decryption := registry.CredentialDecryption{
		Static:         staticDec,
		ResourceServer: resourceServerDec,
		User:           userDec,
	}

	result, err := fn.Invoke(ctx, decryption, staticCred, resourceServerCred, userCred, params)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (u *invocationUseCase) decryptionServiceFor(ctx context.Context, dekAlias string) (*cipher.DecryptionService, error) {
	if dekAlias == "" {
		return nil, nil
	}
	dekID, err := u.aliases.GetDekByAlias(ctx, dekAlias)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to resolve dek alias")
	}
	dec, err := u.cipher.GetDecryptionService(ctx, dekID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get decryption service")
	}
	return dec, nil
}
