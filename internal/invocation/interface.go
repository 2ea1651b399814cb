package invocation

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/coregate/gateway/internal/credential/controller"
	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
	"github.com/coregate/gateway/internal/crypto/cipher"
	"github.com/coregate/gateway/internal/registry"
	toolDomain "github.com/coregate/gateway/internal/tool/domain"
)

// ToolResolver loads the joined tool-instance/tool-group row invoke_function
// needs to route a call.
type ToolResolver interface {
	GetInvocationTargetByToolID(ctx context.Context, toolID uuid.UUID) (*toolDomain.InvocationTarget, error)
}

// CredentialLookup fetches the serialized (still-encrypted) credential rows
// an invocation needs — never the decrypted controller-specific view, since
// field-level decryption happens inside FunctionController.Invoke itself.
type CredentialLookup interface {
	GetResourceServerCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error)
	GetUserCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error)
	GetStaticCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error)
}

// Registry resolves provider→function_controller and provider→credential
// controller. Satisfied by *internal/registry.Registry.
type Registry interface {
	ResolveFunctionController(providerTypeID, functionTypeID string) (registry.FunctionController, bool)
	ResolveCredentialController(typeID string) (controller.CredentialController, bool)
}

// CipherProvider obtains a DecryptionService for a resolved DEK id.
type CipherProvider interface {
	GetDecryptionService(ctx context.Context, dekID uuid.UUID) (*cipher.DecryptionService, error)
}

// DekAliasResolver resolves a credential's dek_alias column to the DEK id
// the crypto cache indexes by.
type DekAliasResolver interface {
	GetDekByAlias(ctx context.Context, alias string) (uuid.UUID, error)
}

// UseCase implements the tool invocation pipeline.
type UseCase interface {
	InvokeFunction(ctx context.Context, toolID uuid.UUID, params json.RawMessage) (json.RawMessage, error)
}
