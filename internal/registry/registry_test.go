package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregate/gateway/internal/credential/controller"
	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
	"github.com/coregate/gateway/internal/crypto/cipher"
	apperrors "github.com/coregate/gateway/internal/errors"
)

type fakeCredentialController struct{ typeID string }

func (f fakeCredentialController) TypeID() string                             { return f.typeID }
func (f fakeCredentialController) Name() string                               { return "fake" }
func (f fakeCredentialController) Documentation() string                     { return "" }
func (f fakeCredentialController) ConfigurationSchema() controller.ConfigurationSchema { return nil }
func (f fakeCredentialController) EncryptResourceServerConfiguration(ctx context.Context, enc *cipher.EncryptionService, raw json.RawMessage) (credentialDomain.ResourceServerCredentialLike, error) {
	return nil, nil
}
func (f fakeCredentialController) EncryptUserCredentialConfiguration(ctx context.Context, enc *cipher.EncryptionService, raw json.RawMessage) (credentialDomain.UserCredentialLike, error) {
	return nil, nil
}
func (f fakeCredentialController) ParseResourceServerConfiguration(ctx context.Context, dec *cipher.DecryptionService, raw json.RawMessage) (credentialDomain.ResourceServerCredentialLike, credentialDomain.Metadata, error) {
	return nil, nil, nil
}
func (f fakeCredentialController) ParseUserCredentialConfiguration(ctx context.Context, dec *cipher.DecryptionService, raw json.RawMessage) (credentialDomain.UserCredentialLike, credentialDomain.Metadata, error) {
	return nil, nil, nil
}

type fakeFunctionController struct{ typeID string }

func (f fakeFunctionController) TypeID() string                    { return f.typeID }
func (f fakeFunctionController) Name() string                      { return "fake function" }
func (f fakeFunctionController) Documentation() string             { return "" }
func (f fakeFunctionController) ParametersSchema() json.RawMessage { return json.RawMessage(`{}`) }
func (f fakeFunctionController) OutputSchema() json.RawMessage     { return json.RawMessage(`{}`) }
func (f fakeFunctionController) Invoke(ctx context.Context, decryption CredentialDecryption, staticCred, resourceServerCred, userCred *credentialDomain.SerializedCredential, params json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{"ok":true}`), nil
}

type fakeProvider struct {
	typeID      string
	functions   []FunctionController
	credentials []controller.CredentialController
}

func (p fakeProvider) TypeID() string        { return p.typeID }
func (p fakeProvider) Name() string          { return "fake provider" }
func (p fakeProvider) Documentation() string { return "" }
func (p fakeProvider) Functions() []FunctionController                  { return p.functions }
func (p fakeProvider) CredentialControllers() []controller.CredentialController { return p.credentials }

func TestRegistry_RegisterAndResolveProvider(t *testing.T) {
	r := New()
	provider := fakeProvider{typeID: "github"}

	require.NoError(t, r.Register(provider))

	resolved, ok := r.ResolveProvider("github")
	assert.True(t, ok)
	assert.Equal(t, "github", resolved.TypeID())

	_, ok = r.ResolveProvider("missing")
	assert.False(t, ok)
}

func TestRegistry_ResolveCredentialController_SearchesAllProviders(t *testing.T) {
	r := New()
	cred := fakeCredentialController{typeID: "oauth2_authorization_code_flow"}
	require.NoError(t, r.Register(fakeProvider{typeID: "github", credentials: []controller.CredentialController{cred}}))
	require.NoError(t, r.Register(fakeProvider{typeID: "slack"}))

	resolved, ok := r.ResolveCredentialController("oauth2_authorization_code_flow")
	require.True(t, ok)
	assert.Equal(t, "oauth2_authorization_code_flow", resolved.TypeID())

	_, ok = r.ResolveCredentialController("unknown")
	assert.False(t, ok)
}

func TestRegistry_ResolveFunctionController(t *testing.T) {
	r := New()
	fn := fakeFunctionController{typeID: "list_repos"}
	require.NoError(t, r.Register(fakeProvider{typeID: "github", functions: []FunctionController{fn}}))

	resolved, ok := r.ResolveFunctionController("github", "list_repos")
	require.True(t, ok)
	assert.Equal(t, "list_repos", resolved.TypeID())

	_, ok = r.ResolveFunctionController("github", "missing_function")
	assert.False(t, ok)

	_, ok = r.ResolveFunctionController("missing_provider", "list_repos")
	assert.False(t, ok)
}

func TestRegistry_List(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(fakeProvider{typeID: "github"}))
	require.NoError(t, r.Register(fakeProvider{typeID: "slack"}))

	providers, err := r.List()
	require.NoError(t, err)
	assert.Len(t, providers, 2)
}

func TestRegistry_PoisonedAfterPanic(t *testing.T) {
	r := New()

	panicking := panicProvider{}
	err := r.Register(panicking)

	assert.ErrorIs(t, err, apperrors.ErrRegistryPoisoned)

	_, ok := r.ResolveProvider("anything")
	assert.False(t, ok)

	err = r.Register(fakeProvider{typeID: "github"})
	assert.ErrorIs(t, err, apperrors.ErrRegistryPoisoned)
}

// panicProvider's TypeID panics, to exercise the registry's poison guard —
// mirrors a provider controller with a broken static initializer.
type panicProvider struct{}

func (panicProvider) TypeID() string        { panic("boom") }
func (panicProvider) Name() string          { return "" }
func (panicProvider) Documentation() string { return "" }
func (panicProvider) Functions() []FunctionController                  { return nil }
func (panicProvider) CredentialControllers() []controller.CredentialController { return nil }
