// Package integration provides end-to-end integration tests for the
// credential gateway core: envelope encryption, key migration, brokering,
// and tool invocation, wired against a real PostgreSQL database and the
// local-file envelope back-end.
package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregate/gateway/internal/broker"
	brokerDomain "github.com/coregate/gateway/internal/broker/domain"
	brokerRepository "github.com/coregate/gateway/internal/broker/repository"
	"github.com/coregate/gateway/internal/credential/controller"
	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
	credentialRepository "github.com/coregate/gateway/internal/credential/repository"
	credentialUsecase "github.com/coregate/gateway/internal/credential/usecase"
	"github.com/coregate/gateway/internal/crypto/cache"
	cryptoDomain "github.com/coregate/gateway/internal/crypto/domain"
	"github.com/coregate/gateway/internal/crypto/envelope"
	cryptoRepository "github.com/coregate/gateway/internal/crypto/repository"
	cryptoService "github.com/coregate/gateway/internal/crypto/service"
	cryptoUsecase "github.com/coregate/gateway/internal/crypto/usecase"
	"github.com/coregate/gateway/internal/cursor"
	"github.com/coregate/gateway/internal/database"
	apperrors "github.com/coregate/gateway/internal/errors"
	"github.com/coregate/gateway/internal/invocation"
	"github.com/coregate/gateway/internal/registry"
	"github.com/coregate/gateway/internal/testutil"
	toolDomain "github.com/coregate/gateway/internal/tool/domain"
	toolRepository "github.com/coregate/gateway/internal/tool/repository"
	toolUsecase "github.com/coregate/gateway/internal/tool/usecase"
)

const testDekAlias = "credentials"

// gatewayTestContext wires the full core stack against one PostgreSQL
// database: key repository, crypto cache, credential use case, broker
// engine, and invocation pipeline.
type gatewayTestContext struct {
	db           *sql.DB
	cryptoUC     cryptoUsecase.UseCase
	cryptoCache  *cache.Cache
	registry     *registry.Registry
	credRepo     *credentialRepository.PostgreSQLCredentialRepository
	credUC       credentialUsecase.UseCase
	brokerRepo   *brokerRepository.PostgreSQLBrokerStateRepository
	brokerEngine *broker.Engine
	toolUC       toolUsecase.UseCase
	invocationUC invocation.UseCase
	exchanger    *stubTokenExchanger
}

func newGatewayTestContext(t *testing.T) *gatewayTestContext {
	t.Helper()

	db := testutil.SetupPostgresDB(t)
	t.Cleanup(func() { testutil.TeardownDB(t, db) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	txManager := database.NewTxManager(db)

	keyRepo := cryptoRepository.NewPostgreSQLKeyRepository(db)
	backendFactory := envelope.NewBackendFactory(logger)
	aeadManager := cryptoService.NewAEADManager()
	cryptoCache := cache.New(keyRepo, backendFactory, aeadManager)
	cryptoUC := cryptoUsecase.New(txManager, keyRepo, backendFactory, cryptoCache)

	reg := registry.New()
	credRepo := credentialRepository.NewPostgreSQLCredentialRepository(db)
	credUC := credentialUsecase.New(credRepo, reg, cryptoCache, cryptoUC, testDekAlias)

	brokerRepo := brokerRepository.NewPostgreSQLBrokerStateRepository(db)
	brokerEngine := broker.New(reg, brokerRepo, credUC)

	toolRepo := toolRepository.NewPostgreSQLToolRepository(db)
	toolUC := toolUsecase.New(toolRepo)
	invocationUC := invocation.New(toolRepo, credRepo, reg, cryptoCache, cryptoUC)

	exchanger := &stubTokenExchanger{
		result: controller.TokenExchangeResult{
			AccessToken:  "issued-access-token",
			RefreshToken: "issued-refresh-token",
			ExpiresIn:    time.Hour,
			Subject:      "user-1",
		},
	}
	require.NoError(t, reg.Register(&stubProvider{
		creds: []controller.CredentialController{
			// One controller instance per credential tier: the broker and
			// resource-server paths resolve the resource-server type id,
			// the user-credential materializer resolves the user type id.
			controller.NewOAuth2AuthorizationCodeController(
				credentialDomain.TypeResourceServerOAuth2AuthorizationCode,
				"https://provider.example/authorize", exchanger),
			controller.NewOAuth2AuthorizationCodeController(
				credentialDomain.TypeUserOAuth2AuthorizationCode,
				"https://provider.example/authorize", exchanger),
		},
		fns: []registry.FunctionController{&echoFunction{}},
	}))

	return &gatewayTestContext{
		db:           db,
		cryptoUC:     cryptoUC,
		cryptoCache:  cryptoCache,
		registry:     reg,
		credRepo:     credRepo,
		credUC:       credUC,
		brokerRepo:   brokerRepo,
		brokerEngine: brokerEngine,
		toolUC:       toolUC,
		invocationUC: invocationUC,
		exchanger:    exchanger,
	}
}

// createLocalKeyAndDek creates a local-file envelope key, a DEK under it,
// and binds the default alias to the DEK.
func (tc *gatewayTestContext) createLocalKeyAndDek(t *testing.T, path string) (string, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	key := &cryptoDomain.EnvelopeKey{Kind: cryptoDomain.EnvelopeKeyKindLocalFile, Path: path}
	require.NoError(t, tc.cryptoUC.CreateEnvelopeKey(ctx, key))

	dek, err := tc.cryptoUC.CreateDek(ctx, key.ID, cryptoDomain.AESGCM)
	require.NoError(t, err)

	require.NoError(t, tc.cryptoUC.CreateAlias(ctx, testDekAlias, dek.ID))
	return key.ID, dek.ID
}

type stubTokenExchanger struct {
	result controller.TokenExchangeResult
	err    error
}

func (s *stubTokenExchanger) Exchange(_ context.Context, clientID, clientSecret, redirectURI, code, codeVerifier string) (controller.TokenExchangeResult, error) {
	return s.result, s.err
}

type stubProvider struct {
	creds []controller.CredentialController
	fns   []registry.FunctionController
}

func (p *stubProvider) TypeID() string        { return "testprov" }
func (p *stubProvider) Name() string          { return "Test Provider" }
func (p *stubProvider) Documentation() string { return "Integration test provider." }
func (p *stubProvider) Functions() []registry.FunctionController {
	return p.fns
}
func (p *stubProvider) CredentialControllers() []controller.CredentialController {
	return p.creds
}

// echoFunction decrypts the resource-server credential's client secret to
// prove the decryption services flow end to end, then echoes its params.
type echoFunction struct{}

func (f *echoFunction) TypeID() string                    { return "echo" }
func (f *echoFunction) Name() string                      { return "Echo" }
func (f *echoFunction) Documentation() string             { return "Returns its parameters." }
func (f *echoFunction) ParametersSchema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (f *echoFunction) OutputSchema() json.RawMessage     { return json.RawMessage(`{"type":"object"}`) }

func (f *echoFunction) Invoke(
	_ context.Context,
	decryption registry.CredentialDecryption,
	staticCred, resourceServerCred, userCred *credentialDomain.SerializedCredential,
	params json.RawMessage,
) (json.RawMessage, error) {
	var stored credentialDomain.OAuth2AuthorizationCodeResourceServerCredential
	if err := json.Unmarshal(resourceServerCred.Value, &stored); err != nil {
		return nil, err
	}
	clientSecret, err := decryption.ResourceServer.Decrypt(stored.ClientSecret)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(map[string]any{
		"echo":          json.RawMessage(params),
		"client_id":     stored.ClientID,
		"client_secret": clientSecret,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func TestLocalBackendRoundtrip(t *testing.T) {
	tc := newGatewayTestContext(t)
	ctx := context.Background()

	kekPath := filepath.Join(t.TempDir(), "kek")
	_, dekID := tc.createLocalKeyAndDek(t, kekPath)

	enc, err := tc.cryptoCache.GetEncryptionService(ctx, dekID)
	require.NoError(t, err)
	dec, err := tc.cryptoCache.GetDecryptionService(ctx, dekID)
	require.NoError(t, err)

	c1, err := enc.Encrypt("hello")
	require.NoError(t, err)
	c2, err := enc.Encrypt("hello")
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2, "nonce must be fresh per call")

	p1, err := dec.Decrypt(c1)
	require.NoError(t, err)
	assert.Equal(t, "hello", p1)

	// A second open of the same key file must yield a backend that unwraps
	// what the first one wrapped.
	b1, err := envelope.NewLocalBackend(kekPath)
	require.NoError(t, err)
	b2, err := envelope.NewLocalBackend(kekPath)
	require.NoError(t, err)

	plainDek := make([]byte, 32)
	for i := range plainDek {
		plainDek[i] = byte(i)
	}
	wrapped, err := b1.Wrap(ctx, plainDek)
	require.NoError(t, err)
	unwrapped, err := b2.Unwrap(ctx, wrapped)
	require.NoError(t, err)
	assert.Equal(t, plainDek, unwrapped)
}

func TestDekMigrationBetweenEnvelopeKeys(t *testing.T) {
	tc := newGatewayTestContext(t)
	ctx := context.Background()

	dir := t.TempDir()
	_, oldDekID := tc.createLocalKeyAndDek(t, filepath.Join(dir, "kek-a"))

	newKey := &cryptoDomain.EnvelopeKey{
		Kind: cryptoDomain.EnvelopeKeyKindLocalFile,
		Path: filepath.Join(dir, "kek-b"),
	}
	require.NoError(t, tc.cryptoUC.CreateEnvelopeKey(ctx, newKey))

	enc, err := tc.cryptoCache.GetEncryptionService(ctx, oldDekID)
	require.NoError(t, err)
	ciphertext, err := enc.Encrypt("secret-A")
	require.NoError(t, err)

	newDek, err := tc.cryptoUC.MigrateDek(ctx, oldDekID, newKey.ID)
	require.NoError(t, err)

	// Old DEK id fails lookup; its alias is rebound to the new row.
	_, err = tc.cryptoUC.GetDek(ctx, oldDekID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	boundID, err := tc.cryptoUC.GetDekByAlias(ctx, testDekAlias)
	require.NoError(t, err)
	assert.Equal(t, newDek.ID, boundID)

	_, err = tc.cryptoCache.GetDecryptionService(ctx, oldDekID)
	assert.Error(t, err, "cache load of deleted DEK must fail")

	// The migrated DEK carries the same plaintext material, so ciphertext
	// produced before migration still decrypts under the new id.
	dec, err := tc.cryptoCache.GetDecryptionService(ctx, newDek.ID)
	require.NoError(t, err)
	plaintext, err := dec.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "secret-A", plaintext)
}

func TestDeleteEnvelopeKeyGuardrail(t *testing.T) {
	tc := newGatewayTestContext(t)
	ctx := context.Background()

	envKeyID, dekID := tc.createLocalKeyAndDek(t, filepath.Join(t.TempDir(), "kek"))

	err := tc.cryptoUC.DeleteEnvelopeKey(ctx, envKeyID)
	assert.ErrorIs(t, err, apperrors.ErrInUse)

	require.NoError(t, tc.cryptoUC.DeleteDek(ctx, dekID))
	assert.NoError(t, tc.cryptoUC.DeleteEnvelopeKey(ctx, envKeyID))
}

func TestBrokeringHappyPath(t *testing.T) {
	tc := newGatewayTestContext(t)
	ctx := context.Background()

	tc.createLocalKeyAndDek(t, filepath.Join(t.TempDir(), "kek"))

	raw := []byte(`{"client_id":"abc123","client_secret":"topsecret","redirect_uri":"https://gateway.example/callback"}`)
	rsCred, err := tc.credUC.CreateResourceServerCredential(
		ctx, credentialDomain.TypeResourceServerOAuth2AuthorizationCode, raw)
	require.NoError(t, err)

	// Start with the decrypted view, as the state machine contract requires.
	decrypted, err := tc.credUC.GetResourceServerCredential(ctx, rsCred.ID)
	require.NoError(t, err)

	action, state, err := tc.brokerEngine.Start(
		ctx,
		credentialDomain.TypeResourceServerOAuth2AuthorizationCode,
		"testprov",
		decrypted.ID,
		*decrypted,
	)
	require.NoError(t, err)
	require.NotNil(t, state, "authorization-code flow must persist a BrokerState")
	assert.Equal(t, brokerDomain.ActionKindRedirect, action.Kind)
	assert.Contains(t, action.URL, "client_id=abc123")

	resumeAction, err := tc.brokerEngine.Resume(ctx, state.ID, brokerDomain.Input{
		Kind: brokerDomain.InputKindOAuth2AuthorizationCodeFlow,
		Code: "auth-code-1",
	})
	require.NoError(t, err)
	assert.Equal(t, brokerDomain.ActionKindNone, resumeAction.Kind)

	// Exactly one user credential, carrying the issuer's tokens decryptable
	// through the normal read path.
	userCreds, _, err := tc.credUC.ListUserCredentials(ctx, cursor.Page{PageSize: 10})
	require.NoError(t, err)
	require.Len(t, userCreds, 1)

	inner, ok := userCreds[0].Inner.(credentialDomain.OAuth2AuthorizationCodeUserCredential)
	require.True(t, ok, "user credential Inner = %T", userCreds[0].Inner)
	assert.Equal(t, credentialDomain.TypeUserOAuth2AuthorizationCode, inner.TypeID())
	assert.Equal(t, "issued-access-token", inner.AccessToken)
	assert.Equal(t, "issued-refresh-token", inner.RefreshToken)

	// The stored form is ciphertext, not the issuer's plaintext.
	serialized, err := tc.credRepo.GetUserCredentialByID(ctx, userCreds[0].ID)
	require.NoError(t, err)
	var stored credentialDomain.OAuth2AuthorizationCodeUserCredential
	require.NoError(t, json.Unmarshal(serialized.Value, &stored))
	assert.NotEqual(t, "issued-access-token", stored.AccessToken)

	// Terminal success leaves no lingering BrokerState.
	_, err = tc.brokerRepo.GetByID(ctx, state.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestInvocationPipeline(t *testing.T) {
	tc := newGatewayTestContext(t)
	ctx := context.Background()

	tc.createLocalKeyAndDek(t, filepath.Join(t.TempDir(), "kek"))

	raw := []byte(`{"client_id":"abc123","client_secret":"topsecret","redirect_uri":"https://gateway.example/callback"}`)
	rsCred, err := tc.credUC.CreateResourceServerCredential(
		ctx, credentialDomain.TypeResourceServerOAuth2AuthorizationCode, raw)
	require.NoError(t, err)

	group := &toolDomain.ToolGroup{
		DisplayName:                "Test Group",
		ProviderTypeID:             "testprov",
		CredentialControllerTypeID: credentialDomain.TypeResourceServerOAuth2AuthorizationCode,
		ResourceServerCredentialID: rsCred.ID,
		Status:                     toolDomain.StatusPending,
	}
	require.NoError(t, tc.toolUC.CreateToolGroup(ctx, group))

	tool, err := tc.toolUC.AddTool(ctx, group.ID, "echo")
	require.NoError(t, err)

	// Pending tool groups are invisible to invocation.
	_, err = tc.invocationUC.InvokeFunction(ctx, tool.ID, json.RawMessage(`{"q":"x"}`))
	assert.ErrorIs(t, err, apperrors.ErrToolNotFound)

	require.NoError(t, tc.toolUC.ActivateToolGroup(ctx, group.ID))

	result, err := tc.invocationUC.InvokeFunction(ctx, tool.ID, json.RawMessage(`{"q":"x"}`))
	require.NoError(t, err)

	var out struct {
		Echo         map[string]string `json:"echo"`
		ClientID     string            `json:"client_id"`
		ClientSecret string            `json:"client_secret"`
	}
	require.NoError(t, json.Unmarshal(result, &out))
	assert.Equal(t, "x", out.Echo["q"])
	assert.Equal(t, "abc123", out.ClientID)
	assert.Equal(t, "topsecret", out.ClientSecret, "function-level decryption must recover the plaintext secret")

	// An unknown tool instance id fails NotFound.
	_, err = tc.invocationUC.InvokeFunction(ctx, uuid.New(), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPaginationRoundtrip(t *testing.T) {
	tc := newGatewayTestContext(t)
	ctx := context.Background()

	tc.createLocalKeyAndDek(t, filepath.Join(t.TempDir(), "kek"))

	raw := []byte(`{"client_id":"abc123","client_secret":"topsecret","redirect_uri":"https://gateway.example/callback"}`)
	var created []uuid.UUID
	for i := 0; i < 5; i++ {
		cred, err := tc.credUC.CreateResourceServerCredential(
			ctx, credentialDomain.TypeResourceServerOAuth2AuthorizationCode, raw)
		require.NoError(t, err)
		created = append(created, cred.ID)
		time.Sleep(5 * time.Millisecond) // distinct created_at per row
	}

	// Concatenating pages yields the same id multiset as one unbounded list.
	seen := map[uuid.UUID]bool{}
	token := ""
	for {
		page, err := cursor.ParsePage(token, 2)
		require.NoError(t, err)
		creds, next, err := tc.credUC.ListResourceServerCredentials(ctx, page)
		require.NoError(t, err)
		for _, c := range creds {
			assert.False(t, seen[c.ID], "credential %s returned twice", c.ID)
			seen[c.ID] = true
		}
		if next == "" {
			break
		}
		token = next
	}
	assert.Len(t, seen, len(created))
	for _, id := range created {
		assert.True(t, seen[id], "credential %s missing from paginated listing", id)
	}
}
