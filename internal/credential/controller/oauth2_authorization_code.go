package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	brokerDomain "github.com/coregate/gateway/internal/broker/domain"
	"github.com/coregate/gateway/internal/crypto/cipher"
	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
	apperrors "github.com/coregate/gateway/internal/errors"
)

// TokenExchangeResult is what a TokenExchanger returns for a successful
// authorization code (or refresh token) exchange.
type TokenExchangeResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	Subject      string
}

// TokenExchanger performs the actual OAuth2 token endpoint call. Providers
// inject their own implementation; kept as a narrow interface so the
// controller's brokering logic is testable without a live HTTP server.
type TokenExchanger interface {
	Exchange(ctx context.Context, clientID, clientSecret, redirectURI, code, codeVerifier string) (TokenExchangeResult, error)
}

// OAuth2AuthorizationCodeController implements CredentialController and
// UserCredentialBroker for the standard OAuth2 authorization-code flow.
type OAuth2AuthorizationCodeController struct {
	typeID         string
	authorizeURL   string
	tokenExchanger TokenExchanger
}

// NewOAuth2AuthorizationCodeController creates a controller bound to one
// provider's authorization endpoint and token exchanger. typeID lets a
// provider register more than one OAuth2-flavored controller (e.g.
// "github_oauth2_authorization_code_flow") while sharing this engine.
func NewOAuth2AuthorizationCodeController(typeID, authorizeURL string, exchanger TokenExchanger) *OAuth2AuthorizationCodeController {
	return &OAuth2AuthorizationCodeController{typeID: typeID, authorizeURL: authorizeURL, tokenExchanger: exchanger}
}

func (c *OAuth2AuthorizationCodeController) TypeID() string { return c.typeID }
func (c *OAuth2AuthorizationCodeController) Name() string   { return "OAuth2 Authorization Code Flow" }
func (c *OAuth2AuthorizationCodeController) Documentation() string {
	return "Standard three-legged OAuth2 authorization code grant."
}

func (c *OAuth2AuthorizationCodeController) ConfigurationSchema() ConfigurationSchema {
	rs := json.RawMessage(`{"type":"object","required":["client_id","client_secret","redirect_uri"],
		"properties":{"client_id":{"type":"string"},"client_secret":{"type":"string"},"redirect_uri":{"type":"string"}}}`)
	return ConfigurationSchema{c.typeID: {ResourceServer: rs}}
}

type oauth2ResourceServerConfiguration struct {
	ClientID     string                    `json:"client_id"`
	ClientSecret string                    `json:"client_secret"`
	RedirectURI  string                    `json:"redirect_uri"`
	Metadata     credentialDomain.Metadata `json:"metadata"`
}

func (c *OAuth2AuthorizationCodeController) EncryptResourceServerConfiguration(
	_ context.Context, enc *cipher.EncryptionService, raw json.RawMessage,
) (credentialDomain.ResourceServerCredentialLike, error) {
	var cfg oauth2ResourceServerConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, wrapUnmarshal(err)
	}

	encryptedSecret, err := enc.Encrypt(cfg.ClientSecret)
	if err != nil {
		return nil, err
	}

	return credentialDomain.OAuth2AuthorizationCodeResourceServerCredential{
		ClientID:     cfg.ClientID,
		ClientSecret: encryptedSecret,
		RedirectURI:  cfg.RedirectURI,
		Metadata:     cfg.Metadata,
	}, nil
}

// EncryptUserCredentialConfiguration encrypts the code/access/refresh token
// fields of a user credential. User credentials for this controller only
// ever originate from the brokering flow (Start/Resume), so raw here is the
// marshaled plaintext form a successful broker outcome carries on its way
// through the materializer — not operator-supplied configuration.
func (c *OAuth2AuthorizationCodeController) EncryptUserCredentialConfiguration(
	_ context.Context, enc *cipher.EncryptionService, raw json.RawMessage,
) (credentialDomain.UserCredentialLike, error) {
	var cred credentialDomain.OAuth2AuthorizationCodeUserCredential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, wrapUnmarshal(err)
	}

	var err error
	if cred.Code, err = enc.Encrypt(cred.Code); err != nil {
		return nil, err
	}
	if cred.AccessToken, err = enc.Encrypt(cred.AccessToken); err != nil {
		return nil, err
	}
	if cred.RefreshToken, err = enc.Encrypt(cred.RefreshToken); err != nil {
		return nil, err
	}

	if cred.Metadata == nil {
		cred.Metadata = credentialDomain.Metadata{}
	}
	return cred, nil
}

func (c *OAuth2AuthorizationCodeController) ParseResourceServerConfiguration(
	_ context.Context, dec *cipher.DecryptionService, raw json.RawMessage,
) (credentialDomain.ResourceServerCredentialLike, credentialDomain.Metadata, error) {
	var stored credentialDomain.OAuth2AuthorizationCodeResourceServerCredential
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, nil, wrapUnmarshal(err)
	}

	clientSecret, err := dec.Decrypt(stored.ClientSecret)
	if err != nil {
		return nil, nil, err
	}
	stored.ClientSecret = clientSecret

	return stored, stored.Metadata, nil
}

func (c *OAuth2AuthorizationCodeController) ParseUserCredentialConfiguration(
	_ context.Context, dec *cipher.DecryptionService, raw json.RawMessage,
) (credentialDomain.UserCredentialLike, credentialDomain.Metadata, error) {
	var stored credentialDomain.OAuth2AuthorizationCodeUserCredential
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, nil, wrapUnmarshal(err)
	}

	code, err := dec.Decrypt(stored.Code)
	if err != nil {
		return nil, nil, err
	}
	accessToken, err := dec.Decrypt(stored.AccessToken)
	if err != nil {
		return nil, nil, err
	}
	refreshToken, err := dec.Decrypt(stored.RefreshToken)
	if err != nil {
		return nil, nil, err
	}
	stored.Code = code
	stored.AccessToken = accessToken
	stored.RefreshToken = refreshToken

	return stored, stored.Metadata, nil
}

// Start builds the authorization redirect URL. The resulting Outcome is
// always OutcomeKindContinue: this flow has no synchronous success path.
func (c *OAuth2AuthorizationCodeController) Start(
	_ context.Context, resourceServerCred credentialDomain.ResourceServerCredential,
) (BrokerAction, BrokerOutcome, error) {
	rsc, ok := resourceServerCred.Inner.(credentialDomain.OAuth2AuthorizationCodeResourceServerCredential)
	if !ok {
		return BrokerAction{}, BrokerOutcome{}, fmt.Errorf("%w: resource server credential is not %s", apperrors.ErrInvalidInput, c.typeID)
	}

	redirectURL := fmt.Sprintf("%s?client_id=%s&redirect_uri=%s&response_type=code",
		c.authorizeURL, url.QueryEscape(rsc.ClientID), url.QueryEscape(rsc.RedirectURI))

	// Resume only gets the resource-server credential's id via BrokerState,
	// not its decrypted fields, so the client id/secret/redirect_uri this
	// controller needs to exchange the code must ride along in the state's
	// own metadata.
	metadata := credentialDomain.Metadata{
		"client_id":     rsc.ClientID,
		"client_secret": rsc.ClientSecret,
		"redirect_uri":  rsc.RedirectURI,
	}

	return brokerDomain.Action{Kind: brokerDomain.ActionKindRedirect, URL: redirectURL},
		brokerDomain.Outcome{Kind: brokerDomain.OutcomeKindContinue, Metadata: metadata},
		nil
}

// Resume exchanges the authorization code for tokens, completing the flow.
func (c *OAuth2AuthorizationCodeController) Resume(
	ctx context.Context, state BrokerState, input BrokerInput,
) (BrokerAction, BrokerOutcome, error) {
	if input.Kind != brokerDomain.InputKindOAuth2AuthorizationCodeFlow && input.Kind != brokerDomain.InputKindOAuth2AuthorizationCodeFlowWithPKCE {
		return BrokerAction{}, BrokerOutcome{}, apperrors.ErrBrokerStateMismatch
	}

	// The resource server credential itself is not looked up here; Start
	// put the client id/secret/redirect_uri into its Outcome.Metadata,
	// which internal/broker persists as the state's metadata, keeping this
	// package free of a repository dependency.
	clientID, _ := state.Metadata["client_id"].(string)
	clientSecret, _ := state.Metadata["client_secret"].(string)
	redirectURI, _ := state.Metadata["redirect_uri"].(string)

	result, err := c.tokenExchanger.Exchange(ctx, clientID, clientSecret, redirectURI, input.Code, input.CodeVerifier)
	if err != nil {
		return BrokerAction{}, BrokerOutcome{}, fmt.Errorf("%w: %v", apperrors.ErrTransient, err)
	}

	cred := credentialDomain.OAuth2AuthorizationCodeUserCredential{
		Code:         input.Code,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiryTime:   time.Now().UTC().Add(result.ExpiresIn),
		Subject:      result.Subject,
		Metadata:     credentialDomain.Metadata{},
	}

	return brokerDomain.Action{Kind: brokerDomain.ActionKindNone},
		brokerDomain.Outcome{Kind: brokerDomain.OutcomeKindSuccess, UserCredential: cred},
		nil
}
