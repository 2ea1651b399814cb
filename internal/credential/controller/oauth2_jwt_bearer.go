package controller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coregate/gateway/internal/crypto/cipher"
	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
)

// JWTAssertionSigner mints a signed JWT bearer assertion and exchanges it
// for an access token at a provider's token endpoint. Kept narrow so this
// controller is testable without a live HTTP server or a real signing key.
type JWTAssertionSigner interface {
	SignAndExchange(ctx context.Context, clientID, clientSecret, subject string) (accessToken string, expiresIn time.Duration, err error)
}

// OAuth2JWTBearerController implements CredentialController and
// RotatableUserCredential for the OAuth2 JWT-bearer-assertion grant: no
// redirect round trip, so it never implements UserCredentialBroker — the
// assertion is minted and exchanged directly whenever a token is needed.
type OAuth2JWTBearerController struct {
	typeID string
	signer JWTAssertionSigner
}

// NewOAuth2JWTBearerController creates a controller bound to one provider's
// assertion signer/exchanger.
func NewOAuth2JWTBearerController(typeID string, signer JWTAssertionSigner) *OAuth2JWTBearerController {
	return &OAuth2JWTBearerController{typeID: typeID, signer: signer}
}

func (c *OAuth2JWTBearerController) TypeID() string { return c.typeID }
func (c *OAuth2JWTBearerController) Name() string   { return "OAuth2 JWT Bearer Assertion Flow" }
func (c *OAuth2JWTBearerController) Documentation() string {
	return "Service-to-service OAuth2 grant using a signed JWT assertion in place of a redirect flow."
}

func (c *OAuth2JWTBearerController) ConfigurationSchema() ConfigurationSchema {
	rs := json.RawMessage(`{"type":"object","required":["client_id","client_secret"],
		"properties":{"client_id":{"type":"string"},"client_secret":{"type":"string"}}}`)
	us := json.RawMessage(`{"type":"object","required":["subject"],"properties":{"subject":{"type":"string"}}}`)
	return ConfigurationSchema{c.typeID: {ResourceServer: rs, UserCredential: us}}
}

type jwtBearerResourceServerConfiguration struct {
	ClientID     string                    `json:"client_id"`
	ClientSecret string                    `json:"client_secret"`
	Metadata     credentialDomain.Metadata `json:"metadata"`
}

type jwtBearerUserConfiguration struct {
	Subject  string                    `json:"subject"`
	Metadata credentialDomain.Metadata `json:"metadata"`
}

func (c *OAuth2JWTBearerController) EncryptResourceServerConfiguration(
	_ context.Context, enc *cipher.EncryptionService, raw json.RawMessage,
) (credentialDomain.ResourceServerCredentialLike, error) {
	var cfg jwtBearerResourceServerConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, wrapUnmarshal(err)
	}

	encryptedSecret, err := enc.Encrypt(cfg.ClientSecret)
	if err != nil {
		return nil, err
	}

	return credentialDomain.OAuth2JWTBearerResourceServerCredential{
		ClientID:     cfg.ClientID,
		ClientSecret: encryptedSecret,
		Metadata:     cfg.Metadata,
	}, nil
}

// EncryptUserCredentialConfiguration encrypts subject as the assertion and
// mints no token: Token is left empty and ExpiryTime is the Unix epoch, so
// the new credential is due for rotation at once and RotateUserCredential
// mints the first token.
func (c *OAuth2JWTBearerController) EncryptUserCredentialConfiguration(
	ctx context.Context, enc *cipher.EncryptionService, raw json.RawMessage,
) (credentialDomain.UserCredentialLike, error) {
	var cfg jwtBearerUserConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, wrapUnmarshal(err)
	}

	assertion, err := enc.Encrypt(cfg.Subject)
	if err != nil {
		return nil, err
	}

	return credentialDomain.OAuth2JWTBearerUserCredential{
		Assertion:  assertion,
		Subject:    cfg.Subject,
		ExpiryTime: time.Unix(0, 0).UTC(),
		Metadata:   cfg.Metadata,
	}, nil
}

func (c *OAuth2JWTBearerController) ParseResourceServerConfiguration(
	_ context.Context, dec *cipher.DecryptionService, raw json.RawMessage,
) (credentialDomain.ResourceServerCredentialLike, credentialDomain.Metadata, error) {
	var stored credentialDomain.OAuth2JWTBearerResourceServerCredential
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

func (c *OAuth2JWTBearerController) ParseUserCredentialConfiguration(
	_ context.Context, dec *cipher.DecryptionService, raw json.RawMessage,
) (credentialDomain.UserCredentialLike, credentialDomain.Metadata, error) {
	var stored credentialDomain.OAuth2JWTBearerUserCredential
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, nil, wrapUnmarshal(err)
	}

	assertion, err := dec.Decrypt(stored.Assertion)
	if err != nil {
		return nil, nil, err
	}
	stored.Assertion = assertion

	if stored.Token != "" {
		token, err := dec.Decrypt(stored.Token)
		if err != nil {
			return nil, nil, err
		}
		stored.Token = token
	}

	return stored, stored.Metadata, nil
}

// RotateUserCredential mints a fresh access token for the same subject and
// re-encrypts it and the (already-decrypted, long-lived) assertion itself —
// there is no raw-JSON entry point for a value that only exists after the
// signer call, so this re-encrypts directly instead of routing through
// EncryptUserCredentialConfiguration. The assertion is long-lived (a signing
// key, not a one-time code), so rotation only mints a fresh Token/ExpiryTime;
// Subject and Metadata carry over unchanged.
func (c *OAuth2JWTBearerController) RotateUserCredential(
	ctx context.Context, enc *cipher.EncryptionService, resourceServerCred credentialDomain.ResourceServerCredential, userCred credentialDomain.UserCredential,
) (credentialDomain.UserCredentialLike, error) {
	rsc, _ := resourceServerCred.Inner.(credentialDomain.OAuth2JWTBearerResourceServerCredential)
	uc, _ := userCred.Inner.(credentialDomain.OAuth2JWTBearerUserCredential)

	token, expiresIn, err := c.signer.SignAndExchange(ctx, rsc.ClientID, rsc.ClientSecret, uc.Subject)
	if err != nil {
		return nil, err
	}

	encryptedAssertion, err := enc.Encrypt(uc.Assertion)
	if err != nil {
		return nil, err
	}
	encryptedToken, err := enc.Encrypt(token)
	if err != nil {
		return nil, err
	}

	return credentialDomain.OAuth2JWTBearerUserCredential{
		Assertion:  encryptedAssertion,
		Token:      encryptedToken,
		ExpiryTime: time.Now().UTC().Add(expiresIn),
		Subject:    uc.Subject,
		Metadata:   userCred.Metadata,
	}, nil
}
