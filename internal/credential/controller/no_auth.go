package controller

import (
	"context"
	"encoding/json"

	"github.com/coregate/gateway/internal/crypto/cipher"
	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
)

// NoAuthController implements CredentialController for resource servers
// and users that carry no credential material at all — only metadata.
type NoAuthController struct{}

// NewNoAuthController creates a NoAuthController.
func NewNoAuthController() *NoAuthController { return &NoAuthController{} }

func (c *NoAuthController) TypeID() string { return "no_auth" }
func (c *NoAuthController) Name() string   { return "No Authentication" }
func (c *NoAuthController) Documentation() string {
	return "A resource server and user with no credential material; suitable for public endpoints."
}

func (c *NoAuthController) ConfigurationSchema() ConfigurationSchema {
	empty := json.RawMessage(`{"type":"object","properties":{"metadata":{"type":"object"}}}`)
	return ConfigurationSchema{
		c.TypeID(): {ResourceServer: empty, UserCredential: empty},
	}
}

type noAuthConfiguration struct {
	Metadata credentialDomain.Metadata `json:"metadata"`
}

func (c *NoAuthController) EncryptResourceServerConfiguration(
	_ context.Context, _ *cipher.EncryptionService, raw json.RawMessage,
) (credentialDomain.ResourceServerCredentialLike, error) {
	var cfg noAuthConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, wrapUnmarshal(err)
	}
	return credentialDomain.NoAuthResourceServerCredential{Metadata: cfg.Metadata}, nil
}

func (c *NoAuthController) EncryptUserCredentialConfiguration(
	_ context.Context, _ *cipher.EncryptionService, raw json.RawMessage,
) (credentialDomain.UserCredentialLike, error) {
	var cfg noAuthConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, wrapUnmarshal(err)
	}
	return credentialDomain.NoAuthUserCredential{Metadata: cfg.Metadata}, nil
}

func (c *NoAuthController) ParseResourceServerConfiguration(
	_ context.Context, _ *cipher.DecryptionService, raw json.RawMessage,
) (credentialDomain.ResourceServerCredentialLike, credentialDomain.Metadata, error) {
	var cfg noAuthConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, nil, wrapUnmarshal(err)
	}
	return credentialDomain.NoAuthResourceServerCredential{Metadata: cfg.Metadata}, cfg.Metadata, nil
}

func (c *NoAuthController) ParseUserCredentialConfiguration(
	_ context.Context, _ *cipher.DecryptionService, raw json.RawMessage,
) (credentialDomain.UserCredentialLike, credentialDomain.Metadata, error) {
	var cfg noAuthConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, nil, wrapUnmarshal(err)
	}
	return credentialDomain.NoAuthUserCredential{Metadata: cfg.Metadata}, cfg.Metadata, nil
}
