package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNoAuthResourceServerCredential_TypeIDAndValue(t *testing.T) {
	cred := NoAuthResourceServerCredential{Metadata: Metadata{"region": "us-east-1"}}

	if cred.TypeID() != TypeResourceServerNoAuth {
		t.Fatalf("TypeID() = %q, want %q", cred.TypeID(), TypeResourceServerNoAuth)
	}

	raw, err := cred.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	var roundTripped NoAuthResourceServerCredential
	if err := json.Unmarshal(raw, &roundTripped); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if roundTripped.Metadata["region"] != "us-east-1" {
		t.Fatalf("roundTripped.Metadata = %v", roundTripped.Metadata)
	}
}

func TestOAuth2AuthorizationCodeUserCredential_NextRotationTime(t *testing.T) {
	expiry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cred := OAuth2AuthorizationCodeUserCredential{ExpiryTime: expiry}

	var rotatable RotatableCredential = cred
	if !rotatable.NextRotationTime().Equal(expiry) {
		t.Fatalf("NextRotationTime() = %v, want %v", rotatable.NextRotationTime(), expiry)
	}
}

func TestOAuth2JWTBearerUserCredential_ImplementsUserCredentialLike(t *testing.T) {
	var _ UserCredentialLike = OAuth2JWTBearerUserCredential{}
	var _ RotatableCredential = OAuth2JWTBearerUserCredential{}
}

func TestCredential_WrapsVariantByID(t *testing.T) {
	cred := ResourceServerCredential{
		Inner: OAuth2AuthorizationCodeResourceServerCredential{
			ClientID:    "abc",
			RedirectURI: "https://example.com/callback",
		},
	}

	if cred.Inner.TypeID() != TypeResourceServerOAuth2AuthorizationCode {
		t.Fatalf("Inner.TypeID() = %q", cred.Inner.TypeID())
	}
}
