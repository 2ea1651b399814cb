// Package rotation implements the out-of-band credential rotation
// scheduler: poll credentials whose NextRotationTime has passed, invoke
// the resolved controller's rotator capability, and persist the refreshed
// ciphertext. Failures are retried with backoff; a credential is never
// deleted because rotation failed.
package rotation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coregate/gateway/internal/credential/controller"
	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
	"github.com/coregate/gateway/internal/crypto/cipher"
)

// CredentialRepository is the subset of internal/credential/repository.Repository
// this package depends on: the due-for-rotation poll query plus the
// update-in-place calls that persist a rotator's output.
type CredentialRepository interface {
	ListDueForRotation(ctx context.Context, now time.Time, limit int) ([]*credentialDomain.SerializedCredential, error)
	GetResourceServerCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error)
	UpdateResourceServerCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error
	UpdateUserCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error
}

// ControllerResolver looks up the credential controller that owns a
// credential's type_id. internal/registry satisfies this.
type ControllerResolver interface {
	ResolveCredentialController(typeID string) (controller.CredentialController, bool)
}

// CipherProvider resolves a credential's dek_alias to the encryption and
// decryption services its ciphertext fields are protected by.
type CipherProvider interface {
	GetEncryptionService(ctx context.Context, dekID uuid.UUID) (*cipher.EncryptionService, error)
	GetDecryptionService(ctx context.Context, dekID uuid.UUID) (*cipher.DecryptionService, error)
}

// DekAliasResolver resolves a dek_alias string to the dek id CipherProvider
// understands.
type DekAliasResolver interface {
	GetDekByAlias(ctx context.Context, alias string) (uuid.UUID, error)
}

// ChangePublisher records that a credential's ciphertext changed, so
// out-of-band subscribers (the crypto cache invalidator chief among them)
// can react. internal/outbox satisfies this with its transactional outbox.
type ChangePublisher interface {
	PublishCredentialRotated(ctx context.Context, credentialID uuid.UUID, dekAlias string) error
}
