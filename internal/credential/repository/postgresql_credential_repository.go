// Package repository implements data persistence for resource-server and
// user credentials: the already-encrypted SerializedCredential form, never
// the decrypted controller-specific view. PostgreSQL and MySQL variants
// follow the same Repository pattern as internal/crypto/repository and
// internal/crypto/repository, both transaction-aware via database.GetTx().
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/coregate/gateway/internal/cursor"
	"github.com/coregate/gateway/internal/database"
	apperrors "github.com/coregate/gateway/internal/errors"

	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
)

// PostgreSQLCredentialRepository persists resource-server and user
// credentials in PostgreSQL.
//
// Schema requirements:
//
//	resource_server_credentials(id UUID PRIMARY KEY, type_id TEXT, dek_alias TEXT REFERENCES dek_aliases(alias),
//	    metadata JSONB, value JSONB, created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ, next_rotation_time TIMESTAMPTZ,
//	    rotation_retries INT NOT NULL DEFAULT 0, last_rotation_error TEXT)
//	user_credentials(id UUID PRIMARY KEY, type_id TEXT, dek_alias TEXT REFERENCES dek_aliases(alias),
//	    metadata JSONB, value JSONB, created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ, next_rotation_time TIMESTAMPTZ,
//	    rotation_retries INT NOT NULL DEFAULT 0, last_rotation_error TEXT)
type PostgreSQLCredentialRepository struct {
	db *sql.DB
}

// NewPostgreSQLCredentialRepository creates a new PostgreSQLCredentialRepository.
func NewPostgreSQLCredentialRepository(db *sql.DB) *PostgreSQLCredentialRepository {
	return &PostgreSQLCredentialRepository{db: db}
}

func (p *PostgreSQLCredentialRepository) CreateResourceServerCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error {
	return p.create(ctx, "resource_server_credentials", cred)
}

func (p *PostgreSQLCredentialRepository) CreateUserCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error {
	return p.create(ctx, "user_credentials", cred)
}

func (p *PostgreSQLCredentialRepository) create(ctx context.Context, table string, cred *credentialDomain.SerializedCredential) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO ` + table + ` (id, type_id, dek_alias, metadata, value, created_at, updated_at, next_rotation_time, rotation_retries, last_rotation_error)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := querier.ExecContext(ctx, query, cred.ID, cred.TypeID, cred.DekAlias, metadataJSON(cred.Metadata), cred.Value, cred.CreatedAt, cred.UpdatedAt, cred.NextRotationTime, cred.RotationRetries, cred.LastRotationError)
	if err != nil {
		return apperrors.Wrap(err, "failed to create credential")
	}
	return nil
}

// CreateStaticCredential persists a provider-global static credential.
// Unlike resource-server/user credentials it is usually plaintext (only
// fields the controller marks secret carry ciphertext), but shares the same
// SerializedCredential shape and table layout.
func (p *PostgreSQLCredentialRepository) CreateStaticCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error {
	return p.create(ctx, "static_credentials", cred)
}

// GetStaticCredentialByID returns one provider-global static credential by
// id. A tool group that has none leaves its StaticCredentialID nil; callers
// never call this in that case.
func (p *PostgreSQLCredentialRepository) GetStaticCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error) {
	return p.getByID(ctx, "static_credentials", id)
}

func (p *PostgreSQLCredentialRepository) GetResourceServerCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error) {
	return p.getByID(ctx, "resource_server_credentials", id)
}

func (p *PostgreSQLCredentialRepository) GetUserCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error) {
	return p.getByID(ctx, "user_credentials", id)
}

func (p *PostgreSQLCredentialRepository) getByID(ctx context.Context, table string, id uuid.UUID) (*credentialDomain.SerializedCredential, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, type_id, dek_alias, metadata, value, created_at, updated_at, next_rotation_time, rotation_retries, last_rotation_error FROM ` + table + ` WHERE id = $1`

	cred, err := scanCredential(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get credential")
	}
	return cred, nil
}

func (p *PostgreSQLCredentialRepository) UpdateResourceServerCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error {
	return p.update(ctx, "resource_server_credentials", cred)
}

func (p *PostgreSQLCredentialRepository) UpdateUserCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error {
	return p.update(ctx, "user_credentials", cred)
}

func (p *PostgreSQLCredentialRepository) update(ctx context.Context, table string, cred *credentialDomain.SerializedCredential) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE ` + table + ` SET metadata = $1, value = $2, updated_at = $3, next_rotation_time = $4, rotation_retries = $5, last_rotation_error = $6 WHERE id = $7`

	result, err := querier.ExecContext(ctx, query, metadataJSON(cred.Metadata), cred.Value, cred.UpdatedAt, cred.NextRotationTime, cred.RotationRetries, cred.LastRotationError, cred.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update credential")
	}
	return requireRowsAffected(result)
}

func (p *PostgreSQLCredentialRepository) ListResourceServerCredentials(ctx context.Context, page cursor.Page) ([]*credentialDomain.SerializedCredential, string, error) {
	return p.list(ctx, "resource_server_credentials", page)
}

func (p *PostgreSQLCredentialRepository) ListUserCredentials(ctx context.Context, page cursor.Page) ([]*credentialDomain.SerializedCredential, string, error) {
	return p.list(ctx, "user_credentials", page)
}

func (p *PostgreSQLCredentialRepository) list(ctx context.Context, table string, page cursor.Page) ([]*credentialDomain.SerializedCredential, string, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, type_id, dek_alias, metadata, value, created_at, updated_at, next_rotation_time, rotation_retries, last_rotation_error FROM ` + table + `
			  WHERE created_at < $1 ORDER BY created_at DESC LIMIT $2`

	after := page.After
	if after.IsZero() {
		after = time.Now().UTC().Add(24 * time.Hour)
	}

	rows, err := querier.QueryContext(ctx, query, after, page.PageSize+1)
	if err != nil {
		return nil, "", apperrors.Wrap(err, "failed to list credentials")
	}
	defer rows.Close()

	var creds []*credentialDomain.SerializedCredential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, "", apperrors.Wrap(err, "failed to scan credential")
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, "", apperrors.Wrap(err, "failed to iterate credentials")
	}

	page2, next := cursor.NextToken(creds, page.PageSize, func(c *credentialDomain.SerializedCredential) time.Time { return c.CreatedAt })
	return page2, next, nil
}

// ListDueForRotation returns user credentials whose next_rotation_time has
// passed, oldest first, capped at limit — the rotation scheduler's poll
// query.
func (p *PostgreSQLCredentialRepository) ListDueForRotation(ctx context.Context, now time.Time, limit int) ([]*credentialDomain.SerializedCredential, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, type_id, dek_alias, metadata, value, created_at, updated_at, next_rotation_time, rotation_retries, last_rotation_error FROM user_credentials
			  WHERE next_rotation_time IS NOT NULL AND next_rotation_time <= $1
			  ORDER BY next_rotation_time ASC LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list credentials due for rotation")
	}
	defer rows.Close()

	var creds []*credentialDomain.SerializedCredential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan credential")
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}
