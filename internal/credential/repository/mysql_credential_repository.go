package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/coregate/gateway/internal/cursor"
	"github.com/coregate/gateway/internal/database"
	apperrors "github.com/coregate/gateway/internal/errors"

	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
)

// MySQLCredentialRepository persists resource-server and user credentials
// in MySQL. Same schema shape as PostgreSQLCredentialRepository, using `?`
// placeholders and BINARY(16) ids.
type MySQLCredentialRepository struct {
	db *sql.DB
}

// NewMySQLCredentialRepository creates a new MySQLCredentialRepository.
func NewMySQLCredentialRepository(db *sql.DB) *MySQLCredentialRepository {
	return &MySQLCredentialRepository{db: db}
}

func (m *MySQLCredentialRepository) CreateResourceServerCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error {
	return m.create(ctx, "resource_server_credentials", cred)
}

func (m *MySQLCredentialRepository) CreateUserCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error {
	return m.create(ctx, "user_credentials", cred)
}

func (m *MySQLCredentialRepository) create(ctx context.Context, table string, cred *credentialDomain.SerializedCredential) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO ` + table + ` (id, type_id, dek_alias, metadata, value, created_at, updated_at, next_rotation_time, rotation_retries, last_rotation_error)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, query, cred.ID[:], cred.TypeID, cred.DekAlias, metadataJSON(cred.Metadata), cred.Value, cred.CreatedAt, cred.UpdatedAt, cred.NextRotationTime, cred.RotationRetries, cred.LastRotationError)
	if err != nil {
		return apperrors.Wrap(err, "failed to create credential")
	}
	return nil
}

// CreateStaticCredential persists a provider-global static credential.
func (m *MySQLCredentialRepository) CreateStaticCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error {
	return m.create(ctx, "static_credentials", cred)
}

// GetStaticCredentialByID returns one provider-global static credential by id.
func (m *MySQLCredentialRepository) GetStaticCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error) {
	return m.getByID(ctx, "static_credentials", id)
}

func (m *MySQLCredentialRepository) GetResourceServerCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error) {
	return m.getByID(ctx, "resource_server_credentials", id)
}

func (m *MySQLCredentialRepository) GetUserCredentialByID(ctx context.Context, id uuid.UUID) (*credentialDomain.SerializedCredential, error) {
	return m.getByID(ctx, "user_credentials", id)
}

func (m *MySQLCredentialRepository) getByID(ctx context.Context, table string, id uuid.UUID) (*credentialDomain.SerializedCredential, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, type_id, dek_alias, metadata, value, created_at, updated_at, next_rotation_time, rotation_retries, last_rotation_error FROM ` + table + ` WHERE id = ?`

	cred, err := scanMySQLCredential(querier.QueryRowContext(ctx, query, id[:]))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get credential")
	}
	return cred, nil
}

func (m *MySQLCredentialRepository) UpdateResourceServerCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error {
	return m.update(ctx, "resource_server_credentials", cred)
}

func (m *MySQLCredentialRepository) UpdateUserCredential(ctx context.Context, cred *credentialDomain.SerializedCredential) error {
	return m.update(ctx, "user_credentials", cred)
}

func (m *MySQLCredentialRepository) update(ctx context.Context, table string, cred *credentialDomain.SerializedCredential) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE ` + table + ` SET metadata = ?, value = ?, updated_at = ?, next_rotation_time = ?, rotation_retries = ?, last_rotation_error = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, metadataJSON(cred.Metadata), cred.Value, cred.UpdatedAt, cred.NextRotationTime, cred.RotationRetries, cred.LastRotationError, cred.ID[:])
	if err != nil {
		return apperrors.Wrap(err, "failed to update credential")
	}
	return requireRowsAffected(result)
}

func (m *MySQLCredentialRepository) ListResourceServerCredentials(ctx context.Context, page cursor.Page) ([]*credentialDomain.SerializedCredential, string, error) {
	return m.list(ctx, "resource_server_credentials", page)
}

func (m *MySQLCredentialRepository) ListUserCredentials(ctx context.Context, page cursor.Page) ([]*credentialDomain.SerializedCredential, string, error) {
	return m.list(ctx, "user_credentials", page)
}

func (m *MySQLCredentialRepository) list(ctx context.Context, table string, page cursor.Page) ([]*credentialDomain.SerializedCredential, string, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, type_id, dek_alias, metadata, value, created_at, updated_at, next_rotation_time, rotation_retries, last_rotation_error FROM ` + table + `
			  WHERE created_at < ? ORDER BY created_at DESC LIMIT ?`

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
		cred, err := scanMySQLCredential(rows)
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
// passed, oldest first, capped at limit.
func (m *MySQLCredentialRepository) ListDueForRotation(ctx context.Context, now time.Time, limit int) ([]*credentialDomain.SerializedCredential, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, type_id, dek_alias, metadata, value, created_at, updated_at, next_rotation_time, rotation_retries, last_rotation_error FROM user_credentials
			  WHERE next_rotation_time IS NOT NULL AND next_rotation_time <= ?
			  ORDER BY next_rotation_time ASC LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list credentials due for rotation")
	}
	defer rows.Close()

	var creds []*credentialDomain.SerializedCredential
	for rows.Next() {
		cred, err := scanMySQLCredential(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan credential")
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// scanMySQLCredential mirrors scanCredential but scans the id column into a
// 16-byte slice first, since the MySQL driver returns BINARY(16) as []byte
// rather than a native UUID type.
func scanMySQLCredential(row scanner) (*credentialDomain.SerializedCredential, error) {
	var (
		cred            credentialDomain.SerializedCredential
		idBytes         []byte
		metadataRaw     []byte
		nextRotation    sql.NullTime
		lastRotationErr sql.NullString
	)

	if err := row.Scan(&idBytes, &cred.TypeID, &cred.DekAlias, &metadataRaw, &cred.Value, &cred.CreatedAt, &cred.UpdatedAt, &nextRotation, &cred.RotationRetries, &lastRotationErr); err != nil {
		return nil, err
	}

	id, err := uuid.FromBytes(idBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse credential id")
	}
	cred.ID = id

	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &cred.Metadata); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal credential metadata")
		}
	}
	if nextRotation.Valid {
		t := nextRotation.Time
		cred.NextRotationTime = &t
	}
	if lastRotationErr.Valid {
		cred.LastRotationError = &lastRotationErr.String
	}

	return &cred, nil
}
