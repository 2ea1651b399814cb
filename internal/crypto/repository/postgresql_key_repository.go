// Package repository implements data persistence for the envelope
// encryption key hierarchy: envelope keys, data encryption keys, and
// aliases. PostgreSQL and MySQL variants follow the same Repository
// pattern the rest of the codebase uses, both transaction-aware via
// database.GetTx().
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/coregate/gateway/internal/crypto/domain"
	"github.com/coregate/gateway/internal/cursor"
	"github.com/coregate/gateway/internal/database"
	apperrors "github.com/coregate/gateway/internal/errors"
)

// PostgreSQLKeyRepository persists the envelope-key/DEK/alias hierarchy in
// PostgreSQL.
//
// Schema requirements:
//
//	envelope_keys(id TEXT PRIMARY KEY, kind TEXT, arn TEXT, region TEXT, path TEXT, created_at TIMESTAMPTZ)
//	data_encryption_keys(id UUID PRIMARY KEY, envelope_key_id TEXT REFERENCES envelope_keys(id), algorithm TEXT, encrypted_key BYTEA, created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ)
//	dek_aliases(alias TEXT PRIMARY KEY, dek_id UUID REFERENCES data_encryption_keys(id), created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ)
type PostgreSQLKeyRepository struct {
	db *sql.DB
}

// NewPostgreSQLKeyRepository creates a new PostgreSQLKeyRepository.
func NewPostgreSQLKeyRepository(db *sql.DB) *PostgreSQLKeyRepository {
	return &PostgreSQLKeyRepository{db: db}
}

// CreateEnvelopeKey inserts a new EnvelopeKey row.
func (p *PostgreSQLKeyRepository) CreateEnvelopeKey(ctx context.Context, key *cryptoDomain.EnvelopeKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO envelope_keys (id, kind, arn, region, path, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := querier.ExecContext(ctx, query, key.ID, key.Kind, key.ARN, key.Region, key.Path, key.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create envelope key")
	}
	return nil
}

// GetEnvelopeKey fetches a single EnvelopeKey by its ID (ARN or path).
func (p *PostgreSQLKeyRepository) GetEnvelopeKey(ctx context.Context, id string) (*cryptoDomain.EnvelopeKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, kind, arn, region, path, created_at FROM envelope_keys WHERE id = $1`

	var key cryptoDomain.EnvelopeKey
	err := querier.QueryRowContext(ctx, query, id).Scan(&key.ID, &key.Kind, &key.ARN, &key.Region, &key.Path, &key.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, cryptoDomain.ErrEnvelopeKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get envelope key")
	}
	return &key, nil
}

// ListEnvelopeKeys returns a cursor-paginated, created_at-descending page of
// envelope keys.
func (p *PostgreSQLKeyRepository) ListEnvelopeKeys(ctx context.Context, page cursor.Page) ([]*cryptoDomain.EnvelopeKey, string, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, kind, arn, region, path, created_at FROM envelope_keys
			  WHERE created_at < $1 ORDER BY created_at DESC LIMIT $2`

	after := page.After
	if after.IsZero() {
		after = time.Now().UTC().Add(24 * time.Hour)
	}

	rows, err := querier.QueryContext(ctx, query, after, page.PageSize+1)
	if err != nil {
		return nil, "", apperrors.Wrap(err, "failed to list envelope keys")
	}
	defer rows.Close()

	var keys []*cryptoDomain.EnvelopeKey
	for rows.Next() {
		var key cryptoDomain.EnvelopeKey
		if err := rows.Scan(&key.ID, &key.Kind, &key.ARN, &key.Region, &key.Path, &key.CreatedAt); err != nil {
			return nil, "", apperrors.Wrap(err, "failed to scan envelope key")
		}
		keys = append(keys, &key)
	}
	if err := rows.Err(); err != nil {
		return nil, "", apperrors.Wrap(err, "failed to iterate envelope keys")
	}

	page2, next := cursor.NextToken(keys, page.PageSize, func(k *cryptoDomain.EnvelopeKey) time.Time { return k.CreatedAt })
	return page2, next, nil
}

// DeleteEnvelopeKey removes an EnvelopeKey, refusing while any DEK still
// references it (ErrEnvelopeKeyInUse, naming the first offending DEK).
func (p *PostgreSQLKeyRepository) DeleteEnvelopeKey(ctx context.Context, id string) error {
	querier := database.GetTx(ctx, p.db)

	var dekID uuid.UUID
	err := querier.QueryRowContext(ctx, `SELECT id FROM data_encryption_keys WHERE envelope_key_id = $1 LIMIT 1`, id).Scan(&dekID)
	if err == nil {
		return apperrors.Wrap(cryptoDomain.ErrEnvelopeKeyInUse, dekID.String())
	}
	if err != sql.ErrNoRows {
		return apperrors.Wrap(err, "failed to check envelope key usage")
	}

	_, err = querier.ExecContext(ctx, `DELETE FROM envelope_keys WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete envelope key")
	}
	return nil
}

// CreateDek inserts a new DEK row.
func (p *PostgreSQLKeyRepository) CreateDek(ctx context.Context, dek *cryptoDomain.Dek) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO data_encryption_keys (id, envelope_key_id, algorithm, encrypted_key, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := querier.ExecContext(ctx, query, dek.ID, dek.EnvelopeKeyID, dek.Algorithm, dek.EncryptedKey, dek.CreatedAt, dek.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create dek")
	}
	return nil
}

// GetDek fetches a single DEK by ID.
func (p *PostgreSQLKeyRepository) GetDek(ctx context.Context, id uuid.UUID) (*cryptoDomain.Dek, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, envelope_key_id, algorithm, encrypted_key, created_at, updated_at
			  FROM data_encryption_keys WHERE id = $1`

	var dek cryptoDomain.Dek
	err := querier.QueryRowContext(ctx, query, id).Scan(&dek.ID, &dek.EnvelopeKeyID, &dek.Algorithm, &dek.EncryptedKey, &dek.CreatedAt, &dek.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, cryptoDomain.ErrDekNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get dek")
	}
	return &dek, nil
}

// GetDekWithEnvelopeKey joins the DEK row with its owning EnvelopeKey in one
// round-trip, as required by the crypto service cache.
func (p *PostgreSQLKeyRepository) GetDekWithEnvelopeKey(ctx context.Context, id uuid.UUID) (*cryptoDomain.Dek, *cryptoDomain.EnvelopeKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT d.id, d.envelope_key_id, d.algorithm, d.encrypted_key, d.created_at, d.updated_at,
			         e.id, e.kind, e.arn, e.region, e.path, e.created_at
			  FROM data_encryption_keys d
			  JOIN envelope_keys e ON e.id = d.envelope_key_id
			  WHERE d.id = $1`

	var dek cryptoDomain.Dek
	var envKey cryptoDomain.EnvelopeKey
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&dek.ID, &dek.EnvelopeKeyID, &dek.Algorithm, &dek.EncryptedKey, &dek.CreatedAt, &dek.UpdatedAt,
		&envKey.ID, &envKey.Kind, &envKey.ARN, &envKey.Region, &envKey.Path, &envKey.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, cryptoDomain.ErrDekNotFound
		}
		return nil, nil, apperrors.Wrap(err, "failed to get dek with envelope key")
	}
	return &dek, &envKey, nil
}

// ListDeks returns a cursor-paginated, created_at-descending page of DEKs.
func (p *PostgreSQLKeyRepository) ListDeks(ctx context.Context, page cursor.Page) ([]*cryptoDomain.Dek, string, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, envelope_key_id, algorithm, encrypted_key, created_at, updated_at
			  FROM data_encryption_keys WHERE created_at < $1 ORDER BY created_at DESC LIMIT $2`

	after := page.After
	if after.IsZero() {
		after = time.Now().UTC().Add(24 * time.Hour)
	}

	rows, err := querier.QueryContext(ctx, query, after, page.PageSize+1)
	if err != nil {
		return nil, "", apperrors.Wrap(err, "failed to list deks")
	}
	defer rows.Close()

	var deks []*cryptoDomain.Dek
	for rows.Next() {
		var dek cryptoDomain.Dek
		if err := rows.Scan(&dek.ID, &dek.EnvelopeKeyID, &dek.Algorithm, &dek.EncryptedKey, &dek.CreatedAt, &dek.UpdatedAt); err != nil {
			return nil, "", apperrors.Wrap(err, "failed to scan dek")
		}
		deks = append(deks, &dek)
	}
	if err := rows.Err(); err != nil {
		return nil, "", apperrors.Wrap(err, "failed to iterate deks")
	}

	page2, next := cursor.NextToken(deks, page.PageSize, func(d *cryptoDomain.Dek) time.Time { return d.CreatedAt })
	return page2, next, nil
}

// DeleteDek removes a DEK row; dek_aliases cascade via a foreign key with
// ON DELETE CASCADE in the migration that creates this table.
func (p *PostgreSQLKeyRepository) DeleteDek(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	_, err := querier.ExecContext(ctx, `DELETE FROM data_encryption_keys WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete dek")
	}
	return nil
}

// CreateAlias binds a new alias to a DEK.
func (p *PostgreSQLKeyRepository) CreateAlias(ctx context.Context, alias *cryptoDomain.DekAlias) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO dek_aliases (alias, dek_id, created_at, updated_at) VALUES ($1, $2, $3, $4)`

	_, err := querier.ExecContext(ctx, query, alias.Alias, alias.DekID, alias.CreatedAt, alias.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create dek alias")
	}
	return nil
}

// UpdateAlias rebinds an existing alias to a new DEK (e.g. after migration).
func (p *PostgreSQLKeyRepository) UpdateAlias(ctx context.Context, alias *cryptoDomain.DekAlias) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE dek_aliases SET dek_id = $1, updated_at = $2 WHERE alias = $3`

	_, err := querier.ExecContext(ctx, query, alias.DekID, alias.UpdatedAt, alias.Alias)
	if err != nil {
		return apperrors.Wrap(err, "failed to update dek alias")
	}
	return nil
}

// GetDekByAlias resolves an alias to its bound DEK ID.
func (p *PostgreSQLKeyRepository) GetDekByAlias(ctx context.Context, alias string) (uuid.UUID, error) {
	querier := database.GetTx(ctx, p.db)

	var dekID uuid.UUID
	err := querier.QueryRowContext(ctx, `SELECT dek_id FROM dek_aliases WHERE alias = $1`, alias).Scan(&dekID)
	if err != nil {
		if err == sql.ErrNoRows {
			return uuid.Nil, cryptoDomain.ErrAliasNotFound
		}
		return uuid.Nil, apperrors.Wrap(err, "failed to get dek by alias")
	}
	return dekID, nil
}

// ListAliasesForDek returns every alias currently bound to dekID.
func (p *PostgreSQLKeyRepository) ListAliasesForDek(ctx context.Context, dekID uuid.UUID) ([]*cryptoDomain.DekAlias, error) {
	querier := database.GetTx(ctx, p.db)

	rows, err := querier.QueryContext(ctx, `SELECT alias, dek_id, created_at, updated_at FROM dek_aliases WHERE dek_id = $1`, dekID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list aliases for dek")
	}
	defer rows.Close()

	var aliases []*cryptoDomain.DekAlias
	for rows.Next() {
		var a cryptoDomain.DekAlias
		if err := rows.Scan(&a.Alias, &a.DekID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan dek alias")
		}
		aliases = append(aliases, &a)
	}
	return aliases, rows.Err()
}

// DeleteAlias removes an alias binding.
func (p *PostgreSQLKeyRepository) DeleteAlias(ctx context.Context, alias string) error {
	querier := database.GetTx(ctx, p.db)

	_, err := querier.ExecContext(ctx, `DELETE FROM dek_aliases WHERE alias = $1`, alias)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete dek alias")
	}
	return nil
}
