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

// MySQLKeyRepository persists the envelope-key/DEK/alias hierarchy in
// MySQL. UUIDs are stored as BINARY(16) via MarshalBinary/UnmarshalBinary,
// matching the rest of this codebase's MySQL repositories.
type MySQLKeyRepository struct {
	db *sql.DB
}

// NewMySQLKeyRepository creates a new MySQLKeyRepository.
func NewMySQLKeyRepository(db *sql.DB) *MySQLKeyRepository {
	return &MySQLKeyRepository{db: db}
}

// CreateEnvelopeKey inserts a new EnvelopeKey row.
func (m *MySQLKeyRepository) CreateEnvelopeKey(ctx context.Context, key *cryptoDomain.EnvelopeKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO envelope_keys (id, kind, arn, region, path, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, query, key.ID, key.Kind, key.ARN, key.Region, key.Path, key.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create envelope key")
	}
	return nil
}

// GetEnvelopeKey fetches a single EnvelopeKey by its ID (ARN or path).
func (m *MySQLKeyRepository) GetEnvelopeKey(ctx context.Context, id string) (*cryptoDomain.EnvelopeKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, kind, arn, region, path, created_at FROM envelope_keys WHERE id = ?`

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
func (m *MySQLKeyRepository) ListEnvelopeKeys(ctx context.Context, page cursor.Page) ([]*cryptoDomain.EnvelopeKey, string, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, kind, arn, region, path, created_at FROM envelope_keys
			  WHERE created_at < ? ORDER BY created_at DESC LIMIT ?`

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
// references it.
func (m *MySQLKeyRepository) DeleteEnvelopeKey(ctx context.Context, id string) error {
	querier := database.GetTx(ctx, m.db)

	var dekIDBytes []byte
	err := querier.QueryRowContext(ctx, `SELECT id FROM data_encryption_keys WHERE envelope_key_id = ? LIMIT 1`, id).Scan(&dekIDBytes)
	if err == nil {
		var dekID uuid.UUID
		_ = dekID.UnmarshalBinary(dekIDBytes)
		return apperrors.Wrap(cryptoDomain.ErrEnvelopeKeyInUse, dekID.String())
	}
	if err != sql.ErrNoRows {
		return apperrors.Wrap(err, "failed to check envelope key usage")
	}

	_, err = querier.ExecContext(ctx, `DELETE FROM envelope_keys WHERE id = ?`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete envelope key")
	}
	return nil
}

// CreateDek inserts a new DEK row.
func (m *MySQLKeyRepository) CreateDek(ctx context.Context, dek *cryptoDomain.Dek) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO data_encryption_keys (id, envelope_key_id, algorithm, encrypted_key, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	id, err := dek.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal dek id")
	}

	_, err = querier.ExecContext(ctx, query, id, dek.EnvelopeKeyID, dek.Algorithm, dek.EncryptedKey, dek.CreatedAt, dek.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create dek")
	}
	return nil
}

// GetDek fetches a single DEK by ID.
func (m *MySQLKeyRepository) GetDek(ctx context.Context, id uuid.UUID) (*cryptoDomain.Dek, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, envelope_key_id, algorithm, encrypted_key, created_at, updated_at
			  FROM data_encryption_keys WHERE id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal dek id")
	}

	var dek cryptoDomain.Dek
	var rowID []byte
	err = querier.QueryRowContext(ctx, query, idBytes).Scan(&rowID, &dek.EnvelopeKeyID, &dek.Algorithm, &dek.EncryptedKey, &dek.CreatedAt, &dek.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, cryptoDomain.ErrDekNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get dek")
	}
	if err := dek.ID.UnmarshalBinary(rowID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal dek id")
	}
	return &dek, nil
}

// GetDekWithEnvelopeKey joins the DEK row with its owning EnvelopeKey.
func (m *MySQLKeyRepository) GetDekWithEnvelopeKey(ctx context.Context, id uuid.UUID) (*cryptoDomain.Dek, *cryptoDomain.EnvelopeKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT d.id, d.envelope_key_id, d.algorithm, d.encrypted_key, d.created_at, d.updated_at,
			         e.id, e.kind, e.arn, e.region, e.path, e.created_at
			  FROM data_encryption_keys d
			  JOIN envelope_keys e ON e.id = d.envelope_key_id
			  WHERE d.id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to marshal dek id")
	}

	var dek cryptoDomain.Dek
	var envKey cryptoDomain.EnvelopeKey
	var rowID []byte
	err = querier.QueryRowContext(ctx, query, idBytes).Scan(
		&rowID, &dek.EnvelopeKeyID, &dek.Algorithm, &dek.EncryptedKey, &dek.CreatedAt, &dek.UpdatedAt,
		&envKey.ID, &envKey.Kind, &envKey.ARN, &envKey.Region, &envKey.Path, &envKey.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, cryptoDomain.ErrDekNotFound
		}
		return nil, nil, apperrors.Wrap(err, "failed to get dek with envelope key")
	}
	if err := dek.ID.UnmarshalBinary(rowID); err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to unmarshal dek id")
	}
	return &dek, &envKey, nil
}

// ListDeks returns a cursor-paginated, created_at-descending page of DEKs.
func (m *MySQLKeyRepository) ListDeks(ctx context.Context, page cursor.Page) ([]*cryptoDomain.Dek, string, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, envelope_key_id, algorithm, encrypted_key, created_at, updated_at
			  FROM data_encryption_keys WHERE created_at < ? ORDER BY created_at DESC LIMIT ?`

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
		var rowID []byte
		if err := rows.Scan(&rowID, &dek.EnvelopeKeyID, &dek.Algorithm, &dek.EncryptedKey, &dek.CreatedAt, &dek.UpdatedAt); err != nil {
			return nil, "", apperrors.Wrap(err, "failed to scan dek")
		}
		if err := dek.ID.UnmarshalBinary(rowID); err != nil {
			return nil, "", apperrors.Wrap(err, "failed to unmarshal dek id")
		}
		deks = append(deks, &dek)
	}
	if err := rows.Err(); err != nil {
		return nil, "", apperrors.Wrap(err, "failed to iterate deks")
	}

	page2, next := cursor.NextToken(deks, page.PageSize, func(d *cryptoDomain.Dek) time.Time { return d.CreatedAt })
	return page2, next, nil
}

// DeleteDek removes a DEK row; dek_aliases cascade via foreign key.
func (m *MySQLKeyRepository) DeleteDek(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal dek id")
	}

	_, err = querier.ExecContext(ctx, `DELETE FROM data_encryption_keys WHERE id = ?`, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete dek")
	}
	return nil
}

// CreateAlias binds a new alias to a DEK.
func (m *MySQLKeyRepository) CreateAlias(ctx context.Context, alias *cryptoDomain.DekAlias) error {
	querier := database.GetTx(ctx, m.db)

	dekID, err := alias.DekID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal dek id")
	}

	query := `INSERT INTO dek_aliases (alias, dek_id, created_at, updated_at) VALUES (?, ?, ?, ?)`
	_, err = querier.ExecContext(ctx, query, alias.Alias, dekID, alias.CreatedAt, alias.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create dek alias")
	}
	return nil
}

// UpdateAlias rebinds an existing alias to a new DEK.
func (m *MySQLKeyRepository) UpdateAlias(ctx context.Context, alias *cryptoDomain.DekAlias) error {
	querier := database.GetTx(ctx, m.db)

	dekID, err := alias.DekID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal dek id")
	}

	query := `UPDATE dek_aliases SET dek_id = ?, updated_at = ? WHERE alias = ?`
	_, err = querier.ExecContext(ctx, query, dekID, alias.UpdatedAt, alias.Alias)
	if err != nil {
		return apperrors.Wrap(err, "failed to update dek alias")
	}
	return nil
}

// GetDekByAlias resolves an alias to its bound DEK ID.
func (m *MySQLKeyRepository) GetDekByAlias(ctx context.Context, alias string) (uuid.UUID, error) {
	querier := database.GetTx(ctx, m.db)

	var dekIDBytes []byte
	err := querier.QueryRowContext(ctx, `SELECT dek_id FROM dek_aliases WHERE alias = ?`, alias).Scan(&dekIDBytes)
	if err != nil {
		if err == sql.ErrNoRows {
			return uuid.Nil, cryptoDomain.ErrAliasNotFound
		}
		return uuid.Nil, apperrors.Wrap(err, "failed to get dek by alias")
	}

	var dekID uuid.UUID
	if err := dekID.UnmarshalBinary(dekIDBytes); err != nil {
		return uuid.Nil, apperrors.Wrap(err, "failed to unmarshal dek id")
	}
	return dekID, nil
}

// ListAliasesForDek returns every alias currently bound to dekID.
func (m *MySQLKeyRepository) ListAliasesForDek(ctx context.Context, dekID uuid.UUID) ([]*cryptoDomain.DekAlias, error) {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := dekID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal dek id")
	}

	rows, err := querier.QueryContext(ctx, `SELECT alias, dek_id, created_at, updated_at FROM dek_aliases WHERE dek_id = ?`, idBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list aliases for dek")
	}
	defer rows.Close()

	var aliases []*cryptoDomain.DekAlias
	for rows.Next() {
		var a cryptoDomain.DekAlias
		var rowDekID []byte
		if err := rows.Scan(&a.Alias, &rowDekID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan dek alias")
		}
		if err := a.DekID.UnmarshalBinary(rowDekID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal dek id")
		}
		aliases = append(aliases, &a)
	}
	return aliases, rows.Err()
}

// DeleteAlias removes an alias binding.
func (m *MySQLKeyRepository) DeleteAlias(ctx context.Context, alias string) error {
	querier := database.GetTx(ctx, m.db)

	_, err := querier.ExecContext(ctx, `DELETE FROM dek_aliases WHERE alias = ?`, alias)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete dek alias")
	}
	return nil
}
