package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	brokerDomain "github.com/coregate/gateway/internal/broker/domain"
	"github.com/coregate/gateway/internal/database"
	apperrors "github.com/coregate/gateway/internal/errors"
)

// MySQLBrokerStateRepository persists BrokerState rows in MySQL. Same
// schema shape as PostgreSQLBrokerStateRepository, using `?` placeholders
// and BINARY(16) ids.
type MySQLBrokerStateRepository struct {
	db *sql.DB
}

// NewMySQLBrokerStateRepository creates a new MySQLBrokerStateRepository.
func NewMySQLBrokerStateRepository(db *sql.DB) *MySQLBrokerStateRepository {
	return &MySQLBrokerStateRepository{db: db}
}

// Create inserts a new BrokerState row (the "start produced Continue" path).
func (m *MySQLBrokerStateRepository) Create(ctx context.Context, state *brokerDomain.BrokerState) error {
	querier := database.GetTx(ctx, m.db)

	metadataRaw, err := json.Marshal(state.Metadata)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal broker state metadata")
	}

	query := `INSERT INTO broker_states
			  (id, resource_server_cred_id, provider_controller_type_id, credential_controller_type_id, metadata, action_kind, action_url, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query,
		state.ID[:], state.ResourceServerCredID[:], state.ProviderControllerTypeID, state.CredentialControllerTypeID,
		metadataRaw, state.Action.Kind, state.Action.URL, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create broker state")
	}
	return nil
}

// GetByID fetches a BrokerState by id.
func (m *MySQLBrokerStateRepository) GetByID(ctx context.Context, id uuid.UUID) (*brokerDomain.BrokerState, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, resource_server_cred_id, provider_controller_type_id, credential_controller_type_id, metadata, action_kind, action_url, created_at, updated_at
			  FROM broker_states WHERE id = ?`

	state, err := scanMySQLBrokerState(querier.QueryRowContext(ctx, query, id[:]))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get broker state")
	}
	return state, nil
}

// Update replaces an in-flight BrokerState's metadata/action in place (the
// "resume produced another Continue" path).
func (m *MySQLBrokerStateRepository) Update(ctx context.Context, state *brokerDomain.BrokerState) error {
	querier := database.GetTx(ctx, m.db)

	metadataRaw, err := json.Marshal(state.Metadata)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal broker state metadata")
	}

	query := `UPDATE broker_states SET metadata = ?, action_kind = ?, action_url = ?, updated_at = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, metadataRaw, state.Action.Kind, state.Action.URL, state.UpdatedAt, state.ID[:])
	if err != nil {
		return apperrors.Wrap(err, "failed to update broker state")
	}
	return requireMySQLRowsAffected(result)
}

// Delete removes a BrokerState row — called once a terminal Success has
// been persisted as a UserCredential.
func (m *MySQLBrokerStateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM broker_states WHERE id = ?`, id[:])
	if err != nil {
		return apperrors.Wrap(err, "failed to delete broker state")
	}
	return requireMySQLRowsAffected(result)
}

// DeleteOlderThan removes broker states whose updated_at predates cutoff.
func (m *MySQLBrokerStateRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM broker_states WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to sweep broker states")
	}
	return result.RowsAffected()
}

func requireMySQLRowsAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// scanMySQLBrokerState mirrors scanBrokerState but scans id columns into
// byte slices first, since the MySQL driver returns BINARY(16) as []byte
// rather than a native UUID type.
func scanMySQLBrokerState(row scanner) (*brokerDomain.BrokerState, error) {
	var (
		state                brokerDomain.BrokerState
		idBytes              []byte
		resourceServerIDBytes []byte
		metadataRaw          []byte
	)

	if err := row.Scan(
		&idBytes, &resourceServerIDBytes, &state.ProviderControllerTypeID, &state.CredentialControllerTypeID,
		&metadataRaw, &state.Action.Kind, &state.Action.URL, &state.CreatedAt, &state.UpdatedAt,
	); err != nil {
		return nil, err
	}

	id, err := uuid.FromBytes(idBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse broker state id")
	}
	state.ID = id

	resourceServerID, err := uuid.FromBytes(resourceServerIDBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse broker state resource server credential id")
	}
	state.ResourceServerCredID = resourceServerID

	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &state.Metadata); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal broker state metadata")
		}
	}

	return &state, nil
}
