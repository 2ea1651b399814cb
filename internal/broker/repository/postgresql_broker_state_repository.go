// Package repository persists BrokerState rows: the in-flight record of a
// multi-step brokering exchange between a start call and its resume.
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

// PostgreSQLBrokerStateRepository persists BrokerState rows in PostgreSQL.
//
// Schema requirements:
//
//	broker_states(id UUID PRIMARY KEY, resource_server_cred_id UUID, provider_controller_type_id TEXT,
//	    credential_controller_type_id TEXT, metadata JSONB, action_kind TEXT, action_url TEXT,
//	    created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ)
type PostgreSQLBrokerStateRepository struct {
	db *sql.DB
}

// NewPostgreSQLBrokerStateRepository creates a new PostgreSQLBrokerStateRepository.
func NewPostgreSQLBrokerStateRepository(db *sql.DB) *PostgreSQLBrokerStateRepository {
	return &PostgreSQLBrokerStateRepository{db: db}
}

// Create inserts a new BrokerState row (the "start produced Continue" path).
func (p *PostgreSQLBrokerStateRepository) Create(ctx context.Context, state *brokerDomain.BrokerState) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO broker_states
			  (id, resource_server_cred_id, provider_controller_type_id, credential_controller_type_id, metadata, action_kind, action_url, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	metadataRaw, err := json.Marshal(state.Metadata)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal broker state metadata")
	}

	_, err = querier.ExecContext(ctx, query,
		state.ID, state.ResourceServerCredID, state.ProviderControllerTypeID, state.CredentialControllerTypeID,
		metadataRaw, state.Action.Kind, state.Action.URL, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create broker state")
	}
	return nil
}

// GetByID fetches a BrokerState by id.
func (p *PostgreSQLBrokerStateRepository) GetByID(ctx context.Context, id uuid.UUID) (*brokerDomain.BrokerState, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, resource_server_cred_id, provider_controller_type_id, credential_controller_type_id, metadata, action_kind, action_url, created_at, updated_at
			  FROM broker_states WHERE id = $1`

	state, err := scanBrokerState(querier.QueryRowContext(ctx, query, id))
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
func (p *PostgreSQLBrokerStateRepository) Update(ctx context.Context, state *brokerDomain.BrokerState) error {
	querier := database.GetTx(ctx, p.db)

	metadataRaw, err := json.Marshal(state.Metadata)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal broker state metadata")
	}

	query := `UPDATE broker_states SET metadata = $1, action_kind = $2, action_url = $3, updated_at = $4 WHERE id = $5`

	result, err := querier.ExecContext(ctx, query, metadataRaw, state.Action.Kind, state.Action.URL, state.UpdatedAt, state.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update broker state")
	}

	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes a BrokerState row — called once a terminal Success has
// been persisted as a UserCredential.
func (p *PostgreSQLBrokerStateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM broker_states WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete broker state")
	}

	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeleteOlderThan removes broker states whose updated_at predates cutoff,
// backing the age-based sweeper. The TTL policy is the operator's, via
// internal/config's sweep tuning.
func (p *PostgreSQLBrokerStateRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM broker_states WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to sweep broker states")
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBrokerState(row scanner) (*brokerDomain.BrokerState, error) {
	var (
		state       brokerDomain.BrokerState
		metadataRaw []byte
	)

	if err := row.Scan(
		&state.ID, &state.ResourceServerCredID, &state.ProviderControllerTypeID, &state.CredentialControllerTypeID,
		&metadataRaw, &state.Action.Kind, &state.Action.URL, &state.CreatedAt, &state.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &state.Metadata); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal broker state metadata")
		}
	}

	return &state, nil
}
