package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brokerDomain "github.com/coregate/gateway/internal/broker/domain"
	apperrors "github.com/coregate/gateway/internal/errors"
)

func newBrokerStatePostgresMock(t *testing.T) (*PostgreSQLBrokerStateRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgreSQLBrokerStateRepository(db), mock
}

var brokerStateColumns = []string{
	"id", "resource_server_cred_id", "provider_controller_type_id", "credential_controller_type_id",
	"metadata", "action_kind", "action_url", "created_at", "updated_at",
}

func TestPostgreSQLBrokerStateRepository_Create(t *testing.T) {
	repo, mock := newBrokerStatePostgresMock(t)
	ctx := context.Background()

	now := time.Now().UTC()
	state := &brokerDomain.BrokerState{
		ID:                         uuid.New(),
		ResourceServerCredID:       uuid.New(),
		ProviderControllerTypeID:   "github",
		CredentialControllerTypeID: "oauth2_authorization_code_flow",
		Metadata:                   map[string]any{"client_id": "abc"},
		Action:                     brokerDomain.Action{Kind: brokerDomain.ActionKindRedirect, URL: "https://example.com/authorize"},
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}

	mock.ExpectExec("INSERT INTO broker_states").
		WithArgs(state.ID, state.ResourceServerCredID, state.ProviderControllerTypeID, state.CredentialControllerTypeID,
			sqlmock.AnyArg(), state.Action.Kind, state.Action.URL, state.CreatedAt, state.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(ctx, state)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLBrokerStateRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newBrokerStatePostgresMock(t)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectQuery("SELECT id, resource_server_cred_id, provider_controller_type_id, credential_controller_type_id, metadata, action_kind, action_url, created_at, updated_at").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	state, err := repo.GetByID(ctx, id)

	assert.Nil(t, state)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLBrokerStateRepository_GetByID_ScansMetadata(t *testing.T) {
	repo, mock := newBrokerStatePostgresMock(t)
	ctx := context.Background()

	id := uuid.New()
	resourceServerCredID := uuid.New()
	now := time.Now().UTC()

	rows := sqlmock.NewRows(brokerStateColumns).
		AddRow(id, resourceServerCredID, "github", "oauth2_authorization_code_flow", []byte(`{"client_id":"abc"}`), "redirect", "https://example.com/authorize", now, now)

	mock.ExpectQuery("SELECT id, resource_server_cred_id, provider_controller_type_id, credential_controller_type_id, metadata, action_kind, action_url, created_at, updated_at").
		WithArgs(id).
		WillReturnRows(rows)

	state, err := repo.GetByID(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, resourceServerCredID, state.ResourceServerCredID)
	assert.Equal(t, "abc", state.Metadata["client_id"])
	assert.Equal(t, brokerDomain.ActionKindRedirect, state.Action.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLBrokerStateRepository_Update_NotFound(t *testing.T) {
	repo, mock := newBrokerStatePostgresMock(t)
	ctx := context.Background()

	state := &brokerDomain.BrokerState{ID: uuid.New(), UpdatedAt: time.Now().UTC()}

	mock.ExpectExec("UPDATE broker_states SET").
		WithArgs(sqlmock.AnyArg(), state.Action.Kind, state.Action.URL, state.UpdatedAt, state.ID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(ctx, state)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLBrokerStateRepository_Delete(t *testing.T) {
	repo, mock := newBrokerStatePostgresMock(t)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectExec("DELETE FROM broker_states WHERE id = ").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(ctx, id)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLBrokerStateRepository_DeleteOlderThan(t *testing.T) {
	repo, mock := newBrokerStatePostgresMock(t)
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	mock.ExpectExec("DELETE FROM broker_states WHERE updated_at < ").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteOlderThan(ctx, cutoff)

	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
