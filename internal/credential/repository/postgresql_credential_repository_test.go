package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregate/gateway/internal/cursor"
	apperrors "github.com/coregate/gateway/internal/errors"

	credentialDomain "github.com/coregate/gateway/internal/credential/domain"
)

func newCredentialPostgresMock(t *testing.T) (*PostgreSQLCredentialRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgreSQLCredentialRepository(db), mock
}

var credentialColumns = []string{"id", "type_id", "dek_alias", "metadata", "value", "created_at", "updated_at", "next_rotation_time", "rotation_retries", "last_rotation_error"}

func TestPostgreSQLCredentialRepository_CreateResourceServerCredential(t *testing.T) {
	repo, mock := newCredentialPostgresMock(t)
	ctx := context.Background()

	cred := &credentialDomain.SerializedCredential{
		ID:        uuid.New(),
		TypeID:    credentialDomain.TypeResourceServerOAuth2AuthorizationCode,
		DekAlias:  "credentials",
		Metadata:  credentialDomain.Metadata{"owner": "platform"},
		Value:     json.RawMessage(`{"client_id":"abc"}`),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO resource_server_credentials").
		WithArgs(cred.ID, cred.TypeID, cred.DekAlias, sqlmock.AnyArg(), cred.Value, cred.CreatedAt, cred.UpdatedAt, cred.NextRotationTime, cred.RotationRetries, cred.LastRotationError).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateResourceServerCredential(ctx, cred)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLCredentialRepository_GetUserCredentialByID_NotFound(t *testing.T) {
	repo, mock := newCredentialPostgresMock(t)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectQuery("SELECT id, type_id, dek_alias, metadata, value, created_at, updated_at, next_rotation_time, rotation_retries, last_rotation_error FROM user_credentials").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	cred, err := repo.GetUserCredentialByID(ctx, id)

	assert.Nil(t, cred)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLCredentialRepository_GetUserCredentialByID_WithRotationTime(t *testing.T) {
	repo, mock := newCredentialPostgresMock(t)
	ctx := context.Background()

	id := uuid.New()
	now := time.Now().UTC()
	expiry := now.Add(time.Hour)

	rows := sqlmock.NewRows(credentialColumns).
		AddRow(id, credentialDomain.TypeUserOAuth2AuthorizationCode, "credentials", []byte(`{"sub":"u1"}`), []byte(`{"access_token":"ct"}`), now, now, expiry, 0, nil)

	mock.ExpectQuery("SELECT id, type_id, dek_alias, metadata, value, created_at, updated_at, next_rotation_time, rotation_retries, last_rotation_error FROM user_credentials").
		WithArgs(id).
		WillReturnRows(rows)

	cred, err := repo.GetUserCredentialByID(ctx, id)

	require.NoError(t, err)
	require.NotNil(t, cred.NextRotationTime)
	assert.True(t, cred.NextRotationTime.Equal(expiry))
	assert.Equal(t, "credentials", cred.DekAlias)
	assert.Equal(t, "u1", cred.Metadata["sub"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLCredentialRepository_GetUserCredentialByID_WithRotationFailure(t *testing.T) {
	repo, mock := newCredentialPostgresMock(t)
	ctx := context.Background()

	id := uuid.New()
	now := time.Now().UTC()
	expiry := now.Add(time.Hour)

	rows := sqlmock.NewRows(credentialColumns).
		AddRow(id, credentialDomain.TypeUserOAuth2JWTBearer, "credentials", []byte(`{}`), []byte(`{}`), now, now, expiry, 2, "rotate failed: transient error")

	mock.ExpectQuery("SELECT id, type_id, dek_alias, metadata, value, created_at, updated_at, next_rotation_time, rotation_retries, last_rotation_error FROM user_credentials").
		WithArgs(id).
		WillReturnRows(rows)

	cred, err := repo.GetUserCredentialByID(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, 2, cred.RotationRetries)
	require.NotNil(t, cred.LastRotationError)
	assert.Equal(t, "rotate failed: transient error", *cred.LastRotationError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLCredentialRepository_UpdateUserCredential_NotFound(t *testing.T) {
	repo, mock := newCredentialPostgresMock(t)
	ctx := context.Background()

	cred := &credentialDomain.SerializedCredential{ID: uuid.New(), UpdatedAt: time.Now().UTC()}

	mock.ExpectExec("UPDATE user_credentials SET").
		WithArgs(sqlmock.AnyArg(), cred.Value, cred.UpdatedAt, cred.NextRotationTime, cred.RotationRetries, cred.LastRotationError, cred.ID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateUserCredential(ctx, cred)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLCredentialRepository_ListResourceServerCredentials_Pagination(t *testing.T) {
	repo, mock := newCredentialPostgresMock(t)
	ctx := context.Background()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(credentialColumns)
	for i := 0; i < 3; i++ {
		rows.AddRow(uuid.New(), credentialDomain.TypeResourceServerNoAuth, "credentials", []byte(`{}`), []byte(`{}`), now.Add(-time.Duration(i)*time.Minute), now, nil, 0, nil)
	}

	mock.ExpectQuery("SELECT id, type_id, dek_alias, metadata, value, created_at, updated_at, next_rotation_time, rotation_retries, last_rotation_error FROM resource_server_credentials").
		WillReturnRows(rows)

	creds, next, err := repo.ListResourceServerCredentials(ctx, cursor.Page{PageSize: 2})

	require.NoError(t, err)
	assert.Len(t, creds, 2)
	assert.NotEmpty(t, next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLCredentialRepository_ListDueForRotation(t *testing.T) {
	repo, mock := newCredentialPostgresMock(t)
	ctx := context.Background()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(credentialColumns).
		AddRow(uuid.New(), credentialDomain.TypeUserOAuth2JWTBearer, "credentials", []byte(`{}`), []byte(`{}`), now, now, now.Add(-time.Minute), 0, nil)

	mock.ExpectQuery("SELECT id, type_id, dek_alias, metadata, value, created_at, updated_at, next_rotation_time, rotation_retries, last_rotation_error FROM user_credentials").
		WithArgs(now, 10).
		WillReturnRows(rows)

	creds, err := repo.ListDueForRotation(ctx, now, 10)

	require.NoError(t, err)
	require.Len(t, creds, 1)
	require.NotNil(t, creds[0].NextRotationTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}
