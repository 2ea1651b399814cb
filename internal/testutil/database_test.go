package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMigrationsPath(t *testing.T) {
	for _, dbType := range []string{"postgresql", "mysql"} {
		t.Run(dbType, func(t *testing.T) {
			path := getMigrationsPath(dbType)

			assert.True(t, filepath.IsAbs(path), "migrations path should be absolute")
			assert.Equal(t, dbType, filepath.Base(path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.True(t, info.IsDir())
		})
	}
}

func TestSetupPostgresDB(t *testing.T) {
	SkipIfNoPostgres(t)

	db := SetupPostgresDB(t)
	defer TeardownDB(t, db)

	assert.NotNil(t, db)
	assert.NoError(t, db.Ping())
}

func TestSetupMySQLDB(t *testing.T) {
	SkipIfNoMySQL(t)

	db := SetupMySQLDB(t)
	defer TeardownDB(t, db)

	assert.NotNil(t, db)
	assert.NoError(t, db.Ping())
}

func TestTeardownDBWithNilDB(t *testing.T) {
	// Must not panic
	TeardownDB(t, nil)
}

func TestCreateTestFixtures(t *testing.T) {
	SkipIfNoPostgres(t)

	db := SetupPostgresDB(t)
	defer TeardownDB(t, db)
	defer CleanupPostgresDB(t, db)

	envKeyID := CreateTestEnvelopeKey(t, db, "postgres", "/tmp/testutil-kek")
	assert.Equal(t, "/tmp/testutil-kek", envKeyID)

	dekID := CreateTestDek(t, db, "postgres", envKeyID)

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM data_encryption_keys WHERE id = $1 AND envelope_key_id = $2`,
		dekID, envKeyID,
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	credID := CreateTestResourceServerCredential(t, db, "postgres", "credentials")
	err = db.QueryRow(
		`SELECT COUNT(*) FROM resource_server_credentials WHERE id = $1`,
		credID,
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
