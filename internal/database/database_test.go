package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDSNForcesParseTime(t *testing.T) {
	dsn, err := normalizeDSN("app:secret@tcp(db:3306)/campusgigs")
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, parsed.ParseTime)
	assert.True(t, parsed.ClientFoundRows)
	assert.Equal(t, "'+00:00'", parsed.Params["time_zone"])
	assert.Equal(t, "campusgigs", parsed.DBName)
}

func TestNormalizeDSNKeepsExistingParams(t *testing.T) {
	dsn, err := normalizeDSN("app:secret@tcp(db:3306)/campusgigs?charset=utf8mb4&time_zone=%27Africa%2FBlantyre%27")
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "utf8mb4", parsed.Params["charset"])
	assert.Equal(t, "'+00:00'", parsed.Params["time_zone"])
}

func TestMigrateReleasesConnectionOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT DATABASE\(\)`).WillReturnError(errors.New("access denied"))

	err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create migration driver")
	assert.Equal(t, 0, db.Stats().InUse)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDuplicateKey(t *testing.T) {
	dup := fmt.Errorf("insert plan: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	assert.True(t, IsDuplicateKey(dup))
	assert.False(t, IsDuplicateKey(&mysql.MySQLError{Number: 1452}))
	assert.False(t, IsDuplicateKey(nil))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, 14)
}
