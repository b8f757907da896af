package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/plebmarket/backend/internal/infrastructure/config"
)

func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock, mockDB
}

func TestOpen(t *testing.T) {
	t.Run("applies pool settings", func(t *testing.T) {
		cfg := &config.DatabaseConfig{MaxOpenConns: 3, MaxIdleConns: 1, ConnMaxLifetime: 5}
		db, err := Open(sqlite.Open("file::memory:"), cfg, nil)
		require.NoError(t, err)
		defer db.Close()

		assert.Equal(t, 3, db.PoolStats().MaxOpenConnections)
		assert.NoError(t, db.Ping(context.Background()))
	})

	t.Run("zero max open conns leaves the pool unbounded", func(t *testing.T) {
		db, err := Open(sqlite.Open("file::memory:"), &config.DatabaseConfig{}, nil)
		require.NoError(t, err)
		defer db.Close()

		assert.Equal(t, 0, db.PoolStats().MaxOpenConnections)
	})
}

func TestDatabase_Ping(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectPing()
	assert.NoError(t, db.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.EqualError(t, db.Ping(context.Background()), "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())

	// a closed pool reports empty stats instead of failing
	assert.Equal(t, 0, db.PoolStats().InUse)
}

func TestDatabase_SQL(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	sqlDB, err := db.SQL()
	require.NoError(t, err)
	stats := sqlDB.Stats()
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}
