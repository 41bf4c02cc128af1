package bootstrap

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/videoshop/core/config"
	coredatabase "github.com/m3rciful/videoshop/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunWithoutDatabase(t *testing.T) {
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config, time.Duration) (*sqlx.DB, error) {
			t.Fatal("connect must not be called")
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
}

func TestRunConnectsAndMigrates(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()
	db := sqlx.NewDb(mockDB, "sqlmock")

	var migratedDriver string
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: "x.db"},
		Migrations: fstest.MapFS{},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config, time.Duration) (*sqlx.DB, error) {
			return db, nil
		},
		Migrate: func(_ *sqlx.DB, driver string, _ fs.FS) error {
			migratedDriver = driver
			return nil
		},
	})
	require.NoError(t, err)
	assert.Same(t, db, res.DB)
	assert.Equal(t, coredatabase.DriverSQLite, migratedDriver)
	require.NoError(t, res.DB.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunClosesDBWhenMigrationFails(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	_, err = Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{Driver: coredatabase.DriverPostgres},
		Migrations: fstest.MapFS{},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config, time.Duration) (*sqlx.DB, error) {
			return sqlx.NewDb(mockDB, "sqlmock"), nil
		},
		Migrate: func(*sqlx.DB, string, fs.FS) error { return errors.New("dirty database") },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrations failed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	assert.Error(t, err)
}
