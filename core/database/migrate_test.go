package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUpFilesAndApplied(t *testing.T) {
	fsys := fstest.MapFS{
		"sqlite/000002_b.up.sql":   {Data: []byte("--")},
		"sqlite/000001_a.up.sql":   {Data: []byte("--")},
		"sqlite/000001_a.down.sql": {Data: []byte("--")},
		"postgres/000001_a.up.sql": {Data: []byte("--")},
	}
	files := listUpFiles(fsys, "sqlite")
	require.Equal(t, []string{"000001_a.up.sql", "000002_b.up.sql"}, files)

	assert.Equal(t, []string{"000002_b.up.sql"}, appliedBetween(files, 1, 2))
	assert.Empty(t, appliedBetween(files, 2, 2))
	assert.Nil(t, listUpFiles(fsys, "mysql"))
}

func TestConfigNormalize(t *testing.T) {
	sqliteCfg := Config{}
	require.NoError(t, sqliteCfg.Normalize())
	assert.Equal(t, DriverSQLite, sqliteCfg.Driver)
	assert.Equal(t, 1, sqliteCfg.MaxConnections)
	assert.Contains(t, sqliteCfg.DSN(), "file:data/videoshop.db")

	pg := Config{Driver: "Postgres", Host: "db", Name: "shop", User: "u", Password: "p"}
	require.NoError(t, pg.Normalize())
	assert.Equal(t, "5432", pg.Port)
	assert.Equal(t, "disable", pg.SSLMode)
	assert.Equal(t, 5, pg.MaxConnections)
	assert.Equal(t, "db:5432/shop", pg.Target())

	missing := Config{Driver: DriverPostgres}
	assert.Error(t, missing.Normalize())

	bad := Config{Driver: "mysql"}
	assert.Error(t, bad.Normalize())
}
