package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gol-logistics/gol-portal/migrations"
)

func TestLoadMigrationsOrdersAndPairs(t *testing.T) {
	fsys := fstest.MapFS{
		"20250302_090000_add_index.up.sql":     {Data: []byte("CREATE INDEX x ON t (a);")},
		"20250301_000000_init_schema.up.sql":   {Data: []byte("CREATE TABLE t (a int);")},
		"20250301_000000_init_schema.down.sql": {Data: []byte("DROP TABLE t;")},
		"README.md":                            {Data: []byte("ignored")},
		"notes.sql":                            {Data: []byte("ignored")},
	}
	got, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "20250301_000000", got[0].Version)
	assert.Equal(t, "init_schema", got[0].Name)
	assert.Equal(t, "DROP TABLE t;", got[0].DownSQL)
	assert.Equal(t, "20250302_090000", got[1].Version)
	assert.Empty(t, got[1].DownSQL)
}

func TestLoadMigrationsRequiresUpFile(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{
		"20250301_000000_orphan.down.sql": {Data: []byte("DROP TABLE t;")},
	})
	require.Error(t, err)
}

func TestEmbeddedSchemaCoversRepositories(t *testing.T) {
	got, err := LoadMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	schema := got[0].UpSQL
	for _, table := range []string{"accounts", "providers", "orders", "service_requests", "job_orders", "pricing_requests", "audit_logs"} {
		assert.Contains(t, schema, "CREATE TABLE "+table+" (", table)
	}
	assert.NotEmpty(t, got[0].DownSQL)
}
