package migration

import (
	"io/fs"
	"testing"

	"github.com/smallbiznis/residence/internal/config"
	"github.com/smallbiznis/residence/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestRunAutoMigratesSQLite(t *testing.T) {
	conn := dbtest.Open(t)
	err := Run(conn, config.Config{DBType: "sqlite", DBAutoMigrate: true}, zap.NewNop())
	require.NoError(t, err)

	for _, table := range []string{"regulations", "regulation_acceptances", "contracts", "consumption_records", "audit_logs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestRunSkipsWithoutAutoMigrate(t *testing.T) {
	conn := dbtest.Open(t)
	require.NoError(t, Run(conn, config.Config{DBType: "sqlite"}, zap.NewNop()))
	assert.False(t, conn.Migrator().HasTable("contracts"))
}
