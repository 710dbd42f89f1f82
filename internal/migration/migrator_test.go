package migration

import (
	"bytes"
	"context"
	"testing"

	"github.com/sanchez314c/agent-chat/config"
	"github.com/sanchez314c/agent-chat/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		input    string
		expected Dialect
		wantErr  bool
	}{
		{"postgres", DialectPostgres, false},
		{"postgresql", DialectPostgres, false},
		{"pg", DialectPostgres, false},
		{"mysql", DialectMySQL, false},
		{"mariadb", DialectMySQL, false},
		{"sqlite", DialectSQLite, false},
		{"sqlite3", DialectSQLite, false},
		{"POSTGRES", DialectPostgres, false},
		{"oracle", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDialect(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAvailable(t *testing.T) {
	for _, d := range []Dialect{DialectPostgres, DialectMySQL, DialectSQLite} {
		t.Run(string(d), func(t *testing.T) {
			files, err := available(d)
			require.NoError(t, err)
			require.Len(t, files, 2)
			assert.Equal(t, migrationFile{version: 1, name: "create_provider_credentials"}, files[0])
			assert.Equal(t, uint(2), files[1].version)
		})
	}

	_, err := available(Dialect("oracle"))
	assert.Error(t, err)
}

func TestNew_NilHandle(t *testing.T) {
	_, err := New(context.Background(), nil, DialectSQLite)
	assert.Error(t, err)
}

func openSQLite(t *testing.T) *database.PoolManager {
	t.Helper()
	pool, err := database.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		Name:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func newSQLiteMigrator(t *testing.T, pool *database.PoolManager) *Migrator {
	t.Helper()
	sqlDB, err := pool.DB().DB()
	require.NoError(t, err)
	m, err := New(context.Background(), sqlDB, DialectSQLite, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMigrator_SQLite(t *testing.T) {
	ctx := context.Background()
	pool := openSQLite(t)
	m := newSQLiteMigrator(t, pool)

	version, dirty, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, m.Up(ctx))
	// a second run is a no-op
	require.NoError(t, m.Up(ctx))

	version, _, err = m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.True(t, pool.DB().Migrator().HasTable("provider_credentials"))
	assert.True(t, pool.DB().Migrator().HasColumn("provider_credentials", "created_at"))

	info, err := m.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, Info{CurrentVersion: 2, TotalMigrations: 2, AppliedMigrations: 2}, *info)

	require.NoError(t, m.Down(ctx))
	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Applied)
	assert.False(t, statuses[1].Applied)
	assert.False(t, pool.DB().Migrator().HasColumn("provider_credentials", "created_at"))

	require.NoError(t, m.Goto(ctx, 2))
	require.NoError(t, m.DownAll(ctx))
	assert.False(t, pool.DB().Migrator().HasTable("provider_credentials"))

	require.NoError(t, m.Steps(ctx, 1))
	version, _, err = m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	// closing the migrator leaves the pool usable
	require.NoError(t, m.Close())
	assert.NoError(t, pool.Ping(ctx))
}

func TestMigrator_CancelledContext(t *testing.T) {
	m := newSQLiteMigrator(t, openSQLite(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Up(ctx), context.Canceled)
}

func TestCLI_Output(t *testing.T) {
	ctx := context.Background()
	m := newSQLiteMigrator(t, openSQLite(t))
	cli := NewCLI(m)
	var out bytes.Buffer
	cli.SetOutput(&out)

	require.NoError(t, cli.RunVersion(ctx))
	assert.Equal(t, "schema version none\n", out.String())

	out.Reset()
	require.NoError(t, cli.RunUp(ctx))
	assert.Equal(t, "applying pending migrations...\nup to date: schema version 2\n", out.String())

	out.Reset()
	require.NoError(t, cli.RunStatus(ctx))
	assert.Regexp(t, `000001\s+create_provider_credentials\s+applied`, out.String())
	assert.Contains(t, out.String(), "2 migrations, 2 applied, 0 pending")

	out.Reset()
	require.NoError(t, cli.RunDown(ctx))
	assert.Contains(t, out.String(), "rolled back: schema version 1")

	out.Reset()
	require.NoError(t, cli.RunStatus(ctx))
	assert.Regexp(t, `000002\s+add_credential_created_at\s+pending`, out.String())

	out.Reset()
	require.NoError(t, cli.RunForce(ctx, 1))
	assert.Contains(t, out.String(), "forced: schema version 1")

	out.Reset()
	require.NoError(t, cli.RunDownAll(ctx))
	assert.Contains(t, out.String(), "schema removed: schema version none")
}
