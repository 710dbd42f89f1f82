package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/sanchez314c/agent-chat/config"
	"github.com/sanchez314c/agent-chat/internal/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestVersionArg(t *testing.T) {
	tests := []struct {
		args    []string
		want    int
		wantErr bool
	}{
		{[]string{"2"}, 2, false},
		{[]string{"0"}, 0, false},
		{[]string{"-1"}, 0, true},
		{[]string{"two"}, 0, true},
		{nil, 0, true},
		{[]string{"1", "2"}, 0, true},
	}
	for _, tt := range tests {
		got, err := versionArg(tt.args)
		if tt.wantErr {
			assert.Error(t, err, tt.args)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestWithMigrator(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{Driver: "sqlite", Name: filepath.Join(t.TempDir(), "credentials.db")}

	var out bytes.Buffer
	run := func(fn func(*migration.CLI) error) error {
		return withMigrator(ctx, cfg, zap.NewNop(), func(cli *migration.CLI) error {
			cli.SetOutput(&out)
			return fn(cli)
		})
	}

	require.NoError(t, run(func(cli *migration.CLI) error { return cli.RunUp(ctx) }))

	// the schema survives reopening the file
	out.Reset()
	require.NoError(t, run(func(cli *migration.CLI) error { return cli.RunVersion(ctx) }))
	assert.Equal(t, "schema version 2\n", out.String())

	err := withMigrator(ctx, config.DatabaseConfig{Driver: "oracle"}, zap.NewNop(), func(*migration.CLI) error { return nil })
	assert.Error(t, err)
}
