package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsDir(t *testing.T) {
	t.Setenv("MIGRATIONS_DIR", "/custom/migrations")
	assert.Equal(t, "/custom/migrations", migrationsDir())

	t.Setenv("MIGRATIONS_DIR", "")
	assert.Equal(t, "db/migrations", migrationsDir())
}

func TestLoadMigrateConfig_EnvWinsOverFiles(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, ".env"), []byte("DB_DSN=from_file\nMIGRATIONS_DIR=from_file\n"), 0o644))

	t.Setenv("DB_DSN", "from_env")
	t.Setenv("MIGRATIONS_DIR", "")
	t.Chdir(tmp)

	cfg := loadMigrateConfig()

	assert.Equal(t, "from_env", cfg.DSN)
	// empty values set by the runtime still count as set
	assert.Equal(t, "db/migrations", cfg.Dir)
}

func TestDatabaseDSN_Default(t *testing.T) {
	t.Setenv("DB_DSN", "")
	assert.Equal(t, defaultDSN, databaseDSN())
}

func TestCreateRequiresName(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"create"})
	cmd.SetOut(new(nopWriter))
	cmd.SetErr(new(nopWriter))

	assert.Error(t, cmd.Execute())
}

type nopWriter struct{}

func (*nopWriter) Write(p []byte) (int, error) { return len(p), nil }
