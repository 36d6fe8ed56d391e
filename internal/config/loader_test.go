package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, loaded, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.False(t, loaded)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadReadsYAML(t *testing.T) {
	dir := t.TempDir()
	content := `
server:
  addr: ":9090"
  allowed_origins:
    - "https://catalog.example.com"
database:
  host: db.internal
  port: 6543
  dbname: versions
storage:
  driver: memory
migrations:
  enabled: false
log:
  level: debug
versioning:
  breaking_fields:
    - owner
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	cfg, loaded, err := Load(dir)
	require.NoError(t, err)

	assert.True(t, loaded)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://catalog.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "versions", cfg.Database.DBName)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"owner"}, cfg.BreakingFields)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "env-host")
	t.Setenv("DB_PORT", "7000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, _, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, 7000, cfg.Database.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("storage:\n  driver: mongo\n"), 0o600))

	_, _, err := Load(dir)
	assert.Error(t, err)
}
