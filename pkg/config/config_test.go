package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: text
redis:
  addr: localhost:6379
`), 0o600))

	t.Setenv("RSQL_REDIS_ADDR", "cache:6379")

	v, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cache:6379", v.GetString("redis.addr"), "env overrides the file")
	assert.Equal(t, 32, v.GetInt("compiler.max_depth"))

	cfg := Logger(v)
	assert.Equal(t, slog.LevelDebug, cfg.Level)
	assert.Equal(t, "text", cfg.Format)
}

func TestLoadMissingFile(t *testing.T) {
	v, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "json", Logger(v).Format)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
