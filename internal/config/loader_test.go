package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, Default().Addr, cfg.Addr)
	assert.Equal(t, 30*time.Minute, cfg.SilenceWindow)
	assert.True(t, cfg.WelcomeMessage)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "default config should be written on first load")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":7000\"\ndatabase_path: file.db\n"), 0o600))

	t.Setenv("SUPPORTCHAT_ADDR", ":9000")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "file.db", cfg.DatabasePath)
}

func TestUpdateFromKeepsZeroValues(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":1234", RedisAddr: "localhost:6379"})

	assert.Equal(t, ":1234", cfg.Addr)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, Default().DatabasePath, cfg.DatabasePath)
	assert.Equal(t, Default().MaxUploadBytes, cfg.MaxUploadBytes)
}
