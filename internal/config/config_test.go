package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save current env and restore later
	origHost := os.Getenv("DB_HOST")
	defer os.Setenv("DB_HOST", origHost)

	os.Setenv("DISPATCH_API_KEY", "test-key")
	defer os.Unsetenv("DISPATCH_API_KEY")

	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_MAX_OPEN_CONNS", "20")
	os.Setenv("MINIO_USE_SSL", "true")
	os.Setenv("DISPATCH_REQUEST_TIMEOUT", "10s")
	defer os.Unsetenv("DB_MAX_OPEN_CONNS")
	defer os.Unsetenv("MINIO_USE_SSL")
	defer os.Unsetenv("DISPATCH_REQUEST_TIMEOUT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, "test-key", cfg.Dispatch.APIKey)
	assert.Equal(t, "10s", cfg.Dispatch.RequestTimeout.String())
	assert.Equal(t, 4, cfg.Worker.Consumers)
}

func TestLoadDefaults(t *testing.T) {
	os.Setenv("DISPATCH_API_KEY", "test-key")
	defer os.Unsetenv("DISPATCH_API_KEY")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Dispatch.MaxAttempts)
	assert.Equal(t, "Docsend/1.0", cfg.Dispatch.UserAgent)
}

func TestLoadMissingRequired(t *testing.T) {
	orig := os.Getenv("DISPATCH_API_KEY")
	os.Unsetenv("DISPATCH_API_KEY")
	defer os.Setenv("DISPATCH_API_KEY", orig)

	_, err := Load()
	assert.Error(t, err)
}
