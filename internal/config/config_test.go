package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "fs", cfg.BlobBackend)
	assert.Equal(t, "/var/lib/flotilla", cfg.DataDir)
	assert.Equal(t, "8000", cfg.TunnelServerPort)
	assert.True(t, cfg.RegistrationEnabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_LISTEN_ADDR", ":9000")
	t.Setenv("DATABASE_URL", "postgres://localhost/flotilla")
	t.Setenv("BLOB_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "flotilla-tls")
	t.Setenv("REGISTRATION_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPListenAddr)
	assert.Equal(t, "postgres://localhost/flotilla", cfg.DatabaseURL)
	assert.Equal(t, "s3", cfg.BlobBackend)
	assert.Equal(t, "flotilla-tls", cfg.S3Bucket)
	assert.False(t, cfg.RegistrationEnabled)
}

func TestLoad_YAMLFileWithEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"http_listen_addr: \":7070\"\ndatabase_url: postgres://file/flotilla\nlog_level: debug\n",
	), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATABASE_URL", "postgres://env/flotilla")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTPListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Environment wins over the file.
	assert.Equal(t, "postgres://env/flotilla", cfg.DatabaseURL)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DatabaseURL:             "postgres://localhost/flotilla",
			BlobBackend:             "fs",
			DataDir:                 "/var/lib/flotilla",
			TunnelServerFingerprint: "SHA256:abc",
		}
	}

	assert.NoError(t, base().Validate("flotilla-api"))

	cfg := base()
	cfg.DatabaseURL = ""
	assert.Error(t, cfg.Validate("flotilla-api"))

	cfg = base()
	cfg.BlobBackend = "s3"
	assert.Error(t, cfg.Validate("flotilla-api"))
	cfg.S3Bucket = "flotilla-tls"
	assert.NoError(t, cfg.Validate("flotilla-api"))

	cfg = base()
	cfg.BlobBackend = "tape"
	assert.Error(t, cfg.Validate("flotilla-api"))

	cfg = base()
	cfg.TunnelServerFingerprint = ""
	assert.Error(t, cfg.Validate("flotilla-api"))
	cfg.TunnelServerKeyFile = "/etc/flotilla/tunnel.pub"
	assert.NoError(t, cfg.Validate("flotilla-api"))
}
