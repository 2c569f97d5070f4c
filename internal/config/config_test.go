package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, int64(1<<20), cfg.Security.MaxRequestBodySize)
	assert.True(t, cfg.Features.AuditLog)
	assert.False(t, cfg.Features.ConsistencyWarnings)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(path, []byte(`{
		"server": {"port": "9090"},
		"logging": {"level": "debug", "format": "console"},
		"cache": {"backend": "memory", "ttl": 60}
	}`), 0o600)
	require.NoError(t, err)

	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 60, cfg.Cache.TTL)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisAddr = ""
	assert.Error(t, cfg.Validate(), "redis backend needs an address")

	cfg = base()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Endpoint = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.RateLimit.Rate = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Server.CertFile = "cert.pem"
	assert.Error(t, cfg.Validate(), "cert without key")
}
