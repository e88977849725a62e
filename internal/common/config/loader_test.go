package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
catalog:
  elasticsearch:
    addresses: ["http://localhost:9200"]
auth:
  mode: header
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "/search/catalog/internal", cfg.HTTP.BasePath)
	assert.Equal(t, []string{"catalog"}, cfg.Catalog.DefaultSources)
	assert.Equal(t, "workspaces", cfg.Catalog.WorkspaceIndex)
	assert.Equal(t, "email", cfg.Auth.IdentityClaim)
	assert.Equal(t, DriverSES, cfg.Notifications.Driver)
	assert.Equal(t, 100, cfg.Notifications.QueueSize)
	assert.Equal(t, 30000, cfg.Notifications.NotFoundCacheTTL)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ES_HOST", "http://es.internal:9200")
	t.Setenv("LOGGING_LEVEL", "debug")
	path := writeConfig(t, `
catalog:
  elasticsearch:
    url: ${ES_HOST}
auth:
  mode: header
logging:
  level: info
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://es.internal:9200"}, cfg.Catalog.Elasticsearch.GetAddresses())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.Catalog.Elasticsearch.Addresses = []string{"http://localhost:9200"}
		cfg.Auth.Mode = AuthModeHeader
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing elasticsearch",
			mutate:  func(c *Config) { c.Catalog.Elasticsearch.Addresses = nil },
			wantErr: "catalog.elasticsearch",
		},
		{
			name:    "keycloak without url",
			mutate:  func(c *Config) { c.Auth.Mode = AuthModeKeycloak },
			wantErr: "auth.keycloak.url",
		},
		{
			name:    "bad identity claim",
			mutate:  func(c *Config) { c.Auth.IdentityClaim = "phone" },
			wantErr: "identity_claim",
		},
		{
			name: "ses without sender",
			mutate: func(c *Config) {
				c.Notifications.Enabled = true
			},
			wantErr: "from_email",
		},
		{
			name: "camunda without broker",
			mutate: func(c *Config) {
				c.Notifications.Enabled = true
				c.Notifications.Driver = DriverCamunda
			},
			wantErr: "camunda.broker_address",
		},
		{
			name: "cache without redis",
			mutate: func(c *Config) {
				c.Notifications.Enabled = true
				c.Notifications.Driver = DriverLog
				c.Notifications.CacheTTL = 1000
			},
			wantErr: "database.redis.address",
		},
		{
			name: "audit without postgres",
			mutate: func(c *Config) {
				c.Notifications.Enabled = true
				c.Notifications.Driver = DriverLog
				c.Notifications.AuditEnabled = true
			},
			wantErr: "database.postgres.host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
