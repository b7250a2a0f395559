package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnvOverride(t *testing.T) {
	t.Setenv("BACKOFFICE_DATABASE_DSN", "postgres://localhost:5432/backoffice")
	t.Setenv("BACKOFFICE_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("BACKOFFICE_HTTP_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "backoffice", cfg.App.Name)
	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, "postgres://localhost:5432/backoffice", cfg.Database.DSN)
	assert.Equal(t, int32(20), cfg.Database.MaxConns)
	assert.Equal(t, 8*time.Hour, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("BACKOFFICE_AUTH_JWT_SECRET", "test-secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dsn")
}

func TestAlertRulesFallBackToDefaults(t *testing.T) {
	cfg := &Config{}
	rules := cfg.AlertRules()
	require.NotEmpty(t, rules)
}
