package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 10, cfg.Postgres.MaxOpen)
	assert.Equal(t, 30*time.Minute, cfg.Postgres.ConnMaxLifetime)
	assert.Equal(t, 50, cfg.Audit.PageSize)
	assert.Equal(t, 16, cfg.Password.GeneratedLength)
	assert.Equal(t, "ops/migrations/sql", cfg.Migrations.Dir)
}

func TestLoadEnvOverridesWithoutConfigFile(t *testing.T) {
	t.Setenv("PLK_POSTGRES_DSN", "postgres://env-only")
	t.Setenv("PLK_ENVIRONMENT", "production")
	t.Setenv("PLK_AUDIT_PAGESIZE", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-only", cfg.Postgres.DSN,
		"env-only DSN must survive without a config file entry")
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 25, cfg.Audit.PageSize)
}
