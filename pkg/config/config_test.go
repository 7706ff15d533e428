package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("ohdear-panel-test-missing")
	require.NoError(t, err)

	assert.Equal(t, "admin", cfg.Panel.CPTrigger)
	assert.Equal(t, "ohdear", cfg.Panel.PluginHandle)
	assert.Equal(t, "https://ohdear.app/api", cfg.OhDear.BaseURL)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"*"}, cfg.Auth.RolePermissions["admin"])
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("OHDEAR_PANEL_PANEL_CP_TRIGGER", "cms")
	t.Setenv("OHDEAR_PANEL_OHDEAR_TIMEOUT", "3")

	cfg, err := Load("ohdear-panel-test-missing")
	require.NoError(t, err)

	assert.Equal(t, "cms", cfg.Panel.CPTrigger)
	assert.Equal(t, 3, cfg.OhDear.Timeout)
	assert.Equal(t, "3s", cfg.OhDear.RequestTimeout().String())
}

func TestRedisConfig_Addr(t *testing.T) {
	c := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", c.Addr())
	assert.True(t, c.Enabled())
}
