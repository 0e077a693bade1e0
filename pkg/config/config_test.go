package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	wd, _ := os.Getwd()
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, Load())
	cfg := GlobalConfig
	require.NotNil(t, cfg)

	assert.Equal(t, ":7072", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, 100, cfg.HistoryLimit)
	assert.Equal(t, "memory", cfg.ChangeFeed.Driver)
	assert.Equal(t, "lingrelay:changes:", cfg.ChangeFeed.Prefix)
	assert.Equal(t, 24*time.Hour, cfg.JWTAccessTTL)
	assert.Equal(t, time.Minute, cfg.AuthCacheTTL)
	assert.Contains(t, cfg.JWTSecret, "default-secret-key-change-in-production-")
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Daily)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ADDR", ":9000")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("HISTORY_LIMIT", "25")
	t.Setenv("AUTH_CACHE_TTL", "30s")
	t.Setenv("JWT_ACCESS_TTL", "garbage")
	t.Setenv("CHANGEFEED_DRIVER", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_DAILY", "false")

	require.NoError(t, Load())
	cfg := GlobalConfig

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 25, cfg.HistoryLimit)
	assert.Equal(t, 30*time.Second, cfg.AuthCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.JWTAccessTTL)
	assert.Equal(t, "redis", cfg.ChangeFeed.Driver)
	assert.Equal(t, 3, cfg.ChangeFeed.RedisDB)
	assert.False(t, cfg.Log.Daily)
}

func TestLoad_ProbeScheduleOff(t *testing.T) {
	t.Setenv("PROBE_SCHEDULE", "off")
	require.NoError(t, Load())
	assert.Empty(t, GlobalConfig.ProbeSchedule)

	t.Setenv("PROBE_SCHEDULE", "*/5 * * * *")
	require.NoError(t, Load())
	assert.Equal(t, "*/5 * * * *", GlobalConfig.ProbeSchedule)
}

func TestLoad_DefaultSecretIsRandom(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, Load())
	first := GlobalConfig.JWTSecret
	require.NoError(t, Load())

	assert.NotEqual(t, first, GlobalConfig.JWTSecret)
	assert.Len(t, first, len("default-secret-key-change-in-production-")+16)
}
