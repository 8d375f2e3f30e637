package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.Store)
	assert.EqualValues(t, 500, cfg.ServiceFeeCents)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, "quickcourt.reservations", cfg.RabbitExchange)
	assert.Equal(t, "localhost:6379", cfg.Redis.address())
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 60, cfg.RateLimit.Capacity)
	assert.Equal(t, map[string]bool{"GET": true}, cfg.Cache.MethodSet())
	assert.False(t, cfg.IsProduction())
}

func TestParse_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Parse()
	assert.Error(t, err)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE", " Postgres ")
	t.Setenv("DB_USER", "qc")
	t.Setenv("CANCEL_CUTOFF", "2h")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("CACHE_METHODS", "get,head")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, 2*time.Hour, cfg.CancelCutoff)
	assert.Equal(t, "cache:6380", cfg.Redis.address())
	assert.Equal(t, 5, cfg.RateLimit.Capacity)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.RefillInterval)
	assert.InDelta(t, 0.5, cfg.RateLimit.PerSecond(), 1e-9)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.TTL)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Cache.MethodSet())
}

func TestParse_Rejects(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	t.Setenv("STORE", "sqlite")
	_, err := Parse()
	assert.ErrorContains(t, err, "unknown STORE")

	t.Setenv("STORE", "mysql")
	_, err = Parse()
	assert.ErrorContains(t, err, "DB_USER")

	t.Setenv("STORE", "memory")
	t.Setenv("SERVICE_FEE_CENTS", "-1")
	_, err = Parse()
	assert.Error(t, err)
}

func TestRateLimitNormalize(t *testing.T) {
	c := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 0, TTL: time.Second}
	c.normalize()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, time.Second, c.RefillInterval)
	assert.Equal(t, 5*time.Second, c.TTL)
}
