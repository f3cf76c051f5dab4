package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, devSigningKey, cfg.Auth.JWTSigningKey)
	assert.Equal(t, "cardforge", cfg.Auth.JWTIssuer)
	assert.False(t, cfg.Auth.SecureCookies)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, int32(3), cfg.Kafka.Partitions)
	assert.Equal(t, int16(1), cfg.Kafka.ReplicationFactor)
	assert.Equal(t, 10, cfg.RateLimit.LoginLimit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"CARDFORGE_ADDR":          ":9090",
		"DATABASE_URL":            "postgres://cardforge@db/cardforge",
		"REDIS_URL":               "redis://cache:6379/0",
		"KAFKA_BROKERS":           "k1:9092,k2:9092",
		"RATE_LIMIT_LOGIN":        "3",
		"RATE_LIMIT_WINDOW":       "30s",
		"AUTH_JWT_SIGNING_KEY":    "s3cret",
		"LOG_LEVEL":               "debug",
		"RESAVE_CONCURRENCY":      "2",
		"AUTH_TRUST_PROXY":        "true",
		"DATABASE_MAX_OPEN_CONNS": "5",
	})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "postgres://cardforge@db/cardforge", cfg.Database.URL)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.RateLimit.LoginLimit)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSigningKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Resave.Concurrency)
	assert.True(t, cfg.Auth.TrustProxy)
	assert.Equal(t, 5, cfg.Database.MaxOpenConns)
}

func TestLoadProduction(t *testing.T) {
	t.Run("requires a signing key", func(t *testing.T) {
		_, err := LoadFrom(map[string]string{"CARDFORGE_ENV": "production"})
		require.ErrorContains(t, err, "AUTH_JWT_SIGNING_KEY")
	})

	t.Run("forces secure cookies", func(t *testing.T) {
		cfg, err := LoadFrom(map[string]string{
			"CARDFORGE_ENV":        "production",
			"AUTH_JWT_SIGNING_KEY": "s3cret",
		})
		require.NoError(t, err)
		assert.True(t, cfg.Auth.SecureCookies)
	})
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := LoadFrom(map[string]string{"RATE_LIMIT_LOGIN": "0"})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"RATE_LIMIT_WINDOW": "soon"})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"KAFKA_AUDIT_PARTITIONS": "0"})
	assert.Error(t, err)
}
