package config

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "APP_ENV", "SESSION_SECRET", "JWT_SECRET", "SESSION_TTL", "BCRYPT_COST",
	"STORE_BACKEND", "MONGO_URI", "MONGO_DB", "MQTT_BROKER_URL", "MQTT_TOPIC",
	"MQTT_CLIENT_ID", "SHARE_LINK_TTL", "PUBLIC_BASE_URL", "LOGIN_RATE_LIMIT_PER_MIN",
	"LOG_LEVEL", "TRUST_PROXY_HEADERS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, DevSessionSecret, cfg.SessionSecret)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, "fleet", cfg.MongoDB)
	assert.Empty(t, cfg.MQTTBrokerURL)
	assert.Equal(t, "fleet/vehicles/+/status", cfg.MQTTTopic)
	assert.Equal(t, 7*24*time.Hour, cfg.ShareLinkTTL)
	assert.Equal(t, "http://localhost:8080", cfg.PublicBaseURL)
	assert.Equal(t, 10, cfg.LoginRateLimitPerMin)
	assert.False(t, cfg.TrustProxyHeaders)
	assert.Equal(t, log.InfoLevel, cfg.LogLevel)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("STORE_BACKEND", "Mongo")
	t.Setenv("PUBLIC_BASE_URL", "https://fleet.example.com/")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MQTT_BROKER_URL", "tcp://localhost:1883")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, BackendMongo, cfg.StoreBackend)
	assert.Equal(t, "https://fleet.example.com", cfg.PublicBaseURL)
	assert.Equal(t, log.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBrokerURL)
	assert.True(t, cfg.TrustProxyHeaders)
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_TTL", "forever")
	t.Setenv("BCRYPT_COST", "-3")
	t.Setenv("LOGIN_RATE_LIMIT_PER_MIN", "many")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("TRUST_PROXY_HEADERS", "maybe")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 10, cfg.LoginRateLimitPerMin)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.False(t, cfg.TrustProxyHeaders)
	assert.Equal(t, log.InfoLevel, cfg.LogLevel)
}

func TestFromEnv_SessionSecret(t *testing.T) {
	t.Run("jwt secret fallback", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("JWT_SECRET", "legacy")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, "legacy", cfg.SessionSecret)
	})

	t.Run("session secret wins", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("JWT_SECRET", "legacy")
		t.Setenv("SESSION_SECRET", "primary")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, "primary", cfg.SessionSecret)
	})

	t.Run("missing in production", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("APP_ENV", "production")
		_, err := FromEnv()
		assert.ErrorIs(t, err, ErrInsecureSecret)
	})

	t.Run("set in production", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("APP_ENV", "production")
		t.Setenv("SESSION_SECRET", "s3cret")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})
}
