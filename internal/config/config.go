// Package config loads server settings from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"

	// DevSessionSecret is used when no secret is configured outside production.
	DevSessionSecret = "dev-session-secret-change-me"
)

var ErrInsecureSecret = errors.New("SESSION_SECRET must be set in production")

// Config holds settings read once at startup.
type Config struct {
	Port   string
	AppEnv string

	// Session
	SessionSecret string
	SessionTTL    time.Duration
	BcryptCost    int

	// Storage
	StoreBackend string
	MongoURI     string
	MongoDB      string

	// Telemetry
	MQTTBrokerURL string
	MQTTTopic     string
	MQTTClientID  string

	ShareLinkTTL  time.Duration
	PublicBaseURL string

	LoginRateLimitPerMin int
	// TrustProxyHeaders keys the login limiter on X-Forwarded-For / X-Real-IP.
	// Only enable behind a proxy that overwrites them.
	TrustProxyHeaders bool
	LogLevel          log.Level
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Failed to read .env file")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:                 getEnvString("PORT", "8080"),
		AppEnv:               strings.ToLower(getEnvString("APP_ENV", "development")),
		SessionTTL:           getEnvDuration("SESSION_TTL", 24*time.Hour),
		BcryptCost:           getEnvInt("BCRYPT_COST", 10),
		StoreBackend:         strings.ToLower(getEnvString("STORE_BACKEND", BackendMemory)),
		MongoURI:             getEnvString("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:              getEnvString("MONGO_DB", "fleet"),
		MQTTBrokerURL:        os.Getenv("MQTT_BROKER_URL"),
		MQTTTopic:            getEnvString("MQTT_TOPIC", "fleet/vehicles/+/status"),
		MQTTClientID:         getEnvString("MQTT_CLIENT_ID", "fleet-dashboard-api"),
		ShareLinkTTL:         getEnvDuration("SHARE_LINK_TTL", 7*24*time.Hour),
		LoginRateLimitPerMin: getEnvInt("LOGIN_RATE_LIMIT_PER_MIN", 10),
		TrustProxyHeaders:    getEnvBool("TRUST_PROXY_HEADERS", false),
		LogLevel:             log.InfoLevel,
	}

	cfg.PublicBaseURL = strings.TrimRight(getEnvString("PUBLIC_BASE_URL", "http://localhost:"+cfg.Port), "/")

	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		cfg.LogLevel = lvl
	}

	if cfg.StoreBackend != BackendMongo {
		cfg.StoreBackend = BackendMemory
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = os.Getenv("JWT_SECRET")
	}
	if cfg.SessionSecret == "" {
		if cfg.IsProduction() {
			return nil, ErrInsecureSecret
		}
		cfg.SessionSecret = DevSessionSecret
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
