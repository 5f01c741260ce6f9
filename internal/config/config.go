package config

import (
	"os"
	"strconv"
	"time"

	"passaro/internal/cache"
	"passaro/internal/database"
	"passaro/internal/external"
	"passaro/internal/messaging"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	// Reconciliation tuning. Polling is the liveness backstop when push is
	// degraded, so the interval is a correctness-relevant constant.
	PollInterval time.Duration
	// Window in which a repeated scan by the same operator is treated as a
	// retry of an already-successful call rather than a denial.
	RedemptionRetryWindow time.Duration

	Database      database.Config
	NATS          messaging.Config
	Valkey        cache.Config
	Elasticsearch ElasticsearchConfig
	Gateway       external.PaymentConfig
	Notifier      external.NotifyConfig
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		PollInterval:          getEnvDuration("RECONCILE_POLL_INTERVAL", 5*time.Second),
		RedemptionRetryWindow: getEnvDuration("REDEMPTION_RETRY_WINDOW", 30*time.Second),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "passaro"),
			Password:           getEnv("DB_PASSWORD", "passaro123"),
			DBName:             getEnv("DB_NAME", "passaro"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "passaro"),
			ClientID:  getEnv("NATS_CLIENT_ID", "passaro-api"),
		},

		Valkey: cache.Config{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: os.Getenv("VALKEY_PASSWORD"),
			StatsTTL: getEnvDuration("VALKEY_STATS_TTL", 30*time.Second),
		},

		Elasticsearch: LoadElasticsearchConfig(),

		Gateway: external.PaymentConfig{
			BaseURL:  getEnv("PAYMENT_GATEWAY_URL", "https://gateway.local/payment-provider"),
			TeamSlug: getEnv("PAYMENT_TEAM_SLUG", ""),
			Password: getEnv("PAYMENT_PASSWORD", ""),
			Timeout:  time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 30)) * time.Second,
		},

		Notifier: external.NotifyConfig{
			BaseURL: getEnv("NOTIFIER_URL", "http://localhost:8090"),
			Timeout: time.Duration(getEnvInt("NOTIFIER_TIMEOUT_SEC", 10)) * time.Second,
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
