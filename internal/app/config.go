package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers     string
	OrderEventsTopic string
	DLQTopic         string

	RestockOnCancel bool

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает базовые настройки: in-memory хранилище,
// HTTP API на :8080 и метрики на :9090.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		OrderEventsTopic:            kafka.TopicOrderEvents,
		DLQTopic:                    kafka.TopicDeadLetterQueue,
		RestockOnCancel:             false,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            100 * time.Millisecond,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 100,
	}
}

// ConfigFromEnv читает конфигурацию из окружения поверх DefaultConfig.
// Если задан SHOP_POSTGRES_DSN, но драйвер не указан явно, выбирается postgres.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("SHOP_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("SHOP_METRICS_ADDR", cfg.MetricsAddr)

	cfg.PostgresDSN = envString("SHOP_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.StorageDriver = strings.ToLower(envString("SHOP_STORAGE_DRIVER", cfg.StorageDriver))
	if os.Getenv("SHOP_STORAGE_DRIVER") == "" && cfg.PostgresDSN != "" {
		cfg.StorageDriver = StorageDriverPostgres
	}
	cfg.PostgresAutoMigrate = envBool("SHOP_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)

	cfg.KafkaBrokers = envString("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.OrderEventsTopic = envString("SHOP_ORDER_EVENTS_TOPIC", cfg.OrderEventsTopic)
	cfg.DLQTopic = envString("SHOP_DLQ_TOPIC", cfg.DLQTopic)

	cfg.RestockOnCancel = envBool("SHOP_RESTOCK_ON_CANCEL", cfg.RestockOnCancel)

	cfg.OutboxPollInterval = envDuration("SHOP_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("SHOP_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("SHOP_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration("SHOP_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)

	cfg.IdempotencyCleanupInterval = envDuration("SHOP_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)
	cfg.IdempotencyCleanupBatchSize = envInt("SHOP_IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize)

	return cfg
}

func envString(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(name string, fallback int) int {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envDuration(name string, fallback time.Duration) time.Duration {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
