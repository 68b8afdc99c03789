package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vcherkasov/orders-ms/internal/messaging/kafka"
)

// StorageDriver выбирает реализацию хранилища заказов.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers — список брокеров через запятую; пустая строка отключает Kafka.
	KafkaBrokers        string
	CatalogRequestTopic string
	CatalogReplyTopic   string
	CatalogTimeout      time.Duration
	OrderEventsTopic    string
	OrderEventsDLQTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает базовую конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		CatalogRequestTopic: kafka.TopicCatalogValidate,
		CatalogReplyTopic:   kafka.TopicCatalogReplies,
		CatalogTimeout:      5 * time.Second,
		OrderEventsTopic:    kafka.TopicOrderEvents,
		OrderEventsDLQTopic: kafka.TopicOrderEvents + ".dlq",

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,

		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// LoadConfig собирает конфигурацию из defaults, .env файла и переменных
// окружения с префиксом ORDERS_. Для DSN дополнительно читается DATABASE_URL.
func LoadConfig(logger *log.Entry) Config {
	if logger == nil {
		logger = log.WithField("component", "config")
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).Warn("failed to load .env file")
	}

	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("ORDERS_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("ORDERS_METRICS_ADDR", cfg.MetricsAddr)

	cfg.StorageDriver = StorageDriver(strings.ToLower(envString("ORDERS_STORAGE_DRIVER", string(cfg.StorageDriver))))
	cfg.PostgresDSN = envString("ORDERS_POSTGRES_DSN", envString("DATABASE_URL", cfg.PostgresDSN))
	cfg.PostgresAutoMigrate = envBool(logger, "ORDERS_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)

	cfg.KafkaBrokers = envString("ORDERS_KAFKA_BROKERS", envString("KAFKA_BROKERS", cfg.KafkaBrokers))
	cfg.CatalogRequestTopic = envString("ORDERS_CATALOG_REQUEST_TOPIC", cfg.CatalogRequestTopic)
	cfg.CatalogReplyTopic = envString("ORDERS_CATALOG_REPLY_TOPIC", cfg.CatalogReplyTopic)
	cfg.CatalogTimeout = envDuration(logger, "ORDERS_CATALOG_TIMEOUT", cfg.CatalogTimeout)
	cfg.OrderEventsTopic = envString("ORDERS_ORDER_EVENTS_TOPIC", cfg.OrderEventsTopic)
	cfg.OrderEventsDLQTopic = envString("ORDERS_ORDER_EVENTS_DLQ_TOPIC", cfg.OrderEventsDLQTopic)

	cfg.OutboxPollInterval = envDuration(logger, "ORDERS_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt(logger, "ORDERS_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt(logger, "ORDERS_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration(logger, "ORDERS_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)

	cfg.IdempotencyCleanupInterval = envDuration(logger, "ORDERS_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)
	cfg.IdempotencyCleanupBatchSize = envInt(logger, "ORDERS_IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize)

	return cfg
}

// BrokerList разбирает KafkaBrokers в список адресов.
func (c Config) BrokerList() []string {
	if c.KafkaBrokers == "" {
		return nil
	}

	parts := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			brokers = append(brokers, part)
		}
	}
	return brokers
}

func envString(name, fallback string) string {
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value
	}
	return fallback
}

func envBool(logger *log.Entry, name string, fallback bool) bool {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return fallback
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		logger.WithField("name", name).WithField("value", raw).Warn("invalid bool env value, using default")
		return fallback
	}
	return value
}

func envInt(logger *log.Entry, name string, fallback int) int {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		logger.WithField("name", name).WithField("value", raw).Warn("invalid int env value, using default")
		return fallback
	}
	return value
}

func envDuration(logger *log.Entry, name string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return fallback
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		logger.WithField("name", name).WithField("value", raw).Warn("invalid duration env value, using default")
		return fallback
	}
	return value
}
