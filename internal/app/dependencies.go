package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vcherkasov/orders-ms/internal/domain"
	"github.com/vcherkasov/orders-ms/internal/messaging/kafka"
	"github.com/vcherkasov/orders-ms/internal/service/catalog"
	"github.com/vcherkasov/orders-ms/internal/storage/memory"
	"github.com/vcherkasov/orders-ms/internal/storage/postgres"
)

// Dependencies содержит собранные зависимости приложения.
type Dependencies struct {
	Logger *log.Entry

	// Store не nil только для postgres-хранилища.
	Store        *postgres.Store
	Repo         domain.OrderRepository
	TimelineRepo domain.TimelineRepository
	OutboxRepo   domain.OutboxRepository
	IdemRepo     domain.IdempotencyRepository

	Producer      *kafka.Producer
	CatalogClient *kafka.CatalogClient
	Catalog       domain.ProductCatalog
	Publisher     domain.OutboxPublisher
	DLQPublisher  domain.OutboxPublisher
}

// NewDependencies инициализирует хранилище и обвязку Kafka согласно конфигурации.
// Без брокеров используется мок каталога и отключается публикация событий.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	if err := deps.initStorage(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if err := deps.initKafka(cfg, logger); err != nil {
		deps.Close()
		return nil, err
	}

	return deps, nil
}

func (d *Dependencies) initStorage(ctx context.Context, cfg Config, logger *log.Entry) error {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		d.Repo = memory.NewOrderRepository()
		d.TimelineRepo = memory.NewTimelineRepository()
		d.OutboxRepo = memory.NewOutboxRepository()
		d.IdemRepo = memory.NewIdempotencyRepository()
		logger.Info("using in-memory storage")
		return nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return fmt.Errorf("postgres storage requires ORDERS_POSTGRES_DSN")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}

		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return fmt.Errorf("apply migrations: %w", err)
			}
		}

		d.Store = store
		d.Repo = postgres.NewOrderRepository(store)
		d.TimelineRepo = postgres.NewTimelineRepository(store)
		d.OutboxRepo = postgres.NewOutboxRepository(store)
		d.IdemRepo = postgres.NewIdempotencyRepository(store)
		logger.Info("using postgres storage")
		return nil

	default:
		return fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func (d *Dependencies) initKafka(cfg Config, logger *log.Entry) error {
	brokers := cfg.BrokerList()
	if len(brokers) == 0 {
		// NOTE: без брокеров сервис работает на моке каталога; для
		// production задайте ORDERS_KAFKA_BROKERS.
		logger.Warn("kafka brokers are not configured, using catalog mock and disabling event publishing")
		d.Catalog = catalog.NewMockService(catalog.DemoProducts()...)
		return nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	d.Producer = producer
	logger.WithField("brokers", brokers).Info("kafka producer initialized")

	client, err := kafka.NewCatalogClient(producer, kafka.CatalogClientConfig{
		Brokers:      brokers,
		RequestTopic: cfg.CatalogRequestTopic,
		ReplyTopic:   cfg.CatalogReplyTopic,
		Timeout:      cfg.CatalogTimeout,
	})
	if err != nil {
		return fmt.Errorf("create catalog client: %w", err)
	}
	d.CatalogClient = client
	d.Catalog = client

	d.Publisher = kafka.NewOutboxPublisher(producer, cfg.OrderEventsTopic)
	if cfg.OrderEventsDLQTopic != "" {
		d.DLQPublisher = kafka.NewOutboxPublisher(producer, cfg.OrderEventsDLQTopic)
	}

	return nil
}

// Close освобождает все внешние ресурсы в обратном порядке инициализации.
func (d *Dependencies) Close() {
	if d.CatalogClient != nil {
		if err := d.CatalogClient.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close catalog client")
		}
	}
	if d.Producer != nil {
		if err := d.Producer.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			d.Logger.Info("kafka producer closed")
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
