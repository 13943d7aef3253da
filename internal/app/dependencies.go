package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
)

// runtimeDependencies содержит репозитории и служебные хуки,
// собранные под выбранный драйвер хранилища.
type runtimeDependencies struct {
	products    domain.ProductRepository
	categories  domain.CategoryRepository
	orders      domain.OrderRepository
	history     domain.HistoryRepository
	outbox      domain.OutboxRepository
	idempotency domain.IdempotencyRepository

	storageChecker healthcheck.Checker
	closeStorage   func() error
}

// initRuntimeDependencies создаёт репозитории согласно cfg.StorageDriver.
// Для postgres при включённом PostgresAutoMigrate применяются миграции.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		store := memory.NewStore()
		logger.Info("используется in-memory хранилище")
		return &runtimeDependencies{
			products:    store.Products(),
			categories:  store.Categories(),
			orders:      store.Orders(),
			history:     memory.NewHistoryRepository(),
			outbox:      memory.NewOutboxRepository(),
			idempotency: memory.NewIdempotencyRepository(),
			storageChecker: healthcheck.NewSimpleChecker("storage", func() error {
				return nil
			}),
			closeStorage: func() error { return nil },
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("storage driver %q requires a postgres DSN", cfg.StorageDriver)
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		logger.Info("используется postgres хранилище")
		return &runtimeDependencies{
			products:    postgres.NewProductRepository(store),
			categories:  postgres.NewCategoryRepository(store),
			orders:      postgres.NewOrderRepository(store),
			history:     postgres.NewHistoryRepository(store),
			outbox:      postgres.NewOutboxRepository(store),
			idempotency: postgres.NewIdempotencyRepository(store),
			storageChecker: healthcheck.NewSimpleChecker("storage", func() error {
				pingCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
				defer cancel()
				return store.Ping(pingCtx)
			}),
			closeStorage: store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.StorageDriver)
	}
}
