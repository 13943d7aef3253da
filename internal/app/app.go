package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/httpapi"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	"github.com/vladislavdragonenkov/shop/internal/service/idempotency"
	"github.com/vladislavdragonenkov/shop/internal/service/orders"
	"github.com/vladislavdragonenkov/shop/internal/service/outbox"
	"github.com/vladislavdragonenkov/shop/internal/version"
)

const (
	pingTimeout     = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Run собирает зависимости и запускает HTTP API, сервер метрик
// и фоновые воркеры. Блокируется до отмены ctx или фатальной ошибки.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeStorage(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	catalogSvc := catalog.NewService(deps.products, deps.categories, logger.WithField("layer", "catalog"))
	ordersSvc := orders.NewService(
		deps.orders,
		deps.products,
		deps.history,
		deps.outbox,
		logger.WithField("layer", "orders"),
		orders.WithMetrics(metrics.NewOrderMetrics()),
		orders.WithRestockOnCancel(cfg.RestockOnCancel),
	)

	// HTTP Health checks
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	// Инициализация Kafka producer (опционально)
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	// Фоновые воркеры: outbox-релей (только при живом Kafka) и
	// очистка протухших ключей идемпотентности.
	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	workersDone := startWorkers(workersCtx, cfg, deps, kafkaProducer, logger)

	api := httpapi.NewApp(catalogSvc, ordersSvc, deps.idempotency, logger.WithField("layer", "http"))
	apiSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(api, healthHandler, logger.WithField("layer", "http")),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		stopWorkers()
		<-workersDone
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		stopWorkers()
		<-workersDone
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startWorkers запускает фоновые воркеры и возвращает канал,
// закрываемый после их завершения.
func startWorkers(ctx context.Context, cfg Config, deps *runtimeDependencies, producer *kafka.Producer, logger *log.Entry) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		cleanup := idempotency.NewCleanupWorker(
			deps.idempotency,
			idempotency.WithLogger(logger.WithField("worker", "idempotency-cleanup")),
			idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
			idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		)
		cleanupDone := make(chan struct{})
		go func() {
			defer close(cleanupDone)
			cleanup.Run(ctx)
		}()

		if producer != nil {
			relay := outbox.NewWorker(
				deps.outbox,
				kafka.NewOutboxPublisher(producer, cfg.OrderEventsTopic),
				outbox.WithLogger(logger.WithField("worker", "outbox")),
				outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.DLQTopic)),
				outbox.WithPollInterval(cfg.OutboxPollInterval),
				outbox.WithBatchSize(cfg.OutboxBatchSize),
				outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
				outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
			)
			relay.Run(ctx)
		} else {
			logger.Info("kafka не настроен, outbox-релей не запускается")
		}

		<-cleanupDone
	}()

	return done
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
