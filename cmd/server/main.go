// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages; everything here is explicit
// construction so tests can build isolated instances of the same pieces.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrLoydHD/eShop/internal/idempotency"
	idemmemory "github.com/MrLoydHD/eShop/internal/idempotency/store/memory"
	idempostgres "github.com/MrLoydHD/eShop/internal/idempotency/store/postgres"
	idemredis "github.com/MrLoydHD/eShop/internal/idempotency/store/redis"
	"github.com/MrLoydHD/eShop/internal/masking"
	"github.com/MrLoydHD/eShop/internal/ordering"
	"github.com/MrLoydHD/eShop/internal/ordering/commands"
	orderpostgres "github.com/MrLoydHD/eShop/internal/ordering/store/postgres"
	"github.com/MrLoydHD/eShop/internal/platform/config"
	"github.com/MrLoydHD/eShop/internal/platform/logging"
	platformredis "github.com/MrLoydHD/eShop/internal/platform/redis"
	"github.com/MrLoydHD/eShop/internal/telemetry"
	"github.com/MrLoydHD/eShop/internal/telemetry/kafkaexport"
	"github.com/MrLoydHD/eShop/internal/telemetry/otelexport"
	httptransport "github.com/MrLoydHD/eShop/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	policy, err := masking.LoadPolicy(cfg.MaskingRulesPath)
	if err != nil {
		slog.Error("load masking policy", "error", err)
		os.Exit(1)
	}
	sanitizer := masking.NewSanitizer(policy)
	logger := logging.New(slog.LevelInfo, sanitizer)

	promRegistry := prometheus.NewRegistry()
	pipeline := telemetry.NewPipelineMetrics(promRegistry)

	exporter, closeExporter, err := buildExporter(cfg, logger)
	if err != nil {
		logger.Error("build span exporter", "error", err)
		os.Exit(1)
	}
	defer closeExporter()

	registry, err := telemetry.New(telemetry.Config{
		Sanitizer:      sanitizer,
		Exporter:       exporter,
		MetricsBackend: otelexport.NewMetricsCollector(otel.GetMeterProvider().Meter("eshop")),
		Pipeline:       pipeline,
		Logger:         logger,
		BufferCapacity: cfg.TelemetryBufferCapacity,
		BatchSize:      cfg.TelemetryBatchSize,
		FlushInterval:  cfg.TelemetryFlushInterval,
	})
	if err != nil {
		logger.Error("build telemetry registry", "error", err)
		os.Exit(1)
	}

	requestStore, orderStore, closeStores, err := buildStores(ctx, cfg)
	if err != nil {
		logger.Error("build stores", "error", err)
		os.Exit(1)
	}
	defer closeStores()

	guard := idempotency.New(requestStore, idempotency.WithWait(cfg.IdempotencyWait, cfg.IdempotencyPoll))
	orders := ordering.NewService(orderStore, registry, logger)
	createOrder := commands.NewIdentified[ordering.CreateOrderCommand, ordering.CreateOrderResult](
		guard, orders, logger,
		commands.WithCommandType[ordering.CreateOrderResult]("CreateOrderCommand"),
	)

	handler := httptransport.NewHandler(createOrder, orders, logger)
	router := httptransport.NewRouter(handler, promRegistry)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		logger.Info("starting eshop core", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		err := registry.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// buildExporter picks the span sink: Kafka when brokers are configured,
// otherwise the sanitized structured logger.
func buildExporter(cfg config.Config, logger *slog.Logger) (telemetry.Exporter, func(), error) {
	if len(cfg.KafkaBrokers) > 0 {
		exporter, err := kafkaexport.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return exporter, exporter.Close, nil
	}
	return telemetry.NewLoggingExporter(logger), func() {}, nil
}

// buildStores selects the persistence backends: postgres when configured,
// then redis for the request registry, then memory for local runs.
func buildStores(ctx context.Context, cfg config.Config) (idempotency.Store, ordering.OrderStore, func(), error) {
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, nil, err
		}
		requestStore := idempostgres.New(pool)
		if err := requestStore.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		orderStore := orderpostgres.New(pool)
		if err := orderStore.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return requestStore, orderStore, pool.Close, nil
	}

	if cfg.RedisURL != "" {
		client, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		// Orders stay in memory here; the registry is what must survive
		// retries arriving at another replica.
		return idemredis.New(client.Client), ordering.NewMemoryOrderStore(), func() { _ = client.Close() }, nil
	}

	return idemmemory.New(), ordering.NewMemoryOrderStore(), func() {}, nil
}
