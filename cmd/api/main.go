package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shareit/internal/api"
	"shareit/internal/clock"
	"shareit/internal/config"
	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/events"
	"shareit/internal/logging"
	"shareit/internal/metrics"
	"shareit/internal/repository"
	"shareit/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	quota := initQuota(ctx, redisClient, &logger)

	eventBus := initEventBus(cfg, &logger)

	clk := clock.Real{}
	svc := api.Services{
		Users:    service.NewUserService(db, logging.Component(&logger, "user-service")),
		Items:    service.NewItemService(db, db, db, db, clk, logging.Component(&logger, "item-service")),
		Bookings: service.NewBookingService(db, db, clk, eventBus, logging.Component(&logger, "booking-service")),
		Quota:    quota,
		DB:       db,
	}
	httpServer := api.NewHTTPServer(cfg.API, cfg.Booking, svc, clk, logging.Component(&logger, "http"))

	startMetrics(ctx, cfg, &logger)
	startBackups(ctx, cfg, db, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, quota falls back to memory")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	// клиент оставляем: failover сам вернется на Redis, когда тот поднимется
	return client
}

// initQuota собирает хранилище квоты: Redis с резервом в памяти или только память
func initQuota(ctx context.Context, client *redis.Client, logger *zerolog.Logger) domain.QuotaRepository {
	memory := repository.NewMemoryQuotaRepository()
	go pruneQuota(ctx, memory, logger)

	if client == nil {
		logger.Info().Msg("redis not configured, booking quota kept in memory")
		return memory
	}
	return repository.NewFailoverQuotaRepository(
		repository.NewRedisQuotaRepository(client),
		memory,
		logging.Component(logger, "quota"),
	)
}

func pruneQuota(ctx context.Context, memory *repository.MemoryQuotaRepository, logger *zerolog.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := memory.Prune(); n > 0 {
				logger.Debug().Int("removed", n).Msg("pruned expired quota windows")
			}
		}
	}
}

func initEventBus(cfg *config.Config, logger *zerolog.Logger) *events.EventBus {
	bus := events.NewEventBus()
	eventLogger := logging.Component(logger, "events")

	for _, eventType := range events.BookingEventTypes {
		bus.Subscribe(eventType, func(e *events.Event) error {
			payload, err := e.DecodeBooking()
			if err != nil {
				return err
			}
			eventLogger.Info().
				Str("type", e.Type).
				Int64("booking_id", payload.BookingID).
				Int64("item_id", payload.ItemID).
				Int64("booker_id", payload.BookerID).
				Str("status", string(payload.Status)).
				Msg("booking event")
			return nil
		})
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.ObserveEvents(bus)
	}
	return bus
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startBackups(ctx context.Context, cfg *config.Config, db *database.DB, logger *zerolog.Logger) {
	if !cfg.Backup.Enabled {
		return
	}
	backups := database.NewBackupService(db, cfg.Backup, logger)
	backups.OnResult(metrics.IncBackup)
	go backups.Start(ctx)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
