package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courtbook/internal/api"
	"courtbook/internal/booking"
	"courtbook/internal/catalog"
	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/events"
	"courtbook/internal/health"
	"courtbook/internal/lock"
	"courtbook/internal/metrics"
	"courtbook/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv(config.EnvPath))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	if cfg.Backup.Enabled {
		go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)
	}

	var rdb *redis.Client
	var locker lock.Locker
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL(), cfg.LockWait(), logger)
		logger.Info().Str("address", cfg.Redis.Address).Msg("using redis lock")
	} else {
		locker = lock.NewKeyedMutex(cfg.LockWait())
	}

	resources := &catalog.Catalog{}
	if err := catalog.Watch(ctx, resources, cfg.Catalog.Path, cfg.CatalogReload(), logger); err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Catalog.Path).Msg("load catalog error")
	}
	logger.Info().Int("resources", resources.Len()).Msg("catalog loaded")

	bus := events.NewBus(logger)
	bus.SubscribeAll("log", events.LogSink(logger.With().Str("component", "notifier").Logger()))
	if cfg.AMQP.URL != "" {
		publisher, err := events.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect rabbitmq error")
		}
		defer publisher.Close()
		bus.SubscribeAll("amqp", publisher.Handle)
	}
	queue := events.NewQueue(bus, events.DefaultQueueSize, logger)
	go queue.Run(ctx)

	manager := booking.NewManager(booking.Deps{
		Catalog:    resources,
		Discounts:  resources,
		Store:      store.NewSQLiteStore(db.DB, loc),
		Locker:     locker,
		Notifier:   queue,
		Authorizer: booking.NewRoleAuthorizer(cfg.Managers),
	}, booking.Options{
		MinDuration:        cfg.MinDuration(),
		BillingGranularity: cfg.BillingGranularity(),
		SlotGranularity:    cfg.SlotGranularity(),
		Location:           loc,
	}, logger)
	go manager.RunCompletion(ctx, cfg.CompletionSweep())

	checker := health.NewChecker(time.Second, append([]health.Check{health.SQLCheck("db", db)}, health.RedisCheck(rdb)...)...)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go serveHTTP(ctx, "health", fmt.Sprintf(":%d", cfg.Monitoring.HealthCheckPort), checker.Handler(), &logger)

	if cfg.GRPC.Addr != "" {
		go serveGRPC(ctx, cfg.GRPC.Addr, checker, &logger)
	}

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go serveHTTP(ctx, "metrics", fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort), mux, &logger)
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.NewHandler(manager, logger), api.RouterConfig{
		RateLimit: cfg.HTTP.RateLimit,
		RateBurst: cfg.HTTP.RateBurst,
	})

	logger.Info().Str("addr", cfg.HTTP.Addr).Str("timezone", loc.String()).Msg("courtbook started")
	serveHTTP(ctx, "api", cfg.HTTP.Addr, router, &logger)
	logger.Info().Msg("courtbook stopped")
}

func serveHTTP(ctx context.Context, name, addr string, handler http.Handler, logger *zerolog.Logger) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("http server error")
	}
}

func serveGRPC(ctx context.Context, addr string, checker *health.Checker, logger *zerolog.Logger) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error().Err(err).Str("addr", addr).Msg("grpc listen error")
		return
	}

	srv, hs := health.NewGRPCServer()
	go checker.Sync(ctx, hs, 5*time.Second, *logger)
	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	logger.Info().Str("addr", addr).Msg("grpc health started")
	if err := srv.Serve(lis); err != nil {
		logger.Error().Err(err).Msg("grpc server error")
	}
}
