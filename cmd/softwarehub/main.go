package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/softwarehub/pkg/api"
	"github.com/platinummonkey/softwarehub/pkg/async"
	"github.com/platinummonkey/softwarehub/pkg/audit"
	"github.com/platinummonkey/softwarehub/pkg/auth"
	"github.com/platinummonkey/softwarehub/pkg/config"
	"github.com/platinummonkey/softwarehub/pkg/httputil"
	"github.com/platinummonkey/softwarehub/pkg/middleware"
	"github.com/platinummonkey/softwarehub/pkg/observability"
	"github.com/platinummonkey/softwarehub/pkg/software"
	"github.com/platinummonkey/softwarehub/pkg/storage"
	"github.com/platinummonkey/softwarehub/pkg/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "softwarehub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).WithField("service", "softwarehub")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otel, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	storageCfg := cfg.Storage
	memory := storageCfg.Driver == storage.DriverMemory
	if memory {
		// users and softwares still need SQL; only the audit log lives in the process
		storageCfg.Driver = storage.DriverSQLite
		storageCfg.DSN = ":memory:"
		storageCfg.AutoMigrate = true
	}
	db, err := storage.Open(ctx, storageCfg)
	if err != nil {
		return err
	}
	logger.WithField("driver", cfg.Storage.Driver).Info("database ready")

	var redisClient *redis.Client
	if cfg.Storage.RedisEnabled() {
		redisClient, err = storage.NewRedisClient(ctx, cfg.Storage)
		if err != nil {
			// Redis only backs caches and rate limiting
			logger.WithError(err).Warn("redis unavailable, continuing without it")
			redisClient = nil
		}
	}

	loc, err := cfg.Audit.Location()
	if err != nil {
		return err
	}

	var auditStore audit.Store
	if memory {
		auditStore = audit.NewMemoryStore()
	} else {
		sqlStore, err := audit.NewSQLStore(db, metrics)
		if err != nil {
			return err
		}
		auditStore = sqlStore
	}

	var statsCache *audit.RedisStatsCache
	writerOpts := []audit.WriterOption{
		audit.WithLogger(logger),
		audit.WithMetrics(metrics),
		audit.WithBreaker(audit.NewBreaker(cfg.Audit.BreakerThreshold, cfg.Audit.BreakerCooldown)),
		audit.WithWriteTimeout(cfg.Audit.WriteTimeout),
	}
	if redisClient != nil && cfg.Audit.StatsCacheEnabled() {
		statsCache = audit.NewRedisStatsCache(redisClient, cfg.Audit.StatsCacheTTL, loc)
		writerOpts = append(writerOpts, audit.WithInvalidator(statsCache))
	}

	writers := []audit.Writer{audit.NewStoreWriter(auditStore, writerOpts...)}
	var fileWriter *audit.FileWriter
	if cfg.Audit.FileDir != "" {
		fileWriter, err = audit.NewFileWriter(audit.FileWriterConfig{
			Dir:      cfg.Audit.FileDir,
			MaxBytes: cfg.Audit.FileMaxBytes,
			MaxFiles: cfg.Audit.FileMaxFiles,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		writers = append(writers, fileWriter)
	}

	var (
		writer      audit.Writer = audit.NewMultiWriter(writers...)
		asyncWriter *audit.AsyncWriter
	)
	if cfg.Audit.Async {
		asyncWriter = audit.NewAsyncWriter(ctx, writer, audit.AsyncConfig{
			Workers:   cfg.Audit.AsyncWorkers,
			QueueSize: cfg.Audit.AsyncWorkers * 256,
			Logger:    logger,
			Metrics:   metrics,
		})
		writer = asyncWriter
	}

	userStore := users.NewStore(db, metrics)
	directory := audit.NewCachedDirectory(userStore, cfg.Audit.ActorCacheSize, cfg.Audit.ActorCacheTTL, metrics)
	userService := users.NewService(userStore, auth.NewPasswordHasher(cfg.Auth.BcryptCost), writer,
		users.WithActorCache(directory), users.WithLogger(logger))
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	engineCfg := audit.EngineConfig{
		MaxLimit:      cfg.Audit.MaxPageSize,
		ExportMaxRows: cfg.Audit.ExportMaxRows,
		Location:      loc,
		Directory:     directory,
		Logger:        logger,
		Metrics:       metrics,
	}
	if statsCache != nil {
		engineCfg.Cache = statsCache
	}
	engine := audit.NewQueryEngine(auditStore, engineCfg)

	var limiter middleware.Limiter
	if cfg.RateLimit.Enabled {
		rlCfg := &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			WindowDuration:    cfg.RateLimit.Window,
			BurstSize:         cfg.RateLimit.Burst,
		}
		if cfg.RateLimit.Distributed && redisClient != nil {
			limiter = middleware.NewDistributedRateLimiter(redisClient, rlCfg, "softwarehub:ratelimit:")
		} else {
			local := middleware.NewRateLimiter(rlCfg)
			local.StartCleanup(ctx)
			limiter = local
		}
	}

	deps := api.Dependencies{
		Users:     users.NewHandlers(userService, users.NewAuthService(userService, tokens), logger),
		Softwares: software.NewHandlers(software.NewService(software.NewStore(db, metrics), writer), logger),
		Audit:     audit.NewHandlers(engine, writer, logger),
		Tokens:    tokens,
		Health:    observability.NewHealthChecker(db.DB, redisClient, version),
		Limiter:   limiter,
		Logger:    logger,
	}
	if metrics != nil {
		deps.Metrics = metrics
		deps.Registry = registry
	}
	handler := api.NewServer(deps, api.Options{
		CORS: httputil.CORSOptions{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowCredentials: cfg.CORS.AllowCredentials,
		},
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Tracing:      cfg.Observability.OTelEnabled,
		ServiceName:  cfg.Observability.OTelServiceName,
	})

	scheduler := cron.New()
	if metrics != nil {
		refresher := audit.NewGaugeRefresher(engine, metrics, logger)
		if _, err := refresher.Schedule(scheduler, cfg.Audit.GaugeSchedule); err != nil {
			return err
		}
		if _, err := scheduler.AddFunc("@every 30s", func() { metrics.RecordDBStats(db.Stats()) }); err != nil {
			return err
		}
		async.SafeGo(ctx, logger, 10*time.Second, "initial audit gauge refresh", refresher.Refresh)
	}
	scheduler.Start()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	if asyncWriter != nil {
		shutdown.RegisterShutdownFunc("audit writer", asyncWriter.Close)
	}
	if fileWriter != nil {
		shutdown.RegisterShutdownFunc("audit file", func(context.Context) error { return fileWriter.Close() })
	}
	shutdown.RegisterShutdownFunc("cron", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdown.RegisterShutdownFunc("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otel, logger)
	})
	shutdown.RegisterShutdownFunc("database", func(context.Context) error { return db.Close() })
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error { return redisClient.Close() })
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", server.Addr).Infof("SoftwareHub %s listening", version)
		serverErr <- server.ListenAndServe()
	}()

	return shutdown.WaitForShutdown(serverErr)
}
