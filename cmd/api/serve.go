// AngelaMos | 2026
// serve.go

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/accountd/internal/admin"
	"github.com/carterperez-dev/accountd/internal/audit"
	"github.com/carterperez-dev/accountd/internal/auth"
	"github.com/carterperez-dev/accountd/internal/config"
	"github.com/carterperez-dev/accountd/internal/core"
	"github.com/carterperez-dev/accountd/internal/health"
	"github.com/carterperez-dev/accountd/internal/middleware"
	"github.com/carterperez-dev/accountd/internal/migrations"
	"github.com/carterperez-dev/accountd/internal/server"
	"github.com/carterperez-dev/accountd/internal/store"
	"github.com/carterperez-dev/accountd/internal/user"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before serving")
	return cmd
}

//nolint:funlen // bootstrap code is inherently verbose
func runServe(parent context.Context, opts *rootOptions, migrate bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	telemetry, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("failed to initialize telemetry", "error", err)
	} else if cfg.Otel.Enabled {
		logger.Info("OpenTelemetry tracer initialized", "endpoint", cfg.Otel.Endpoint)
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeWith(logger, "database", db.Close)
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if migrate {
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	var rdb *core.Redis
	if cfg.Redis.Enabled() {
		rdb, err = core.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer closeWith(logger, "redis", rdb.Close)
		logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.DB.DB, cfg.App.Name),
	)

	events, err := buildPublisher(cfg, logger, rdb, registry)
	if err != nil {
		return err
	}
	defer closeWith(logger, "event sinks", events.Close)

	hasher, err := core.NewPasswordHasher(cfg.Password)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenCodec(cfg.Auth)
	if err != nil {
		return err
	}
	logger.Info("token codec initialized",
		"algorithm", cfg.Auth.Algorithm,
		"access_ttl", cfg.Auth.AccessTTL(),
		"refresh_ttl", cfg.Auth.RefreshTTL(),
		"revoke_family_on_reuse", cfg.Auth.RevokeFamilyOnReuse,
	)

	userSvc := user.NewService(user.NewRepository(db.DB), hasher)

	if cfg.Admin.Enabled() {
		u, created, err := userSvc.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Password)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		logger.Info("admin account ready", "user_id", u.ID, "created", created)
	}

	authSvc := auth.NewService(auth.ServiceConfig{
		Tokens:              tokens,
		Passwords:           hasher,
		Tx:                  store.NewSQLTransactor(db.DB, hasher),
		Events:              events,
		Logger:              logger,
		Tracer:              telemetryTracer(telemetry),
		AccessTTL:           cfg.Auth.AccessTTL(),
		RefreshTTL:          cfg.Auth.RefreshTTL(),
		RevokeFamilyOnReuse: cfg.Auth.RevokeFamilyOnReuse,
		EventTimeout:        cfg.Events.PublishTimeout,
	})

	authHandler := auth.NewHandler(authSvc, auth.HandlerConfig{
		Cookie:     cfg.Cookie,
		RefreshTTL: cfg.Auth.RefreshTTL(),
	})
	userHandler := user.NewHandler(userSvc, authSvc)

	healthDeps := []health.Dependency{{Name: "database", Checker: db}}
	adminCfg := admin.HandlerConfig{
		Accounts:  userSvc,
		DBStats:   db.Stats,
		DBPing:    db.Ping,
		StartedAt: time.Now(),
		Auth: admin.AuthSettings{
			Algorithm:           cfg.Auth.Algorithm,
			AccessTTL:           cfg.Auth.AccessTTL().String(),
			RefreshTTL:          cfg.Auth.RefreshTTL().String(),
			RevokeFamilyOnReuse: cfg.Auth.RevokeFamilyOnReuse,
		},
	}
	if rdb != nil {
		healthDeps = append(healthDeps, health.Dependency{Name: "redis", Checker: rdb})
		adminCfg.RedisStats = rdb.PoolStats
		adminCfg.RedisPing = rdb.Ping
	}

	healthHandler := health.NewHandler(healthDeps...)
	adminHandler := admin.NewHandler(adminCfg)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
		ServiceName:   cfg.App.Name,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	if cfg.Metrics.Enabled {
		router.Use(middleware.NewHTTPMetrics(registry, cfg.Metrics.Namespace).Handler)
	}
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)
	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			Registry: registry,
		}))
	}

	authenticator := middleware.Authenticator(auth.NewGate(tokens, userSvc), auth.WriteError)
	adminOnly := middleware.RequireAdmin

	router.Route("/api", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+cfg.Server.DrainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, cfg.Server.DrainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	logger.Info("application stopped")
	return nil
}

// buildPublisher assembles the configured event sinks. The metrics sink is
// always on so auth outcomes are counted even without an external bus.
func buildPublisher(
	cfg *config.Config,
	logger *slog.Logger,
	rdb *core.Redis,
	reg prometheus.Registerer,
) (audit.Publisher, error) {
	sinks := audit.Multi{audit.NewMetricsPublisher(reg, cfg.Metrics.Namespace)}

	if cfg.Events.Has(config.SinkLog) {
		sinks = append(sinks, audit.NewLogPublisher(logger))
	}

	if cfg.Events.Has(config.SinkRedis) {
		if rdb == nil {
			return nil, errors.New("events: redis sink requires redis.url")
		}
		sinks = append(sinks, audit.NewRedisPublisher(
			rdb.Client, cfg.Events.RedisStream, cfg.Events.RedisMaxLen,
		))
	}

	if cfg.Events.Has(config.SinkNATS) {
		pub, err := audit.NewNATSPublisher(
			cfg.Events.NATSURL,
			cfg.Events.NATSSubject,
			nats.Name(cfg.App.Name),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			_ = sinks.Close() //nolint:errcheck // startup failure
			return nil, err
		}
		sinks = append(sinks, pub)
		logger.Info("nats event sink connected", "subject", cfg.Events.NATSSubject)
	}

	return sinks, nil
}

func telemetryTracer(t *core.Telemetry) trace.Tracer {
	if t == nil || t.Tracer == nil {
		return nil
	}
	return t.Tracer
}

func closeWith(logger *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error(name+" close error", "error", err)
	}
}
