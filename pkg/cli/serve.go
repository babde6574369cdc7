package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/miamirp/cityrecords/pkg/api"
	"github.com/miamirp/cityrecords/pkg/auth"
	"github.com/miamirp/cityrecords/pkg/config"
	"github.com/miamirp/cityrecords/pkg/middleware"
	"github.com/miamirp/cityrecords/pkg/observability"
	"github.com/miamirp/cityrecords/pkg/rbac"
	"github.com/miamirp/cityrecords/pkg/session"
	"github.com/miamirp/cityrecords/pkg/storage"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Migrate bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the records API server",
		Long: `Run the records API together with the health and metrics listener.

The server stops gracefully on SIGINT or SIGTERM. When started from a
config file, log level changes in that file apply without a restart.

Example:
  cityrecords serve --migrate
  cityrecords serve --config /etc/cityrecords.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Migrate, "migrate", false, "apply pending migrations before serving")

	return cmd
}

// app is the fully wired server, ready to listen.
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	store    *storage.Store
	sessions session.Store
	redis    *redis.Client
	janitor  *session.Janitor
	limiter  *middleware.RateLimiter
	registry *prometheus.Registry

	api http.Handler
	ops http.Handler

	shutdown *observability.ShutdownManager
}

// buildApp connects every dependency named by cfg. On error, anything
// already opened is closed.
func buildApp(ctx context.Context, cfg *config.Config, logger *observability.Logger, migrate bool) (_ *app, err error) {
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		shutdown: shutdown,
	}
	defer func() {
		if err != nil {
			_ = shutdown.Shutdown(context.Background())
		}
	}()

	var metrics *observability.Metrics
	var storeOpts []storage.Option
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(a.registry)
		storeOpts = append(storeOpts, storage.WithRecorder(metrics))
	}

	tp, err := observability.InitTracing(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return nil, WrapExitError(ExitConfigError, "failed to initialize tracing", err)
	}
	if tp != nil {
		a.shutdown.RegisterShutdownFunc("tracing", func(ctx context.Context) error {
			return observability.ShutdownTracing(ctx, tp, logger)
		})
	}

	if metrics != nil {
		if err := a.mirrorMetrics(ctx, metrics); err != nil {
			return nil, err
		}
	}

	a.store, err = openStore(ctx, cfg, storeOpts...)
	if err != nil {
		return nil, err
	}
	a.shutdown.RegisterShutdownFunc("database", func(context.Context) error {
		return a.store.Close()
	})
	logger.WithField("driver", cfg.Database.Driver).Info("database connected")

	if migrate {
		result, err := a.store.Migrate(ctx)
		if err != nil {
			return nil, WrapExitError(ExitStorageError, "migration failed", err)
		}
		logger.WithFields(map[string]interface{}{
			"applied": len(result.Applied),
			"version": result.Current,
		}).Info("migrations complete")
	}
	if metrics != nil {
		metrics.RegisterDBStats(a.store.DB())
	}

	if err := a.openSessions(); err != nil {
		return nil, err
	}

	gate, err := auth.NewGate(a.store, a.sessions, auth.NewPasswordHasher(cfg.Auth.BcryptCost), cfg.Session.TTL)
	if err != nil {
		return nil, WrapExitError(ExitConfigError, "failed to create session gate", err)
	}

	a.janitor, err = session.NewJanitor(a.sessions, cfg.Session.PurgeSchedule, logger.Logrus())
	if err != nil {
		return nil, WrapExitError(ExitConfigError, "invalid session purge schedule", err)
	}

	limit := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Auth.LoginRateLimit,
		WindowDuration:    cfg.Auth.LoginRateWindow,
		BurstSize:         cfg.Auth.LoginRateBurst,
	}
	var limiter middleware.Limiter
	if a.redis != nil {
		limiter = middleware.NewDistributedRateLimiter(a.redis, limit, "cityrecords:login")
	} else {
		a.limiter = middleware.NewRateLimiter(limit)
		limiter = a.limiter
	}

	server := api.NewServer(api.Deps{
		Records:        a.store,
		Users:          a.store,
		Gate:           gate,
		Engine:         rbac.NewEngine(rbac.DefaultPolicy()),
		Logger:         logger,
		Metrics:        metrics,
		LoginLimiter:   limiter,
		LoginLimit:     limit,
		Registration:   cfg.Auth.Registration,
		CookieSecure:   cfg.Session.CookieSecure,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	})

	a.api = server
	if tp != nil {
		a.api = observability.TracingMiddleware(cfg.Observability.OTelServiceName)(server)
	}

	ops := http.NewServeMux()
	observability.RegisterHealthRoutes(ops, observability.NewHealthChecker(a.store.DB(), a.redis, Version))
	if metrics != nil {
		observability.RegisterMetricsEndpoint(ops, a.registry)
	}
	a.ops = ops

	return a, nil
}

// mirrorMetrics pushes the Prometheus measurements to the OTLP collector
// as well when OTel is enabled.
func (a *app) mirrorMetrics(ctx context.Context, metrics *observability.Metrics) error {
	mp, err := observability.InitMetrics(ctx, a.cfg.Observability.OTel(), a.logger)
	if err != nil {
		return WrapExitError(ExitConfigError, "failed to initialize OTLP metrics", err)
	}
	if mp == nil {
		return nil
	}
	a.shutdown.RegisterShutdownFunc("otel metrics", func(ctx context.Context) error {
		return observability.ShutdownMetrics(ctx, mp, a.logger)
	})

	mirror, err := observability.NewOTelMetrics()
	if err != nil {
		return WrapExitError(ExitConfigError, "failed to create OTLP instruments", err)
	}
	metrics.MirrorTo(mirror)
	return nil
}

func (a *app) openSessions() error {
	if a.cfg.Session.Backend != "redis" {
		a.sessions = session.NewMemoryStore()
		a.logger.Info("sessions kept in memory")
		return nil
	}

	rs, err := session.NewRedisStore(session.RedisConfig{
		URL:        a.cfg.Session.RedisURL,
		Password:   a.cfg.Session.RedisPassword,
		DB:         a.cfg.Session.RedisDB,
		MaxRetries: a.cfg.Session.RedisMaxRetries,
		PoolSize:   a.cfg.Session.RedisPoolSize,
	})
	if err != nil {
		return WrapExitError(ExitStorageError, "failed to connect to redis", err)
	}
	a.sessions = rs
	a.redis = rs.Client()
	a.shutdown.RegisterShutdownFunc("redis", func(context.Context) error {
		return rs.Close()
	})
	a.logger.Info("sessions kept in redis")
	return nil
}

// run serves until ctx is done or a listener fails, then shuts down.
func (a *app) run(ctx context.Context) error {
	apiServer := &http.Server{
		Addr:         net.JoinHostPort(a.cfg.Server.Host, a.cfg.Server.Port),
		Handler:      a.api,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}
	opsServer := &http.Server{
		Addr:    net.JoinHostPort(a.cfg.Server.Host, a.cfg.Server.HealthPort),
		Handler: a.ops,
	}
	a.shutdown.AddServer(apiServer)
	a.shutdown.AddServer(opsServer)

	a.janitor.Start()
	a.shutdown.RegisterShutdownFunc("session janitor", func(context.Context) error {
		a.janitor.Stop()
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)

	if a.limiter != nil {
		a.limiter.StartCleanup(gctx)
	}

	g.Go(func() error {
		a.logger.Infof("API listening on %s", apiServer.Addr)
		return listen(apiServer)
	})
	g.Go(func() error {
		a.logger.Infof("health and metrics listening on %s", opsServer.Addr)
		return listen(opsServer)
	})

	if a.cfg.File != "" {
		watcher, err := config.NewWatcher(a.cfg.File, a.applyReload, a.logger.Logrus())
		if err != nil {
			a.logger.WithError(err).Warn("config file changes will not be picked up")
		} else {
			g.Go(func() error { return watcher.Run(gctx) })
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		return a.shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}

// applyReload applies the settings that can change at runtime.
func (a *app) applyReload(next *config.Config) {
	level := next.Observability.Level()
	if level != a.logger.Level() {
		a.logger.SetLevel(level)
		a.logger.WithField("level", level.String()).Info("log level changed")
	}
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listener %s: %w", srv.Addr, err)
	}
	return nil
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.newLogger(cfg, cmd.ErrOrStderr())

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger, opts.Migrate)
	if err != nil {
		return err
	}
	if err := a.run(ctx); err != nil {
		return WrapExitError(ExitFailure, "server stopped", err)
	}
	logger.Info("server stopped")
	return nil
}
