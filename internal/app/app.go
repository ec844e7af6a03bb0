// Package app wires configuration, infrastructure and the identity engine into a running service
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/identity"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/startup"
)

// Dependency names, in the order they are registered
const (
	DependencyTracing  = "tracing"
	DependencyDatabase = "database"
	DependencyRedis    = "redis"
	DependencyProducer = "kafka-producer"
	DependencyGraph    = "graph"
	DependencyEngine   = "engine"
	DependencyServer   = "http-server"
	DependencyConsumer = "kafka-consumer"
)

// App owns every long lived component of the service
type App struct {
	cfg     *config.Config
	logger  ectologger.Logger
	startup *startup.Startup
	infra   *infrastructure
	engine  *identity.Engine
	health  *health.Checker
	echo    *echo.Echo
	serve   bool
}

type Option func(*App)

// WithServer also starts the HTTP server and, when enabled, the observation consumer
func WithServer() Option {
	return func(a *App) {
		a.serve = true
	}
}

// WithStartup replaces the startup orchestrator, mostly to shorten retry backoff in tests
func WithStartup(s *startup.Startup) Option {
	return func(a *App) {
		a.startup = s
	}
}

func New(cfg *config.Config, logger ectologger.Logger, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
		infra:   &infrastructure{},
		health:  health.NewChecker(cfg.Version),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.register()
	return a
}

func (a *App) register() {
	a.startup.AddDependency(a.tracingDependency())
	if a.cfg.StoreDriver == config.StoreDriverPostgres {
		a.startup.AddDependency(a.databaseDependency())
	}
	if a.cfg.LockDriver == config.LockDriverRedis {
		a.startup.AddDependency(a.redisDependency())
	}
	if a.cfg.KafkaProducerEnabled {
		a.startup.AddDependency(a.producerDependency())
	}
	if a.cfg.GraphEnabled {
		a.startup.AddDependency(a.graphDependency())
	}
	a.startup.AddDependency(a.engineDependency())

	if !a.serve {
		return
	}
	a.startup.AddDependency(a.serverDependency())
	if a.cfg.KafkaConsumerEnabled {
		a.startup.AddDependency(a.consumerDependency())
	}
}

// Start brings up every registered dependency
func (a *App) Start(ctx context.Context) error {
	if err := a.startup.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s: %w", a.cfg.AppName, err)
	}
	a.health.SetReady(true)
	a.logger.WithField("store", a.cfg.StoreDriver).WithField("lock", a.cfg.LockDriver).Infof("%s started", a.cfg.AppName)
	return nil
}

// Stop shuts dependencies down in reverse start order
func (a *App) Stop(ctx context.Context) error {
	a.health.SetReady(false)
	return a.startup.Stop(ctx)
}

// Engine returns the identity engine. It is nil until Start succeeds.
func (a *App) Engine() *identity.Engine {
	return a.engine
}

// Echo returns the HTTP server. It is nil unless the app was built WithServer.
func (a *App) Echo() *echo.Echo {
	return a.echo
}

// Run starts the service, blocks until ctx is cancelled, then shuts down
func Run(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	a := New(cfg, logger, WithServer())
	if err := a.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		_ = a.Stop(stopCtx)
		return err
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	return a.Stop(stopCtx)
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.ShutdownTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(a.cfg.ShutdownTimeoutSeconds) * time.Second
}
