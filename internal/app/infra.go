package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/contact"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/identity"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

type infrastructure struct {
	shutdownTracing tracing.ShutdownFunc
	db              database.DB
	redis           *redis.Client
	producer        *kafka.Producer
	graph           *graph.Client
	consumer        *kafka.Consumer
}

func (a *App) tracingDependency() startup.StartupDependency {
	return &startup.FuncDependency{
		Name: DependencyTracing,
		StartFunc: func(ctx context.Context) error {
			shutdown, err := tracing.Setup(ctx, TracingConfig(a.cfg), a.logger)
			if err != nil {
				return err
			}
			a.infra.shutdownTracing = shutdown
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			if a.infra.shutdownTracing == nil {
				return nil
			}
			return a.infra.shutdownTracing(ctx)
		},
	}
}

func (a *App) databaseDependency() startup.StartupDependency {
	return &startup.FuncDependency{
		Name:     DependencyDatabase,
		Requires: []string{DependencyTracing},
		StartFunc: func(ctx context.Context) error {
			db, err := database.Connect(ctx, DatabaseConfig(a.cfg), a.logger)
			if err != nil {
				return err
			}
			if a.cfg.DatabaseMigrateOnStartup {
				if err := migrate(a.cfg, db, a.logger); err != nil {
					_ = db.Close()
					return err
				}
			}

			a.infra.db = db
			a.health.AddCheck("database", health.PingFunc(db.PingContext))
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			if a.infra.db == nil {
				return nil
			}
			return a.infra.db.Close()
		},
	}
}

func (a *App) redisDependency() startup.StartupDependency {
	return &startup.FuncDependency{
		Name:     DependencyRedis,
		Requires: []string{DependencyTracing},
		StartFunc: func(ctx context.Context) error {
			client, err := redis.NewClient(ctx, RedisConfig(a.cfg), a.logger)
			if err != nil {
				return err
			}
			a.infra.redis = client
			a.health.AddCheck("redis", client)
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			if a.infra.redis == nil {
				return nil
			}
			return a.infra.redis.Close()
		},
	}
}

func (a *App) producerDependency() startup.StartupDependency {
	return &startup.FuncDependency{
		Name:     DependencyProducer,
		Requires: []string{DependencyTracing},
		StartFunc: func(ctx context.Context) error {
			a.infra.producer = kafka.NewProducer(ProducerConfig(a.cfg), a.logger)
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			if a.infra.producer == nil {
				return nil
			}
			return a.infra.producer.Close()
		},
	}
}

func (a *App) graphDependency() startup.StartupDependency {
	return &startup.FuncDependency{
		Name:     DependencyGraph,
		Requires: []string{DependencyTracing},
		StartFunc: func(ctx context.Context) error {
			client, err := graph.NewClient(GraphConfig(a.cfg), a.logger)
			if err != nil {
				return err
			}
			if err := client.VerifyConnectivity(ctx); err != nil {
				_ = client.Close(ctx)
				return fmt.Errorf("graph database unreachable: %w", err)
			}
			a.infra.graph = client
			a.health.AddCheck("graph", health.PingFunc(client.VerifyConnectivity))
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			if a.infra.graph == nil {
				return nil
			}
			return a.infra.graph.Close(ctx)
		},
	}
}

func (a *App) engineDependency() startup.StartupDependency {
	requires := []string{DependencyTracing}
	if a.cfg.StoreDriver == config.StoreDriverPostgres {
		requires = append(requires, DependencyDatabase)
	}
	if a.cfg.LockDriver == config.LockDriverRedis {
		requires = append(requires, DependencyRedis)
	}
	if a.cfg.KafkaProducerEnabled {
		requires = append(requires, DependencyProducer)
	}
	if a.cfg.GraphEnabled {
		requires = append(requires, DependencyGraph)
	}

	return &startup.FuncDependency{
		Name:     DependencyEngine,
		Requires: requires,
		StartFunc: func(ctx context.Context) error {
			if a.engine != nil {
				return nil
			}
			engine, err := a.buildEngine()
			if err != nil {
				return err
			}
			if a.cfg.SeedOnStartup {
				if err := engine.Seed(ctx); err != nil {
					return fmt.Errorf("failed to seed contacts: %w", err)
				}
				a.logger.Info("Seeded demo contacts")
			}
			a.engine = engine
			return nil
		},
	}
}

func (a *App) buildEngine() (*identity.Engine, error) {
	emailChain, err := normalizers.ParseChain(a.cfg.EmailNormalizers)
	if err != nil {
		return nil, fmt.Errorf("invalid EMAIL_NORMALIZERS: %w", err)
	}
	phoneChain, err := normalizers.ParseChain(a.cfg.PhoneNormalizers)
	if err != nil {
		return nil, fmt.Errorf("invalid PHONE_NORMALIZERS: %w", err)
	}

	opts := []identity.Option{identity.WithNormalizers(emailChain, phoneChain)}

	if a.infra.redis != nil {
		opts = append(opts, identity.WithLocker(redis.NewLocker(a.infra.redis, a.cfg.RedisKeyPrefix, a.cfg.LockTTL, a.cfg.LockWaitTimeout)))
	}

	var listeners []identity.Listener
	if a.infra.producer != nil {
		listeners = append(listeners, events.NewEmitter(a.infra.producer, a.logger))
	}
	if a.infra.graph != nil {
		listeners = append(listeners, graph.NewClusterService(a.infra.graph, a.logger))
	}
	if len(listeners) > 0 {
		opts = append(opts, identity.WithListeners(listeners...))
	}

	return identity.NewEngine(a.newStore(), a.logger, opts...), nil
}

func (a *App) newStore() identity.Store {
	if a.infra.db != nil {
		return contact.NewRepository(a.infra.db, a.logger)
	}
	return contact.NewMemoryRepository(a.logger)
}

func (a *App) consumerDependency() startup.StartupDependency {
	return &startup.FuncDependency{
		Name:     DependencyConsumer,
		Requires: []string{DependencyEngine},
		StartFunc: func(ctx context.Context) error {
			consumer := kafka.NewConsumer(ConsumerConfig(a.cfg), a.logger, kafka.NewObservationHandler(a.engine, a.logger))
			// the consumer outlives Start, so it must not inherit the startup context
			if err := consumer.Start(context.Background()); err != nil {
				return err
			}
			a.infra.consumer = consumer
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			if a.infra.consumer == nil {
				return nil
			}
			return a.infra.consumer.Stop()
		},
	}
}

// TracingConfig maps service config onto the tracer provider
func TracingConfig(cfg *config.Config) tracing.ProviderConfig {
	return tracing.ProviderConfig{
		ServiceName: cfg.AppName,
		Version:     cfg.Version,
		Exporter:    cfg.TracingExporter,
		OTLP: exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: cfg.OTLPInsecure,
			Headers:  cfg.OTLPHeaders,
			Timeout:  cfg.OTLPTimeout,
		},
	}
}

func DatabaseConfig(cfg *config.Config) database.ConnectionConfig {
	return database.ConnectionConfig{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}
}

func RedisConfig(cfg *config.Config) redis.Config {
	return redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

func ProducerConfig(cfg *config.Config) kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaEventTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}
}

func ConsumerConfig(cfg *config.Config) kafka.ConsumerConfig {
	return kafka.ConsumerConfig{
		Brokers:       cfg.KafkaBrokers,
		Topic:         cfg.KafkaObservationTopic,
		ConsumerGroup: cfg.KafkaConsumerGroup,
	}
}

func GraphConfig(cfg *config.Config) graph.Config {
	return graph.Config{
		Host:     cfg.GraphDBHost,
		Port:     cfg.GraphDBPort,
		Username: cfg.GraphDBUser,
		Password: cfg.GraphDBPassword,
		Database: cfg.GraphDBName,
	}
}
