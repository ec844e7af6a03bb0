package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"

	LockDriverLocal = "local"
	LockDriverRedis = "redis"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover-api"`
	Version                       string   `env:"APP_VERSION" env-default:"dev"`
	Port                          int      `env:"PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`
	ShutdownTimeoutSeconds        int      `env:"SHUTDOWN_TIMEOUT_SECONDS" env-default:"15"`

	// Contact store
	StoreDriver   string `env:"STORE_DRIVER" env-default:"memory"`
	SeedOnStartup bool   `env:"SEED_ON_STARTUP" env-default:"false"`

	// Normalizer chains, comma separated registry names
	EmailNormalizers string `env:"EMAIL_NORMALIZERS" env-default:"trim"`
	PhoneNormalizers string `env:"PHONE_NORMALIZERS" env-default:"trim"`

	// PostgreSQL
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      uint          `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`
	DatabaseMigrateOnStartup      bool          `env:"DB_MIGRATE_ON_STARTUP" env-default:"true"`

	// Identify lock
	LockDriver      string        `env:"LOCK_DRIVER" env-default:"local"`
	LockTTL         time.Duration `env:"LOCK_TTL" env-default:"10s"`
	LockWaitTimeout time.Duration `env:"LOCK_WAIT_TIMEOUT" env-default:"5s"`

	// Redis
	RedisHost      string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort      int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword  string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB        int    `env:"REDIS_DB" env-default:"0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" env-default:"clover:lock:"`

	// Kafka consumer (observations)
	KafkaBrokers          []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaObservationTopic string   `env:"KAFKA_OBSERVATION_TOPIC" env-default:"contact-observations"`
	KafkaConsumerGroup    string   `env:"KAFKA_CONSUMER_GROUP" env-default:"clover-consumer"`
	KafkaConsumerEnabled  bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"false"`

	// Kafka producer (contact events)
	KafkaProducerEnabled bool   `env:"KAFKA_PRODUCER_ENABLED" env-default:"false"`
	KafkaEventTopic      string `env:"KAFKA_EVENT_TOPIC" env-default:"contact-events"`
	KafkaBatchSize       int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout    int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks    int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression     string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Graph Database (Memgraph)
	GraphEnabled    bool   `env:"GRAPH_ENABLED" env-default:"false"`
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`
	GraphDBName     string `env:"GRAPH_DB_NAME" env-default:""`

	// Tracing
	TracingExporter string            `env:"TRACING_EXPORTER" env-default:"none"`
	OTLPEndpoint    string            `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol    string            `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure    bool              `env:"OTLP_INSECURE" env-default:"true"`
	OTLPHeaders     map[string]string `env:"OTLP_HEADERS"`
	OTLPTimeout     time.Duration     `env:"OTLP_TIMEOUT" env-default:"10s"`
}

// Load reads an optional .env file and then the process environment
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects unknown driver names
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverMemory, StoreDriverPostgres:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.LockDriver {
	case LockDriverLocal, LockDriverRedis:
	default:
		return fmt.Errorf("unsupported LOCK_DRIVER %q", c.LockDriver)
	}

	return nil
}
