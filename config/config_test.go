package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), ".env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, LockDriverLocal, cfg.LockDriver)
	assert.Equal(t, "trim", cfg.EmailNormalizers)
	assert.Equal(t, "trim", cfg.PhoneNormalizers)
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
	assert.Equal(t, "db/pg", cfg.DatabaseMigrationFolderPath)
	assert.Equal(t, []string{"GET", "POST"}, cfg.AllowMethods)
	assert.Equal(t, "none", cfg.TracingExporter)
	assert.False(t, cfg.KafkaConsumerEnabled)
	assert.False(t, cfg.GraphEnabled)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("LOCK_DRIVER", "redis")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("LOCK_WAIT_TIMEOUT", "250ms")
	t.Setenv("SEED_ON_STARTUP", "true")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, LockDriverRedis, cfg.LockDriver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 250*time.Millisecond, cfg.LockWaitTimeout)
	assert.True(t, cfg.SeedOnStartup)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PHONE_NORMALIZERS=trim,digits_only\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PHONE_NORMALIZERS") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "trim,digits_only", cfg.PhoneNormalizers)
}

func TestLoad_RejectsUnknownDrivers(t *testing.T) {
	t.Run("store", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "mongo")
		_, err := Load(missingEnvFile(t))
		assert.ErrorContains(t, err, "STORE_DRIVER")
	})

	t.Run("lock", func(t *testing.T) {
		t.Setenv("LOCK_DRIVER", "zookeeper")
		_, err := Load(missingEnvFile(t))
		assert.ErrorContains(t, err, "LOCK_DRIVER")
	})
}
