package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, "localhost:6379", config.RedisAddr)
	assert.Equal(t, 0, config.RedisDB)
	assert.Equal(t, 1, config.RedisStreamCount)
	assert.Equal(t, "localhost:11211", config.MemcacheAddr)
	assert.Equal(t, 20, config.FetchMaxRetries)
	assert.Equal(t, 10*time.Second, config.FetchRetryDelay)
	assert.Equal(t, 10, config.RunMaxAttempts)
	assert.Equal(t, 20*time.Second, config.RunRetryDelay)
	assert.Equal(t, 1, config.CrawlWorkers)
	assert.Equal(t, "csv", config.DatasetBackend)

	// Test with environment variables
	os.Setenv("REDIS_ADDR", "redis.example.com:6379")
	os.Setenv("REDIS_DB", "1")
	os.Setenv("FETCH_MAX_RETRIES", "4")
	os.Setenv("FETCH_RETRY_DELAY_SECONDS", "5")
	os.Setenv("VILLAS_URL", "https://example.com/villas-for-sale")
	os.Setenv("DATASET_BACKEND", "postgres")

	config = LoadConfig()
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 1, config.RedisDB)
	assert.Equal(t, 4, config.FetchMaxRetries)
	assert.Equal(t, 5*time.Second, config.FetchRetryDelay)
	assert.Equal(t, "https://example.com/villas-for-sale", config.VillasURL)
	assert.Equal(t, "postgres", config.DatasetBackend)

	// Clean up
	os.Unsetenv("REDIS_ADDR")
	os.Unsetenv("REDIS_DB")
	os.Unsetenv("FETCH_MAX_RETRIES")
	os.Unsetenv("FETCH_RETRY_DELAY_SECONDS")
	os.Unsetenv("VILLAS_URL")
	os.Unsetenv("DATASET_BACKEND")
}

func TestValidate(t *testing.T) {
	config := LoadConfig()
	assert.NoError(t, config.Validate())

	broken := config
	broken.VillasURL = ""
	assert.Error(t, broken.Validate())

	broken = config
	broken.FetchMaxRetries = 0
	assert.Error(t, broken.Validate())

	broken = config
	broken.CrawlWorkers = 0
	assert.Error(t, broken.Validate())

	broken = config
	broken.RedisStreamCount = 0
	assert.Error(t, broken.Validate())

	broken = config
	broken.DatasetBackend = "sheet"
	assert.Error(t, broken.Validate())
}

func TestDSN(t *testing.T) {
	config := LoadConfig()
	config.PostgresHost = "db.internal"
	config.PostgresPassword = "secret"
	dsn := config.DSN()
	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "password=secret")
	assert.Contains(t, dsn, "sslmode=disable")
}
