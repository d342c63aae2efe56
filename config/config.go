package config

import (
	"os"
	"strconv"
	"time"

	apperr "github.com/macrodrigues/property-listing/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Listing section URLs
	VillasURL       string
	VillaRentalsURL string
	LandsURL        string

	// Fetch and retry configuration
	FetchMaxRetries int
	FetchRetryDelay time.Duration
	FetchTimeout    time.Duration
	FetchBlockTime  time.Duration
	RunMaxAttempts  int
	RunRetryDelay   time.Duration
	CrawlWorkers    int
	ChromeBin       string

	// Dataset backend: "csv" or "postgres"
	DatasetBackend string
	CSVDatasetPath string
	CSVBackupDir   string

	// PostgreSQL configuration
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis change-stream configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	// Directory for per-run log files
	LogDir string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	streamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))
	fetchRetries, _ := strconv.Atoi(getEnv("FETCH_MAX_RETRIES", "20"))
	fetchDelay, _ := strconv.Atoi(getEnv("FETCH_RETRY_DELAY_SECONDS", "10"))
	fetchTimeout, _ := strconv.Atoi(getEnv("FETCH_TIMEOUT_SECONDS", "60"))
	blockTime, _ := strconv.Atoi(getEnv("FETCH_BLOCK_SECONDS", "300"))
	runAttempts, _ := strconv.Atoi(getEnv("RUN_MAX_ATTEMPTS", "10"))
	runDelay, _ := strconv.Atoi(getEnv("RUN_RETRY_DELAY_SECONDS", "20"))
	workers, _ := strconv.Atoi(getEnv("CRAWL_WORKERS", "1"))

	return Config{
		VillasURL:       getEnv("VILLAS_URL", "https://www.villabalisale.com/search/villas-for-sale"),
		VillaRentalsURL: getEnv("VILLA_RENTALS_URL", "https://www.villabalisale.com/search/villas-for-rent"),
		LandsURL:        getEnv("LANDS_URL", "https://www.villabalisale.com/search/land-for-sale"),

		FetchMaxRetries: fetchRetries,
		FetchRetryDelay: time.Duration(fetchDelay) * time.Second,
		FetchTimeout:    time.Duration(fetchTimeout) * time.Second,
		FetchBlockTime:  time.Duration(blockTime) * time.Second,
		RunMaxAttempts:  runAttempts,
		RunRetryDelay:   time.Duration(runDelay) * time.Second,
		CrawlWorkers:    workers,
		ChromeBin:       getEnv("CHROME_BIN", ""),

		DatasetBackend: getEnv("DATASET_BACKEND", "csv"),
		CSVDatasetPath: getEnv("CSV_DATASET_PATH", "./data/properties.csv"),
		CSVBackupDir:   getEnv("CSV_BACKUP_DIR", "./data/archive"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "properties"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "properties"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "property-changes"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMaxLen,

		MemcacheAddr: getEnv("MEMCACHE_ADDR", "localhost:11211"),

		LogDir: getEnv("LOG_DIR", "./logs"),

		Environment: getEnv("ENVIRONMENT", "development"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// SectionURLs returns the listing-section URLs to crawl, in crawl order.
func (c *Config) SectionURLs() []string {
	return []string{c.VillasURL, c.VillaRentalsURL, c.LandsURL}
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	if c.VillasURL == "" || c.VillaRentalsURL == "" || c.LandsURL == "" {
		return apperr.NewConfiguration("all three listing section URLs must be set", nil)
	}
	if c.FetchMaxRetries <= 0 {
		return apperr.NewConfiguration("FETCH_MAX_RETRIES must be positive", nil)
	}
	if c.RunMaxAttempts <= 0 {
		return apperr.NewConfiguration("RUN_MAX_ATTEMPTS must be positive", nil)
	}
	if c.CrawlWorkers <= 0 {
		return apperr.NewConfiguration("CRAWL_WORKERS must be positive", nil)
	}
	// The publisher picks a stream by modulo; zero would panic there.
	if c.RedisStreamCount <= 0 {
		return apperr.NewConfiguration("REDIS_STREAM_COUNT must be positive", nil)
	}
	if c.DatasetBackend != "csv" && c.DatasetBackend != "postgres" {
		return apperr.NewConfiguration("DATASET_BACKEND must be csv or postgres", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
