package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/macrodrigues/property-listing/config"
	"github.com/macrodrigues/property-listing/helpers"
	"github.com/macrodrigues/property-listing/internal/crawl"
	"github.com/macrodrigues/property-listing/internal/reconcile"
	"github.com/macrodrigues/property-listing/logger"
	apperr "github.com/macrodrigues/property-listing/pkg/errors"
	"github.com/macrodrigues/property-listing/services/cache"
	"github.com/macrodrigues/property-listing/services/dataset"
	"github.com/macrodrigues/property-listing/services/publisher"
	"github.com/macrodrigues/property-listing/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("dataset_backend", cfg.DatasetBackend).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	runLog, err := helpers.NewRunLogger(cfg.LogDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open run log")
	}

	runDone := make(chan error, 1)
	go func() {
		runDone <- run(ctx, &cfg, services, runLog)
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		<-runDone
		os.Exit(1)
	case err := <-runDone:
		if err != nil {
			log.Error().Err(err).Msg("Crawl run failed")
			os.Exit(1)
		}
		log.Info().Msg("Crawl run finished")
	}
}

// run executes the crawl with a bounded outer retry loop. Fatal errors
// (sink, configuration) stop retrying immediately; anything else gets
// another attempt after a fixed delay.
func run(ctx context.Context, cfg *config.Config, services *Services, runLog *helpers.RunLogger) error {
	log := logger.ForWorker()

	var lastErr error
	for attempt := 1; attempt <= cfg.RunMaxAttempts; attempt++ {
		err := runOnce(ctx, cfg, services, runLog)
		if err == nil {
			return nil
		}
		lastErr = err

		if apperr.Fatal(err) || ctx.Err() != nil {
			return err
		}

		log.Warn().
			Int("attempt", attempt).
			Int("max_attempts", cfg.RunMaxAttempts).
			Err(err).
			Msg("Run attempt failed, retrying")

		select {
		case <-ctx.Done():
			return err
		case <-time.After(cfg.RunRetryDelay):
		}
	}
	return lastErr
}

// runOnce performs one complete crawl with a fresh pool of browser
// sessions, so a wedged browser never poisons the next attempt. The pool
// holds CRAWL_WORKERS sessions, capped at one per listing section; each
// section walker is handed one session round-robin, so fetches only
// serialize within a session, not across the pool.
func runOnce(ctx context.Context, cfg *config.Config, services *Services, runLog *helpers.RunLogger) error {
	urls := cfg.SectionURLs()

	pool := sessionCount(cfg.CrawlWorkers, len(urls))
	fetchers := make([]crawl.Fetcher, 0, pool)
	defer func() {
		for _, f := range fetchers {
			f.Close()
		}
	}()
	for i := 0; i < pool; i++ {
		session, err := crawl.NewSession(cfg)
		if err != nil {
			return err
		}
		fetchers = append(fetchers, session)
	}

	walkers := make([]worker.SectionWalker, 0, len(urls))
	for i, url := range urls {
		walkers = append(walkers, crawl.NewWalker(url, fetcherFor(fetchers, i), services.Cache, cfg))
	}

	w := worker.NewWorker(ctx, walkers, services.Store, reconcile.New(), services.Publisher, runLog)
	return w.Run()
}

// sessionCount sizes the browser pool: CRAWL_WORKERS sessions, but never
// more than there are listing sections to walk.
func sessionCount(workers, sections int) int {
	if workers > sections {
		return sections
	}
	return workers
}

// fetcherFor picks the session owning walker i, spreading the sections
// round-robin over the pool.
func fetcherFor(fetchers []crawl.Fetcher, i int) crawl.Fetcher {
	return fetchers[i%len(fetchers)]
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     dataset.Store
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Initialize cache service
	services.Cache = cache.NewMemcacheService(cfg.MemcacheAddr)
	logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)

	// Initialize publisher
	services.Publisher = publisher.NewRedisPublisher(
		ctx,
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
		cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	// Initialize dataset backend
	store, err := dataset.Open(cfg)
	if err != nil {
		return nil, err
	}
	services.Store = store
	logger.Info("Dataset backend ready: %s", cfg.DatasetBackend)

	return services, nil
}
