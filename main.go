package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"mpatch/unitscout/config"
	"mpatch/unitscout/internal/breaker"
	"mpatch/unitscout/internal/extract"
	"mpatch/unitscout/internal/page"
	"mpatch/unitscout/internal/template"
	"mpatch/unitscout/logger"
	"mpatch/unitscout/services/cache"
	"mpatch/unitscout/services/publisher"
	"mpatch/unitscout/services/worker"

	"github.com/joho/godotenv"
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
		Int("property_urls", len(cfg.PropertyURLs)).
		Dur("scrape_interval", cfg.ScrapeInterval).
		Bool("browser", cfg.UseBrowser).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services := initializeServices(ctx, &cfg)
	defer services.Cleanup()

	// Template knowledge: learned store, static catalog, matcher
	store := template.NewStore(
		template.FileBackend{Path: cfg.StorePath},
		template.WithStatsBackend(template.FileBackend{Path: cfg.StatsPath}),
	)
	if removed := store.Prune(cfg.StoreMaxAge); removed > 0 {
		log.Info().Int("removed", removed).Msg("Pruned stale learned templates at startup")
	}
	catalog := template.NewCatalog()
	matcher := template.NewMatcher(nil, store, catalog)

	extractor := extract.NewExtractor(
		extract.WithContainerCap(cfg.ContainerCap),
		extract.WithDefaultTimeout(cfg.NavTimeout),
	)
	discovery := extract.NewDiscovery(store, extractor)
	brk := breaker.New(services.Cache,
		breaker.WithThreshold(cfg.BreakerThreshold),
		breaker.WithWindow(cfg.BreakerWindow),
		breaker.WithCooldown(cfg.BreakerCooldown),
	)

	// Page factory: a browser tab per URL, or static snapshots when the
	// targets are known to be server-rendered.
	var pages worker.PageFactory
	if cfg.UseBrowser {
		browser := page.NewBrowser(ctx, cfg.Headless)
		defer browser.Close()
		pages = func() page.Page { return browser.NewPage() }
	} else {
		pages = func() page.Page { return page.NewStaticPage() }
	}

	w := worker.NewWorker(
		cfg.PropertyURLs,
		matcher,
		store,
		extractor,
		discovery,
		brk,
		services.Publisher,
		pages,
		cfg.ScrapeInterval,
	)

	// Start worker in a goroutine
	workerDone := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting unit scout worker")
		workerDone <- w.Start(ctx)
	}()

	// Wait for shutdown signal or worker error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
		<-workerDone
	case err := <-workerDone:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Worker exited with error")
		} else {
			log.Info().Msg("Worker exited normally")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices initializes the cache and publisher
func initializeServices(ctx context.Context, cfg *config.Config) *Services {
	services := &Services{}

	services.Cache = cache.NewMemcacheService(cfg.MemcacheAddr)
	logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)

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

	return services
}
