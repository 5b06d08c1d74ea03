// Command pricesearch runs the price search engine HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcpubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/ImportTeam/extensionBack/internal/aggregator"
	"github.com/ImportTeam/extensionBack/internal/api"
	"github.com/ImportTeam/extensionBack/internal/browser"
	"github.com/ImportTeam/extensionBack/internal/cache"
	"github.com/ImportTeam/extensionBack/internal/config"
	"github.com/ImportTeam/extensionBack/internal/engine"
	"github.com/ImportTeam/extensionBack/internal/failure"
	"github.com/ImportTeam/extensionBack/internal/fastpath"
	"github.com/ImportTeam/extensionBack/internal/gate"
	"github.com/ImportTeam/extensionBack/internal/logging"
	"github.com/ImportTeam/extensionBack/internal/metrics"
	"github.com/ImportTeam/extensionBack/internal/normalize"
	pubsubpublisher "github.com/ImportTeam/extensionBack/internal/publisher/pubsub"
	"github.com/ImportTeam/extensionBack/internal/slowpath"
	"github.com/ImportTeam/extensionBack/internal/snapshot"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resources, err := normalize.LoadResources(cfg.Resources.Dir)
	if err != nil {
		return fmt.Errorf("load resources: %w", err)
	}
	normalizer := normalize.New(resources, logger.Named("normalize"))
	validationGate := gate.New(normalizer)

	endpoints := aggregator.DefaultEndpoints()
	if cfg.Crawler.Origin != "" {
		endpoints.Origin = cfg.Crawler.Origin
	}
	if cfg.Crawler.SearchURL != "" {
		endpoints.SearchURL = cfg.Crawler.SearchURL
	}
	if cfg.Crawler.ProductURL != "" {
		endpoints.ProductURL = cfg.Crawler.ProductURL
	}

	// Cache: Redis when configured, in-process otherwise.
	var (
		store       engine.Cache
		cacheProber api.Prober
	)
	if cfg.Cache.RedisURL != "" {
		redisCache, err := cache.NewRedis(cfg.Cache.RedisURL, logger.Named("cache"))
		if err != nil {
			return fmt.Errorf("init redis cache: %w", err)
		}
		defer func() { _ = redisCache.Close() }()
		store = redisCache
		cacheProber = redisCache
	} else {
		logger.Warn("no redis url configured, using in-process cache")
		store = cache.NewMemory()
	}

	// Failure store and recorder.
	var (
		failureStore failure.Store
		storeProber  api.Prober
	)
	if cfg.DB.DSN != "" {
		pg, err := failure.NewPostgresStore(ctx, failure.PostgresConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return fmt.Errorf("init failure store: %w", err)
		}
		defer pg.Close()
		failureStore = pg
		storeProber = pg
	} else {
		logger.Warn("no database dsn configured, failure recording disabled")
	}

	var failurePublisher failure.Publisher
	if cfg.Failures.PubSubProject != "" && cfg.Failures.PubSubTopic != "" {
		client, err := gcpubsub.NewClient(ctx, cfg.Failures.PubSubProject)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		defer func() { _ = client.Close() }()
		failurePublisher = pubsubpublisher.New(client.Topic(cfg.Failures.PubSubTopic))
	}

	recorder := failure.NewRecorder(
		failureStore, failurePublisher, cfg.Failures.PubSubTopic,
		cfg.Failures.QueueSize, logger.Named("failure"))
	defer recorder.Close()

	// Page snapshot archive.
	var archive *snapshot.Archive
	if cfg.Snapshot.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init storage client: %w", err)
		}
		defer func() { _ = client.Close() }()
		blobStore, err := snapshot.NewGCSStore(client, cfg.Snapshot.GCSBucket)
		if err != nil {
			return fmt.Errorf("init snapshot store: %w", err)
		}
		archive = snapshot.New(blobStore, logger.Named("snapshot"))
	} else {
		archive = snapshot.New(nil, logger)
	}

	fastExec := fastpath.New(fastpath.Config{
		Endpoints: endpoints,
		UserAgent: cfg.Crawler.UserAgent,
	}, archive, logger.Named("fastpath"))

	// Browser pool and SlowPath, behind the feature flag.
	var (
		slowExec      engine.Executor
		browserStatus api.BrowserStatus
	)
	if cfg.Features.SlowPathEnabled {
		pool, err := browser.New(browser.Config{
			MaxPages:     cfg.Browser.MaxPages,
			WarmContexts: cfg.Browser.WarmContexts,
			UserAgent:    cfg.Crawler.UserAgent,
		}, logger.Named("browser"))
		if err != nil {
			return fmt.Errorf("init browser pool: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := pool.Shutdown(shutdownCtx); err != nil {
				logger.Warn("browser pool shutdown", zap.Error(err))
			}
		}()
		warmCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		if err := pool.Warmup(warmCtx); err != nil {
			logger.Warn("browser warmup failed, contexts will start lazily", zap.Error(err))
		}
		cancel()

		slowExec = slowpath.New(slowpath.Config{Endpoints: endpoints},
			poolAdapter{pool}, archive, logger.Named("slowpath"))
		browserStatus = func() string { return "ready" }
	} else {
		browserStatus = func() string { return "disabled" }
	}

	orchestrator, err := engine.NewOrchestrator(
		engine.OrchestratorConfig{
			Origin:          endpoints.Origin,
			Budget:          cfg.EngineBudget(),
			SlowPathEnabled: cfg.Features.SlowPathEnabled,
		},
		normalizer, store, fastExec, slowExec, validationGate, recorder,
		logger.Named("engine"),
	)
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}

	server := api.NewServer(api.Deps{
		Searcher:     orchestrator,
		FailureStore: failureStore,
		CacheProber:  cacheProber,
		StoreProber:  storeProber,
		Browser:      browserStatus,
		Logger:       logger.Named("api"),
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// poolAdapter bridges the concrete browser pool to the slowpath port.
type poolAdapter struct {
	pool *browser.Pool
}

func (a poolAdapter) Lease(ctx context.Context) (slowpath.Page, error) {
	page, err := a.pool.Lease(ctx)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (a poolAdapter) Release(page slowpath.Page, ok bool) {
	if bp, isBrowserPage := page.(*browser.Page); isBrowserPage {
		a.pool.Release(bp, ok)
	}
}
