package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowmaps/internal/analytics"
	"github.com/kailas-cloud/knowmaps/internal/config"
	"github.com/kailas-cloud/knowmaps/internal/db"
	"github.com/kailas-cloud/knowmaps/internal/db/memory"
	dbRedis "github.com/kailas-cloud/knowmaps/internal/db/redis"
	"github.com/kailas-cloud/knowmaps/internal/domain"
	"github.com/kailas-cloud/knowmaps/internal/metrics"
	"github.com/kailas-cloud/knowmaps/internal/repository/catalog"
	"github.com/kailas-cloud/knowmaps/internal/repository/embcache"
	"github.com/kailas-cloud/knowmaps/internal/repository/interaction"
	"github.com/kailas-cloud/knowmaps/internal/transport/foursquare"
	openaiTransport "github.com/kailas-cloud/knowmaps/internal/transport/openai"
	"github.com/kailas-cloud/knowmaps/internal/usecase/detail"
	embeddinguc "github.com/kailas-cloud/knowmaps/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/knowmaps/internal/usecase/health"
	profileuc "github.com/kailas-cloud/knowmaps/internal/usecase/profile"
	"github.com/kailas-cloud/knowmaps/internal/usecase/ranking"
	searchuc "github.com/kailas-cloud/knowmaps/internal/usecase/search"
)

// app holds the wired services shared by the serve and search commands.
type app struct {
	store        db.Store
	cache        *embcache.Cache
	sink         *analytics.Sink
	catalog      *catalog.Catalog
	interactions *interaction.Repo
	search       *searchuc.Service
	health       *healthuc.Service
	logger       *zap.Logger
}

// buildApp is the composition root.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	snap, err := snapshotStore(cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	cache := embcache.Open(ctx, snap, logger, embcache.WithPersistMetrics(metrics.EmbeddingCachePersistTotal))

	emb := buildEmbedder(cfg.Embedding, cache, logger)
	dim := cfg.Embedding.Dimensions

	cat := catalog.New(catalog.DefaultIntentCapacity)
	interactions := interaction.New(store, cfg.Database.KeyPrefix)

	// Items are cached under item keys only; the text cache would duplicate every entry.
	items := embeddinguc.NewItemBuilder(emb.raw, cache, dim, metrics.EmbeddingCacheTotal, logger)
	profiles := profileuc.NewBuilder(emb.text, items, cat, dim, logger)
	ranker := ranking.NewEngine(profiles, items, nil)

	if cfg.Foursquare.APIKey == "" {
		logger.Warn("Foursquare API key is empty, provider calls will fail")
	}
	fsq := foursquare.NewClient(foursquare.Config{
		BaseURL:         cfg.Foursquare.BaseURL,
		APIKey:          cfg.Foursquare.APIKey,
		Timeout:         time.Duration(cfg.Foursquare.TimeoutSec) * time.Second,
		RequestsPerSec:  cfg.Foursquare.RequestsPerSec,
		Burst:           cfg.Foursquare.Burst,
		BreakerFailures: cfg.Foursquare.BreakerFailures,
		BreakerOpen:     time.Duration(cfg.Foursquare.BreakerOpenSec) * time.Second,
		RecommendLimit:  cfg.Foursquare.RecommendLimit,
	}, logger)

	cachedDetails, err := detail.NewCachedProvider(fsq, cfg.Search.DetailCacheSize, metrics.DetailCacheTotal)
	if err != nil {
		_ = cache.Close(ctx)
		store.Close()
		return nil, fmt.Errorf("detail cache: %w", err)
	}
	scheduler := detail.NewScheduler(cfg.Search.DetailConcurrency,
		detail.WithGauges(metrics.DetailFetchesActive, metrics.DetailFetchesWaiting))
	details := detail.NewPrefetcher(cachedDetails, scheduler, cfg.Search.PrefetchWindow, logger)

	sink := analytics.NewSink(0, logger, analytics.WithMetrics(metrics.AnalyticsEventsTotal))

	deps := searchuc.Deps{
		Places:          fsq,
		Recommendations: fsq,
		Details:         details,
		Ranker:          ranker,
		Profiles:        interactions,
		Indexer:         cat,
		Analytics:       sink,
	}
	if cfg.Classifier.Enabled {
		deps.Classifier = openaiTransport.NewClassifier(&openaiTransport.Config{
			APIKey:  cfg.Classifier.APIKey,
			BaseURL: cfg.Classifier.BaseURL,
			Model:   cfg.Classifier.Model,
			Logger:  logger,
		})
	}

	search := searchuc.New(deps, searchuc.Config{
		DefaultRadius:    cfg.Search.DefaultRadius,
		DefaultLimit:     cfg.Search.DefaultLimit,
		ProviderTimeout:  time.Duration(cfg.Search.ProviderTimeoutSec) * time.Second,
		ReselectDebounce: cfg.Search.ReselectDebounce,
	}, logger)

	health := healthuc.New(store, map[string]healthuc.Checker{
		"embedding": emb.health,
		"places":    fsq,
	})

	logger.Info("Search pipeline ready",
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("dimensions", dim),
		zap.Bool("classifier", cfg.Classifier.Enabled),
		zap.Int("prefetch_window", details.Window()),
		zap.Int("detail_concurrency", scheduler.Limit()),
	)

	return &app{
		store:        store,
		cache:        cache,
		sink:         sink,
		catalog:      cat,
		interactions: interactions,
		search:       search,
		health:       health,
		logger:       logger,
	}, nil
}

// Close flushes the analytics queue and the embedding snapshot, then closes storage.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if err := a.sink.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("analytics: %w", err))
	}
	if err := a.cache.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("embedding cache: %w", err))
	}
	a.store.Close()
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (db.Store, error) {
	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	default:
		store = memory.NewStore()
	}
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	return store, nil
}

func snapshotStore(cfg config.Config, store db.KVStore) (embcache.Snapshotter, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return embcache.NewKVStore(store, cfg.Database.KeyPrefix+cfg.Cache.RedisKey), nil
	case "file":
		return embcache.NewFileStore(cfg.Cache.Path), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// buildEmbedder assembles the decorator chain:
// OpenAI -> Instrumented (budget) -> Degrading (hashing fallback) -> Cached.
// The hashing provider skips the remote layers.
// embedders holds the text embedding chain in its cached and uncached forms.
type embedders struct {
	text   domain.Embedder
	raw    domain.Embedder
	health healthuc.Checker // nil for the local hashing provider
}

func buildEmbedder(cfg config.EmbeddingConfig, cache *embcache.Cache, logger *zap.Logger) embedders {
	hashing := embeddinguc.NewHashingEmbedder(cfg.Dimensions)

	if cfg.Provider != "openai" {
		return embedders{
			text: embcache.NewCachedEmbedder(hashing, cache, metrics.EmbeddingCacheTotal, logger),
			raw:  hashing,
		}
	}

	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	// Pass a nil interface, not a typed nil pointer, when no budget is configured.
	var budget embeddinguc.BudgetChecker
	if cfg.Budget.DailyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if cfg.Budget.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(cfg.Provider, cfg.Budget.DailyTokenLimit, action, logger)
	}

	instrumented := embeddinguc.NewInstrumentedEmbedder(base, cfg.Provider, cfg.Model, budget, logger)
	degrading := embeddinguc.NewDegradingEmbedder(instrumented, hashing, metrics.EmbeddingFallbacksTotal, logger)
	return embedders{
		text:   embcache.NewCachedEmbedder(degrading, cache, metrics.EmbeddingCacheTotal, logger),
		raw:    degrading,
		health: base,
	}
}
