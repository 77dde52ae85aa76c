package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/valkey-io/valkey-go"

	"songbook/internal/cache"
	"songbook/internal/config"
	"songbook/internal/handlers"
	"songbook/internal/middleware"
	"songbook/internal/models"
	"songbook/internal/repositories"
)

// CachePrefix namespaces cache entries in a Valkey instance shared with the song index
const CachePrefix = "songbook:cache:"

// version is set at build time with -ldflags "-X songbook/internal/app.version=..."
var version string

// App holds the long-lived objects built from configuration
type App struct {
	Config     *config.Config
	Backend    string
	Repository repositories.SongRepository
	Cache      cache.Cache // nil when caching is disabled

	closers []func(context.Context) error
}

// Bootstrap connects to the configured store and assembles the repository chain:
// store, retries and timeouts, optional cache, then metrics and tracing.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Backend: string(cfg.StoreBackend)}

	var valkeyClient valkey.Client
	connectValkey := func() (valkey.Client, error) {
		if valkeyClient != nil {
			return valkeyClient, nil
		}
		client, err := cache.NewValkeyClient(ctx, cfg.ValkeyURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to valkey: %w", err)
		}
		valkeyClient = client
		return client, nil
	}

	var store repositories.SongRepository
	switch cfg.StoreBackend {
	case config.StoreMongo:
		db, err := models.NewDatabase(ctx, cfg.MongodbURL, cfg.MongodbDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		store = repositories.NewMongoSongRepository(db)
	case config.StoreTypesense:
		client := repositories.NewTypesenseClient(cfg.TypesenseHost, cfg.TypesenseAPIKey, cfg.StoreTimeout)
		store = repositories.NewTypesenseSongRepository(client, cfg.TypesenseCollection)
	case config.StoreValkey:
		client, err := connectValkey()
		if err != nil {
			return nil, err
		}
		// the repository owns the client and closes it
		store = repositories.NewValkeySongRepository(client, cfg.ValkeyIndex, cfg.ValkeyPrefix)
	case config.StoreMemory:
		store = repositories.NewMemorySongRepository()
	default:
		return nil, fmt.Errorf("unsupported store backend: %q", cfg.StoreBackend)
	}

	repo := repositories.NewResilientSongRepository(store, repositories.RetryPolicy{
		Timeout:        cfg.StoreTimeout,
		MaxRetries:     cfg.StoreMaxRetries,
		InitialBackoff: cfg.StoreRetryBackoff,
	})

	if cfg.CacheEnabled {
		songCache, err := a.newCache(cfg, connectValkey)
		if err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		a.Cache = songCache
		repo = repositories.NewCachedSongRepository(repo, songCache, repositories.CacheTTL{
			Song:   cfg.CacheSongTTL,
			Search: cfg.CacheSearchTTL,
		})
	}

	a.Repository = repositories.NewInstrumentedSongRepository(repo, a.Backend)

	slog.Info("Song repository ready",
		"backend", a.Backend,
		"cache", cfg.CacheEnabled,
		"timeout", cfg.StoreTimeout,
		"maxRetries", cfg.StoreMaxRetries)

	return a, nil
}

// newCache uses Valkey as the shared level when VALKEY_URL is set and a
// process-local LRU otherwise
func (a *App) newCache(cfg *config.Config, connectValkey func() (valkey.Client, error)) (cache.Cache, error) {
	if cfg.ValkeyURL == "" {
		slog.Info("Using in-process cache", "maxItems", cfg.CacheL1Items)
		return cache.NewMemoryCache(cfg.CacheL1Items), nil
	}

	shared := cfg.StoreBackend == config.StoreValkey
	client, err := connectValkey()
	if err != nil {
		return nil, err
	}
	if !shared {
		a.closers = append(a.closers, func(context.Context) error {
			client.Close()
			return nil
		})
	}

	slog.Info("Using multi-level cache", "l1Items", cfg.CacheL1Items, "l1TTL", cfg.CacheL1TTL)
	return cache.NewMultiLevelCache(cache.NewValkeyCache(client, CachePrefix), cfg.CacheL1Items, cfg.CacheL1TTL), nil
}

// Router builds the HTTP handler with every route mounted
func (a *App) Router() *gin.Engine {
	router := gin.New()
	// path values such as "AC%2FDC" reach handlers decoded but unsplit
	router.UseRawPath = true
	router.UnescapePathValues = true

	mw := middleware.NewMiddleware(a.Config.RateLimitRPS, a.Config.RateLimitBurst)
	router.Use(mw.Recovery(), mw.RequestID(), mw.Logger(), mw.Observe())

	handlers.NewSystemHandler(a.Config.ServiceName, ServiceVersion(a.Config), a.Repository, a.Cache).RegisterRoutes(router)

	api := router.Group("", mw.RateLimit())
	handlers.NewSongHandler(a.Repository).RegisterRoutes(api)
	handlers.NewAdminHandler(a.Repository, a.Backend, a.Config.CacheEnabled).RegisterRoutes(api)

	return router
}

// Close releases the repository chain and any connection it does not own
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Repository != nil {
		if err := a.Repository.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, closeFn := range a.closers {
		if err := closeFn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ServiceVersion prefers SERVICE_VERSION, then the linker-set version, then build info
func ServiceVersion(cfg *config.Config) string {
	if cfg != nil && cfg.ServiceVersion != "" {
		return cfg.ServiceVersion
	}
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
