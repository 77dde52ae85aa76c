package repositories

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"songbook/internal/apperrors"
	"songbook/internal/cache"
	"songbook/internal/metrics"
	"songbook/internal/models"
)

// cachedSongRepository wraps a SongRepository with caching
type cachedSongRepository struct {
	repository SongRepository
	cache      cache.Cache
	ttl        CacheTTL
}

// CacheTTL holds the lifetimes of cached entries
type CacheTTL struct {
	Song     time.Duration
	Search   time.Duration
	Negative time.Duration // for ids that were not found
}

// DefaultCacheTTL is used for any zero field of the configured TTLs
var DefaultCacheTTL = CacheTTL{
	Song:     1 * time.Hour,
	Search:   5 * time.Minute,
	Negative: 5 * time.Minute,
}

// NewCachedSongRepository creates a new cached song repository
func NewCachedSongRepository(repository SongRepository, cache cache.Cache, ttl CacheTTL) SongRepository {
	if ttl.Song <= 0 {
		ttl.Song = DefaultCacheTTL.Song
	}
	if ttl.Search <= 0 {
		ttl.Search = DefaultCacheTTL.Search
	}
	if ttl.Negative <= 0 {
		ttl.Negative = DefaultCacheTTL.Negative
	}
	return &cachedSongRepository{
		repository: repository,
		cache:      cache,
		ttl:        ttl,
	}
}

// Cache key generators
func songIDKey(id, generation string) string { return "song:id:" + id + ":" + generation }

// songGenerationKey holds the current generation of one id. Entries are keyed by
// it, so a Fetch that raced a write stores its answer under a retired key.
func songGenerationKey(id string) string { return "song:gen:" + id }

func songSearchKey(generation string, query *Query) string {
	return "song:search:" + generation + ":" + query.Key()
}

// searchGenerationKey holds a token that changes on every write. Search keys embed
// it, so a write makes every cached search unreachable at once.
const searchGenerationKey = "song:search:generation"

// negativeMarker is cached for ids that do not exist
var negativeMarker = []byte("null")

func (r *cachedSongRepository) Create() *models.Song {
	return r.repository.Create()
}

// Save writes through and invalidates the song and every cached search
func (r *cachedSongRepository) Save(ctx context.Context, id string, song *models.Song) (string, error) {
	id, err := r.repository.Save(ctx, id, song)
	if err != nil {
		return "", err
	}
	r.invalidate(ctx, id)
	return id, nil
}

// Fetch checks cache first, then repository
func (r *cachedSongRepository) Fetch(ctx context.Context, id string) (*models.Song, error) {
	cacheKey := songIDKey(id, r.idGeneration(ctx, id))

	if data := r.get(ctx, "fetch", cacheKey); data != nil {
		if string(data) == string(negativeMarker) {
			return nil, apperrors.NotFound("fetch", "song %s not found", id)
		}
		var song models.Song
		err := json.Unmarshal(data, &song)
		if err == nil {
			return &song, nil
		}
		slog.Error("Failed to unmarshal song from cache", "key", cacheKey, "error", err)
		// Delete corrupted cache entry
		r.delete(ctx, cacheKey)
	}

	song, err := r.repository.Fetch(ctx, id)
	switch {
	case err == nil:
		r.set(ctx, cacheKey, song, r.ttl.Song)
	case apperrors.KindOf(err) == apperrors.KindNotFound:
		r.setRaw(ctx, cacheKey, negativeMarker, r.ttl.Negative)
	}
	return song, err
}

// Remove deletes through and invalidates
func (r *cachedSongRepository) Remove(ctx context.Context, id string) error {
	if err := r.repository.Remove(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// Search caches results until the next write or the search TTL, whichever comes first
func (r *cachedSongRepository) Search(ctx context.Context, query *Query) ([]*models.Song, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}

	generation := r.generation(ctx)
	cacheKey := songSearchKey(generation, query)

	if data := r.get(ctx, "search", cacheKey); data != nil {
		songs := []*models.Song{}
		err := json.Unmarshal(data, &songs)
		if err == nil {
			return songs, nil
		}
		slog.Error("Failed to unmarshal search results from cache", "key", cacheKey, "error", err)
		r.delete(ctx, cacheKey)
	}

	songs, err := r.repository.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	r.set(ctx, cacheKey, songs, r.ttl.Search)
	return songs, nil
}

// Count - not cached as it changes frequently
func (r *cachedSongRepository) Count(ctx context.Context) (int64, error) {
	return r.repository.Count(ctx)
}

// EnsureIndex may change what searches return, so cached searches are dropped
func (r *cachedSongRepository) EnsureIndex(ctx context.Context) error {
	if err := r.repository.EnsureIndex(ctx); err != nil {
		return err
	}
	r.bumpGeneration(ctx)
	return nil
}

func (r *cachedSongRepository) Health(ctx context.Context) error {
	if err := r.repository.Health(ctx); err != nil {
		return err
	}
	if err := r.cache.Health(ctx); err != nil {
		// the store still answers; a cache outage only costs latency
		slog.Warn("Cache health check failed", "error", err)
	}
	return nil
}

func (r *cachedSongRepository) Close(ctx context.Context) error {
	if err := r.cache.Close(); err != nil {
		slog.Error("Failed to close cache", "error", err)
	}
	return r.repository.Close(ctx)
}

// Helper methods for cache operations. Cache failures are logged and treated
// as misses; they never fail the request.

func (r *cachedSongRepository) get(ctx context.Context, op, key string) []byte {
	data, err := r.cache.Get(ctx, key)
	switch {
	case err != nil:
		slog.Warn("Cache read failed", "key", key, "error", err)
		metrics.CacheRequests.WithLabelValues(op, "error").Inc()
		return nil
	case data == nil:
		metrics.CacheRequests.WithLabelValues(op, "miss").Inc()
		return nil
	}
	metrics.CacheRequests.WithLabelValues(op, "hit").Inc()
	return data
}

func (r *cachedSongRepository) set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Error("Failed to marshal value for cache", "key", key, "error", err)
		return
	}
	r.setRaw(ctx, key, data, ttl)
}

func (r *cachedSongRepository) setRaw(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if err := r.cache.Set(ctx, key, data, ttl); err != nil {
		slog.Error("Failed to write cache", "key", key, "error", err)
	}
}

func (r *cachedSongRepository) delete(ctx context.Context, key string) {
	if err := r.cache.Delete(ctx, key); err != nil {
		slog.Error("Failed to delete cache entry", "key", key, "error", err)
	}
}

// idGeneration returns the current generation of id, starting one if none exists.
// It must be read before the store so a concurrent invalidate retires it.
func (r *cachedSongRepository) idGeneration(ctx context.Context, id string) string {
	data, err := r.cache.Get(ctx, songGenerationKey(id))
	if err == nil && len(data) > 0 {
		return string(data)
	}
	return r.bumpIDGeneration(ctx, id)
}

func (r *cachedSongRepository) bumpIDGeneration(ctx context.Context, id string) string {
	generation := uuid.NewString()
	// an expired generation only turns later reads into misses
	r.setRaw(ctx, songGenerationKey(id), []byte(generation), r.ttl.Song)
	return generation
}

// generation returns the current search generation, starting one if none exists
func (r *cachedSongRepository) generation(ctx context.Context) string {
	data, err := r.cache.Get(ctx, searchGenerationKey)
	if err == nil && len(data) > 0 {
		return string(data)
	}
	return r.bumpGeneration(ctx)
}

func (r *cachedSongRepository) bumpGeneration(ctx context.Context) string {
	generation := uuid.NewString()
	r.setRaw(ctx, searchGenerationKey, []byte(generation), 0)
	return generation
}

// invalidate retires the cached song and every cached search
func (r *cachedSongRepository) invalidate(ctx context.Context, id string) {
	if data, err := r.cache.Get(ctx, songGenerationKey(id)); err == nil && len(data) > 0 {
		r.delete(ctx, songIDKey(id, string(data)))
	}
	r.bumpIDGeneration(ctx, id)
	r.bumpGeneration(ctx)
}
