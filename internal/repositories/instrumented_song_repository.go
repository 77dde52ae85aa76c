package repositories

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"songbook/internal/apperrors"
	"songbook/internal/metrics"
	"songbook/internal/models"
	"songbook/internal/tracing"
)

// instrumentedSongRepository records a latency histogram sample and a span for every call
type instrumentedSongRepository struct {
	repository SongRepository
	backend    string
}

// NewInstrumentedSongRepository wraps repository with metrics and tracing, labelled with backend
func NewInstrumentedSongRepository(repository SongRepository, backend string) SongRepository {
	return &instrumentedSongRepository{repository: repository, backend: backend}
}

func (r *instrumentedSongRepository) Create() *models.Song {
	return r.repository.Create()
}

func (r *instrumentedSongRepository) Save(ctx context.Context, id string, song *models.Song) (savedID string, err error) {
	ctx, done := r.observe(ctx, "save")
	defer func() { done(err) }()
	return r.repository.Save(ctx, id, song)
}

func (r *instrumentedSongRepository) Fetch(ctx context.Context, id string) (song *models.Song, err error) {
	ctx, done := r.observe(ctx, "fetch")
	defer func() { done(err) }()
	return r.repository.Fetch(ctx, id)
}

func (r *instrumentedSongRepository) Remove(ctx context.Context, id string) (err error) {
	ctx, done := r.observe(ctx, "remove")
	defer func() { done(err) }()
	return r.repository.Remove(ctx, id)
}

func (r *instrumentedSongRepository) Search(ctx context.Context, query *Query) (songs []*models.Song, err error) {
	ctx, done := r.observe(ctx, "search", attribute.String("store.query", queryKey(query)))
	defer func() { done(err) }()
	return r.repository.Search(ctx, query)
}

func (r *instrumentedSongRepository) Count(ctx context.Context) (count int64, err error) {
	ctx, done := r.observe(ctx, "count")
	defer func() { done(err) }()
	return r.repository.Count(ctx)
}

func (r *instrumentedSongRepository) EnsureIndex(ctx context.Context) (err error) {
	ctx, done := r.observe(ctx, "ensure_index")
	defer func() { done(err) }()
	return r.repository.EnsureIndex(ctx)
}

func (r *instrumentedSongRepository) Health(ctx context.Context) (err error) {
	ctx, done := r.observe(ctx, "health")
	defer func() { done(err) }()
	return r.repository.Health(ctx)
}

func (r *instrumentedSongRepository) Close(ctx context.Context) error {
	return r.repository.Close(ctx)
}

// observe starts a span and a timer; the returned func ends both
func (r *instrumentedSongRepository) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracing.StartStoreSpan(ctx, r.backend, op)
	span.SetAttributes(attrs...)

	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = string(apperrors.KindOf(err))
		}
		span.SetAttributes(attribute.String("store.outcome", outcome))
		elapsed := time.Since(start)
		metrics.ObserveStoreOperation(r.backend, op, outcome, elapsed)

		switch apperrors.KindOf(err) {
		case apperrors.KindStorageUnavailable, apperrors.KindInternal:
			tracing.End(span, err)
			slog.Error("Store operation failed", "backend", r.backend, "operation", op, "duration", elapsed, "error", err)
		default:
			// NotFound and InvalidArgument are ordinary answers, not span errors
			tracing.End(span, nil)
			slog.Debug("Store operation", "backend", r.backend, "operation", op, "duration", elapsed, "outcome", outcome)
		}
	}
}

func queryKey(query *Query) string {
	if query == nil {
		return ""
	}
	return query.Key()
}
