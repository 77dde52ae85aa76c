package repositories

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"songbook/internal/apperrors"
	"songbook/internal/metrics"
	"songbook/internal/models"
)

// RetryPolicy bounds every store call and retries the ones that failed because
// the store was unavailable
type RetryPolicy struct {
	Timeout        time.Duration // per attempt
	MaxRetries     int           // not counting the first attempt
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// resilientSongRepository applies a RetryPolicy to another repository
type resilientSongRepository struct {
	repository SongRepository
	policy     RetryPolicy
}

// NewResilientSongRepository wraps repository with per-call timeouts and retries
func NewResilientSongRepository(repository SongRepository, policy RetryPolicy) SongRepository {
	return &resilientSongRepository{repository: repository, policy: policy}
}

func (r *resilientSongRepository) Create() *models.Song {
	return r.repository.Create()
}

// Save retries only when the id is known: an insert under a generated id
// may have landed before its timeout, and retrying would store it twice.
func (r *resilientSongRepository) Save(ctx context.Context, id string, song *models.Song) (string, error) {
	var savedID string
	err := r.do(ctx, "save", id != "", func(ctx context.Context) error {
		var err error
		savedID, err = r.repository.Save(ctx, id, song)
		return err
	})
	return savedID, err
}

func (r *resilientSongRepository) Fetch(ctx context.Context, id string) (*models.Song, error) {
	var song *models.Song
	err := r.do(ctx, "fetch", true, func(ctx context.Context) error {
		var err error
		song, err = r.repository.Fetch(ctx, id)
		return err
	})
	return song, err
}

func (r *resilientSongRepository) Remove(ctx context.Context, id string) error {
	return r.do(ctx, "remove", true, func(ctx context.Context) error {
		return r.repository.Remove(ctx, id)
	})
}

func (r *resilientSongRepository) Search(ctx context.Context, query *Query) ([]*models.Song, error) {
	var songs []*models.Song
	err := r.do(ctx, "search", true, func(ctx context.Context) error {
		var err error
		songs, err = r.repository.Search(ctx, query)
		return err
	})
	return songs, err
}

func (r *resilientSongRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.do(ctx, "count", true, func(ctx context.Context) error {
		var err error
		count, err = r.repository.Count(ctx)
		return err
	})
	return count, err
}

// EnsureIndex is not bounded by the per-call timeout: rebuilding an index can take long
func (r *resilientSongRepository) EnsureIndex(ctx context.Context) error {
	return r.repository.EnsureIndex(ctx)
}

// Health is a single attempt so probes report the store as it is
func (r *resilientSongRepository) Health(ctx context.Context) error {
	return r.do(ctx, "health", false, r.repository.Health)
}

func (r *resilientSongRepository) Close(ctx context.Context) error {
	return r.repository.Close(ctx)
}

func (r *resilientSongRepository) newBackOff(ctx context.Context, retry bool) backoff.BackOff {
	if !retry || r.policy.MaxRetries <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	b := backoff.NewExponentialBackOff()
	if r.policy.InitialBackoff > 0 {
		b.InitialInterval = r.policy.InitialBackoff
	}
	if r.policy.MaxBackoff > 0 {
		b.MaxInterval = r.policy.MaxBackoff
	}
	b.MaxElapsedTime = 0 // bounded by MaxRetries
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxRetries)), ctx)
}

// do runs fn under the per-attempt timeout. Only StorageUnavailable failures are retried.
func (r *resilientSongRepository) do(ctx context.Context, op string, retry bool, fn func(context.Context) error) error {
	attempt := func() error {
		attemptCtx := ctx
		if r.policy.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
			defer cancel()
		}

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = apperrors.Unavailable(op, err)
		}
		if apperrors.KindOf(err) != apperrors.KindStorageUnavailable {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		metrics.StoreRetries.WithLabelValues(op).Inc()
		slog.Warn("Retrying store operation", "operation", op, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(attempt, r.newBackOff(ctx, retry), notify)
	if err != nil && apperrors.KindOf(err) == apperrors.KindInternal &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		// the caller's context ended between attempts
		return apperrors.Unavailable(op, err)
	}
	return err
}
