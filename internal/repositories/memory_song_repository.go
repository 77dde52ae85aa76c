package repositories

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"songbook/internal/apperrors"
	"songbook/internal/models"
)

// memorySongRepository keeps songs in process memory. Used for local runs and tests.
type memorySongRepository struct {
	mu    sync.RWMutex
	songs map[string]*models.Song
}

// NewMemorySongRepository creates an empty in-memory song repository
func NewMemorySongRepository() SongRepository {
	return &memorySongRepository{songs: make(map[string]*models.Song)}
}

func (r *memorySongRepository) Create() *models.Song {
	return models.NewSong()
}

func (r *memorySongRepository) Save(ctx context.Context, id string, song *models.Song) (string, error) {
	if id == "" {
		id = uuid.NewString()
	} else if err := validateID("save", id); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.songs[id] = stored(id, song)
	return saved(id, song)
}

func (r *memorySongRepository) Fetch(ctx context.Context, id string) (*models.Song, error) {
	if err := validateID("fetch", id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	song, ok := r.songs[id]
	if !ok {
		return nil, apperrors.NotFound("fetch", "song %s not found", id)
	}
	return song.Clone(), nil
}

func (r *memorySongRepository) Remove(ctx context.Context, id string) error {
	if err := validateID("remove", id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.songs, id)
	return nil
}

func (r *memorySongRepository) Search(ctx context.Context, query *Query) ([]*models.Song, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	songs := []*models.Song{}
	for _, song := range r.songs {
		if query.Matches(song) {
			songs = append(songs, song.Clone())
		}
	}
	return songs, nil
}

func (r *memorySongRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.songs)), nil
}

func (r *memorySongRepository) EnsureIndex(ctx context.Context) error { return nil }

func (r *memorySongRepository) Health(ctx context.Context) error { return nil }

func (r *memorySongRepository) Close(ctx context.Context) error { return nil }
