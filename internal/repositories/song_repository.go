package repositories

import (
	"context"
	"strings"
	"unicode"

	"songbook/internal/apperrors"
	"songbook/internal/models"
)

// SongRepository defines the interface for song data operations.
// Every backend and decorator implements it; errors carry an apperrors.Kind.
type SongRepository interface {
	// Create returns a fresh, unsaved song with every field null
	Create() *models.Song

	// Save stores song under id, replacing any prior record wholesale.
	// An empty id makes the store generate one. Returns the id the record was stored
	// under; on success song.ID is set to it.
	Save(ctx context.Context, id string, song *models.Song) (string, error)

	// Fetch returns the song stored under id, or a NotFound error
	Fetch(ctx context.Context, id string) (*models.Song, error)

	// Remove deletes the song stored under id. Removing a missing id succeeds.
	Remove(ctx context.Context, id string) error

	// Search returns every song matching query, in no particular order
	Search(ctx context.Context, query *Query) ([]*models.Song, error)

	// Maintenance operations
	Count(ctx context.Context) (int64, error)
	EnsureIndex(ctx context.Context) error
	Health(ctx context.Context) error
	Close(ctx context.Context) error
}

const maxIDLength = 512

// validateID rejects ids no backend can key a record by
func validateID(op, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.InvalidArgument(op, "song id must not be empty")
	}
	if len(id) > maxIDLength {
		return apperrors.InvalidArgument(op, "song id is longer than %d bytes", maxIDLength)
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return apperrors.InvalidArgument(op, "song id must not contain control characters")
	}
	return nil
}

// validateQuery rejects nil queries and queries that failed to build
func validateQuery(query *Query) error {
	if query == nil {
		return apperrors.InvalidArgument("search", "query is required")
	}
	return query.Err()
}

// saved records the effective id on the caller's song once the store has accepted it
func saved(id string, song *models.Song) (string, error) {
	if song != nil {
		song.ID = id
	}
	return id, nil
}

// stored returns the copy of song that gets written under id
func stored(id string, song *models.Song) *models.Song {
	doc := song.Clone()
	if doc == nil {
		doc = models.NewSong()
	}
	doc.ID = id
	return doc
}
