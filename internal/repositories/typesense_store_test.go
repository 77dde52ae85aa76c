package repositories_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songbook/internal/apperrors"
	"songbook/internal/models"
	"songbook/internal/repositories"
	"songbook/internal/testutil"
)

const testCollection = "songs"

func newTypesenseStore(t *testing.T) (*testutil.TypesenseServer, repositories.SongRepository) {
	t.Helper()
	server := testutil.NewTypesenseServer()
	t.Cleanup(server.Close)

	client := repositories.NewTypesenseClient(server.URL(), "test-key", 5*time.Second)
	return server, repositories.NewTypesenseSongRepository(client, testCollection)
}

func TestTypesenseSongRepository_Contract(t *testing.T) {
	repositories.RunContract(t, func(t *testing.T) repositories.SongRepository {
		_, repo := newTypesenseStore(t)
		require.NoError(t, repo.EnsureIndex(context.Background()))
		return repo
	})
}

func TestTypesenseSongRepository_SaveWritesDocument(t *testing.T) {
	ctx := context.Background()
	server, repo := newTypesenseStore(t)
	require.NoError(t, repo.EnsureIndex(ctx))

	song := testutil.NewSongBuilder().WithTitle("A").WithGenres("rock").WithYear(1990).Build()
	id, err := repo.Save(ctx, "", song)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, song.ID)

	doc, ok := server.Document(testCollection, id)
	require.True(t, ok)
	assert.Equal(t, id, doc["id"])
	assert.Equal(t, "A", doc["title"])
	assert.Equal(t, []any{"rock"}, doc["genres"])
	assert.Equal(t, float64(1990), doc["year"])
	assert.NotContains(t, doc, "artist", "null fields are left out")
}

func TestTypesenseSongRepository_MissingDocuments(t *testing.T) {
	ctx := context.Background()
	_, repo := newTypesenseStore(t)
	require.NoError(t, repo.EnsureIndex(ctx))

	_, err := repo.Fetch(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, repo.Remove(ctx, "nope"))
}

func TestTypesenseSongRepository_ServerErrors(t *testing.T) {
	ctx := context.Background()
	server, repo := newTypesenseStore(t)
	require.NoError(t, repo.EnsureIndex(ctx))

	server.FailWith(http.StatusServiceUnavailable)
	_, err := repo.Save(ctx, "abc", models.NewSong())
	assert.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
	_, err = repo.Fetch(ctx, "abc")
	assert.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
	assert.ErrorIs(t, repo.Remove(ctx, "abc"), apperrors.ErrStorageUnavailable)
	_, err = repo.Search(ctx, repositories.NewQuery())
	assert.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
	assert.ErrorIs(t, repo.Health(ctx), apperrors.ErrStorageUnavailable)

	server.FailWith(0)
	assert.NoError(t, repo.Health(ctx))

	// an unreachable server is unavailability too
	server.Close()
	_, err = repo.Count(ctx)
	assert.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
}

func TestTypesenseSongRepository_SearchPages(t *testing.T) {
	tests := []struct {
		name  string
		songs int
		pages []int
	}{
		{"empty", 0, []int{1}},
		{"one short page", 3, []int{1}},
		{"exactly one page", 250, []int{1, 2}},
		{"partial last page", 501, []int{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			server, repo := newTypesenseStore(t)
			require.NoError(t, repo.EnsureIndex(ctx))
			for i := 0; i < tt.songs; i++ {
				server.PutDocument(testCollection, map[string]any{
					"id":     fmt.Sprintf("song-%04d", i),
					"artist": "X",
					"year":   float64(1900 + i%100),
				})
			}

			songs, err := repo.Search(ctx, repositories.NewQuery().Where("artist").Eq("X"))
			require.NoError(t, err)
			assert.Len(t, songs, tt.songs)
			assert.Equal(t, tt.pages, server.SearchPages())
		})
	}
}

func TestTypesenseSongRepository_SearchRechecksHits(t *testing.T) {
	ctx := context.Background()
	server, repo := newTypesenseStore(t)
	require.NoError(t, repo.EnsureIndex(ctx))

	server.PutDocument(testCollection, map[string]any{"id": "x", "artist": "X"})
	server.PutDocument(testCollection, map[string]any{"id": "xavier", "artist": "Xavier"})
	server.PutDocument(testCollection, map[string]any{"id": "broken", "artist": 12})

	songs, err := repo.Search(ctx, repositories.NewQuery().Where("artist").Eq("X"))
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, "x", songs[0].ID)
}

func TestTypesenseSongRepository_EnsureIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a missing collection", func(t *testing.T) {
		server, repo := newTypesenseStore(t)

		require.NoError(t, repo.EnsureIndex(ctx))
		fields := server.Fields(testCollection)
		require.Len(t, fields, len(models.SongSchema.Fields))
		assert.Equal(t, "title", fields[0]["name"])
		assert.Equal(t, true, fields[0]["optional"])
	})

	t.Run("keeps a current collection", func(t *testing.T) {
		server, repo := newTypesenseStore(t)
		require.NoError(t, repo.EnsureIndex(ctx))
		server.PutDocument(testCollection, map[string]any{"id": "kept"})

		require.NoError(t, repo.EnsureIndex(ctx))
		_, ok := server.Document(testCollection, "kept")
		assert.True(t, ok)
	})

	t.Run("recreates a drifted collection", func(t *testing.T) {
		server, repo := newTypesenseStore(t)
		server.PutCollection(testCollection, []map[string]any{{"name": "title", "type": "string"}})
		server.PutDocument(testCollection, map[string]any{"id": "old"})

		require.NoError(t, repo.EnsureIndex(ctx))
		assert.Len(t, server.Fields(testCollection), len(models.SongSchema.Fields))
		_, ok := server.Document(testCollection, "old")
		assert.False(t, ok)
	})

	t.Run("a collection created concurrently is accepted", func(t *testing.T) {
		server, repo := newTypesenseStore(t)
		server.ConflictOnCreate()

		assert.NoError(t, repo.EnsureIndex(ctx))
	})

	t.Run("server errors", func(t *testing.T) {
		server, repo := newTypesenseStore(t)
		server.FailWith(http.StatusInternalServerError)

		assert.ErrorIs(t, repo.EnsureIndex(ctx), apperrors.ErrStorageUnavailable)
	})
}
