package repositories

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songbook/internal/apperrors"
	"songbook/internal/cache"
	"songbook/internal/models"
)

// testContract runs the behaviour every SongRepository must share against repositories built by newRepo
func testContract(t *testing.T, newRepo func(t *testing.T) SongRepository) {
	t.Run("round trip", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		song := &models.Song{
			Title:    models.String("Bohemian Rhapsody"),
			Artist:   models.String("Queen"),
			Genres:   []string{"rock", "opera"},
			Lyrics:   models.String("Is this the real life"),
			Music:    models.String("Mercury"),
			Year:     models.Int(1975),
			Duration: models.Int(355),
			Link:     models.String("https://example.com/1"),
		}

		id, err := repo.Save(ctx, "queen-1", song)
		require.NoError(t, err)
		assert.Equal(t, "queen-1", id)

		got, err := repo.Fetch(ctx, id)
		require.NoError(t, err)

		assert.Equal(t, id, song.ID, "save records the effective id on the song")
		assert.Equal(t, song, got)
	})

	t.Run("save replaces wholesale", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		_, err := repo.Save(ctx, "abc", &models.Song{Title: models.String("A"), Artist: models.String("X"), Year: models.Int(1990)})
		require.NoError(t, err)
		_, err = repo.Save(ctx, "abc", &models.Song{Title: models.String("B")})
		require.NoError(t, err)

		got, err := repo.Fetch(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, &models.Song{ID: "abc", Title: models.String("B")}, got)
	})

	t.Run("generated ids are distinct", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		id1, err := repo.Save(ctx, "", &models.Song{Title: models.String("one")})
		require.NoError(t, err)
		id2, err := repo.Save(ctx, "", &models.Song{Title: models.String("two")})
		require.NoError(t, err)

		assert.NotEmpty(t, id1)
		assert.NotEqual(t, id1, id2)

		got, err := repo.Fetch(ctx, id2)
		require.NoError(t, err)
		assert.Equal(t, "two", *got.Title)
	})

	t.Run("fetch missing is NotFound", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Fetch(context.Background(), "does-not-exist")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("create returns an unsaved record", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		song := repo.Create()
		require.NotNil(t, song)
		assert.Equal(t, models.NewSong(), song)
		assert.Empty(t, song.ID)

		song.Title = models.String("draft")
		_, err := repo.Fetch(ctx, "draft")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		id, err := repo.Save(ctx, "", song)
		require.NoError(t, err)
		got, err := repo.Fetch(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "draft", *got.Title)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		_, err := repo.Save(ctx, "gone", &models.Song{Title: models.String("A")})
		require.NoError(t, err)

		require.NoError(t, repo.Remove(ctx, "gone"))
		require.NoError(t, repo.Remove(ctx, "gone"))
		require.NoError(t, repo.Remove(ctx, "does-not-exist"))

		_, err = repo.Fetch(ctx, "gone")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("empty ids are rejected", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		_, err := repo.Fetch(ctx, "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
		assert.ErrorIs(t, repo.Remove(ctx, " "), apperrors.ErrInvalidArgument)
	})

	t.Run("search by artist", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		id, err := repo.Save(ctx, "", &models.Song{
			Title:    models.String("A"),
			Artist:   models.String("X"),
			Year:     models.Int(1990),
			Genres:   []string{"rock"},
			Duration: models.Int(185),
		})
		require.NoError(t, err)
		_, err = repo.Save(ctx, "", &models.Song{Title: models.String("C"), Artist: models.String("Xavier")})
		require.NoError(t, err)

		songs, err := repo.Search(ctx, NewQuery().Where("artist").Eq("X"))
		require.NoError(t, err)
		require.Len(t, songs, 1)
		assert.Equal(t, id, songs[0].ID)
		assert.Equal(t, "3:05", songs[0].DurationAsString())
	})

	t.Run("between is inclusive on both ends", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		seedYears(t, repo, 1989, 1990, 1995, 2000, 2001)
		_, err := repo.Save(ctx, "no-year", &models.Song{Title: models.String("undated")})
		require.NoError(t, err)

		songs, err := repo.Search(ctx, NewQuery().Where("year").Between(1990, 2000))
		require.NoError(t, err)
		assert.Equal(t, []int{1990, 1995, 2000}, years(songs))

		songs, err = repo.Search(ctx, NewQuery().Where("year").Between(2000, 1990))
		require.NoError(t, err)
		assert.Empty(t, songs)
	})

	t.Run("contains is an exact element match", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		_, err := repo.Save(ctx, "punk", &models.Song{Genres: []string{"punk"}})
		require.NoError(t, err)
		_, err = repo.Save(ctx, "post-punk", &models.Song{Genres: []string{"post-punk", "new wave"}})
		require.NoError(t, err)
		_, err = repo.Save(ctx, "none", &models.Song{})
		require.NoError(t, err)

		songs, err := repo.Search(ctx, NewQuery().Where("genres").Contains("punk"))
		require.NoError(t, err)
		assert.Equal(t, []string{"punk"}, ids(songs))

		songs, err = repo.Search(ctx, NewQuery().Where("genres").Contains("new wave"))
		require.NoError(t, err)
		assert.Equal(t, []string{"post-punk"}, ids(songs))
	})

	t.Run("match needs every term", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		_, err := repo.Save(ctx, "both", &models.Song{Lyrics: models.String("Yellow submarine, we all live")})
		require.NoError(t, err)
		_, err = repo.Save(ctx, "one", &models.Song{Lyrics: models.String("Mellow yellow")})
		require.NoError(t, err)

		songs, err := repo.Search(ctx, NewQuery().Where("lyrics").Match("submarine YELLOW"))
		require.NoError(t, err)
		assert.Equal(t, []string{"both"}, ids(songs))
	})

	t.Run("search all and count", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		songs, err := repo.Search(ctx, NewQuery())
		require.NoError(t, err)
		assert.NotNil(t, songs)
		assert.Empty(t, songs)

		seedYears(t, repo, 2001, 2002)
		songs, err = repo.Search(ctx, NewQuery())
		require.NoError(t, err)
		assert.Len(t, songs, 2)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("search reflects writes", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		query := NewQuery().Where("artist").Eq("X")

		songs, err := repo.Search(ctx, query)
		require.NoError(t, err)
		assert.Empty(t, songs)

		_, err = repo.Save(ctx, "x1", &models.Song{Artist: models.String("X")})
		require.NoError(t, err)
		songs, err = repo.Search(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, []string{"x1"}, ids(songs))

		require.NoError(t, repo.Remove(ctx, "x1"))
		songs, err = repo.Search(ctx, query)
		require.NoError(t, err)
		assert.Empty(t, songs)
	})

	t.Run("invalid queries", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Search(context.Background(), NewQuery().Where("album").Eq("x"))
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

		_, err = repo.Search(context.Background(), nil)
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	})
}

func seedYears(t *testing.T, repo SongRepository, values ...int) {
	t.Helper()
	for _, year := range values {
		_, err := repo.Save(context.Background(), fmt.Sprintf("year-%d", year), &models.Song{Year: models.Int(year)})
		require.NoError(t, err)
	}
}

func years(songs []*models.Song) []int {
	out := make([]int, 0, len(songs))
	for _, s := range songs {
		out = append(out, *s.Year)
	}
	sort.Ints(out)
	return out
}

func ids(songs []*models.Song) []string {
	out := make([]string, 0, len(songs))
	for _, s := range songs {
		out = append(out, s.ID)
	}
	sort.Strings(out)
	return out
}

func TestMemorySongRepository_Contract(t *testing.T) {
	testContract(t, func(t *testing.T) SongRepository {
		return NewMemorySongRepository()
	})
}

func TestDecoratedSongRepository_Contract(t *testing.T) {
	testContract(t, func(t *testing.T) SongRepository {
		var repo SongRepository = NewMemorySongRepository()
		repo = NewResilientSongRepository(repo, RetryPolicy{Timeout: time.Second, MaxRetries: 2, InitialBackoff: time.Millisecond})
		repo = NewCachedSongRepository(repo, cache.NewMultiLevelCache(cache.NewMemoryCache(100), 10, time.Minute), CacheTTL{})
		return NewInstrumentedSongRepository(repo, "memory")
	})
}
