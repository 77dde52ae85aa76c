package repositories

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/typesense/typesense-go/typesense"
	"github.com/typesense/typesense-go/typesense/api"

	"songbook/internal/apperrors"
	"songbook/internal/models"
)

func TestTypesenseSearchParams(t *testing.T) {
	params, err := typesenseSearchParams(NewQuery())
	require.NoError(t, err)
	assert.Equal(t, "*", params.Q)
	assert.Equal(t, "lyrics,music", params.QueryBy)
	assert.Nil(t, params.FilterBy)
	assert.Equal(t, typesensePageSize, *params.PerPage)

	params, err = typesenseSearchParams(NewQuery().
		Where("artist").Eq("AC/DC").
		Where("genres").Contains("hard rock").
		Where("year").Between(1975, 1980))
	require.NoError(t, err)
	require.NotNil(t, params.FilterBy)
	assert.Equal(t, "artist:=`AC/DC` && genres:=`hard rock` && year:[1975..1980]", *params.FilterBy)

	params, err = typesenseSearchParams(NewQuery().Where("lyrics").Match("highway to hell"))
	require.NoError(t, err)
	assert.Equal(t, "highway to hell", params.Q)
	assert.Equal(t, "lyrics", params.QueryBy)
}

func TestTypesenseSearchParams_RejectsBacktick(t *testing.T) {
	_, err := typesenseSearchParams(NewQuery().Where("artist").Eq("a`b"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestTypesenseDocument(t *testing.T) {
	song := &models.Song{
		ID:     "abc",
		Title:  models.String("A"),
		Genres: []string{},
		Year:   models.Int(1990),
	}

	assert.Equal(t, map[string]interface{}{
		"id":     "abc",
		"title":  "A",
		"genres": []string{},
		"year":   1990,
	}, typesenseDocument(song))
}

func TestSongFromDocument(t *testing.T) {
	// documents arrive as decoded JSON
	doc := map[string]interface{}{
		"id":       "abc",
		"title":    "A",
		"artist":   "X",
		"genres":   []interface{}{"rock", "pop"},
		"year":     float64(1990),
		"duration": float64(185),
	}

	song, err := songFromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, &models.Song{
		ID:       "abc",
		Title:    models.String("A"),
		Artist:   models.String("X"),
		Genres:   []string{"rock", "pop"},
		Year:     models.Int(1990),
		Duration: models.Int(185),
	}, song)
}

func TestSongFromDocument_Malformed(t *testing.T) {
	_, err := songFromDocument(map[string]interface{}{"title": "no id"})
	assert.ErrorIs(t, err, apperrors.ErrInternal)

	_, err = songFromDocument(map[string]interface{}{"id": "a", "genres": []interface{}{"rock", 1.0}})
	assert.ErrorIs(t, err, apperrors.ErrInternal)

	_, err = songFromDocument(map[string]interface{}{"id": "a", "year": "1990"})
	assert.ErrorIs(t, err, apperrors.ErrInternal)
}

func TestSameTypesenseFields(t *testing.T) {
	want := typesenseFields(models.SongSchema)

	have := append([]api.Field{{Name: "id", Type: "string"}}, want...)
	assert.True(t, sameTypesenseFields(have, want))

	changed := make([]api.Field, len(want))
	copy(changed, want)
	changed[len(changed)-1].Type = "int64"
	assert.False(t, sameTypesenseFields(changed, want))

	assert.False(t, sameTypesenseFields(want[:3], want))
}

func TestClassifyTypesenseError(t *testing.T) {
	assert.ErrorIs(t, classifyTypesenseError("search", &typesense.HTTPError{Status: 503}), apperrors.ErrStorageUnavailable)
	assert.ErrorIs(t, classifyTypesenseError("search", &typesense.HTTPError{Status: 400, Body: []byte("bad filter")}), apperrors.ErrInternal)
	assert.ErrorIs(t, classifyTypesenseError("search", errors.New("connection refused")), apperrors.ErrStorageUnavailable)

	assert.True(t, isTypesenseStatus(&typesense.HTTPError{Status: 404}, 404))
	assert.False(t, isTypesenseStatus(errors.New("404"), 404))
}
