package repositories

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songbook/internal/apperrors"
	"songbook/internal/models"
)

func TestValkeyQuery(t *testing.T) {
	tests := []struct {
		name  string
		query *Query
		want  string
	}{
		{"all", NewQuery(), "*"},
		{"eq", NewQuery().Where("artist").Eq("AC/DC"), `@artist:{AC\/DC}`},
		{"eq with spaces", NewQuery().Where("artist").Eq("The Beatles"), `@artist:{The\ Beatles}`},
		{"contains", NewQuery().Where("genres").Contains("hip-hop"), `@genres:{hip\-hop}`},
		{"between", NewQuery().Where("year").Between(1990, 2000), "@year:[1990 2000]"},
		{"match", NewQuery().Where("lyrics").Match("Yellow, submarine!"), "@lyrics:(yellow submarine)"},
		{
			"conjunction",
			NewQuery().Where("artist").Eq("X").Where("year").Between(1, 2),
			"@artist:{X} @year:[1 2]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valkeyQuery(tt.query))
		})
	}
}

func TestValkeyIndexArgs(t *testing.T) {
	args := valkeyIndexArgs("songs-idx", "song:", models.SongSchema)

	assert.Equal(t, []string{"songs-idx", "ON", "JSON", "PREFIX", "1", "song:", "STOPWORDS", "0", "SCHEMA"}, args[:9])
	assert.Contains(t, args, "$.genres[*]")
	assert.Contains(t, args, "NUMERIC")
	assert.Contains(t, args, "CASESENSITIVE")
	assert.Contains(t, args, "NOSTEM")
}

func TestValkeyDocument_OmitsNulls(t *testing.T) {
	song := &models.Song{ID: "abc", Title: models.String("A"), Genres: []string{}}

	data, err := json.Marshal(toValkeyDocument(song))
	require.NoError(t, err)
	assert.JSONEq(t, `{"title": "A", "genres": []}`, string(data))

	decoded, err := songFromValkeyJSON("abc", string(data))
	require.NoError(t, err)
	assert.Equal(t, song, decoded)
}

func TestSongFromValkeyJSON_Malformed(t *testing.T) {
	_, err := songFromValkeyJSON("abc", "{not json")
	assert.ErrorIs(t, err, apperrors.ErrInternal)
}

func TestIsUnknownIndex(t *testing.T) {
	assert.True(t, isUnknownIndex(errors.New("Unknown Index name")))
	assert.True(t, isUnknownIndex(errors.New("songs-idx: no such index")))
	assert.False(t, isUnknownIndex(errors.New("Index already exists")))
}

func TestClassifyValkeyError(t *testing.T) {
	assert.ErrorIs(t, classifyValkeyError("save", errors.New("dial tcp: connection refused")), apperrors.ErrStorageUnavailable)
}
