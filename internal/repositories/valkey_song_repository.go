package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"songbook/internal/apperrors"
	"songbook/internal/models"
)

const (
	valkeyPageSize = 1000
	// tagSeparator splits TAG values. Save rejects it in tag fields so each
	// string is indexed as exactly one tag.
	tagSeparator = "\x1f"
)

// valkeySongRepository stores songs as JSON documents under <prefix><id>,
// indexed by the server's search module
type valkeySongRepository struct {
	client valkey.Client
	index  string
	prefix string
	schema models.Schema
}

// valkeyDocument is the stored JSON shape. Null fields are left out so the
// index only sees values that are present.
type valkeyDocument struct {
	Title    *string   `json:"title,omitempty"`
	Artist   *string   `json:"artist,omitempty"`
	Genres   *[]string `json:"genres,omitempty"`
	Lyrics   *string   `json:"lyrics,omitempty"`
	Music    *string   `json:"music,omitempty"`
	Year     *int      `json:"year,omitempty"`
	Duration *int      `json:"duration,omitempty"`
	Link     *string   `json:"link,omitempty"`
}

// NewValkeySongRepository creates a repository that keeps songs in Valkey
func NewValkeySongRepository(client valkey.Client, index, prefix string) SongRepository {
	return &valkeySongRepository{
		client: client,
		index:  index,
		prefix: prefix,
		schema: models.SongSchema,
	}
}

func (r *valkeySongRepository) Create() *models.Song {
	return models.NewSong()
}

func (r *valkeySongRepository) key(id string) string {
	return r.prefix + id
}

func (r *valkeySongRepository) fingerprintKey() string {
	return r.index + ":schema"
}

// indexFingerprint identifies the index definition, including how tags are split
func (r *valkeySongRepository) indexFingerprint() string {
	return r.schema.Fingerprint() + " separator=" + strconv.QuoteToASCII(tagSeparator)
}

// checkTagValues rejects tag values the index would split into several tags
func checkTagValues(schema models.Schema, song *models.Song) error {
	if song == nil {
		return nil
	}
	for _, f := range schema.Fields {
		var values []string
		switch f.Type {
		case models.FieldString:
			if v := song.StringField(f.Name); v != nil {
				values = []string{*v}
			}
		case models.FieldStringArray:
			values = song.StringArrayField(f.Name)
		}
		for _, v := range values {
			if strings.Contains(v, tagSeparator) {
				return apperrors.InvalidArgument("save", "field %q must not contain the unit separator character", f.Name)
			}
		}
	}
	return nil
}

// Save writes the whole document with JSON.SET, replacing any prior one
func (r *valkeySongRepository) Save(ctx context.Context, id string, song *models.Song) (string, error) {
	if id == "" {
		id = uuid.NewString()
	} else if err := validateID("save", id); err != nil {
		return "", err
	}
	if err := checkTagValues(r.schema, song); err != nil {
		return "", err
	}

	data, err := json.Marshal(toValkeyDocument(song))
	if err != nil {
		return "", apperrors.Internal("save", err)
	}

	cmd := r.client.B().Arbitrary("JSON.SET").Keys(r.key(id)).Args("$", string(data)).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return "", classifyValkeyError("save", err)
	}
	return saved(id, song)
}

func (r *valkeySongRepository) Fetch(ctx context.Context, id string) (*models.Song, error) {
	if err := validateID("fetch", id); err != nil {
		return nil, err
	}

	cmd := r.client.B().Arbitrary("JSON.GET").Keys(r.key(id)).Build()
	data, err := r.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, apperrors.NotFound("fetch", "song %s not found", id)
		}
		return nil, classifyValkeyError("fetch", err)
	}
	return songFromValkeyJSON(id, data)
}

func (r *valkeySongRepository) Remove(ctx context.Context, id string) error {
	if err := validateID("remove", id); err != nil {
		return err
	}
	if err := r.client.Do(ctx, r.client.B().Del().Key(r.key(id)).Build()).Error(); err != nil {
		return classifyValkeyError("remove", err)
	}
	return nil
}

// Search pages through FT.SEARCH results until the reported total is reached
func (r *valkeySongRepository) Search(ctx context.Context, query *Query) ([]*models.Song, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	expr := valkeyQuery(query)

	songs := []*models.Song{}
	for offset := 0; ; offset += valkeyPageSize {
		cmd := r.client.B().Arbitrary("FT.SEARCH").Args(r.index, expr,
			"LIMIT", strconv.Itoa(offset), strconv.Itoa(valkeyPageSize)).Build()
		total, docs, err := r.client.Do(ctx, cmd).AsFtSearch()
		if err != nil {
			return nil, classifyValkeyError("search", err)
		}

		for _, doc := range docs {
			id := strings.TrimPrefix(doc.Key, r.prefix)
			song, err := songFromValkeyJSON(id, doc.Doc["$"])
			if err != nil {
				slog.Error("Failed to decode song", "key", doc.Key, "error", err)
				continue
			}
			songs = append(songs, song)
		}
		if len(docs) < valkeyPageSize || int64(offset+len(docs)) >= total {
			break
		}
	}
	return songs, nil
}

// valkeyQuery renders the query in the search module's query syntax
func valkeyQuery(query *Query) string {
	filters := query.Filters()
	if len(filters) == 0 {
		return "*"
	}

	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		switch f.Op {
		case OpEq, OpContains:
			parts = append(parts, fmt.Sprintf("@%s:{%s}", f.Field, escapeTag(f.Value)))
		case OpBetween:
			parts = append(parts, fmt.Sprintf("@%s:[%d %d]", f.Field, f.Min, f.Max))
		case OpMatch:
			parts = append(parts, fmt.Sprintf("@%s:(%s)", f.Field, strings.Join(Terms(f.Value), " ")))
		}
	}
	return strings.Join(parts, " ")
}

// escapeTag backslash-escapes everything but letters, digits and underscores
func escapeTag(value string) string {
	var b strings.Builder
	for _, r := range value {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Count reads the total of a match-all search
func (r *valkeySongRepository) Count(ctx context.Context) (int64, error) {
	cmd := r.client.B().Arbitrary("FT.SEARCH").Args(r.index, "*", "LIMIT", "0", "0").Build()
	total, _, err := r.client.Do(ctx, cmd).AsFtSearch()
	if err != nil {
		return 0, classifyValkeyError("count", err)
	}
	return total, nil
}

// EnsureIndex creates the search index. The schema fingerprint stored next to it
// tells whether an existing index still matches; a stale one is dropped first.
func (r *valkeySongRepository) EnsureIndex(ctx context.Context) error {
	want := r.indexFingerprint()

	exists, err := r.indexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		have, err := r.client.Do(ctx, r.client.B().Get().Key(r.fingerprintKey()).Build()).ToString()
		if err != nil && !valkey.IsValkeyNil(err) {
			return classifyValkeyError("ensure index", err)
		}
		if have == want {
			return nil
		}
		slog.Info("Dropping stale search index", "index", r.index)
		if err := r.dropIndex(ctx); err != nil {
			return err
		}
	}

	cmd := r.client.B().Arbitrary("FT.CREATE").Args(valkeyIndexArgs(r.index, r.prefix, r.schema)...).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		if !strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return classifyValkeyError("ensure index", err)
		}
	}

	if err := r.client.Do(ctx, r.client.B().Set().Key(r.fingerprintKey()).Value(want).Build()).Error(); err != nil {
		return classifyValkeyError("ensure index", err)
	}
	slog.Info("Search index ready", "index", r.index)
	return nil
}

func (r *valkeySongRepository) indexExists(ctx context.Context) (bool, error) {
	err := r.client.Do(ctx, r.client.B().Arbitrary("FT.INFO").Args(r.index).Build()).Error()
	if err == nil {
		return true, nil
	}
	if isUnknownIndex(err) {
		return false, nil
	}
	return false, classifyValkeyError("ensure index", err)
}

// dropIndex drops the index but keeps the documents. An unknown index is only logged.
func (r *valkeySongRepository) dropIndex(ctx context.Context) error {
	err := r.client.Do(ctx, r.client.B().Arbitrary("FT.DROPINDEX").Args(r.index).Build()).Error()
	if err == nil {
		return nil
	}
	if isUnknownIndex(err) {
		slog.Info("Search index to drop does not exist", "index", r.index)
		return nil
	}
	return classifyValkeyError("ensure index", err)
}

// valkeyIndexArgs builds the FT.CREATE arguments for a schema
func valkeyIndexArgs(index, prefix string, schema models.Schema) []string {
	args := []string{index, "ON", "JSON", "PREFIX", "1", prefix, "STOPWORDS", "0", "SCHEMA"}
	for _, f := range schema.Fields {
		switch f.Type {
		case models.FieldString:
			args = append(args, "$."+f.Name, "AS", f.Name, "TAG", "SEPARATOR", tagSeparator, "CASESENSITIVE")
		case models.FieldStringArray:
			args = append(args, "$."+f.Name+"[*]", "AS", f.Name, "TAG", "SEPARATOR", tagSeparator, "CASESENSITIVE")
		case models.FieldText:
			args = append(args, "$."+f.Name, "AS", f.Name, "TEXT", "NOSTEM")
		case models.FieldNumber:
			args = append(args, "$."+f.Name, "AS", f.Name, "NUMERIC")
		}
	}
	return args
}

func (r *valkeySongRepository) Health(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Ping().Build()).Error(); err != nil {
		return classifyValkeyError("health", err)
	}
	return nil
}

func (r *valkeySongRepository) Close(ctx context.Context) error {
	r.client.Close()
	return nil
}

func toValkeyDocument(song *models.Song) valkeyDocument {
	doc := valkeyDocument{
		Title:    song.Title,
		Artist:   song.Artist,
		Lyrics:   song.Lyrics,
		Music:    song.Music,
		Year:     song.Year,
		Duration: song.Duration,
		Link:     song.Link,
	}
	if song.Genres != nil {
		doc.Genres = &song.Genres
	}
	return doc
}

func songFromValkeyJSON(id, data string) (*models.Song, error) {
	var doc valkeyDocument
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, apperrors.Internal("decode", fmt.Errorf("song %s: %w", id, err))
	}
	song := &models.Song{
		ID:       id,
		Title:    doc.Title,
		Artist:   doc.Artist,
		Lyrics:   doc.Lyrics,
		Music:    doc.Music,
		Year:     doc.Year,
		Duration: doc.Duration,
		Link:     doc.Link,
	}
	if doc.Genres != nil {
		song.Genres = *doc.Genres
	}
	return song, nil
}

func isUnknownIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index") || strings.Contains(msg, "not found")
}

// classifyValkeyError separates server replies, which are Internal, from
// connection failures, which are StorageUnavailable
func classifyValkeyError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Unavailable(op, err)
	}
	if _, ok := valkey.IsValkeyErr(err); ok {
		return apperrors.Internal(op, err)
	}
	return apperrors.Unavailable(op, err)
}
