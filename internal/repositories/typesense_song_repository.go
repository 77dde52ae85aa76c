package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/typesense/typesense-go/typesense"
	"github.com/typesense/typesense-go/typesense/api"
	"github.com/typesense/typesense-go/typesense/api/pointer"

	"songbook/internal/apperrors"
	"songbook/internal/models"
)

const typesensePageSize = 250

// typesenseSongRepository stores songs as documents of a Typesense collection
type typesenseSongRepository struct {
	client     *typesense.Client
	collection string
	schema     models.Schema
}

// NewTypesenseClient builds a client for one Typesense node
func NewTypesenseClient(serverURL, apiKey string, timeout time.Duration) *typesense.Client {
	return typesense.NewClient(
		typesense.WithServer(serverURL),
		typesense.WithAPIKey(apiKey),
		typesense.WithConnectionTimeout(timeout),
	)
}

// NewTypesenseSongRepository creates a repository over the named collection
func NewTypesenseSongRepository(client *typesense.Client, collection string) SongRepository {
	return &typesenseSongRepository{
		client:     client,
		collection: collection,
		schema:     models.SongSchema,
	}
}

func (r *typesenseSongRepository) Create() *models.Song {
	return models.NewSong()
}

// Save upserts the document, which replaces every field of an existing one
func (r *typesenseSongRepository) Save(ctx context.Context, id string, song *models.Song) (string, error) {
	if id == "" {
		id = uuid.NewString()
	} else if err := validateID("save", id); err != nil {
		return "", err
	}

	doc := typesenseDocument(stored(id, song))
	if _, err := r.client.Collection(r.collection).Documents().Upsert(ctx, doc); err != nil {
		return "", classifyTypesenseError("save", err)
	}
	return saved(id, song)
}

func (r *typesenseSongRepository) Fetch(ctx context.Context, id string) (*models.Song, error) {
	if err := validateID("fetch", id); err != nil {
		return nil, err
	}

	doc, err := r.client.Collection(r.collection).Document(id).Retrieve(ctx)
	if err != nil {
		if isTypesenseStatus(err, http.StatusNotFound) {
			return nil, apperrors.NotFound("fetch", "song %s not found", id)
		}
		return nil, classifyTypesenseError("fetch", err)
	}
	return songFromDocument(doc)
}

func (r *typesenseSongRepository) Remove(ctx context.Context, id string) error {
	if err := validateID("remove", id); err != nil {
		return err
	}

	_, err := r.client.Collection(r.collection).Document(id).Delete(ctx)
	if err != nil && !isTypesenseStatus(err, http.StatusNotFound) {
		return classifyTypesenseError("remove", err)
	}
	return nil
}

// Search pages through every hit. Hits are re-checked against the query since
// Typesense tokenizes and typo-corrects, while filters here are exact.
func (r *typesenseSongRepository) Search(ctx context.Context, query *Query) ([]*models.Song, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	params, err := typesenseSearchParams(query)
	if err != nil {
		return nil, err
	}

	songs := []*models.Song{}
	for page := 1; ; page++ {
		params.Page = pointer.Int(page)
		result, err := r.client.Collection(r.collection).Documents().Search(ctx, params)
		if err != nil {
			return nil, classifyTypesenseError("search", err)
		}
		if result.Hits == nil || len(*result.Hits) == 0 {
			break
		}

		for _, hit := range *result.Hits {
			if hit.Document == nil {
				continue
			}
			song, err := songFromDocument(*hit.Document)
			if err != nil {
				slog.Error("Failed to decode song", "error", err)
				continue
			}
			if query.Matches(song) {
				songs = append(songs, song)
			}
		}
		if len(*result.Hits) < typesensePageSize {
			break
		}
	}
	return songs, nil
}

// typesenseSearchParams translates the query into search parameters
func typesenseSearchParams(query *Query) (*api.SearchCollectionParams, error) {
	var filters []string
	var text []string
	var textFields []string

	for _, f := range query.Filters() {
		switch f.Op {
		case OpEq, OpContains:
			if strings.Contains(f.Value, "`") {
				return nil, apperrors.InvalidArgument("search", "value for %q must not contain a backtick", f.Field)
			}
			filters = append(filters, fmt.Sprintf("%s:=`%s`", f.Field, f.Value))
		case OpBetween:
			filters = append(filters, fmt.Sprintf("%s:[%d..%d]", f.Field, f.Min, f.Max))
		case OpMatch:
			text = append(text, f.Value)
			textFields = append(textFields, f.Field)
		}
	}

	params := &api.SearchCollectionParams{
		Q:       "*",
		QueryBy: strings.Join(models.SongSchema.FieldsOfType(models.FieldText), ","),
		Prefix:  pointer.String("false"),
		PerPage: pointer.Int(typesensePageSize),
	}
	if len(text) > 0 {
		params.Q = strings.Join(text, " ")
		params.QueryBy = strings.Join(textFields, ",")
	}
	if len(filters) > 0 {
		params.FilterBy = pointer.String(strings.Join(filters, " && "))
	}
	return params, nil
}

// Count reads the found total of a match-all search
func (r *typesenseSongRepository) Count(ctx context.Context) (int64, error) {
	params, _ := typesenseSearchParams(NewQuery())
	params.PerPage = pointer.Int(1)

	result, err := r.client.Collection(r.collection).Documents().Search(ctx, params)
	if err != nil {
		return 0, classifyTypesenseError("count", err)
	}
	if result.Found == nil {
		return 0, nil
	}
	return int64(*result.Found), nil
}

// EnsureIndex creates the collection, or drops and recreates it when its fields differ from the schema
func (r *typesenseSongRepository) EnsureIndex(ctx context.Context) error {
	want := typesenseFields(r.schema)

	existing, err := r.client.Collection(r.collection).Retrieve(ctx)
	switch {
	case err == nil:
		if sameTypesenseFields(existing.Fields, want) {
			return nil
		}
		slog.Info("Dropping stale collection", "collection", r.collection)
		if _, err := r.client.Collection(r.collection).Delete(ctx); err != nil {
			if !isTypesenseStatus(err, http.StatusNotFound) {
				return classifyTypesenseError("ensure index", err)
			}
			slog.Info("Collection to drop does not exist", "collection", r.collection)
		}
	case isTypesenseStatus(err, http.StatusNotFound):
		slog.Info("Collection does not exist yet", "collection", r.collection)
	default:
		return classifyTypesenseError("ensure index", err)
	}

	schema := &api.CollectionSchema{
		Name:   r.collection,
		Fields: want,
	}
	if _, err := r.client.Collections().Create(ctx, schema); err != nil {
		if isTypesenseStatus(err, http.StatusConflict) {
			return nil
		}
		return classifyTypesenseError("ensure index", err)
	}
	slog.Info("Typesense collection created", "collection", r.collection)
	return nil
}

func (r *typesenseSongRepository) Health(ctx context.Context) error {
	ok, err := r.client.Health(ctx, 2*time.Second)
	if err != nil {
		return classifyTypesenseError("health", err)
	}
	if !ok {
		return apperrors.Unavailable("health", errors.New("typesense reports unhealthy"))
	}
	return nil
}

func (r *typesenseSongRepository) Close(ctx context.Context) error { return nil }

// typesenseFields maps schema fields onto collection fields. Every field is
// optional so songs with null values can still be indexed.
func typesenseFields(schema models.Schema) []api.Field {
	fields := make([]api.Field, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		field := api.Field{Name: f.Name, Optional: pointer.True()}
		switch f.Type {
		case models.FieldString, models.FieldText:
			field.Type = "string"
		case models.FieldStringArray:
			field.Type = "string[]"
		case models.FieldNumber:
			field.Type = "int32"
		}
		fields = append(fields, field)
	}
	return fields
}

func sameTypesenseFields(have, want []api.Field) bool {
	types := make(map[string]string, len(have))
	for _, f := range have {
		if f.Name == "id" || strings.Contains(f.Name, "*") {
			continue
		}
		types[f.Name] = f.Type
	}
	if len(types) != len(want) {
		return false
	}
	for _, f := range want {
		if types[f.Name] != f.Type {
			return false
		}
	}
	return true
}

// typesenseDocument renders a song as a document, leaving out null fields
func typesenseDocument(song *models.Song) map[string]interface{} {
	doc := map[string]interface{}{"id": song.ID}
	for _, f := range models.SongSchema.Fields {
		switch f.Type {
		case models.FieldString, models.FieldText:
			if v := song.StringField(f.Name); v != nil {
				doc[f.Name] = *v
			}
		case models.FieldStringArray:
			if v := song.StringArrayField(f.Name); v != nil {
				doc[f.Name] = v
			}
		case models.FieldNumber:
			if v := song.NumberField(f.Name); v != nil {
				doc[f.Name] = *v
			}
		}
	}
	return doc
}

// songFromDocument reads a song back from a decoded JSON document
func songFromDocument(doc map[string]interface{}) (*models.Song, error) {
	id, ok := doc["id"].(string)
	if !ok || id == "" {
		return nil, apperrors.Internal("decode", errors.New("document has no string id"))
	}

	song := &models.Song{ID: id}
	for _, f := range models.SongSchema.Fields {
		raw, present := doc[f.Name]
		if !present || raw == nil {
			continue
		}

		var ok bool
		switch f.Type {
		case models.FieldString, models.FieldText:
			var v string
			if v, ok = raw.(string); ok {
				song.SetStringField(f.Name, v)
			}
		case models.FieldStringArray:
			var items []interface{}
			if items, ok = raw.([]interface{}); ok {
				values := make([]string, 0, len(items))
				for _, item := range items {
					s, isString := item.(string)
					if !isString {
						ok = false
						break
					}
					values = append(values, s)
				}
				song.SetStringArrayField(f.Name, values)
			}
		case models.FieldNumber:
			var v float64
			if v, ok = raw.(float64); ok {
				song.SetNumberField(f.Name, int(v))
			}
		}
		if !ok {
			return nil, apperrors.Internal("decode", fmt.Errorf("document %s has a malformed %s field", id, f.Name))
		}
	}
	return song, nil
}

func isTypesenseStatus(err error, status int) bool {
	var httpErr *typesense.HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == status
}

// classifyTypesenseError treats 5xx responses and transport failures as unavailability
func classifyTypesenseError(op string, err error) error {
	var httpErr *typesense.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Status >= http.StatusInternalServerError {
			return apperrors.Unavailable(op, err)
		}
		return apperrors.Internal(op, fmt.Errorf("typesense status %d: %s", httpErr.Status, httpErr.Body))
	}
	return apperrors.Unavailable(op, err)
}
