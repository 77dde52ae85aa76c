package repositories

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"songbook/internal/apperrors"
	"songbook/internal/models"
)

// mongoSongRepository implements SongRepository interface using MongoDB
type mongoSongRepository struct {
	db         *models.Database
	collection *mongo.Collection
	schema     models.Schema
}

// NewMongoSongRepository creates a new MongoDB-backed song repository
func NewMongoSongRepository(db *models.Database) SongRepository {
	return &mongoSongRepository{
		db:         db,
		collection: db.Songs(),
		schema:     models.SongSchema,
	}
}

func (r *mongoSongRepository) Create() *models.Song {
	return models.NewSong()
}

// Save inserts a song under a generated ObjectID hex id, or replaces the document stored under id
func (r *mongoSongRepository) Save(ctx context.Context, id string, song *models.Song) (string, error) {
	if id == "" {
		doc := stored(primitive.NewObjectID().Hex(), song)
		if _, err := r.collection.InsertOne(ctx, doc); err != nil {
			return "", classifyMongoError("save", err)
		}
		return saved(doc.ID, song)
	}
	if err := validateID("save", id); err != nil {
		return "", err
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": id}, stored(id, song), opts); err != nil {
		return "", classifyMongoError("save", err)
	}
	return saved(id, song)
}

// Fetch finds a song by id
func (r *mongoSongRepository) Fetch(ctx context.Context, id string) (*models.Song, error) {
	if err := validateID("fetch", id); err != nil {
		return nil, err
	}

	var song models.Song
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&song)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("fetch", "song %s not found", id)
		}
		return nil, classifyMongoError("fetch", err)
	}
	return &song, nil
}

// Remove deletes a song by id. A zero deleted count is not an error.
func (r *mongoSongRepository) Remove(ctx context.Context, id string) error {
	if err := validateID("remove", id); err != nil {
		return err
	}
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return classifyMongoError("remove", err)
	}
	return nil
}

// Search translates the query into a Mongo filter
func (r *mongoSongRepository) Search(ctx context.Context, query *Query) ([]*models.Song, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}

	cursor, err := r.collection.Find(ctx, mongoFilter(query))
	if err != nil {
		return nil, classifyMongoError("search", err)
	}
	defer cursor.Close(ctx)

	songs := []*models.Song{}
	for cursor.Next(ctx) {
		var song models.Song
		if err := cursor.Decode(&song); err != nil {
			slog.Error("Failed to decode song", "error", err)
			continue
		}
		songs = append(songs, &song)
	}
	if err := cursor.Err(); err != nil {
		return nil, classifyMongoError("search", err)
	}
	return songs, nil
}

const (
	wordBoundary = `(?:^|[^\p{L}\p{N}])`
	wordEnd      = `(?:$|[^\p{L}\p{N}])`
)

// mongoFilter builds the find filter. Full-text filters use the text index to narrow
// candidates and a whole-word regex per term so every term must appear in the named field.
// Word boundaries are Unicode letters and digits, the same split Terms uses.
func mongoFilter(query *Query) bson.M {
	var conditions []bson.M
	var textTerms []string

	for _, f := range query.Filters() {
		switch f.Op {
		case OpEq, OpContains:
			conditions = append(conditions, bson.M{f.Field: f.Value})
		case OpBetween:
			conditions = append(conditions, bson.M{f.Field: bson.M{"$gte": f.Min, "$lte": f.Max}})
		case OpMatch:
			for _, term := range Terms(f.Value) {
				textTerms = append(textTerms, term)
				conditions = append(conditions, bson.M{f.Field: primitive.Regex{
					Pattern: wordBoundary + regexp.QuoteMeta(term) + wordEnd,
					Options: "i",
				}})
			}
		}
	}

	filter := bson.M{}
	if len(conditions) > 0 {
		filter["$and"] = conditions
	}
	if len(textTerms) > 0 {
		filter["$text"] = bson.M{"$search": strings.Join(textTerms, " "), "$language": models.TextLanguage}
	}
	return filter
}

// Count returns the total number of songs in the collection
func (r *mongoSongRepository) Count(ctx context.Context) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, classifyMongoError("count", err)
	}
	return count, nil
}

func (r *mongoSongRepository) EnsureIndex(ctx context.Context) error {
	if err := r.db.EnsureIndexes(ctx, r.schema); err != nil {
		return classifyMongoError("ensure index", err)
	}
	return nil
}

func (r *mongoSongRepository) Health(ctx context.Context) error {
	if err := r.db.Client.Ping(ctx, nil); err != nil {
		return classifyMongoError("health", err)
	}
	return nil
}

func (r *mongoSongRepository) Close(ctx context.Context) error {
	return r.db.Close(ctx)
}

// classifyMongoError maps driver errors onto the error taxonomy. Connectivity
// and timeout failures are StorageUnavailable; everything else is Internal.
func classifyMongoError(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, mongo.ErrClientDisconnected),
		mongo.IsTimeout(err),
		mongo.IsNetworkError(err),
		errors.As(err, &netErr):
		return apperrors.Unavailable(op, err)
	}
	return apperrors.Internal(op, err)
}
