package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SongsCollection is the collection holding Song documents
const SongsCollection = "songs"

// TextIndexName names the single text index over the schema's text fields
const TextIndexName = "song_text"

// TextLanguage turns off stemming and stop words so every term is indexed as written
const TextLanguage = "none"

// Mongo server error codes handled during index setup
const (
	codeNamespaceNotFound    = 26
	codeIndexNotFound        = 27
	codeIndexOptionsConflict = 85
	codeIndexKeySpecConflict = 86
)

// Database represents the database connection
type Database struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// NewDatabase creates a new database connection
func NewDatabase(ctx context.Context, mongoURL, dbName string) (*Database, error) {
	clientOptions := options.Client().
		ApplyURI(mongoURL).
		SetMaxPoolSize(20).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &Database{
		Client: client,
		DB:     client.Database(dbName),
	}, nil
}

// Close closes the database connection
func (d *Database) Close(ctx context.Context) error {
	return d.Client.Disconnect(ctx)
}

// Songs returns the songs collection
func (d *Database) Songs() *mongo.Collection {
	return d.DB.Collection(SongsCollection)
}

// SongIndexModels derives the Mongo index set from a schema: one ascending index per
// string, string[] and number field, and one text index across all text fields.
func SongIndexModels(schema Schema) []mongo.IndexModel {
	var indexes []mongo.IndexModel
	for _, f := range schema.Fields {
		switch f.Type {
		case FieldString, FieldStringArray, FieldNumber:
			indexes = append(indexes, mongo.IndexModel{
				Keys:    bson.D{{Key: f.Name, Value: 1}},
				Options: options.Index().SetName(f.Name + "_1"),
			})
		}
	}

	textFields := schema.FieldsOfType(FieldText)
	if len(textFields) > 0 {
		keys := bson.D{}
		for _, name := range textFields {
			keys = append(keys, bson.E{Key: name, Value: "text"})
		}
		indexes = append(indexes, mongo.IndexModel{
			Keys: keys,
			Options: options.Index().
				SetName(TextIndexName).
				SetDefaultLanguage(TextLanguage),
		})
	}
	return indexes
}

// EnsureIndexes creates the song indexes. Running it again against an up to date collection is a no-op.
func (d *Database) EnsureIndexes(ctx context.Context, schema Schema) error {
	songs := d.Songs()

	if err := d.handleIndexConflicts(ctx, songs, schema); err != nil {
		return err
	}

	for _, model := range SongIndexModels(schema) {
		_, err := songs.Indexes().CreateOne(ctx, model)
		if err == nil {
			continue
		}
		if !isCommandError(err, codeIndexOptionsConflict, codeIndexKeySpecConflict) {
			return fmt.Errorf("failed to create index: %w", err)
		}

		// An index with the same name but a different definition exists: replace it
		name := *model.Options.Name
		slog.Warn("Replacing conflicting index", "index", name, "error", err)
		if err := dropIndex(ctx, songs, name); err != nil {
			return err
		}
		if _, err := songs.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to recreate index %s: %w", name, err)
		}
	}
	return nil
}

// handleIndexConflicts drops text indexes that do not match the schema. A collection
// can hold only one text index, so a stale one would block creating ours.
func (d *Database) handleIndexConflicts(ctx context.Context, collection *mongo.Collection, schema Schema) error {
	cursor, err := collection.Indexes().List(ctx)
	if err != nil {
		if isCommandError(err, codeNamespaceNotFound) {
			return nil
		}
		return err
	}
	defer cursor.Close(ctx)

	var existingIndexes []bson.M
	if err = cursor.All(ctx, &existingIndexes); err != nil {
		return err
	}

	want := schema.FieldsOfType(FieldText)
	for _, index := range existingIndexes {
		name, stale := staleTextIndex(index, want)
		if !stale {
			continue
		}
		slog.Info("Dropping stale text index", "index", name)
		if err := dropIndex(ctx, collection, name); err != nil {
			return err
		}
	}
	return nil
}

// dropIndex drops an index by name. A missing index is expected on first run and is only logged.
func dropIndex(ctx context.Context, collection *mongo.Collection, name string) error {
	_, err := collection.Indexes().DropOne(ctx, name)
	if err == nil {
		return nil
	}
	if isCommandError(err, codeIndexNotFound, codeNamespaceNotFound) {
		slog.Info("Index to drop does not exist", "index", name)
		return nil
	}
	return fmt.Errorf("failed to drop index %s: %w", name, err)
}

// staleTextIndex reports whether index is a text index other than the one the schema wants
func staleTextIndex(index bson.M, fields []string) (string, bool) {
	name, _ := index["name"].(string)
	weights, isText := index["weights"].(bson.M)
	if !isText {
		return name, false
	}
	language, _ := index["default_language"].(string)
	return name, name != TextIndexName || language != TextLanguage || !sameKeys(weights, fields)
}

func sameKeys(weights bson.M, fields []string) bool {
	if len(weights) != len(fields) {
		return false
	}
	for _, f := range fields {
		if _, ok := weights[f]; !ok {
			return false
		}
	}
	return true
}

func isCommandError(err error, codes ...int32) bool {
	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	for _, code := range codes {
		if cmdErr.Code == code {
			return true
		}
	}
	return false
}
