package models

import "strings"

// FieldType is the semantic type of an indexed field
type FieldType string

const (
	FieldString      FieldType = "string"   // exact-match tag
	FieldText        FieldType = "text"     // full-text searchable
	FieldNumber      FieldType = "number"   // numeric, range queryable
	FieldStringArray FieldType = "string[]" // tag set, containment queryable
)

// Field declares one indexed field
type Field struct {
	Name string
	Type FieldType
}

// Schema maps field names to semantic types. Backends derive their index definitions from it.
type Schema struct {
	Name   string
	Fields []Field
}

// SongSchema is the index definition for Song records
var SongSchema = Schema{
	Name: "song",
	Fields: []Field{
		{Name: "title", Type: FieldString},       // the title of the song
		{Name: "artist", Type: FieldString},      // who performed the song
		{Name: "genres", Type: FieldStringArray}, // genres of the song
		{Name: "lyrics", Type: FieldText},        // the full lyrics of the song
		{Name: "music", Type: FieldText},         // who wrote the music for the song
		{Name: "year", Type: FieldNumber},        // the year the song was released
		{Name: "duration", Type: FieldNumber},    // the duration of the song in seconds
		{Name: "link", Type: FieldString},        // link to a video of the song
	},
}

// Field looks up a field by name
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldsOfType returns the names of all fields with the given type, in declaration order
func (s Schema) FieldsOfType(t FieldType) []string {
	var names []string
	for _, f := range s.Fields {
		if f.Type == t {
			names = append(names, f.Name)
		}
	}
	return names
}

// Fingerprint is a stable textual form of the schema, used to detect a changed index definition
func (s Schema) Fingerprint() string {
	parts := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		parts = append(parts, f.Name+":"+string(f.Type))
	}
	return s.Name + "(" + strings.Join(parts, ",") + ")"
}
