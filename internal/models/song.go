package models

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Song is the stored record. Every field is optional; nil is stored and rendered as null.
type Song struct {
	ID       string   `bson:"_id" json:"id"`
	Title    *string  `bson:"title" json:"title"`
	Artist   *string  `bson:"artist" json:"artist"`
	Genres   []string `bson:"genres" json:"genres"`
	Lyrics   *string  `bson:"lyrics" json:"lyrics"`
	Music    *string  `bson:"music" json:"music"`
	Year     *int     `bson:"year" json:"year"`
	Duration *int     `bson:"duration" json:"duration"` // seconds
	Link     *string  `bson:"link" json:"link"`
}

// NewSong creates an empty, unpersisted song
func NewSong() *Song {
	return &Song{}
}

// DurationAsString renders the duration as m:ss, or "" when the duration is unknown
func (s *Song) DurationAsString() string {
	if s.Duration == nil {
		return ""
	}
	return fmt.Sprintf("%d:%02d", *s.Duration/60, *s.Duration%60)
}

// MarshalJSON adds the derived durationAsString field
func (s Song) MarshalJSON() ([]byte, error) {
	type plain Song
	var duration *string
	if s.Duration != nil {
		d := s.DurationAsString()
		duration = &d
	}
	return json.Marshal(struct {
		plain
		DurationAsString *string `json:"durationAsString"`
	}{
		plain:            plain(s),
		DurationAsString: duration,
	})
}

// Clone returns a deep copy
func (s *Song) Clone() *Song {
	if s == nil {
		return nil
	}
	c := &Song{
		ID:       s.ID,
		Title:    clonePtr(s.Title),
		Artist:   clonePtr(s.Artist),
		Lyrics:   clonePtr(s.Lyrics),
		Music:    clonePtr(s.Music),
		Year:     clonePtr(s.Year),
		Duration: clonePtr(s.Duration),
		Link:     clonePtr(s.Link),
	}
	if s.Genres != nil {
		c.Genres = slices.Clone(s.Genres)
	}
	return c
}

// StringField returns the value of a string or text field by schema name
func (s *Song) StringField(name string) *string {
	switch name {
	case "title":
		return s.Title
	case "artist":
		return s.Artist
	case "lyrics":
		return s.Lyrics
	case "music":
		return s.Music
	case "link":
		return s.Link
	}
	return nil
}

// NumberField returns the value of a number field by schema name
func (s *Song) NumberField(name string) *int {
	switch name {
	case "year":
		return s.Year
	case "duration":
		return s.Duration
	}
	return nil
}

// StringArrayField returns the value of a string[] field by schema name
func (s *Song) StringArrayField(name string) []string {
	if name == "genres" {
		return s.Genres
	}
	return nil
}

// SetStringField sets a string or text field by schema name. Unknown names are ignored.
func (s *Song) SetStringField(name, v string) {
	switch name {
	case "title":
		s.Title = &v
	case "artist":
		s.Artist = &v
	case "lyrics":
		s.Lyrics = &v
	case "music":
		s.Music = &v
	case "link":
		s.Link = &v
	}
}

// SetNumberField sets a number field by schema name
func (s *Song) SetNumberField(name string, v int) {
	switch name {
	case "year":
		s.Year = &v
	case "duration":
		s.Duration = &v
	}
}

// SetStringArrayField sets a string[] field by schema name
func (s *Song) SetStringArrayField(name string, v []string) {
	if name == "genres" {
		s.Genres = v
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// String and Int are helpers for building songs in code
func String(v string) *string { return &v }
func Int(v int) *int { return &v }
