package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"songbook/internal/apperrors"
)

const decodeOp = "decode song"

// DecodeSong maps an untyped request body onto a new Song field by field.
// Missing fields become null, unknown fields and any "id" are ignored.
func DecodeSong(body []byte) (*Song, error) {
	song := NewSong()
	if err := DecodeSongInto(song, body); err != nil {
		return nil, err
	}
	return song, nil
}

// DecodeSongInto is DecodeSong onto an existing record. Every field is
// overwritten; song.ID is left alone.
func DecodeSongInto(song *Song, body []byte) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return apperrors.InvalidArgument(decodeOp, "request body must be a JSON object: %v", err)
	}

	var err error
	if song.Title, err = decodeString(raw, "title"); err != nil {
		return err
	}
	if song.Artist, err = decodeString(raw, "artist"); err != nil {
		return err
	}
	if song.Genres, err = decodeStringArray(raw, "genres"); err != nil {
		return err
	}
	if song.Lyrics, err = decodeString(raw, "lyrics"); err != nil {
		return err
	}
	if song.Music, err = decodeString(raw, "music"); err != nil {
		return err
	}
	if song.Year, err = decodeInt(raw, "year"); err != nil {
		return err
	}
	if song.Duration, err = decodeInt(raw, "duration"); err != nil {
		return err
	}
	if song.Duration != nil && *song.Duration < 0 {
		return apperrors.InvalidArgument(decodeOp, "field %q must not be negative", "duration")
	}
	if song.Link, err = decodeString(raw, "link"); err != nil {
		return err
	}
	return nil
}

func isNull(msg json.RawMessage) bool {
	return len(msg) == 0 || string(bytes.TrimSpace(msg)) == "null"
}

func decodeString(raw map[string]json.RawMessage, field string) (*string, error) {
	msg, ok := raw[field]
	if !ok || isNull(msg) {
		return nil, nil
	}
	var v string
	if err := json.Unmarshal(msg, &v); err != nil {
		return nil, apperrors.InvalidArgument(decodeOp, "field %q must be a string", field)
	}
	return &v, nil
}

func decodeStringArray(raw map[string]json.RawMessage, field string) ([]string, error) {
	msg, ok := raw[field]
	if !ok || isNull(msg) {
		return nil, nil
	}

	// a lone string is accepted as a one-element list
	var single string
	if err := json.Unmarshal(msg, &single); err == nil {
		return []string{single}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(msg, &items); err != nil {
		return nil, apperrors.InvalidArgument(decodeOp, "field %q must be an array of strings", field)
	}
	values := make([]string, 0, len(items))
	for i, item := range items {
		var v string
		if isNull(item) || json.Unmarshal(item, &v) != nil {
			return nil, apperrors.InvalidArgument(decodeOp, "field %q element %d must be a string", field, i)
		}
		values = append(values, v)
	}
	return values, nil
}

func decodeInt(raw map[string]json.RawMessage, field string) (*int, error) {
	msg, ok := raw[field]
	if !ok || isNull(msg) {
		return nil, nil
	}

	var text string
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, apperrors.InvalidArgument(decodeOp, "field %q must be an integer", field)
		}
		text = strings.TrimSpace(text)
	} else {
		var num json.Number
		if err := json.Unmarshal(trimmed, &num); err != nil {
			return nil, apperrors.InvalidArgument(decodeOp, "field %q must be an integer", field)
		}
		text = num.String()
	}

	v, err := parseInteger(text)
	if err != nil {
		return nil, apperrors.InvalidArgument(decodeOp, "field %q must be an integer, got %q", field, text)
	}
	return &v, nil
}

// parseInteger accepts integers and integral floats such as "185.0" or "1.99e3"
func parseInteger(text string) (int, error) {
	if i, err := strconv.Atoi(text); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, strconv.ErrRange
	}
	return int(f), nil
}
