package repositories

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"songbook/internal/apperrors"
	"songbook/internal/models"
)

// Operator is a search predicate kind
type Operator string

const (
	OpEq       Operator = "eq"       // exact match on a string field
	OpContains Operator = "contains" // exact element match on a string[] field
	OpBetween  Operator = "between"  // inclusive range on a number field
	OpMatch    Operator = "match"    // full-text match on a text field
)

// operandTypes lists the field type each operator applies to
var operandTypes = map[Operator]models.FieldType{
	OpEq:       models.FieldString,
	OpContains: models.FieldStringArray,
	OpBetween:  models.FieldNumber,
	OpMatch:    models.FieldText,
}

// Filter is one predicate of a query
type Filter struct {
	Field string
	Op    Operator
	Value string // eq, contains, match
	Min   int    // between
	Max   int    // between
}

// Query is a conjunction of filters over the song schema. A query without filters matches every song.
type Query struct {
	schema  models.Schema
	filters []Filter
	err     error
}

// NewQuery starts a query that matches all songs
func NewQuery() *Query {
	return &Query{schema: models.SongSchema}
}

// Clause is a pending filter on one field, completed by one of its operator methods
type Clause struct {
	query *Query
	field string
}

// Where selects the field for the next filter
func (q *Query) Where(field string) *Clause {
	return &Clause{query: q, field: field}
}

// Eq matches songs whose string field equals value
func (c *Clause) Eq(value string) *Query {
	return c.add(Filter{Field: c.field, Op: OpEq, Value: value})
}

// Contains matches songs whose string[] field holds value as an element
func (c *Clause) Contains(value string) *Query {
	return c.add(Filter{Field: c.field, Op: OpContains, Value: value})
}

// Between matches songs whose number field lies in [min, max]
func (c *Clause) Between(min, max int) *Query {
	return c.add(Filter{Field: c.field, Op: OpBetween, Min: min, Max: max})
}

// Match matches songs whose text field contains every term of text
func (c *Clause) Match(text string) *Query {
	return c.add(Filter{Field: c.field, Op: OpMatch, Value: text})
}

func (c *Clause) add(f Filter) *Query {
	q := c.query
	if q.err != nil {
		return q
	}
	if err := q.validate(f); err != nil {
		q.err = err
		return q
	}
	q.filters = append(q.filters, f)
	return q
}

func (q *Query) validate(f Filter) error {
	field, ok := q.schema.Field(f.Field)
	if !ok {
		return apperrors.InvalidArgument("search", "unknown field %q", f.Field)
	}
	if want := operandTypes[f.Op]; field.Type != want {
		return apperrors.InvalidArgument("search", "%s is not supported on %s field %q", f.Op, field.Type, f.Field)
	}
	switch f.Op {
	case OpEq, OpContains:
		if f.Value == "" {
			return apperrors.InvalidArgument("search", "%s on %q needs a non-empty value", f.Op, f.Field)
		}
	case OpMatch:
		if len(Terms(f.Value)) == 0 {
			return apperrors.InvalidArgument("search", "match on %q needs at least one word", f.Field)
		}
	}
	return nil
}

// Err returns the first validation error recorded while building the query
func (q *Query) Err() error {
	return q.err
}

// Filters returns the query's predicates
func (q *Query) Filters() []Filter {
	return q.filters
}

// Key is a canonical string form of the query, used for cache keys and logging
func (q *Query) Key() string {
	if len(q.filters) == 0 {
		return "all"
	}
	parts := make([]string, 0, len(q.filters))
	for _, f := range q.filters {
		switch f.Op {
		case OpBetween:
			parts = append(parts, fmt.Sprintf("%s:%s:%d..%d", f.Op, f.Field, f.Min, f.Max))
		default:
			parts = append(parts, fmt.Sprintf("%s:%s:%s", f.Op, f.Field, strconv.Quote(f.Value)))
		}
	}
	return strings.Join(parts, "&")
}

// Matches evaluates the whole query against a song
func (q *Query) Matches(song *models.Song) bool {
	for _, f := range q.filters {
		if !f.Matches(song) {
			return false
		}
	}
	return true
}

// Matches evaluates one filter against a song
func (f Filter) Matches(song *models.Song) bool {
	switch f.Op {
	case OpEq:
		v := song.StringField(f.Field)
		return v != nil && *v == f.Value
	case OpContains:
		return slices.Contains(song.StringArrayField(f.Field), f.Value)
	case OpBetween:
		v := song.NumberField(f.Field)
		return v != nil && *v >= f.Min && *v <= f.Max
	case OpMatch:
		v := song.StringField(f.Field)
		if v == nil {
			return false
		}
		words := make(map[string]struct{})
		for _, w := range Terms(*v) {
			words[w] = struct{}{}
		}
		for _, term := range Terms(f.Value) {
			if _, ok := words[term]; !ok {
				return false
			}
		}
		return true
	}
	return false
}

// Terms splits text into lower-cased words of letters and digits
func Terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
