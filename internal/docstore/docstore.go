// Package docstore is the thin client contract for the schemaless document
// collections backing the storefront. Components receive a Store and never
// touch the driver directly; PostgresStore is the production implementation
// and MemoryStore backs tests and local runs.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrExists   = errors.New("document already exists")
)

// FieldID addresses the document identifier in filters and orderings, which
// otherwise name fields inside the document body.
const FieldID = "__id__"

// MaxInValues is the store's maximum number of values in one In filter.
// Callers batching larger id sets must chunk (see catalog.GetByIDs).
const MaxInValues = 10

type Op string

const (
	OpEq            Op = "=="
	OpGte           Op = ">="
	OpLte           Op = "<="
	OpLt            Op = "<"
	OpArrayContains Op = "array-contains"
	OpIn            Op = "in" // value must be a []string of at most MaxInValues
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Ordering struct {
	Field string
	Desc  bool
	// Numeric marks sort fields holding JSON numbers so SQL backends can
	// cast before comparing; string fields sort correctly without it.
	Numeric bool
}

// Query describes one read against a collection. All Orderings of a query
// must share a single direction; StartAfter values align positionally with
// Orderings and resume strictly after that key (exclusive).
type Query struct {
	Collection string
	Filters    []Filter
	Orderings  []Ordering
	StartAfter []any
	Limit      int
}

// Document is an ordered-field record with a stable identifier. Field values
// are the JSON scalar set: string, float64, bool, []any, map[string]any, nil.
// Timestamps are stored as RFC3339Nano strings so lexicographic order equals
// chronological order.
type Document struct {
	ID     string
	Fields map[string]any
}

type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	// Create stores fields under a fresh store-assigned id.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Insert is the conditional create: it fails with ErrExists when id is
	// already taken, making check-then-write uniqueness schemes race-free.
	Insert(ctx context.Context, collection, id string, fields map[string]any) error
	Set(ctx context.Context, collection, id string, fields map[string]any) error
	// Update merges partial into the existing document, ErrNotFound if absent.
	Update(ctx context.Context, collection, id string, partial map[string]any) error
	Delete(ctx context.Context, collection, id string) error
}

// Timestamp renders t in the store's canonical timestamp encoding.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp is the inverse of Timestamp; zero time on malformed input.
func ParseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// String reads a string field, "" when absent or mistyped.
func (d *Document) String(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

// Number reads a numeric field. Present reports whether the field existed as
// a number at all, which callers use to tell "absent" from "zero".
func (d *Document) Number(field string) (val float64, present bool) {
	switch v := d.Fields[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Strings reads a string-array field, nil when absent.
func (d *Document) Strings(field string) []string {
	raw, ok := d.Fields[field].([]any)
	if !ok {
		// Already-typed slices pass through (memory store documents).
		if ss, ok := d.Fields[field].([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
