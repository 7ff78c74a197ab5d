// Package store defines the record storage contract used by the CMS engine.
//
// Every entity type is persisted as schemaless records: an id, a value map of
// canonical primitives, and creation/update timestamps. Many-to-many
// membership is kept as ordered link lists keyed by (type, id, attribute).
// Backends live in sub-packages (buntstore, pgstore).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get when no record matches.
var ErrNotFound = errors.New("record not found")

// Record is one persisted entity instance.
type Record struct {
	Type      string
	ID        string
	Values    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Get returns the stored value for attr, resolving the timestamp and id
// pseudo-attributes from the record header.
func (r Record) Get(attr string) any {
	switch attr {
	case "id":
		return r.ID
	case "created_at":
		return r.CreatedAt
	case "updated_at":
		return r.UpdatedAt
	}
	if r.Values == nil {
		return nil
	}
	return r.Values[attr]
}

// String returns the value for attr when it is a string, or "".
func (r Record) String(attr string) string {
	s, _ := r.Get(attr).(string)
	return s
}

// Clone returns a copy whose value map can be mutated independently.
func (r Record) Clone() Record {
	out := r
	out.Values = make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		out.Values[k] = v
	}
	return out
}

// Reader is the read half of a transaction.
type Reader interface {
	// Get loads one record. Returns ErrNotFound when absent.
	Get(ctx context.Context, typ, id string) (Record, error)
	// Find returns the records matching q.
	Find(ctx context.Context, q Query) ([]Record, error)
	// Count returns how many records match q, ignoring Limit and Offset.
	Count(ctx context.Context, q Query) (int, error)
	// Links returns the ordered target ids of a many-to-many attribute.
	Links(ctx context.Context, typ, id, attr string) ([]string, error)
}

// Tx is a read-write transaction.
type Tx interface {
	Reader
	// Insert stores a new record. An empty ID is assigned a UUIDv7, and zero
	// timestamps are set to now.
	Insert(ctx context.Context, rec *Record) error
	// Update replaces the values of an existing record and bumps UpdatedAt.
	Update(ctx context.Context, rec *Record) error
	// Delete removes a record and all of its links.
	Delete(ctx context.Context, typ, id string) error
	// SetLinks replaces the membership of a many-to-many attribute.
	SetLinks(ctx context.Context, typ, id, attr string, ids []string) error
}

// Store runs transactions. Update commits when fn returns nil and rolls back
// otherwise.
type Store interface {
	View(ctx context.Context, fn func(Reader) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// NewID returns a time-ordered record identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Stamp fills the id and timestamps of a record about to be inserted.
func Stamp(rec *Record, now time.Time) {
	if rec.ID == "" {
		rec.ID = NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.Values == nil {
		rec.Values = map[string]any{}
	}
}
