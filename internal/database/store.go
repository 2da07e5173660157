// Package database defines the storage port used by the shortcode service
// and the record shape every backend persists.
package database

import (
	"context"
	"strings"
)

const (
	// IndexDestination is the secondary index keyed on the destination attribute.
	IndexDestination = "destination"
	// FieldAccessCount is the only counter attribute a store increments.
	FieldAccessCount = "access_count"
)

// Record is the persisted form of a shortcode.
type Record struct {
	Shortcode   string `db:"shortcode" json:"shortcode"`
	Destination string `db:"destination" json:"destination"`
	SSL         bool   `db:"ssl" json:"ssl"`
	AccessCount int64  `db:"access_count" json:"access_count"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
	UpdatedAt   int64  `db:"updated_at" json:"updated_at"`
}

// Validate reports ErrInvalidRecord when a key attribute is missing.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Shortcode) == "" || strings.TrimSpace(r.Destination) == "" {
		return ErrInvalidRecord
	}
	return nil
}

// RecordUpdate holds the attributes an update may change.
type RecordUpdate struct {
	Destination string
	SSL         bool
	UpdatedAt   int64
}

// Store is a key-value store with a secondary index on destination,
// conditional writes and an atomic counter.
//
// Reads may be eventually consistent. Writes that depend on whether a
// record exists must be decided by the store itself, never by a read
// followed by a write in the caller.
type Store interface {
	// Get returns the record stored under key or ErrRecordNotFound.
	Get(ctx context.Context, key string) (*Record, error)

	// QueryByIndex returns every record whose indexed attribute equals value.
	// An empty result is not an error.
	QueryByIndex(ctx context.Context, index, value string) ([]Record, error)

	// PutIfAbsent stores rec only if its key is free.
	// Returns ErrRecordExists or ErrInvalidRecord.
	PutIfAbsent(ctx context.Context, rec Record) error

	// UpdateIfExists applies upd to the record stored under key and returns
	// the resulting record. Returns ErrRecordNotFound or ErrInvalidRecord.
	UpdateIfExists(ctx context.Context, key string, upd RecordUpdate) (*Record, error)

	// Delete removes the record stored under key and returns its prior
	// attributes, or ErrRecordNotFound when nothing was stored.
	Delete(ctx context.Context, key string) (*Record, error)

	// Increment atomically adds delta to field of an existing record and
	// returns the new value. Returns ErrInvalidRecord when the record is missing.
	Increment(ctx context.Context, key, field string, delta int64) (int64, error)

	// Close releases the underlying client.
	Close() error
}
