package database

import "errors"

var (
	// ErrRecordNotFound is returned when no record exists for the given key.
	ErrRecordNotFound = errors.New("record not found")
	// ErrRecordExists is returned by a conditional put when the key is taken.
	ErrRecordExists = errors.New("record exists")
	// ErrInvalidRecord is returned when a write is rejected because the
	// record is incomplete or the targeted record does not exist for an
	// increment.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrUnsupported is returned for an index or counter field a store
	// does not maintain.
	ErrUnsupported = errors.New("unsupported index or field")
)
