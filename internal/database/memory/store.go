// Package memory implements database.Store on a mutex-guarded map.
// It is the default backend for development and the reference backend in tests.
package memory

import (
	"context"
	"sync"

	"github.com/vadimbarashkov/petit/internal/database"
)

// Store keeps records in memory. The zero value is not usable; use New.
type Store struct {
	mu      sync.RWMutex
	records map[string]database.Record
}

var _ database.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		records: make(map[string]database.Record),
	}
}

func (s *Store) Get(_ context.Context, key string) (*database.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, database.ErrRecordNotFound
	}

	return &rec, nil
}

func (s *Store) QueryByIndex(_ context.Context, index, value string) ([]database.Record, error) {
	if index != database.IndexDestination {
		return nil, database.ErrUnsupported
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]database.Record, 0)
	for _, rec := range s.records {
		if rec.Destination == value {
			recs = append(recs, rec)
		}
	}

	return recs, nil
}

func (s *Store) PutIfAbsent(_ context.Context, rec database.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.Shortcode]; ok {
		return database.ErrRecordExists
	}
	s.records[rec.Shortcode] = rec

	return nil
}

func (s *Store) UpdateIfExists(_ context.Context, key string, upd database.RecordUpdate) (*database.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, database.ErrRecordNotFound
	}

	rec.Destination = upd.Destination
	rec.SSL = upd.SSL
	rec.UpdatedAt = upd.UpdatedAt

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	s.records[key] = rec

	return &rec, nil
}

func (s *Store) Delete(_ context.Context, key string) (*database.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, database.ErrRecordNotFound
	}
	delete(s.records, key)

	return &rec, nil
}

func (s *Store) Increment(_ context.Context, key, field string, delta int64) (int64, error) {
	if field != database.FieldAccessCount {
		return 0, database.ErrUnsupported
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return 0, database.ErrInvalidRecord
	}
	rec.AccessCount += delta
	s.records[key] = rec

	return rec.AccessCount, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

func (s *Store) Close() error {
	return nil
}
