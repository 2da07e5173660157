// Package badger implements database.Store on an embedded BadgerDB.
//
// Records live under "<prefix>:sc:<name>" as JSON. The destination index
// is a set of empty-valued keys "<prefix>:dest:<destination>\x00<name>"
// maintained in the same transaction as the record.
package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/vadimbarashkov/petit/internal/database"
)

const (
	recordKeyPart = ":sc:"
	indexKeyPart  = ":dest:"
	indexSep      = "\x00"
)

// maxTxnRetries bounds the retries of a transaction aborted by a
// concurrent writer.
const maxTxnRetries = 128

// Store implements database.Store with optimistic badger transactions.
type Store struct {
	db     *badger.DB
	prefix string
}

var _ database.Store = (*Store)(nil)

// Open opens (or creates) a badger database in dir. With inMemory set the
// directory is ignored and nothing is written to disk.
func Open(dir string, inMemory bool) (*badger.DB, error) {
	const op = "database.badger.Open"

	opts := badger.DefaultOptions(dir)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	return db, nil
}

// NewStore returns a Store keeping its keys under prefix.
func NewStore(db *badger.DB, prefix string) *Store {
	return &Store{
		db:     db,
		prefix: prefix,
	}
}

func (s *Store) recordKey(name string) []byte {
	return []byte(s.prefix + recordKeyPart + name)
}

func (s *Store) indexPrefix(destination string) []byte {
	return []byte(s.prefix + indexKeyPart + destination + indexSep)
}

func (s *Store) indexKey(destination, name string) []byte {
	return append(s.indexPrefix(destination), name...)
}

func readRecord(txn *badger.Txn, key []byte) (*database.Record, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, database.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	rec := new(database.Record)
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}

	return rec, nil
}

func (s *Store) writeRecord(txn *badger.Txn, rec *database.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	if err := txn.Set(s.recordKey(rec.Shortcode), data); err != nil {
		return err
	}

	return txn.Set(s.indexKey(rec.Destination, rec.Shortcode), nil)
}

// update runs fn in a read-write transaction, retrying when a concurrent
// transaction invalidated what fn read.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *Store) Get(_ context.Context, key string) (*database.Record, error) {
	const op = "database.badger.Store.Get"

	var rec *database.Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = readRecord(txn, s.recordKey(key))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

func (s *Store) QueryByIndex(_ context.Context, index, value string) ([]database.Record, error) {
	const op = "database.badger.Store.QueryByIndex"

	if index != database.IndexDestination {
		return nil, fmt.Errorf("%s: %w: %s", op, database.ErrUnsupported, index)
	}

	recs := make([]database.Record, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := s.indexPrefix(value)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			name := string(it.Item().Key()[len(prefix):])

			rec, err := readRecord(txn, s.recordKey(name))
			if errors.Is(err, database.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			recs = append(recs, *rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query records: %w", op, err)
	}

	return recs, nil
}

func (s *Store) PutIfAbsent(ctx context.Context, rec database.Record) error {
	const op = "database.badger.Store.PutIfAbsent"

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(s.recordKey(rec.Shortcode))
		if err == nil {
			return database.ErrRecordExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		return s.writeRecord(txn, &rec)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) UpdateIfExists(ctx context.Context, key string, upd database.RecordUpdate) (*database.Record, error) {
	const op = "database.badger.Store.UpdateIfExists"

	var rec *database.Record
	err := s.update(ctx, func(txn *badger.Txn) error {
		var err error
		rec, err = readRecord(txn, s.recordKey(key))
		if err != nil {
			return err
		}

		oldDestination := rec.Destination
		rec.Destination = upd.Destination
		rec.SSL = upd.SSL
		rec.UpdatedAt = upd.UpdatedAt

		if err := rec.Validate(); err != nil {
			return err
		}

		if oldDestination != rec.Destination {
			if err := txn.Delete(s.indexKey(oldDestination, key)); err != nil {
				return err
			}
		}

		return s.writeRecord(txn, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

func (s *Store) Delete(ctx context.Context, key string) (*database.Record, error) {
	const op = "database.badger.Store.Delete"

	var rec *database.Record
	err := s.update(ctx, func(txn *badger.Txn) error {
		var err error
		rec, err = readRecord(txn, s.recordKey(key))
		if err != nil {
			return err
		}

		if err := txn.Delete(s.recordKey(key)); err != nil {
			return err
		}

		return txn.Delete(s.indexKey(rec.Destination, key))
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

func (s *Store) Increment(ctx context.Context, key, field string, delta int64) (int64, error) {
	const op = "database.badger.Store.Increment"

	if field != database.FieldAccessCount {
		return 0, fmt.Errorf("%s: %w: %s", op, database.ErrUnsupported, field)
	}

	var count int64
	err := s.update(ctx, func(txn *badger.Txn) error {
		rec, err := readRecord(txn, s.recordKey(key))
		if errors.Is(err, database.ErrRecordNotFound) {
			return database.ErrInvalidRecord
		}
		if err != nil {
			return err
		}

		rec.AccessCount += delta
		count = rec.AccessCount

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		return txn.Set(s.recordKey(key), data)
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
