package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/petit/internal/database"
)

const DefaultTable = "shortcodes"

const columns = "shortcode, destination, ssl, access_count, created_at, updated_at"

// Store implements database.Store on a postgres table. Existence checks
// are left to the primary key and CHECK constraints of the table.
type Store struct {
	db    *sqlx.DB
	table string
}

var _ database.Store = (*Store)(nil)

// NewStore returns a Store backed by table. An empty table name selects
// DefaultTable.
func NewStore(db *sqlx.DB, table string) *Store {
	if table == "" {
		table = DefaultTable
	}

	return &Store{
		db:    db,
		table: pgx.Identifier{table}.Sanitize(),
	}
}

func (s *Store) Get(ctx context.Context, key string) (*database.Record, error) {
	const op = "database.postgres.Store.Get"

	rec := new(database.Record)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE shortcode = $1`, columns, s.table)

	if err := s.db.GetContext(ctx, rec, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrRecordNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get record: %w", op, err)
	}

	return rec, nil
}

func (s *Store) QueryByIndex(ctx context.Context, index, value string) ([]database.Record, error) {
	const op = "database.postgres.Store.QueryByIndex"

	if index != database.IndexDestination {
		return nil, fmt.Errorf("%s: %w: %s", op, database.ErrUnsupported, index)
	}

	recs := make([]database.Record, 0)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE destination = $1`, columns, s.table)

	if err := s.db.SelectContext(ctx, &recs, query, value); err != nil {
		return nil, fmt.Errorf("%s: failed to query records: %w", op, err)
	}

	return recs, nil
}

func (s *Store) PutIfAbsent(ctx context.Context, rec database.Record) error {
	const op = "database.postgres.Store.PutIfAbsent"

	query := fmt.Sprintf(`INSERT INTO %s(%s)
		VALUES (:shortcode, :destination, :ssl, :access_count, :created_at, :updated_at)`,
		s.table, columns)

	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		if isUniqueViolationError(err) {
			return fmt.Errorf("%s: %w", op, database.ErrRecordExists)
		}
		if isConstraintViolationError(err) {
			return fmt.Errorf("%s: %w", op, database.ErrInvalidRecord)
		}

		return fmt.Errorf("%s: failed to insert record: %w", op, err)
	}

	return nil
}

func (s *Store) UpdateIfExists(ctx context.Context, key string, upd database.RecordUpdate) (*database.Record, error) {
	const op = "database.postgres.Store.UpdateIfExists"

	rec := new(database.Record)
	query := fmt.Sprintf(`UPDATE %s
		SET destination = $1, ssl = $2, updated_at = $3
		WHERE shortcode = $4
		RETURNING %s`, s.table, columns)

	err := s.db.GetContext(ctx, rec, query, upd.Destination, upd.SSL, upd.UpdatedAt, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrRecordNotFound)
		}
		if isConstraintViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrInvalidRecord)
		}

		return nil, fmt.Errorf("%s: failed to update record: %w", op, err)
	}

	return rec, nil
}

func (s *Store) Delete(ctx context.Context, key string) (*database.Record, error) {
	const op = "database.postgres.Store.Delete"

	rec := new(database.Record)
	query := fmt.Sprintf(`DELETE FROM %s WHERE shortcode = $1 RETURNING %s`, s.table, columns)

	if err := s.db.GetContext(ctx, rec, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrRecordNotFound)
		}

		return nil, fmt.Errorf("%s: failed to delete record: %w", op, err)
	}

	return rec, nil
}

func (s *Store) Increment(ctx context.Context, key, field string, delta int64) (int64, error) {
	const op = "database.postgres.Store.Increment"

	if field != database.FieldAccessCount {
		return 0, fmt.Errorf("%s: %w: %s", op, database.ErrUnsupported, field)
	}

	var count int64
	query := fmt.Sprintf(`UPDATE %s
		SET access_count = access_count + $1
		WHERE shortcode = $2
		RETURNING access_count`, s.table)

	if err := s.db.GetContext(ctx, &count, query, delta, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, database.ErrInvalidRecord)
		}

		return 0, fmt.Errorf("%s: failed to increment %s: %w", op, field, err)
	}

	return count, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
