package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/vadimbarashkov/petit/internal/database"
)

var errUnknown = errors.New("unknown error")

var columnNames = []string{"shortcode", "destination", "ssl", "access_count", "created_at", "updated_at"}

func setupStore(t testing.TB) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}

	db := sqlx.NewDb(mockDB, "sqlmock")
	store := NewStore(db, "")

	t.Cleanup(func() {
		mockDB.Close()
		db.Close()
	})

	return store, mock
}

func testRecord() database.Record {
	return database.Record{
		Shortcode:   "abc123",
		Destination: "x.io",
		SSL:         true,
		CreatedAt:   1500000000,
		UpdatedAt:   1500000000,
	}
}

func TestNewStore(t *testing.T) {
	assert.Equal(t, `"shortcodes"`, NewStore(nil, "").table)
	assert.Equal(t, `"links"`, NewStore(nil, "links").table)
	assert.Equal(t, `"odd""name"`, NewStore(nil, `odd"name`).table)
}

func TestStore_Get(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectQuery(`SELECT (.+) FROM "shortcodes" WHERE shortcode`).
			WithArgs("abc123").
			WillReturnError(sql.ErrNoRows)

		rec, err := store.Get(context.TODO(), "abc123")

		assert.ErrorIs(t, err, database.ErrRecordNotFound)
		assert.Nil(t, rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown error", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectQuery(`SELECT (.+) FROM "shortcodes"`).
			WithArgs("abc123").
			WillReturnError(errUnknown)

		rec, err := store.Get(context.TODO(), "abc123")

		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		store, mock := setupStore(t)

		rows := sqlmock.NewRows(columnNames).
			AddRow("abc123", "x.io", true, 4, 1500000000, 1500000000)

		mock.ExpectQuery(`SELECT (.+) FROM "shortcodes"`).
			WithArgs("abc123").
			WillReturnRows(rows)

		want := testRecord()
		want.AccessCount = 4

		rec, err := store.Get(context.TODO(), "abc123")

		assert.NoError(t, err)
		assert.Equal(t, want, *rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_QueryByIndex(t *testing.T) {
	t.Run("unsupported index", func(t *testing.T) {
		store, mock := setupStore(t)

		recs, err := store.QueryByIndex(context.TODO(), "ssl", "true")

		assert.ErrorIs(t, err, database.ErrUnsupported)
		assert.Nil(t, recs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectQuery(`SELECT (.+) FROM "shortcodes" WHERE destination`).
			WithArgs("x.io").
			WillReturnRows(sqlmock.NewRows(columnNames))

		recs, err := store.QueryByIndex(context.TODO(), database.IndexDestination, "x.io")

		assert.NoError(t, err)
		assert.NotNil(t, recs)
		assert.Empty(t, recs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		store, mock := setupStore(t)

		rows := sqlmock.NewRows(columnNames).
			AddRow("abc123", "x.io", true, 0, 1500000000, 1500000000).
			AddRow("def456", "x.io", false, 2, 1500000000, 1500000000)

		mock.ExpectQuery(`SELECT (.+) FROM "shortcodes" WHERE destination`).
			WithArgs("x.io").
			WillReturnRows(rows)

		recs, err := store.QueryByIndex(context.TODO(), database.IndexDestination, "x.io")

		assert.NoError(t, err)
		assert.Len(t, recs, 2)
		assert.Equal(t, "def456", recs[1].Shortcode)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_PutIfAbsent(t *testing.T) {
	rec := testRecord()
	args := []driver.Value{rec.Shortcode, rec.Destination, rec.SSL, rec.AccessCount, rec.CreatedAt, rec.UpdatedAt}

	t.Run("record exists", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectExec(`INSERT INTO "shortcodes"`).
			WithArgs(args...).
			WillReturnError(&pgconn.PgError{Code: uniqueViolationErrCode})

		err := store.PutIfAbsent(context.TODO(), rec)

		assert.ErrorIs(t, err, database.ErrRecordExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid record", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectExec(`INSERT INTO "shortcodes"`).
			WithArgs(args...).
			WillReturnError(&pgconn.PgError{Code: checkViolationErrCode})

		err := store.PutIfAbsent(context.TODO(), rec)

		assert.ErrorIs(t, err, database.ErrInvalidRecord)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown error", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectExec(`INSERT INTO "shortcodes"`).
			WithArgs(args...).
			WillReturnError(errUnknown)

		err := store.PutIfAbsent(context.TODO(), rec)

		assert.ErrorIs(t, err, errUnknown)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectExec(`INSERT INTO "shortcodes"`).
			WithArgs(args...).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.PutIfAbsent(context.TODO(), rec)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_UpdateIfExists(t *testing.T) {
	upd := database.RecordUpdate{Destination: "y.io", SSL: false, UpdatedAt: 1500000100}

	t.Run("not found", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectQuery(`UPDATE "shortcodes"`).
			WithArgs("y.io", false, int64(1500000100), "abc123").
			WillReturnError(sql.ErrNoRows)

		rec, err := store.UpdateIfExists(context.TODO(), "abc123", upd)

		assert.ErrorIs(t, err, database.ErrRecordNotFound)
		assert.Nil(t, rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid record", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectQuery(`UPDATE "shortcodes"`).
			WithArgs("", false, int64(1500000100), "abc123").
			WillReturnError(&pgconn.PgError{Code: checkViolationErrCode})

		rec, err := store.UpdateIfExists(context.TODO(), "abc123", database.RecordUpdate{UpdatedAt: 1500000100})

		assert.ErrorIs(t, err, database.ErrInvalidRecord)
		assert.Nil(t, rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		store, mock := setupStore(t)

		rows := sqlmock.NewRows(columnNames).
			AddRow("abc123", "y.io", false, 3, 1500000000, 1500000100)

		mock.ExpectQuery(`UPDATE "shortcodes"`).
			WithArgs("y.io", false, int64(1500000100), "abc123").
			WillReturnRows(rows)

		rec, err := store.UpdateIfExists(context.TODO(), "abc123", upd)

		assert.NoError(t, err)
		assert.Equal(t, database.Record{
			Shortcode:   "abc123",
			Destination: "y.io",
			AccessCount: 3,
			CreatedAt:   1500000000,
			UpdatedAt:   1500000100,
		}, *rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_Delete(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectQuery(`DELETE FROM "shortcodes"`).
			WithArgs("abc123").
			WillReturnError(sql.ErrNoRows)

		rec, err := store.Delete(context.TODO(), "abc123")

		assert.ErrorIs(t, err, database.ErrRecordNotFound)
		assert.Nil(t, rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		store, mock := setupStore(t)

		rows := sqlmock.NewRows(columnNames).
			AddRow("abc123", "x.io", true, 0, 1500000000, 1500000000)

		mock.ExpectQuery(`DELETE FROM "shortcodes"`).
			WithArgs("abc123").
			WillReturnRows(rows)

		rec, err := store.Delete(context.TODO(), "abc123")

		assert.NoError(t, err)
		assert.Equal(t, testRecord(), *rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_Increment(t *testing.T) {
	t.Run("unsupported field", func(t *testing.T) {
		store, mock := setupStore(t)

		_, err := store.Increment(context.TODO(), "abc123", "created_at", 1)

		assert.ErrorIs(t, err, database.ErrUnsupported)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing record", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectQuery(`UPDATE "shortcodes"\s+SET access_count = access_count \+`).
			WithArgs(int64(1), "abc123").
			WillReturnError(sql.ErrNoRows)

		_, err := store.Increment(context.TODO(), "abc123", database.FieldAccessCount, 1)

		assert.ErrorIs(t, err, database.ErrInvalidRecord)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		store, mock := setupStore(t)

		mock.ExpectQuery(`UPDATE "shortcodes"\s+SET access_count = access_count \+`).
			WithArgs(int64(1), "abc123").
			WillReturnRows(sqlmock.NewRows([]string{"access_count"}).AddRow(5))

		count, err := store.Increment(context.TODO(), "abc123", database.FieldAccessCount, 1)

		assert.NoError(t, err)
		assert.Equal(t, int64(5), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
