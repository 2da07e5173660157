// Package storetest holds the behaviour every database.Store must share.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/petit/internal/database"
)

// Factory returns an empty store. It is called once per test.
type Factory func(t testing.TB) database.Store

// StoreSuite exercises a database.Store implementation.
type StoreSuite struct {
	suite.Suite
	newStore Factory
	store    database.Store
	ctx      context.Context
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	suite.Run(t, &StoreSuite{newStore: newStore})
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore(s.T())
}

func (s *StoreSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func record(name, destination string) database.Record {
	return database.Record{
		Shortcode:   name,
		Destination: destination,
		SSL:         true,
		CreatedAt:   1500000000,
		UpdatedAt:   1500000000,
	}
}

func (s *StoreSuite) TestGetMissing() {
	rec, err := s.store.Get(s.ctx, "missing")

	s.ErrorIs(err, database.ErrRecordNotFound)
	s.Nil(rec)
}

func (s *StoreSuite) TestPutIfAbsent() {
	s.Run("stores record", func() {
		require.NoError(s.T(), s.store.PutIfAbsent(s.ctx, record("abc123", "x.io")))

		rec, err := s.store.Get(s.ctx, "abc123")
		s.Require().NoError(err)
		s.Equal(record("abc123", "x.io"), *rec)
	})

	s.Run("existing key is kept", func() {
		err := s.store.PutIfAbsent(s.ctx, record("abc123", "other.io"))
		s.ErrorIs(err, database.ErrRecordExists)

		rec, err := s.store.Get(s.ctx, "abc123")
		s.Require().NoError(err)
		s.Equal("x.io", rec.Destination)
	})

	s.Run("missing destination", func() {
		err := s.store.PutIfAbsent(s.ctx, record("nodest", ""))
		s.ErrorIs(err, database.ErrInvalidRecord)

		_, err = s.store.Get(s.ctx, "nodest")
		s.ErrorIs(err, database.ErrRecordNotFound)
	})

	s.Run("missing name", func() {
		err := s.store.PutIfAbsent(s.ctx, record("", "x.io"))
		s.ErrorIs(err, database.ErrInvalidRecord)
	})
}

func (s *StoreSuite) TestQueryByIndex() {
	s.Require().NoError(s.store.PutIfAbsent(s.ctx, record("one", "x.io")))
	s.Require().NoError(s.store.PutIfAbsent(s.ctx, record("two", "x.io")))
	s.Require().NoError(s.store.PutIfAbsent(s.ctx, record("three", "y.io")))

	recs, err := s.store.QueryByIndex(s.ctx, database.IndexDestination, "x.io")
	s.Require().NoError(err)

	names := make([]string, 0, len(recs))
	for _, rec := range recs {
		names = append(names, rec.Shortcode)
	}
	s.ElementsMatch([]string{"one", "two"}, names)

	recs, err = s.store.QueryByIndex(s.ctx, database.IndexDestination, "z.io")
	s.NoError(err)
	s.Empty(recs)

	_, err = s.store.QueryByIndex(s.ctx, "ssl", "true")
	s.ErrorIs(err, database.ErrUnsupported)
}

func (s *StoreSuite) TestUpdateIfExists() {
	s.Run("missing record", func() {
		rec, err := s.store.UpdateIfExists(s.ctx, "missing", database.RecordUpdate{
			Destination: "x.io",
			UpdatedAt:   1500000100,
		})

		s.ErrorIs(err, database.ErrRecordNotFound)
		s.Nil(rec)
	})

	s.Run("updates attributes", func() {
		s.Require().NoError(s.store.PutIfAbsent(s.ctx, record("abc", "x.io")))
		_, err := s.store.Increment(s.ctx, "abc", database.FieldAccessCount, 1)
		s.Require().NoError(err)

		rec, err := s.store.UpdateIfExists(s.ctx, "abc", database.RecordUpdate{
			Destination: "y.io",
			SSL:         false,
			UpdatedAt:   1500000100,
		})
		s.Require().NoError(err)

		s.Equal("abc", rec.Shortcode)
		s.Equal("y.io", rec.Destination)
		s.False(rec.SSL)
		s.Equal(int64(1), rec.AccessCount)
		s.Equal(int64(1500000000), rec.CreatedAt)
		s.Equal(int64(1500000100), rec.UpdatedAt)

		recs, err := s.store.QueryByIndex(s.ctx, database.IndexDestination, "x.io")
		s.NoError(err)
		s.Empty(recs)
	})

	s.Run("empty destination", func() {
		_, err := s.store.UpdateIfExists(s.ctx, "abc", database.RecordUpdate{UpdatedAt: 1500000200})
		s.ErrorIs(err, database.ErrInvalidRecord)

		rec, err := s.store.Get(s.ctx, "abc")
		s.Require().NoError(err)
		s.Equal("y.io", rec.Destination)
	})
}

func (s *StoreSuite) TestDelete() {
	s.Require().NoError(s.store.PutIfAbsent(s.ctx, record("abc", "x.io")))

	rec, err := s.store.Delete(s.ctx, "abc")
	s.Require().NoError(err)
	s.Equal(record("abc", "x.io"), *rec)

	rec, err = s.store.Delete(s.ctx, "abc")
	s.ErrorIs(err, database.ErrRecordNotFound)
	s.Nil(rec)

	recs, err := s.store.QueryByIndex(s.ctx, database.IndexDestination, "x.io")
	s.NoError(err)
	s.Empty(recs)
}

func (s *StoreSuite) TestIncrement() {
	s.Run("missing record", func() {
		_, err := s.store.Increment(s.ctx, "missing", database.FieldAccessCount, 1)
		s.ErrorIs(err, database.ErrInvalidRecord)

		_, err = s.store.Get(s.ctx, "missing")
		s.ErrorIs(err, database.ErrRecordNotFound)
	})

	s.Run("unsupported field", func() {
		_, err := s.store.Increment(s.ctx, "missing", "created_at", 1)
		s.ErrorIs(err, database.ErrUnsupported)
	})

	s.Run("concurrent increments", func() {
		const n = 50

		s.Require().NoError(s.store.PutIfAbsent(s.ctx, record("hot", "x.io")))

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.store.Increment(s.ctx, "hot", database.FieldAccessCount, 1)
				assert.NoError(s.T(), err)
			}()
		}
		wg.Wait()

		rec, err := s.store.Get(s.ctx, "hot")
		s.Require().NoError(err)
		s.Equal(int64(n), rec.AccessCount)

		count, err := s.store.Increment(s.ctx, "hot", database.FieldAccessCount, 1)
		s.NoError(err)
		s.Equal(int64(n+1), count)
	})
}
