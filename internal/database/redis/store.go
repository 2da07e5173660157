// Package redis implements database.Store on Redis hashes.
//
// A record is the hash "<prefix>:sc:<name>"; the destination index is the
// set "<prefix>:dest:<destination>" of names. Conditional writes run as Lua
// scripts so the existence check and the write are one atomic step. The
// scripts derive index keys from the prefix, so the store targets a single
// Redis node rather than a cluster.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/petit/internal/database"
)

const (
	recordKeyPart = ":sc:"
	indexKeyPart  = ":dest:"
)

const invalidReply = "INVALID"

var putScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1],
	'shortcode', ARGV[1],
	'destination', ARGV[2],
	'ssl', ARGV[3],
	'access_count', ARGV[4],
	'created_at', ARGV[5],
	'updated_at', ARGV[6])
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`)

var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
if ARGV[1] == '' then
	return redis.error_reply('INVALID')
end
local old = redis.call('HGET', KEYS[1], 'destination')
if old ~= ARGV[1] then
	redis.call('SREM', ARGV[5] .. old, ARGV[4])
	redis.call('SADD', KEYS[2], ARGV[4])
end
redis.call('HSET', KEYS[1], 'destination', ARGV[1], 'ssl', ARGV[2], 'updated_at', ARGV[3])
return redis.call('HGETALL', KEYS[1])
`)

var deleteScript = redis.NewScript(`
local rec = redis.call('HGETALL', KEYS[1])
if #rec == 0 then
	return false
end
local dest = redis.call('HGET', KEYS[1], 'destination')
redis.call('DEL', KEYS[1])
redis.call('SREM', ARGV[1] .. dest, ARGV[2])
return rec
`)

var incrScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
`)

// Options configures the client created by Connect.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect creates a client and checks the server answers.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	const op = "database.redis.Connect"

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: failed to ping redis: %w", op, err)
	}

	return client, nil
}

// Store implements database.Store on a Redis server.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ database.Store = (*Store)(nil)

// NewStore returns a Store keeping its keys under prefix.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
	}
}

func (s *Store) recordKey(name string) string {
	return s.prefix + recordKeyPart + name
}

func (s *Store) indexPrefix() string {
	return s.prefix + indexKeyPart
}

func (s *Store) indexKey(destination string) string {
	return s.indexPrefix() + destination
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func recordFromMap(m map[string]string) (*database.Record, error) {
	rec := &database.Record{
		Shortcode:   m["shortcode"],
		Destination: m["destination"],
		SSL:         m["ssl"] == "1",
	}

	ints := []struct {
		field string
		dst   *int64
	}{
		{"access_count", &rec.AccessCount},
		{"created_at", &rec.CreatedAt},
		{"updated_at", &rec.UpdatedAt},
	}
	for _, f := range ints {
		v, ok := m[f.field]
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.field, err)
		}
		*f.dst = n
	}

	return rec, nil
}

// recordFromReply decodes the flat field/value list returned by HGETALL
// inside a script.
func recordFromReply(reply []any) (*database.Record, error) {
	m := make(map[string]string, len(reply)/2)
	for i := 0; i+1 < len(reply); i += 2 {
		k, _ := reply[i].(string)
		v, _ := reply[i+1].(string)
		m[k] = v
	}
	return recordFromMap(m)
}

func isInvalidReply(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), invalidReply)
}

func (s *Store) Get(ctx context.Context, key string) (*database.Record, error) {
	const op = "database.redis.Store.Get"

	m, err := s.client.HGetAll(ctx, s.recordKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get record: %w", op, err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("%s: %w", op, database.ErrRecordNotFound)
	}

	rec, err := recordFromMap(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

func (s *Store) QueryByIndex(ctx context.Context, index, value string) ([]database.Record, error) {
	const op = "database.redis.Store.QueryByIndex"

	if index != database.IndexDestination {
		return nil, fmt.Errorf("%s: %w: %s", op, database.ErrUnsupported, index)
	}

	names, err := s.client.SMembers(ctx, s.indexKey(value)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read index: %w", op, err)
	}

	recs := make([]database.Record, 0, len(names))
	if len(names) == 0 {
		return recs, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(names))
	for i, name := range names {
		cmds[i] = pipe.HGetAll(ctx, s.recordKey(name))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%s: failed to read records: %w", op, err)
	}

	for _, cmd := range cmds {
		m := cmd.Val()
		if len(m) == 0 {
			continue
		}
		rec, err := recordFromMap(m)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		recs = append(recs, *rec)
	}

	return recs, nil
}

func (s *Store) PutIfAbsent(ctx context.Context, rec database.Record) error {
	const op = "database.redis.Store.PutIfAbsent"

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	created, err := putScript.Run(ctx, s.client,
		[]string{s.recordKey(rec.Shortcode), s.indexKey(rec.Destination)},
		rec.Shortcode, rec.Destination, formatBool(rec.SSL), rec.AccessCount, rec.CreatedAt, rec.UpdatedAt,
	).Int64()
	if err != nil {
		return fmt.Errorf("%s: failed to put record: %w", op, err)
	}
	if created == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrRecordExists)
	}

	return nil
}

func (s *Store) UpdateIfExists(ctx context.Context, key string, upd database.RecordUpdate) (*database.Record, error) {
	const op = "database.redis.Store.UpdateIfExists"

	reply, err := updateScript.Run(ctx, s.client,
		[]string{s.recordKey(key), s.indexKey(upd.Destination)},
		upd.Destination, formatBool(upd.SSL), upd.UpdatedAt, key, s.indexPrefix(),
	).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrRecordNotFound)
		}
		if isInvalidReply(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrInvalidRecord)
		}

		return nil, fmt.Errorf("%s: failed to update record: %w", op, err)
	}

	rec, err := recordFromReply(reply)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

func (s *Store) Delete(ctx context.Context, key string) (*database.Record, error) {
	const op = "database.redis.Store.Delete"

	reply, err := deleteScript.Run(ctx, s.client,
		[]string{s.recordKey(key)},
		s.indexPrefix(), key,
	).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrRecordNotFound)
		}

		return nil, fmt.Errorf("%s: failed to delete record: %w", op, err)
	}

	rec, err := recordFromReply(reply)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

func (s *Store) Increment(ctx context.Context, key, field string, delta int64) (int64, error) {
	const op = "database.redis.Store.Increment"

	if field != database.FieldAccessCount {
		return 0, fmt.Errorf("%s: %w: %s", op, database.ErrUnsupported, field)
	}

	count, err := incrScript.Run(ctx, s.client, []string{s.recordKey(key)}, field, delta).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("%s: %w", op, database.ErrInvalidRecord)
		}

		return 0, fmt.Errorf("%s: failed to increment %s: %w", op, field, err)
	}

	return count, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
