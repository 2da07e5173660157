package app

import (
	"context"
	"fmt"

	"github.com/vadimbarashkov/petit/internal/config"
	"github.com/vadimbarashkov/petit/internal/database"
	"github.com/vadimbarashkov/petit/internal/database/badger"
	"github.com/vadimbarashkov/petit/internal/database/memory"
	"github.com/vadimbarashkov/petit/internal/database/postgres"
	"github.com/vadimbarashkov/petit/internal/database/redis"
)

// newStore opens the backend selected by cfg.Storage.Driver. The returned
// store owns its connection.
func newStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	const op = "app.newStore"

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return memory.New(), nil

	case config.DriverPostgres:
		dsn := cfg.Postgres.DSN()

		if cfg.Storage.RunMigrations {
			if err := postgres.RunMigrations(cfg.Storage.MigrationsPath, dsn); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}

		db, err := postgres.Connect(
			ctx,
			dsn,
			postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
			postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return postgres.NewStore(db, cfg.App.TableName), nil

	case config.DriverRedis:
		client, err := redis.Connect(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return redis.NewStore(client, cfg.App.TableName), nil

	case config.DriverBadger:
		db, err := badger.Open(cfg.Badger.Dir, cfg.Badger.InMemory)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return badger.NewStore(db, cfg.App.TableName), nil

	default:
		return nil, fmt.Errorf("%s: %w: unknown storage driver %q", op, config.ErrInvalidConfig, cfg.Storage.Driver)
	}
}
