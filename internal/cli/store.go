package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trafficlens/trafficlens/internal/area"
	"github.com/trafficlens/trafficlens/internal/database"
	"github.com/trafficlens/trafficlens/internal/snapshot"
)

// stores bundles the opened repositories with their close function.
type stores struct {
	areas     area.Repository
	snapshots snapshot.Repository
	service   *area.Service
	close     func()
}

// openStore opens the backend selected by the persistent store flags.
func openStore(ctx context.Context) (*stores, error) {
	switch storeDriver {
	case "sqlite":
		db, err := database.OpenSQLite(sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		areas := area.NewSQLiteRepository(db)
		snaps := snapshot.NewSQLiteRepository(db)
		return &stores{
			areas:     areas,
			snapshots: snaps,
			service:   area.NewService(areas, snaps),
			close:     func() { db.Close() },
		}, nil
	case "postgres":
		pool, err := openPostgres(ctx)
		if err != nil {
			return nil, err
		}
		areas := area.NewPostgresRepository(pool)
		snaps := snapshot.NewPostgresRepository(pool)
		return &stores{
			areas:     areas,
			snapshots: snaps,
			service:   area.NewService(areas, snaps),
			close:     pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store %q, expected sqlite or postgres", storeDriver)
	}
}

// openPostgres connects via the --dsn flag, falling back to the DB_*
// environment used by the server binaries.
func openPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	if postgresDSN == "" {
		pool, err := database.Connect(ctx, database.ConfigFromEnv())
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		return pool, nil
	}

	pool, err := pgxpool.New(ctx, postgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return pool, nil
}
