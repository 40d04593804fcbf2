package db

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxPingRetries = 5
	pingRetryDelay = 5 * time.Second
)

// NewPostgresPool connects to Postgres and waits for it to become reachable,
// retrying the ping a few times so the server survives a database that is
// still starting up.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	for attempt := 0; ; attempt++ {
		err = pool.Ping(ctx)
		if err == nil {
			return pool, nil
		}
		if attempt >= maxPingRetries {
			pool.Close()
			return nil, fmt.Errorf("failed to ping pool: %w", err)
		}

		select {
		case <-time.After(pingRetryDelay):
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		}
	}
}

// RunMigrations applies the SQL migrations in internal/db/migrations.
func RunMigrations(databaseURL string) error {
	migrationsPath, err := filepath.Abs("internal/db/migrations")
	if err != nil {
		return fmt.Errorf("failed to get migration path: %w", err)
	}

	// The pgx/v5 migrate driver registers under the pgx5 scheme.
	migrateURL := strings.Replace(databaseURL, "postgres://", "pgx5://", 1)

	m, err := migrate.New("file://"+migrationsPath, migrateURL)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
