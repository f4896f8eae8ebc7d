// Package postgres stores sessions, transcripts and drafts in PostgreSQL.
// Session and draft access goes through a pgx pool; migrations and
// transcript rows use database/sql with the lib/pq driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/felixgeelhaar/coach/internal/storage/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

// DB holds both connection handles to the same database.
type DB struct {
	Pool *pgxpool.Pool
	SQL  *sql.DB
}

// Open connects to the database at url and verifies both handles.
func Open(ctx context.Context, url string) (*DB, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	sqlDB, err := sql.Open("postgres", url)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		pool.Close()
		sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &DB{Pool: pool, SQL: sqlDB}, nil
}

// Close releases both handles.
func (db *DB) Close() error {
	db.Pool.Close()
	return db.SQL.Close()
}

// Migrate applies the pending schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := migrations.Apply(ctx, db.SQL, migrations.Postgres); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// Version returns the applied schema version.
func (db *DB) Version(ctx context.Context) (int, error) {
	return migrations.Version(ctx, db.SQL)
}
