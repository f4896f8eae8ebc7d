// Package sqlite stores sessions, transcripts, drafts and sandbox records in
// a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/felixgeelhaar/coach/internal/storage/migrations"
	_ "github.com/mattn/go-sqlite3"
)

// DB is a SQLite handle limited to one connection, the database's single
// writer.
type DB struct {
	*sql.DB
}

// dsn builds the connection string for path. Write-ahead logging lets
// readers run beside the writer and the busy timeout absorbs short lock
// contention between the daemon and the CLI.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_foreign_keys", "ON")
	q.Set("_busy_timeout", "5000")
	return "file:" + path + "?" + q.Encode()
}

// Open opens or creates the database file at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return &DB{DB: conn}, nil
}

// Migrate applies the pending schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := migrations.Apply(ctx, db.DB, migrations.SQLite); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

// Version returns the applied schema version.
func (db *DB) Version(ctx context.Context) (int, error) {
	return migrations.Version(ctx, db.DB)
}
