// Package migrations owns the SQL schemas of the relational storage drivers
// and applies them in version order.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// Dialect describes where a driver's migrations live and how it records
// applied versions.
type Dialect struct {
	Name string
	// Bootstrap creates the version table.
	Bootstrap string
	// Record inserts one applied version; it takes the version as its only
	// parameter.
	Record string
}

var (
	SQLite = Dialect{
		Name: "sqlite",
		Bootstrap: `CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
		)`,
		Record: "INSERT OR REPLACE INTO schema_migrations (version) VALUES (?)",
	}
	Postgres = Dialect{
		Name: "postgres",
		Bootstrap: `CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		Record: "INSERT INTO schema_migrations (version) VALUES ($1)",
	}
)

// Migration is one versioned schema script.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Load returns the migrations in dir of fsys newer than after, ordered by
// version. Files that do not follow the NNN_name.sql pattern are skipped.
func Load(fsys fs.FS, dir string, after int) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		version, err := ParseVersion(e.Name())
		if err != nil {
			slog.Warn("skipping non-migration file", "name", e.Name(), "error", err)
			continue
		}
		if version <= after {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: e.Name(), SQL: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// ParseVersion reads the numeric prefix of a file name like "001_initial.sql".
func ParseVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("invalid migration filename: %s", name)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return version, nil
}

// Version returns the highest applied version, or 0 on a fresh database.
func Version(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Apply brings db up to the latest embedded schema for d. Each migration runs
// in its own transaction together with its version record. It returns the
// number of migrations applied.
func Apply(ctx context.Context, db *sql.DB, d Dialect) (int, error) {
	if _, err := db.ExecContext(ctx, d.Bootstrap); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	current, err := Version(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	pending, err := Load(files, d.Name, current)
	if err != nil {
		return 0, err
	}

	for i, m := range pending {
		if err := applyOne(ctx, db, d, m); err != nil {
			return i, err
		}
		slog.Info("applied migration", "name", m.Name, "version", m.Version, "driver", d.Name)
	}
	return len(pending), nil
}

func applyOne(ctx context.Context, db *sql.DB, d Dialect, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.Name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("apply migration %s: %w", m.Name, err)
	}
	if _, err := tx.ExecContext(ctx, d.Record, m.Version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.Name, err)
	}
	return nil
}
