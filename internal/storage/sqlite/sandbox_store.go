package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/coach/internal/sandbox"
)

// SandboxStore keeps sandbox records. Rows carry no foreign key to sessions:
// a record must outlive its session until the container is gone.
type SandboxStore struct {
	db *DB
}

// NewSandboxStore creates a sandbox store on db.
func NewSandboxStore(db *DB) *SandboxStore {
	return &SandboxStore{db: db}
}

const selectSandbox = `SELECT id, session_id, container_id, image, state, limits,
	runs, last_run_at, expires_at, created_at, updated_at FROM sandboxes`

// Save inserts or updates a record. Identity fields never change after the
// first insert.
func (s *SandboxStore) Save(ctx context.Context, sb *sandbox.Sandbox) error {
	limits, err := json.Marshal(sb.Limits)
	if err != nil {
		return fmt.Errorf("encode limits: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sandboxes (id, session_id, container_id, image, state, limits,
			runs, last_run_at, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			container_id = excluded.container_id,
			state        = excluded.state,
			runs         = excluded.runs,
			last_run_at  = excluded.last_run_at,
			expires_at   = excluded.expires_at,
			updated_at   = excluded.updated_at`,
		sb.ID, sb.SessionID, sb.ContainerID, sb.Image, string(sb.State), string(limits),
		sb.Runs, nullTime(sb.LastRunAt), sb.ExpiresAt, sb.CreatedAt, sb.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save sandbox %s: %w", sb.ID, err)
	}
	return nil
}

func (s *SandboxStore) Get(ctx context.Context, id string) (*sandbox.Sandbox, error) {
	return scanSandbox(s.db.QueryRowContext(ctx, selectSandbox+` WHERE id = ?`, id))
}

func (s *SandboxStore) ForSession(ctx context.Context, sessionID string) (*sandbox.Sandbox, error) {
	return scanSandbox(s.db.QueryRowContext(ctx,
		selectSandbox+` WHERE session_id = ? AND state <> ? ORDER BY created_at DESC LIMIT 1`,
		sessionID, string(sandbox.StateRemoved)))
}

func (s *SandboxStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sandboxes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete sandbox %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sandbox.ErrNotFound
	}
	return nil
}

func (s *SandboxStore) Live(ctx context.Context) ([]*sandbox.Sandbox, error) {
	return s.query(ctx, selectSandbox+` WHERE state <> ? ORDER BY created_at DESC`,
		string(sandbox.StateRemoved))
}

func (s *SandboxStore) Expired(ctx context.Context, now time.Time) ([]*sandbox.Sandbox, error) {
	return s.query(ctx, selectSandbox+` WHERE state <> ? AND expires_at < ? ORDER BY expires_at`,
		string(sandbox.StateRemoved), now)
}

func (s *SandboxStore) query(ctx context.Context, q string, args ...any) ([]*sandbox.Sandbox, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query sandboxes: %w", err)
	}
	defer rows.Close()

	var out []*sandbox.Sandbox
	for rows.Next() {
		sb, err := scanSandbox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sb)
	}
	return out, rows.Err()
}

func scanSandbox(row scanner) (*sandbox.Sandbox, error) {
	var (
		sb      sandbox.Sandbox
		state   string
		limits  string
		lastRun sql.NullTime
	)
	err := row.Scan(&sb.ID, &sb.SessionID, &sb.ContainerID, &sb.Image, &state, &limits,
		&sb.Runs, &lastRun, &sb.ExpiresAt, &sb.CreatedAt, &sb.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sandbox.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan sandbox: %w", err)
	}
	if err := json.Unmarshal([]byte(limits), &sb.Limits); err != nil {
		return nil, fmt.Errorf("decode limits of sandbox %s: %w", sb.ID, err)
	}
	sb.State = sandbox.State(state)
	if lastRun.Valid {
		sb.LastRunAt = &lastRun.Time
	}
	return &sb, nil
}
