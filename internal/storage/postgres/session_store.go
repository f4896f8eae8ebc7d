package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/feedback"
	"github.com/felixgeelhaar/coach/internal/session"
)

// SessionStore implements session.Store using PostgreSQL
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a new PostgreSQL session store
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{pool: db.Pool}
}

const sessionColumns = `id, question_id, language, task_index, status, state,
	unfamiliar_streak, submission_count, last_submission_at, created_at, updated_at`

// Save inserts or updates a session
func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	state, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			task_index = EXCLUDED.task_index, status = EXCLUDED.status,
			state = EXCLUDED.state, unfamiliar_streak = EXCLUDED.unfamiliar_streak,
			submission_count = EXCLUDED.submission_count,
			last_submission_at = EXCLUDED.last_submission_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.pool.Exec(ctx, query,
		sess.ID, sess.QuestionID, string(sess.Language), sess.TaskIndex,
		string(sess.Status), state, sess.UnfamiliarStreak, sess.SubmissionCount,
		sess.LastSubmissionAt, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return sess, err
}

// Delete removes a session; its snapshots cascade
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM sessions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return nil
}

// List returns all sessions, oldest first
func (s *SessionStore) List(ctx context.Context) ([]*session.Session, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var sess session.Session
	var language, status string
	var state []byte
	var lastSubmissionAt *time.Time

	err := row.Scan(
		&sess.ID, &sess.QuestionID, &language, &sess.TaskIndex, &status, &state,
		&sess.UnfamiliarStreak, &sess.SubmissionCount, &lastSubmissionAt,
		&sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sess.Language = domain.Language(language)
	sess.Status = session.Status(status)
	sess.LastSubmissionAt = lastSubmissionAt
	sess.State = feedback.NewSessionState()
	if err := json.Unmarshal(state, sess.State); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &sess, nil
}
