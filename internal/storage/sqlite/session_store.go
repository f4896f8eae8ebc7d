package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/feedback"
	"github.com/felixgeelhaar/coach/internal/session"
)

// SessionStore keeps sessions in the sessions table. Learner state is a JSON
// column.
type SessionStore struct {
	db *DB
}

// NewSessionStore returns a store on db.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = `id, question_id, language, task_index, status, state,
	unfamiliar_streak, submission_count, last_submission_at, created_at, updated_at`

// Save upserts sess. Question and language never change after creation.
func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	state, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			task_index=excluded.task_index, status=excluded.status,
			state=excluded.state, unfamiliar_streak=excluded.unfamiliar_streak,
			submission_count=excluded.submission_count,
			last_submission_at=excluded.last_submission_at,
			updated_at=excluded.updated_at`,
		sess.ID, sess.QuestionID, string(sess.Language), sess.TaskIndex,
		string(sess.Status), string(state),
		sess.UnfamiliarStreak, sess.SubmissionCount,
		nullTime(sess.LastSubmissionAt), sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Get returns ErrSessionNotFound for unknown ids.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return sess, err
}

// Delete removes a session and its cascaded snapshots.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return nil
}

// List returns all sessions, oldest first.
func (s *SessionStore) List(ctx context.Context) ([]*session.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at`)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*session.Session, error) {
	var sess session.Session
	var language, status, state string
	var lastSubmissionAt sql.NullTime

	err := row.Scan(
		&sess.ID, &sess.QuestionID, &language, &sess.TaskIndex, &status, &state,
		&sess.UnfamiliarStreak, &sess.SubmissionCount, &lastSubmissionAt,
		&sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.Language = domain.Language(language)
	sess.Status = session.Status(status)
	sess.State = feedback.NewSessionState()
	if err := json.Unmarshal([]byte(state), sess.State); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	if lastSubmissionAt.Valid {
		sess.LastSubmissionAt = &lastSubmissionAt.Time
	}
	return &sess, nil
}

// nullTime converts a *time.Time to sql.NullTime.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
