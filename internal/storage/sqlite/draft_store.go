package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/session"
)

// DraftStore implements draft code persistence backed by SQLite.
type DraftStore struct {
	db *DB
}

// NewDraftStore creates a new SQLite-backed draft store.
func NewDraftStore(db *DB) *DraftStore {
	return &DraftStore{db: db}
}

// SaveDraft stores the in-progress code for a question.
func (s *DraftStore) SaveDraft(ctx context.Context, questionID string, lang domain.Language, code string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (question_id, language, code, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(question_id, language) DO UPDATE SET
			code=excluded.code, updated_at=excluded.updated_at`,
		questionID, string(lang), code, time.Now())
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

// LoadDraft returns the stored draft for a question.
func (s *DraftStore) LoadDraft(ctx context.Context, questionID string, lang domain.Language) (string, error) {
	var code string
	err := s.db.QueryRowContext(ctx,
		"SELECT code FROM drafts WHERE question_id = ? AND language = ?",
		questionID, string(lang)).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", domain.ErrDraftNotFound, session.DraftKey(questionID, lang))
	}
	if err != nil {
		return "", fmt.Errorf("load draft: %w", err)
	}
	return code, nil
}

// ClearDraft removes the stored draft for a question.
func (s *DraftStore) ClearDraft(ctx context.Context, questionID string, lang domain.Language) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM drafts WHERE question_id = ? AND language = ?",
		questionID, string(lang)); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
