package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/session"
)

// DraftStore implements session.DraftStore using PostgreSQL
type DraftStore struct {
	pool *pgxpool.Pool
}

// NewDraftStore creates a new PostgreSQL draft store
func NewDraftStore(db *DB) *DraftStore {
	return &DraftStore{pool: db.Pool}
}

// SaveDraft stores the in-progress code for a question
func (s *DraftStore) SaveDraft(ctx context.Context, questionID string, lang domain.Language, code string) error {
	query := `
		INSERT INTO drafts (question_id, language, code, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (question_id, language) DO UPDATE SET
			code = EXCLUDED.code, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, questionID, string(lang), code, time.Now()); err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

// LoadDraft returns the stored draft for a question
func (s *DraftStore) LoadDraft(ctx context.Context, questionID string, lang domain.Language) (string, error) {
	var code string
	err := s.pool.QueryRow(ctx,
		"SELECT code FROM drafts WHERE question_id = $1 AND language = $2",
		questionID, string(lang)).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", domain.ErrDraftNotFound, session.DraftKey(questionID, lang))
	}
	if err != nil {
		return "", fmt.Errorf("load draft: %w", err)
	}
	return code, nil
}

// ClearDraft removes the stored draft for a question
func (s *DraftStore) ClearDraft(ctx context.Context, questionID string, lang domain.Language) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM drafts WHERE question_id = $1 AND language = $2", questionID, string(lang))
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
