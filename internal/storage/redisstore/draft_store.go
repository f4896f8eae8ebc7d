package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/session"
)

// DraftStore keeps drafts in a single hash keyed by question and language.
type DraftStore struct {
	client *redis.Client
}

// NewDraftStore creates a Redis-backed draft store.
func NewDraftStore(client *redis.Client) *DraftStore {
	return &DraftStore{client: client}
}

// SaveDraft stores the in-progress code for a question.
func (s *DraftStore) SaveDraft(ctx context.Context, questionID string, lang domain.Language, code string) error {
	return s.client.HSet(ctx, draftsKey, session.DraftKey(questionID, lang), code).Err()
}

// LoadDraft returns the stored draft for a question.
func (s *DraftStore) LoadDraft(ctx context.Context, questionID string, lang domain.Language) (string, error) {
	key := session.DraftKey(questionID, lang)
	code, err := s.client.HGet(ctx, draftsKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", domain.ErrDraftNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("load draft: %w", err)
	}
	return code, nil
}

// ClearDraft removes the stored draft for a question.
func (s *DraftStore) ClearDraft(ctx context.Context, questionID string, lang domain.Language) error {
	return s.client.HDel(ctx, draftsKey, session.DraftKey(questionID, lang)).Err()
}
