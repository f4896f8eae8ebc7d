package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/storage/local"
)

const (
	collectionSessions = "sessions"
	collectionDrafts   = "drafts"
)

// Store persists sessions. The JSON file, SQLite, Postgres and Redis stores
// implement it.
type Store interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Session, error)
}

// DraftStore keeps in-progress code per question and language.
type DraftStore interface {
	SaveDraft(ctx context.Context, questionID string, lang domain.Language, code string) error
	LoadDraft(ctx context.Context, questionID string, lang domain.Language) (string, error)
	ClearDraft(ctx context.Context, questionID string, lang domain.Language) error
}

// DraftKey identifies the draft of a question in a language.
func DraftKey(questionID string, lang domain.Language) string {
	return questionID + ":" + string(lang)
}

// FileStore handles session persistence as JSON files
type FileStore struct {
	store *local.Store
}

// NewFileStore creates a new file-backed session store
func NewFileStore(basePath string) (*FileStore, error) {
	store, err := local.NewStore(basePath)
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	return &FileStore{store: store}, nil
}

// Save persists a session
func (s *FileStore) Save(_ context.Context, session *Session) error {
	return s.store.Put(local.Key(collectionSessions, session.ID), session)
}

// Get retrieves a session by ID
func (s *FileStore) Get(_ context.Context, id string) (*Session, error) {
	var session Session
	if err := s.store.Get(local.Key(collectionSessions, id), &session); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		return nil, err
	}
	return &session, nil
}

// Delete removes a session
func (s *FileStore) Delete(_ context.Context, id string) error {
	if err := s.store.Remove(local.Key(collectionSessions, id)); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		return err
	}
	return nil
}

// List returns all sessions, oldest first
func (s *FileStore) List(ctx context.Context) ([]*Session, error) {
	ids, err := s.store.Names(collectionSessions)
	if err != nil {
		return nil, err
	}

	var sessions []*Session
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

type draftRecord struct {
	QuestionID string          `json:"question_id"`
	Language   domain.Language `json:"language"`
	Code       string          `json:"code"`
}

// draftFile maps a draft key onto a file name.
func draftFile(questionID string, lang domain.Language) string {
	return strings.ReplaceAll(DraftKey(questionID, lang), ":", "--")
}

// SaveDraft stores the in-progress code for a question
func (s *FileStore) SaveDraft(_ context.Context, questionID string, lang domain.Language, code string) error {
	return s.store.Put(local.Key(collectionDrafts, draftFile(questionID, lang)), draftRecord{
		QuestionID: questionID,
		Language:   lang,
		Code:       code,
	})
}

// LoadDraft returns the stored draft for a question
func (s *FileStore) LoadDraft(_ context.Context, questionID string, lang domain.Language) (string, error) {
	var rec draftRecord
	if err := s.store.Get(local.Key(collectionDrafts, draftFile(questionID, lang)), &rec); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", domain.ErrDraftNotFound, DraftKey(questionID, lang))
		}
		return "", err
	}
	return rec.Code, nil
}

// ClearDraft removes the stored draft for a question. Clearing a missing
// draft is not an error.
func (s *FileStore) ClearDraft(_ context.Context, questionID string, lang domain.Language) error {
	err := s.store.Remove(local.Key(collectionDrafts, draftFile(questionID, lang)))
	if err != nil && !errors.Is(err, local.ErrNotFound) {
		return err
	}
	return nil
}

var (
	_ Store      = (*FileStore)(nil)
	_ DraftStore = (*FileStore)(nil)
)
