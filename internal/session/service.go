package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/transcript"
)

// QuestionSource looks up questions by ID.
type QuestionSource interface {
	Get(id string) (*domain.Question, error)
}

// Service manages learner sessions
type Service struct {
	questions   QuestionSource
	store       Store
	transcripts transcript.Store
	drafts      DraftStore
}

// NewService creates a new session service. drafts may be nil.
func NewService(questions QuestionSource, store Store, transcripts transcript.Store, drafts DraftStore) *Service {
	return &Service{
		questions:   questions,
		store:       store,
		transcripts: transcripts,
		drafts:      drafts,
	}
}

// CreateRequest contains data for creating a session
type CreateRequest struct {
	QuestionID string
	Language   string
}

// Started is a freshly created session with the code the learner starts
// from and the instructions of the first task.
type Started struct {
	Session      *Session
	Code         string
	Instructions []string
}

// Create starts a new session on a question. The code returned is the saved
// draft when one exists, otherwise the starter code.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Started, error) {
	lang := domain.LanguagePython
	if req.Language != "" {
		l, err := domain.ParseLanguage(req.Language)
		if err != nil {
			return nil, err
		}
		lang = l
	}

	q, err := s.questions.Get(req.QuestionID)
	if err != nil {
		return nil, err
	}
	starter, ok := q.StarterCode[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %s starter code", domain.ErrUnsupportedLanguage, q.ID, lang)
	}

	session := NewSession(q.ID, lang)
	if err := s.transcripts.Delete(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("reset transcript: %w", err)
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	code := starter
	if s.drafts != nil {
		draft, err := s.drafts.LoadDraft(ctx, q.ID, lang)
		switch {
		case err == nil:
			code = draft
		case !errors.Is(err, domain.ErrDraftNotFound):
			slog.Warn("failed to load draft", "question_id", q.ID, "language", lang, "error", err)
		}
	}

	slog.Info("session started", "session_id", session.ID, "question_id", q.ID, "language", lang)
	return &Started{Session: session, Code: code, Instructions: q.Tasks[0].Instructions}, nil
}

// Get retrieves a session by ID
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// List returns all sessions
func (s *Service) List(ctx context.Context) ([]*Session, error) {
	return s.store.List(ctx)
}

// Delete removes a session and its transcript
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.transcripts.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

// Transcript returns the snapshot history of a session
func (s *Service) Transcript(ctx context.Context, id string) (*domain.Transcript, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.transcripts.Load(ctx, id)
}

// SaveDraft stores in-progress code
func (s *Service) SaveDraft(ctx context.Context, questionID, language, code string) error {
	lang, err := s.draftTarget(questionID, language)
	if err != nil {
		return err
	}
	return s.drafts.SaveDraft(ctx, questionID, lang, code)
}

// LoadDraft returns stored in-progress code
func (s *Service) LoadDraft(ctx context.Context, questionID, language string) (string, error) {
	lang, err := s.draftTarget(questionID, language)
	if err != nil {
		return "", err
	}
	return s.drafts.LoadDraft(ctx, questionID, lang)
}

// ClearDraft removes stored in-progress code
func (s *Service) ClearDraft(ctx context.Context, questionID, language string) error {
	lang, err := s.draftTarget(questionID, language)
	if err != nil {
		return err
	}
	return s.drafts.ClearDraft(ctx, questionID, lang)
}

func (s *Service) draftTarget(questionID, language string) (domain.Language, error) {
	if s.drafts == nil {
		return "", fmt.Errorf("%w: draft storage is not configured", domain.ErrInvalidInput)
	}
	if _, err := s.questions.Get(questionID); err != nil {
		return "", err
	}
	return domain.ParseLanguage(language)
}
