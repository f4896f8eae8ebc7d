package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/feedback"
)

// Status represents the session state
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Session is one learner working through one question in one language.
type Session struct {
	ID         string          `json:"id"`
	QuestionID string          `json:"question_id"`
	Language   domain.Language `json:"language"`
	TaskIndex  int             `json:"task_index"`
	Status     Status          `json:"status"`

	// State is the feedback state carried between attempts.
	State *feedback.SessionState `json:"state"`

	// UnfamiliarStreak counts consecutive syntax-error and wrong-language
	// feedbacks.
	UnfamiliarStreak int `json:"unfamiliar_streak"`

	// Statistics
	SubmissionCount  int        `json:"submission_count"`
	LastSubmissionAt *time.Time `json:"last_submission_at,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a session positioned at the first task.
func NewSession(questionID string, lang domain.Language) *Session {
	now := time.Now()
	return &Session{
		ID:         uuid.New().String(),
		QuestionID: questionID,
		Language:   lang,
		Status:     StatusActive,
		State:      feedback.NewSessionState(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// RecordSubmission records that a submission was evaluated
func (s *Session) RecordSubmission() {
	now := time.Now()
	s.SubmissionCount++
	s.LastSubmissionAt = &now
	s.UpdatedAt = now
}

// AdvanceTask moves the cursor to the next task.
func (s *Session) AdvanceTask() {
	s.TaskIndex++
	s.UpdatedAt = time.Now()
}

// Complete marks the session as completed
func (s *Session) Complete() {
	s.Status = StatusCompleted
	s.UpdatedAt = time.Now()
}

// IsActive reports whether the session still accepts submissions.
func (s *Session) IsActive() bool {
	return s.Status == StatusActive
}

// TrackUnfamiliarity updates the streak of feedbacks that suggest the learner
// does not know the language yet. Server errors leave it untouched.
func (s *Session) TrackUnfamiliarity(category domain.FeedbackCategory) {
	switch category {
	case domain.CategoryServerError:
	case domain.CategorySyntaxError, domain.CategoryFailsLanguageDetectionCheck:
		s.UnfamiliarStreak++
	default:
		s.UnfamiliarStreak = 0
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	if s.State != nil {
		c.State = s.State.Clone()
	}
	if s.LastSubmissionAt != nil {
		t := *s.LastSubmissionAt
		c.LastSubmissionAt = &t
	}
	return &c
}
