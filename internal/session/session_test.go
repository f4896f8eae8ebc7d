package session

import (
	"testing"

	"github.com/felixgeelhaar/coach/internal/domain"
)

func TestNewSession(t *testing.T) {
	s := NewSession("parens", domain.LanguagePython)

	if s.ID == "" {
		t.Error("ID should be generated")
	}
	if s.TaskIndex != 0 {
		t.Errorf("TaskIndex = %d, want 0", s.TaskIndex)
	}
	if !s.IsActive() {
		t.Error("new session should be active")
	}
	if s.State == nil {
		t.Error("State should be initialized")
	}
}

func TestSession_TrackUnfamiliarity(t *testing.T) {
	tests := []struct {
		name       string
		categories []domain.FeedbackCategory
		want       int
	}{
		{
			name:       "syntax errors accumulate",
			categories: []domain.FeedbackCategory{domain.CategorySyntaxError, domain.CategorySyntaxError},
			want:       2,
		},
		{
			name: "wrong language counts too",
			categories: []domain.FeedbackCategory{
				domain.CategorySyntaxError, domain.CategoryFailsLanguageDetectionCheck, domain.CategorySyntaxError,
			},
			want: 3,
		},
		{
			name: "other feedback resets",
			categories: []domain.FeedbackCategory{
				domain.CategorySyntaxError, domain.CategoryIncorrectOutputFailure, domain.CategorySyntaxError,
			},
			want: 1,
		},
		{
			name:       "server errors are ignored",
			categories: []domain.FeedbackCategory{domain.CategorySyntaxError, domain.CategoryServerError},
			want:       1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession("parens", domain.LanguagePython)
			for _, c := range tt.categories {
				s.TrackUnfamiliarity(c)
			}
			if s.UnfamiliarStreak != tt.want {
				t.Errorf("UnfamiliarStreak = %d, want %d", s.UnfamiliarStreak, tt.want)
			}
		})
	}
}

func TestSession_Clone(t *testing.T) {
	s := NewSession("parens", domain.LanguagePython)
	s.RecordSubmission()
	s.State.PreviousSuiteID = "GENERAL"

	c := s.Clone()
	c.State.PreviousSuiteID = "OTHER"
	c.AdvanceTask()

	if s.State.PreviousSuiteID != "GENERAL" {
		t.Error("Clone shares feedback state with the original")
	}
	if s.TaskIndex != 0 {
		t.Error("Clone shares the task cursor with the original")
	}
	if c.LastSubmissionAt == s.LastSubmissionAt {
		t.Error("Clone shares LastSubmissionAt with the original")
	}
}
