package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Snapshot records one submission attempt and the feedback it produced.
type Snapshot struct {
	ID            string
	TaskIndex     int
	PrereqFailure PrereqFailure    // nil unless a prerequisite check failed
	Result        *ExecutionResult // nil if the submission never ran
	Feedback      *Feedback
	Reinforcement *ReinforcementRecord // nil if the submission never ran
	CreatedAt     time.Time
}

// NewSnapshot creates a snapshot stamped with a fresh ID and the current time.
func NewSnapshot(taskIndex int, prereq PrereqFailure, result *ExecutionResult, feedback *Feedback) *Snapshot {
	return &Snapshot{
		ID:            uuid.New().String(),
		TaskIndex:     taskIndex,
		PrereqFailure: prereq,
		Result:        result,
		Feedback:      feedback,
		CreatedAt:     time.Now(),
	}
}

// IsServerError reports whether the snapshot records an infrastructure
// failure rather than a learner attempt.
func (s *Snapshot) IsServerError() bool {
	return s.Feedback != nil && s.Feedback.Category == CategoryServerError
}

// Category returns the feedback category of the snapshot.
func (s *Snapshot) Category() FeedbackCategory {
	if s.Feedback == nil {
		return ""
	}
	return s.Feedback.Category
}

type snapshotJSON struct {
	ID            string               `json:"id"`
	TaskIndex     int                  `json:"task_index"`
	PrereqFailure json.RawMessage      `json:"prereq_failure,omitempty"`
	Result        *ExecutionResult     `json:"result,omitempty"`
	Feedback      *Feedback            `json:"feedback"`
	Reinforcement *ReinforcementRecord `json:"reinforcement,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// MarshalJSON encodes the snapshot with a tagged prerequisite failure.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	w := snapshotJSON{
		ID:            s.ID,
		TaskIndex:     s.TaskIndex,
		Result:        s.Result,
		Feedback:      s.Feedback,
		Reinforcement: s.Reinforcement,
		CreatedAt:     s.CreatedAt,
	}
	if s.PrereqFailure != nil {
		raw, err := MarshalPrereqFailure(s.PrereqFailure)
		if err != nil {
			return nil, err
		}
		w.PrereqFailure = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a snapshot written by MarshalJSON.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w snapshotJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	prereq, err := UnmarshalPrereqFailure(w.PrereqFailure)
	if err != nil {
		return err
	}
	*s = Snapshot{
		ID:            w.ID,
		TaskIndex:     w.TaskIndex,
		PrereqFailure: prereq,
		Result:        w.Result,
		Feedback:      w.Feedback,
		Reinforcement: w.Reinforcement,
		CreatedAt:     w.CreatedAt,
	}
	return nil
}

// Transcript is the ordered, append-only history of one session's snapshots.
type Transcript struct {
	SessionID string
	snapshots []*Snapshot
}

// NewTranscript creates an empty transcript for a session.
func NewTranscript(sessionID string) *Transcript {
	return &Transcript{SessionID: sessionID}
}

// RestoreTranscript rebuilds a transcript from stored snapshots in order.
func RestoreTranscript(sessionID string, snapshots []*Snapshot) *Transcript {
	t := NewTranscript(sessionID)
	t.snapshots = append(t.snapshots, snapshots...)
	return t
}

// Append adds a snapshot to the end of the transcript.
func (t *Transcript) Append(s *Snapshot) {
	t.snapshots = append(t.snapshots, s)
}

// Len returns the number of snapshots.
func (t *Transcript) Len() int {
	return len(t.snapshots)
}

// Snapshots returns the snapshots in append order.
func (t *Transcript) Snapshots() []*Snapshot {
	out := make([]*Snapshot, len(t.snapshots))
	copy(out, t.snapshots)
	return out
}

// MostRecent returns the last snapshot, or nil for an empty transcript.
func (t *Transcript) MostRecent() *Snapshot {
	if len(t.snapshots) == 0 {
		return nil
	}
	return t.snapshots[len(t.snapshots)-1]
}

// LastAttempt returns the most recent snapshot that records a learner
// attempt. Server errors are skipped so they never influence later feedback.
func (t *Transcript) LastAttempt() *Snapshot {
	for i := len(t.snapshots) - 1; i >= 0; i-- {
		if !t.snapshots[i].IsServerError() {
			return t.snapshots[i]
		}
	}
	return nil
}

// MostRecentWithCategory returns the latest learner attempt whose feedback
// carried the given category.
func (t *Transcript) MostRecentWithCategory(category FeedbackCategory) *Snapshot {
	for i := len(t.snapshots) - 1; i >= 0; i-- {
		s := t.snapshots[i]
		if !s.IsServerError() && s.Category() == category {
			return s
		}
	}
	return nil
}

// MarshalJSON encodes the transcript as its session ID and snapshots.
func (t *Transcript) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SessionID string      `json:"session_id"`
		Snapshots []*Snapshot `json:"snapshots"`
	}{t.SessionID, t.snapshots})
}

// UnmarshalJSON decodes a transcript written by MarshalJSON.
func (t *Transcript) UnmarshalJSON(data []byte) error {
	var w struct {
		SessionID string      `json:"session_id"`
		Snapshots []*Snapshot `json:"snapshots"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode transcript: %w", err)
	}
	t.SessionID = w.SessionID
	t.snapshots = w.Snapshots
	return nil
}
