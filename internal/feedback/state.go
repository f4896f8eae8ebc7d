package feedback

import (
	"github.com/felixgeelhaar/coach/internal/domain"
)

// SessionState is the mutable feedback progress of one session. It is owned
// by the session, passed into every selection and replaced wholesale when a
// new session starts.
type SessionState struct {
	// CorrectnessStates is keyed by domain.TestCaseKey.
	CorrectnessStates map[string]domain.CorrectnessFeedbackState `json:"correctness_states"`
	// PreviousSuiteID is the suite the last correctness feedback was about.
	PreviousSuiteID string `json:"previous_suite_id"`
	// PreviousCaseKey is the test case the last correctness feedback was about.
	PreviousCaseKey string `json:"previous_case_key"`
	// Pools holds, per correctness feedback type, the text indexes not yet
	// used since the pool was last refilled.
	Pools map[string][]int `json:"rotation_pools"`
}

// NewSessionState returns the state of a fresh session.
func NewSessionState() *SessionState {
	return &SessionState{
		CorrectnessStates: make(map[string]domain.CorrectnessFeedbackState),
		Pools:             make(map[string][]int),
	}
}

// Clone returns a deep copy of the state.
func (s *SessionState) Clone() *SessionState {
	out := NewSessionState()
	out.PreviousSuiteID = s.PreviousSuiteID
	out.PreviousCaseKey = s.PreviousCaseKey
	for k, v := range s.CorrectnessStates {
		out.CorrectnessStates[k] = v
	}
	for k, v := range s.Pools {
		out.Pools[k] = append([]int(nil), v...)
	}
	return out
}

// State returns the progress of a test case, STARTING when none is recorded.
func (s *SessionState) State(key string) domain.CorrectnessFeedbackState {
	if st, ok := s.CorrectnessStates[key]; ok {
		return st
	}
	return domain.CorrectnessStarting
}

// ensure fills in maps lost by decoding an empty state.
func (s *SessionState) ensure() {
	if s.CorrectnessStates == nil {
		s.CorrectnessStates = make(map[string]domain.CorrectnessFeedbackState)
	}
	if s.Pools == nil {
		s.Pools = make(map[string][]int)
	}
}

// pick draws a text of the given type without replacement. The pool refills
// only once every text has been used.
func (s *SessionState) pick(feedbackType string, intn func(int) int) string {
	texts := correctnessTexts[feedbackType]
	pool := s.Pools[feedbackType]
	if len(pool) == 0 {
		pool = make([]int, len(texts))
		for i := range pool {
			pool[i] = i
		}
	}
	at := intn(len(pool))
	idx := pool[at]
	s.Pools[feedbackType] = append(pool[:at:at], pool[at+1:]...)
	return texts[idx]
}
