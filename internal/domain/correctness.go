package domain

import "strconv"

// CorrectnessFeedbackState is how far the feedback for one failing test case
// has progressed. States only move forward within a session.
type CorrectnessFeedbackState string

const (
	CorrectnessStarting                CorrectnessFeedbackState = "STARTING"
	CorrectnessInputDisplayed          CorrectnessFeedbackState = "INPUT_DISPLAYED"
	CorrectnessExpectedOutputDisplayed CorrectnessFeedbackState = "EXPECTED_OUTPUT_DISPLAYED"
	CorrectnessObservedOutputAvailable CorrectnessFeedbackState = "OBSERVED_OUTPUT_AVAILABLE"
)

// Next returns the state that follows s.
func (s CorrectnessFeedbackState) Next() CorrectnessFeedbackState {
	switch s {
	case CorrectnessStarting:
		return CorrectnessInputDisplayed
	case CorrectnessInputDisplayed:
		return CorrectnessExpectedOutputDisplayed
	default:
		return CorrectnessObservedOutputAvailable
	}
}

// TestCaseKey identifies a test case within a session: "<suiteID>-<caseIndex>".
func TestCaseKey(suiteID string, caseIndex int) string {
	return suiteID + "-" + strconv.Itoa(caseIndex)
}
