// Package reinforcement keeps the per-task record used for positive
// reinforcement: which tags fully pass and which inputs that once failed
// pass now.
package reinforcement

import (
	"github.com/felixgeelhaar/coach/internal/domain"
)

// Tracker computes reinforcement records.
type Tracker struct{}

// NewTracker creates a tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Update returns the record for result on task. The record carried by the
// latest snapshot in transcript is continued while it is for the same task.
// Observed outputs are read from the last task in result, which is the one
// being worked on.
//
// Tags are visited in order of first appearance, untagged tests under the
// empty tag. Only the first failing test overall is recorded as a new
// failure.
func (t *Tracker) Update(task *domain.Task, result *domain.ExecutionResult, transcript *domain.Transcript) *domain.ReinforcementRecord {
	record := domain.NewReinforcementRecord(task.ID)
	if prev := previousRecord(transcript); prev != nil && prev.TaskID == task.ID {
		record = prev.Clone()
	}
	if result == nil || result.HasError() || len(result.ObservedOutputs) == 0 {
		return record
	}
	observed := result.ObservedOutputs[len(result.ObservedOutputs)-1]

	failureRecorded := false
	for _, group := range groupByTag(task) {
		tagPasses := true
		for _, c := range group.cases {
			tc := task.TestSuites[c.suite].TestCases[c.index]
			var out domain.Value
			if c.suite < len(observed) && c.index < len(observed[c.suite]) {
				out = observed[c.suite][c.index]
			}

			if tc.MatchesOutput(out) {
				if record.HasPastFailure(tc.Input) {
					record.SetPastFailure(tc.Input, true)
				}
				continue
			}
			tagPasses = false
			if !failureRecorded {
				record.SetPastFailure(tc.Input, false)
				failureRecorded = true
			}
		}

		if tagPasses {
			record.SetTag(group.tag, true)
		} else if record.HasTag(group.tag) {
			record.SetTag(group.tag, false)
		}
	}
	return record
}

// previousRecord returns the record of the latest attempt that has one.
func previousRecord(transcript *domain.Transcript) *domain.ReinforcementRecord {
	if transcript == nil {
		return nil
	}
	snaps := transcript.Snapshots()
	for i := len(snaps) - 1; i >= 0; i-- {
		if snaps[i].Reinforcement != nil {
			return snaps[i].Reinforcement
		}
	}
	return nil
}

type caseRef struct {
	suite, index int
}

type tagGroup struct {
	tag   string
	cases []caseRef
}

func groupByTag(task *domain.Task) []tagGroup {
	var groups []tagGroup
	pos := make(map[string]int)
	for s, suite := range task.TestSuites {
		for c, tc := range suite.TestCases {
			i, ok := pos[tc.Tag]
			if !ok {
				i = len(groups)
				pos[tc.Tag] = i
				groups = append(groups, tagGroup{tag: tc.Tag})
			}
			groups[i].cases = append(groups[i].cases, caseRef{suite: s, index: c})
		}
	}
	return groups
}
