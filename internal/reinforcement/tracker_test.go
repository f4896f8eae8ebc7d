package reinforcement

import (
	"testing"

	"github.com/felixgeelhaar/coach/internal/domain"
)

func taggedTask(id string) *domain.Task {
	return &domain.Task{
		ID:               id,
		MainFunctionName: "isBalanced",
		TestSuites: []domain.TestSuite{
			{ID: "GENERAL", TestCases: []domain.CorrectnessTest{
				{Input: "()", AllowedOutputs: []domain.Value{true}, Tag: "simple"},
				{Input: "))((", AllowedOutputs: []domain.Value{false}, Tag: "order"},
			}},
			{ID: "MORE", TestCases: []domain.CorrectnessTest{
				{Input: "(())", AllowedOutputs: []domain.Value{true}, Tag: "simple"},
				{Input: ")(", AllowedOutputs: []domain.Value{false}, Tag: "order"},
			}},
		},
	}
}

func result(general, more []domain.Value) *domain.ExecutionResult {
	return domain.NewCompletedResult("code", "", [][][]domain.Value{{general, more}}, [][]bool{{}}, [][]domain.PerformanceClass{{}})
}

func record(transcript *domain.Transcript, r *domain.ReinforcementRecord) {
	snap := domain.NewSnapshot(0, nil, nil, domain.NewFeedback(domain.CategoryIncorrectOutputFailure))
	snap.Reinforcement = r
	transcript.Append(snap)
}

func TestTracker_Update(t *testing.T) {
	tracker := NewTracker()
	task := taggedTask("t1")
	transcript := domain.NewTranscript("s1")

	// Both order cases fail; only the first is recorded.
	r1 := tracker.Update(task, result([]domain.Value{true, true}, []domain.Value{true, true}), transcript)
	if passed, ok := r1.TagPassed("simple"); !ok || !passed {
		t.Errorf("simple = %v/%v, want passed", passed, ok)
	}
	if r1.HasTag("order") {
		t.Error("a failing tag seen for the first time should not be recorded")
	}
	if len(r1.PastFailures) != 1 || r1.PastFailures[0].Key != `"))(("` || r1.PastFailures[0].NowPassing {
		t.Errorf("PastFailures = %+v, want only \"))((\" failing", r1.PastFailures)
	}
	record(transcript, r1)

	// Everything passes now.
	r2 := tracker.Update(task, result([]domain.Value{true, false}, []domain.Value{true, false}), transcript)
	if passed, _ := r2.TagPassed("order"); !passed {
		t.Error("order should be passed")
	}
	if !r2.PastFailures[0].NowPassing {
		t.Error("past failure should be marked as passing")
	}
	if got := r2.Summary(); len(got) != 3 {
		t.Errorf("Summary() = %v", got)
	}
	record(transcript, r2)

	// Regression on a tag that was passing flips it back.
	r3 := tracker.Update(task, result([]domain.Value{false, false}, []domain.Value{true, false}), transcript)
	if passed, _ := r3.TagPassed("simple"); passed {
		t.Error("simple should no longer be passed")
	}
	if passed, _ := r3.TagPassed("order"); !passed {
		t.Error("order should still be passed")
	}
	if r3.PassedTags[0].Tag != "simple" {
		t.Errorf("tag order changed: %+v", r3.PassedTags)
	}
}

func TestTracker_ResetsOnTaskChange(t *testing.T) {
	tracker := NewTracker()
	transcript := domain.NewTranscript("s1")
	record(transcript, tracker.Update(taggedTask("t1"), result([]domain.Value{true, true}, []domain.Value{true, true}), transcript))

	r := tracker.Update(taggedTask("t2"), result([]domain.Value{true, false}, []domain.Value{true, false}), transcript)
	if r.TaskID != "t2" {
		t.Errorf("TaskID = %s, want t2", r.TaskID)
	}
	if len(r.PastFailures) != 0 {
		t.Errorf("PastFailures = %+v, want none carried over", r.PastFailures)
	}
}

func TestTracker_ErroredResultCarriesRecord(t *testing.T) {
	tracker := NewTracker()
	transcript := domain.NewTranscript("s1")
	prev := tracker.Update(taggedTask("t1"), result([]domain.Value{true, true}, []domain.Value{true, true}), transcript)
	record(transcript, prev)

	r := tracker.Update(taggedTask("t1"), domain.NewErrorResult("code", "ValueError: x", nil), transcript)
	if len(r.PastFailures) != len(prev.PastFailures) || len(r.PassedTags) != len(prev.PassedTags) {
		t.Errorf("record = %+v, want a copy of %+v", r, prev)
	}
	r.SetTag("new", true)
	if prev.HasTag("new") {
		t.Error("update mutated the previous record")
	}
}
