package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestTranscript_Lookups(t *testing.T) {
	tr := NewTranscript("s1")
	if tr.MostRecent() != nil || tr.LastAttempt() != nil {
		t.Fatal("empty transcript should have no snapshots")
	}

	bug := NewSnapshot(0, nil, &ExecutionResult{Code: "a"}, NewFeedback(CategoryKnownBugFailure).AppendText("hint"))
	wrong := NewSnapshot(0, nil, &ExecutionResult{Code: "b"}, NewFeedback(CategoryIncorrectOutputFailure).AppendText("try"))
	server := NewSnapshot(0, nil, nil, NewFeedback(CategoryServerError).AppendText("sorry"))
	tr.Append(bug)
	tr.Append(wrong)
	tr.Append(server)

	if tr.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tr.Len())
	}
	if tr.MostRecent() != server {
		t.Error("MostRecent() should return the server error snapshot")
	}
	if tr.LastAttempt() != wrong {
		t.Error("LastAttempt() should skip server errors")
	}
	if tr.MostRecentWithCategory(CategoryKnownBugFailure) != bug {
		t.Error("MostRecentWithCategory(KNOWN_BUG_FAILURE) should find the first snapshot")
	}
	if tr.MostRecentWithCategory(CategoryServerError) != nil {
		t.Error("server errors are never returned by category lookup")
	}
	if tr.MostRecentWithCategory(CategorySuccessful) != nil {
		t.Error("missing category should return nil")
	}
}

func TestTranscript_JSONKeepsPrereqVariants(t *testing.T) {
	tr := NewTranscript("s1")
	tr.Append(NewSnapshot(0, BadImport{Imports: []string{"numpy"}}, nil, NewFeedback(CategoryFailsBadImportCheck)))
	tr.Append(NewSnapshot(0, WrongLanguage{ErrorKey: "curly_braces", Line: 3}, nil, NewFeedback(CategoryFailsLanguageDetectionCheck)))
	tr.Append(NewSnapshot(1, nil, NewErrorResult("x", "TypeError: no", "in"), NewFeedback(CategoryRuntimeError)))

	data, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got Transcript
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	snaps := got.Snapshots()
	if len(snaps) != 3 {
		t.Fatalf("len(Snapshots()) = %d, want 3", len(snaps))
	}
	bad, ok := snaps[0].PrereqFailure.(BadImport)
	if !ok || len(bad.Imports) != 1 || bad.Imports[0] != "numpy" {
		t.Errorf("snapshot 0 prereq = %#v", snaps[0].PrereqFailure)
	}
	wl, ok := snaps[1].PrereqFailure.(WrongLanguage)
	if !ok || wl.Line != 3 || wl.ErrorKey != "curly_braces" {
		t.Errorf("snapshot 1 prereq = %#v", snaps[1].PrereqFailure)
	}
	if snaps[2].PrereqFailure != nil || snaps[2].Result == nil || snaps[2].Result.ErrorMessage != "TypeError: no" {
		t.Errorf("snapshot 2 = %#v", snaps[2])
	}
}

func TestUnmarshalPrereqFailure_UnknownKind(t *testing.T) {
	_, err := UnmarshalPrereqFailure([]byte(`{"kind":"made_up"}`))
	if !errors.Is(err, ErrUnknownPrereqFailure) {
		t.Errorf("UnmarshalPrereqFailure() error = %v, want ErrUnknownPrereqFailure", err)
	}
}

type kindRecorder struct{ seen []PrereqFailureKind }

func (r *kindRecorder) VisitMissingStarterCode(MissingStarterCode) {
	r.seen = append(r.seen, PrereqMissingStarterCode)
}
func (r *kindRecorder) VisitBadImport(BadImport)   { r.seen = append(r.seen, PrereqBadImport) }
func (r *kindRecorder) VisitGlobalCode(GlobalCode) { r.seen = append(r.seen, PrereqGlobalCode) }
func (r *kindRecorder) VisitWrongLanguage(WrongLanguage) {
	r.seen = append(r.seen, PrereqWrongLanguage)
}
func (r *kindRecorder) VisitInvalidAuxiliaryCodeCall(InvalidAuxiliaryCodeCall) {
	r.seen = append(r.seen, PrereqInvalidAuxiliaryCodeCall)
}
func (r *kindRecorder) VisitInvalidSystemCall(InvalidSystemCall) {
	r.seen = append(r.seen, PrereqInvalidSystemCall)
}
func (r *kindRecorder) VisitInvalidStudentCodeCall(InvalidStudentCodeCall) {
	r.seen = append(r.seen, PrereqInvalidStudentCodeCall)
}

func TestPrereqFailure_AcceptDispatchesByKind(t *testing.T) {
	failures := []PrereqFailure{
		MissingStarterCode{}, BadImport{}, GlobalCode{}, WrongLanguage{},
		InvalidAuxiliaryCodeCall{}, InvalidSystemCall{}, InvalidStudentCodeCall{},
	}
	r := &kindRecorder{}
	for _, f := range failures {
		f.Accept(r)
	}
	for i, f := range failures {
		if r.seen[i] != f.Kind() {
			t.Errorf("visit %d = %s, want %s", i, r.seen[i], f.Kind())
		}
	}
}
