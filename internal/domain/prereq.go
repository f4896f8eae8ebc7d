package domain

import (
	"encoding/json"
	"fmt"
)

// PrereqFailureKind names a prerequisite check failure.
type PrereqFailureKind string

const (
	PrereqMissingStarterCode       PrereqFailureKind = "missing_starter_code"
	PrereqBadImport                PrereqFailureKind = "bad_import"
	PrereqGlobalCode               PrereqFailureKind = "global_code"
	PrereqWrongLanguage            PrereqFailureKind = "wrong_language"
	PrereqInvalidAuxiliaryCodeCall PrereqFailureKind = "invalid_auxiliary_code_call"
	PrereqInvalidSystemCall        PrereqFailureKind = "invalid_system_call"
	PrereqInvalidStudentCodeCall   PrereqFailureKind = "invalid_student_code_call"
)

// PrereqFailure is the sealed set of reasons a submission is rejected before
// execution. Only the types in this file implement it.
type PrereqFailure interface {
	Kind() PrereqFailureKind
	Accept(v PrereqFailureVisitor)
	isPrereqFailure()
}

// PrereqFailureVisitor handles every kind of prerequisite failure. Adding a
// kind adds a method here, so every visitor must handle it to compile.
type PrereqFailureVisitor interface {
	VisitMissingStarterCode(f MissingStarterCode)
	VisitBadImport(f BadImport)
	VisitGlobalCode(f GlobalCode)
	VisitWrongLanguage(f WrongLanguage)
	VisitInvalidAuxiliaryCodeCall(f InvalidAuxiliaryCodeCall)
	VisitInvalidSystemCall(f InvalidSystemCall)
	VisitInvalidStudentCodeCall(f InvalidStudentCodeCall)
}

// MissingStarterCode means a required function signature was removed.
type MissingStarterCode struct {
	StarterCode string
}

// BadImport means the submission imports unsupported modules.
type BadImport struct {
	Imports []string
}

// GlobalCode means the submission executes statements at module scope.
type GlobalCode struct {
	Line int
}

// WrongLanguage means the submission looks like another language.
type WrongLanguage struct {
	ErrorKey string
	Line     int // 1-based, 0 when unknown
}

// InvalidAuxiliaryCodeCall means the submission references the auxiliary
// reference implementation.
type InvalidAuxiliaryCodeCall struct{}

// InvalidSystemCall means the submission references the harness namespace.
type InvalidSystemCall struct{}

// InvalidStudentCodeCall means the submission references the class its own
// code is wrapped in.
type InvalidStudentCodeCall struct{}

func (MissingStarterCode) Kind() PrereqFailureKind       { return PrereqMissingStarterCode }
func (BadImport) Kind() PrereqFailureKind                { return PrereqBadImport }
func (GlobalCode) Kind() PrereqFailureKind               { return PrereqGlobalCode }
func (WrongLanguage) Kind() PrereqFailureKind            { return PrereqWrongLanguage }
func (InvalidAuxiliaryCodeCall) Kind() PrereqFailureKind { return PrereqInvalidAuxiliaryCodeCall }
func (InvalidSystemCall) Kind() PrereqFailureKind        { return PrereqInvalidSystemCall }
func (InvalidStudentCodeCall) Kind() PrereqFailureKind   { return PrereqInvalidStudentCodeCall }

func (f MissingStarterCode) Accept(v PrereqFailureVisitor)       { v.VisitMissingStarterCode(f) }
func (f BadImport) Accept(v PrereqFailureVisitor)                { v.VisitBadImport(f) }
func (f GlobalCode) Accept(v PrereqFailureVisitor)               { v.VisitGlobalCode(f) }
func (f WrongLanguage) Accept(v PrereqFailureVisitor)            { v.VisitWrongLanguage(f) }
func (f InvalidAuxiliaryCodeCall) Accept(v PrereqFailureVisitor) { v.VisitInvalidAuxiliaryCodeCall(f) }
func (f InvalidSystemCall) Accept(v PrereqFailureVisitor)        { v.VisitInvalidSystemCall(f) }
func (f InvalidStudentCodeCall) Accept(v PrereqFailureVisitor)   { v.VisitInvalidStudentCodeCall(f) }

func (MissingStarterCode) isPrereqFailure()       {}
func (BadImport) isPrereqFailure()                {}
func (GlobalCode) isPrereqFailure()               {}
func (WrongLanguage) isPrereqFailure()            {}
func (InvalidAuxiliaryCodeCall) isPrereqFailure() {}
func (InvalidSystemCall) isPrereqFailure()        {}
func (InvalidStudentCodeCall) isPrereqFailure()   {}

// prereqFailureJSON is the wire form of a PrereqFailure.
type prereqFailureJSON struct {
	Kind        PrereqFailureKind `json:"kind"`
	StarterCode string            `json:"starter_code,omitempty"`
	Imports     []string          `json:"imports,omitempty"`
	ErrorKey    string            `json:"error_key,omitempty"`
	Line        int               `json:"line,omitempty"`
}

// MarshalPrereqFailure encodes a failure with its kind tag.
func MarshalPrereqFailure(f PrereqFailure) ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	w := prereqFailureJSON{Kind: f.Kind()}
	switch x := f.(type) {
	case MissingStarterCode:
		w.StarterCode = x.StarterCode
	case BadImport:
		w.Imports = x.Imports
	case GlobalCode:
		w.Line = x.Line
	case WrongLanguage:
		w.ErrorKey = x.ErrorKey
		w.Line = x.Line
	}
	return json.Marshal(w)
}

// UnmarshalPrereqFailure decodes a tagged failure. An unknown kind is an
// ErrUnknownPrereqFailure.
func UnmarshalPrereqFailure(data []byte) (PrereqFailure, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var w prereqFailureJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode prereq failure: %w", err)
	}
	switch w.Kind {
	case PrereqMissingStarterCode:
		return MissingStarterCode{StarterCode: w.StarterCode}, nil
	case PrereqBadImport:
		return BadImport{Imports: w.Imports}, nil
	case PrereqGlobalCode:
		return GlobalCode{Line: w.Line}, nil
	case PrereqWrongLanguage:
		return WrongLanguage{ErrorKey: w.ErrorKey, Line: w.Line}, nil
	case PrereqInvalidAuxiliaryCodeCall:
		return InvalidAuxiliaryCodeCall{}, nil
	case PrereqInvalidSystemCall:
		return InvalidSystemCall{}, nil
	case PrereqInvalidStudentCodeCall:
		return InvalidStudentCodeCall{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPrereqFailure, w.Kind)
}
