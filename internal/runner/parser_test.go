package runner

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/coach/internal/domain"
)

func TestParser_Parse(t *testing.T) {
	p := NewParser()
	prog := Program{Code: "code", Tasks: []domain.Task{parensTask()}}

	tests := []struct {
		name    string
		stdout  string
		wantErr error
		check   func(t *testing.T, r *domain.ExecutionResult)
	}{
		{
			name:   "last result line wins",
			stdout: ResultPrefix + `{"error":"first"}` + "\n" + ResultPrefix + `{"error":"ValueError: x on line 2","error_input":[1,2]}` + "\n",
			check: func(t *testing.T, r *domain.ExecutionResult) {
				if r.ErrorMessage != "ValueError: x on line 2" {
					t.Errorf("ErrorMessage = %q", r.ErrorMessage)
				}
				if !domain.ValuesEqual(r.ErrorInput, []any{1.0, 2.0}, false) {
					t.Errorf("ErrorInput = %v", r.ErrorInput)
				}
			},
		},
		{
			name:    "missing result line",
			stdout:  "Traceback...\n",
			wantErr: ErrNoResult,
		},
		{
			name:    "malformed json",
			stdout:  ResultPrefix + "{not json\n",
			wantErr: ErrNoResult,
		},
		{
			name:    "task count mismatch",
			stdout:  ResultPrefix + `{"observed":[],"buggy_matches":[],"performance":[]}` + "\n",
			wantErr: domain.ErrResultShape,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(prog, &Output{Stdout: tt.stdout, ExitCode: 1})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			tt.check(t, got)
		})
	}
}
