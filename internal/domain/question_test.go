package domain

import (
	"errors"
	"testing"
)

func TestQuestion_Tasks(t *testing.T) {
	q := &Question{ID: "parens", Tasks: []Task{{ID: "a", MainFunctionName: "f"}, {ID: "b", MainFunctionName: "f"}, {ID: "c", MainFunctionName: "f"}}}

	tests := []struct {
		index    int
		wantLen  int
		wantLast bool
	}{
		{0, 1, false},
		{1, 2, false},
		{2, 3, true},
		{7, 3, true},
	}
	for _, tt := range tests {
		if got := len(q.TasksThrough(tt.index)); got != tt.wantLen {
			t.Errorf("TasksThrough(%d) has %d tasks, want %d", tt.index, got, tt.wantLen)
		}
		if got := q.IsLastTask(tt.index); got != tt.wantLast {
			t.Errorf("IsLastTask(%d) = %v, want %v", tt.index, got, tt.wantLast)
		}
	}

	if _, err := q.Task(3); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Task(3) error = %v, want ErrTaskNotFound", err)
	}
	if err := (&Question{ID: "empty"}).Validate(); !errors.Is(err, ErrInvalidTask) {
		t.Errorf("Validate() error = %v, want ErrInvalidTask", err)
	}
}
