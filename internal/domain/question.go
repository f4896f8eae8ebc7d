package domain

import "fmt"

// Question is an exercise made of ordered tasks that share starter and
// auxiliary code.
type Question struct {
	ID            string
	Title         string
	StarterCode   map[Language]string
	AuxiliaryCode map[Language]string
	Tasks         []Task
}

// Task returns the task at index i.
func (q *Question) Task(i int) (*Task, error) {
	if i < 0 || i >= len(q.Tasks) {
		return nil, fmt.Errorf("%w: %s task %d", ErrTaskNotFound, q.ID, i)
	}
	return &q.Tasks[i], nil
}

// TasksThrough returns the tasks up to and including index i. Earlier tasks
// stay visible so a later change cannot silently break them.
func (q *Question) TasksThrough(i int) []Task {
	if i >= len(q.Tasks) {
		i = len(q.Tasks) - 1
	}
	return q.Tasks[:i+1]
}

// IsLastTask reports whether i is the final task.
func (q *Question) IsLastTask(i int) bool {
	return i >= len(q.Tasks)-1
}

// Validate checks every task of the question.
func (q *Question) Validate() error {
	if len(q.Tasks) == 0 {
		return fmt.Errorf("%w: question %s has no tasks", ErrInvalidTask, q.ID)
	}
	for i := range q.Tasks {
		if err := q.Tasks[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
