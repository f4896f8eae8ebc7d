package exercise

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/felixgeelhaar/coach/internal/domain"
)

// catalog is an immutable set of loaded questions.
type catalog struct {
	byID   map[string]*domain.Question
	sorted []*domain.Question
	tasks  int
}

func newCatalog(questions []*domain.Question) *catalog {
	c := &catalog{byID: make(map[string]*domain.Question, len(questions))}
	for _, q := range questions {
		c.byID[q.ID] = q
	}
	for _, q := range c.byID {
		c.sorted = append(c.sorted, q)
		c.tasks += len(q.Tasks)
	}
	sort.Slice(c.sorted, func(i, j int) bool { return c.sorted[i].ID < c.sorted[j].ID })
	return c
}

// Registry serves the questions of a Loader. Readers never block: Load swaps
// in a complete new catalog, and a failed Load keeps the previous one.
type Registry struct {
	loader  *Loader
	current atomic.Pointer[catalog]
}

// NewRegistry creates an empty registry backed by loader.
func NewRegistry(loader *Loader) *Registry {
	r := &Registry{loader: loader}
	r.current.Store(newCatalog(nil))
	return r
}

// Load reads every question from the loader and replaces the catalog.
func (r *Registry) Load() error {
	questions, err := r.loader.LoadAll()
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	r.current.Store(newCatalog(questions))
	return nil
}

// Get returns the question with id.
func (r *Registry) Get(id string) (*domain.Question, error) {
	q, ok := r.current.Load().byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, id)
	}
	return q, nil
}

// List returns all questions ordered by ID. The slice is shared; callers
// must not modify it.
func (r *Registry) List() []*domain.Question {
	return r.current.Load().sorted
}

// Counts reports the number of loaded questions and tasks.
func (r *Registry) Counts() (questions, tasks int) {
	c := r.current.Load()
	return len(c.sorted), c.tasks
}
