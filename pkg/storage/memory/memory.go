// Package memory provides the in-memory task store. It is the single source
// of truth for task state while the process runs; tasks are never evicted
// and are lost on restart.
package memory

import (
	"context"
	"sync"

	"github.com/rhuss/openresearch/pkg/api"
	"github.com/rhuss/openresearch/pkg/storage"
)

// Store maps task IDs to tasks under one store-wide lock. Every read
// returns a deep copy and every write runs as a short critical section, so
// callers never hold the lock across provider calls.
type Store struct {
	mu    sync.Mutex
	tasks map[string]*api.Task
}

// New creates an empty store.
func New() *Store {
	return &Store{tasks: make(map[string]*api.Task)}
}

// Create inserts a task. The store keeps its own copy.
func (s *Store) Create(_ context.Context, t *api.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return storage.ErrConflict
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// Get returns a snapshot of the task. Tasks owned by someone other than
// the context's owner are reported as not found.
func (s *Store) Get(ctx context.Context, id string) (*api.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || !storage.Visible(ctx, t.Owner) {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

// Update runs fn on the stored task under the lock and returns a snapshot
// of the result. When fn returns an error it must not have mutated the
// task; the error is passed through unchanged.
func (s *Store) Update(ctx context.Context, id string, fn func(t *api.Task) error) (*api.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || !storage.Visible(ctx, t.Owner) {
		return nil, storage.ErrNotFound
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// Len returns the number of stored tasks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
