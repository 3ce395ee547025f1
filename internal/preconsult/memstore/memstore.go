// Package memstore provides an in-memory implementation of preconsult.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/carecompass/internal/preconsult"
)

// Store holds pre-consult records and screening tasks in memory. Suitable
// for dev/testing.
type Store struct {
	mu      sync.RWMutex
	records map[string]*preconsult.Record
	tasks   map[string]*preconsult.ScreeningTask // record ID -> task
	order   []string                             // insertion order of record IDs
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		records: make(map[string]*preconsult.Record),
		tasks:   make(map[string]*preconsult.ScreeningTask),
	}
}

// Put stores a copy of the record.
func (s *Store) Put(_ context.Context, r *preconsult.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[r.ID]; !exists {
		s.order = append(s.order, r.ID)
	}
	cp := *r
	s.records[r.ID] = &cp
	return nil
}

// Get retrieves a record by ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*preconsult.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// List returns copies of all records in insertion order.
func (s *Store) List(_ context.Context) ([]*preconsult.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*preconsult.Record, 0, len(s.order))
	for _, id := range s.order {
		cp := *s.records[id]
		out = append(out, &cp)
	}
	return out, nil
}

// UpdateStatus patches a record's status and, when note is non-nil, its
// defer note. Missing records return preconsult.ErrNotFound.
func (s *Store) UpdateStatus(_ context.Context, id string, status preconsult.Status, note *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return preconsult.ErrNotFound
	}
	r.Status = status
	if note != nil {
		r.DeferNote = *note
	}
	return nil
}

// PutTask stores a screening task keyed by its (record) ID. A task that
// already exists for that ID is kept as-is, so repeated accepts are no-ops.
// Returns whether this call created the task.
func (s *Store) PutTask(_ context.Context, t *preconsult.ScreeningTask) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		return false, nil
	}
	cp := *t
	s.tasks[t.ID] = &cp
	return true, nil
}

// DeleteTask removes the task keyed by the given record ID if one exists.
func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}

// ListTasks returns copies of all screening tasks.
func (s *Store) ListTasks(_ context.Context) ([]*preconsult.ScreeningTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*preconsult.ScreeningTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}
