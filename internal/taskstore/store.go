// Package taskstore holds the in-memory task registry: an id-ordered
// collection of tasks, the counter that assigns their ids, and the
// snapshot/restore pair used to carry both across a process restart.
package taskstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/btree"
	"github.com/gravityvi/Todo-app-cansiter/internal/models"
)

// MaxPageSize bounds how many tasks a single List call returns.
const MaxPageSize = 10

// btreeDegree is the branching factor of the ordered collection.
const btreeDegree = 32

// ErrNotFound indicates the addressed task id does not exist.
var ErrNotFound = errors.New("task not found")

// Store is an ordered task collection keyed by id. All methods are safe for
// concurrent use; a single mutex guards the counter and the collection
// together so they never drift apart.
type Store struct {
	mu    sync.Mutex
	ids   *IDAllocator
	tasks *btree.BTreeG[models.Task]
}

func lessByID(a, b models.Task) bool {
	return a.ID < b.ID
}

func newTree() *btree.BTreeG[models.Task] {
	return btree.NewG[models.Task](btreeDegree, lessByID)
}

// New creates an empty store whose first task gets id 0
func New() *Store {
	return &Store{
		ids:   NewIDAllocator(0),
		tasks: newTree(),
	}
}

// Load builds a store from a previously captured state
func Load(state models.State) *Store {
	s := New()
	s.Restore(state)
	return s
}

// Drain snapshots s and returns it, now empty, alongside the captured state.
func Drain(s *Store) (*Store, models.State) {
	state := s.Snapshot()
	return s, state
}

// Create stores a new task with the next id and returns a copy of it
func (s *Store) Create(description string) models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := models.Task{ID: s.ids.Next(), Description: description}
	s.tasks.ReplaceOrInsert(task)
	return task
}

// Get returns the task with the given id
func (s *Store) Get(id uint64) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks.Get(models.Task{ID: id})
	if !ok {
		return models.Task{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return task, nil
}

// List returns one page of tasks in ascending id order.
//
// A nil offset means 0 and a nil limit means the full page. The page never
// holds more than MaxPageSize tasks whatever limit asks for, and an offset
// past the end yields an empty slice rather than an error.
func (s *Store) List(offset, limit *uint64) []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := uint64(s.tasks.Len())
	pageCap := min(uint64(MaxPageSize), total)

	start := uint64(0)
	if offset != nil {
		start = min(*offset, total)
	}
	count := pageCap
	if limit != nil {
		count = min(*limit, pageCap)
	}
	end := min(start+count, total)

	page := make([]models.Task, 0, end-start)
	if start >= end {
		return page
	}

	var pos uint64
	s.tasks.Ascend(func(task models.Task) bool {
		if pos >= end {
			return false
		}
		if pos >= start {
			page = append(page, task)
		}
		pos++
		return true
	})
	return page
}

// Update replaces the description of an existing task. The id never changes.
func (s *Store) Update(id uint64, description string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks.Get(models.Task{ID: id})
	if !ok {
		return models.Task{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	task.Description = description
	s.tasks.ReplaceOrInsert(task)
	return task, nil
}

// Delete removes the task if present. Deleting a missing id is a no-op.
func (s *Store) Delete(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks.Delete(models.Task{ID: id})
}

// Len returns the number of stored tasks
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tasks.Len()
}

// NextID returns the id the next Create will assign
func (s *Store) NextID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ids.Peek()
}

// Snapshot moves the counter and every task out of the store. The store is
// left empty with its counter at zero, so the returned state must be
// persisted before the store is used again.
func (s *Store) Snapshot() models.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := models.State{
		Counter: s.ids.Peek(),
		Tasks:   make([]models.Task, 0, s.tasks.Len()),
	}
	s.tasks.Ascend(func(task models.Task) bool {
		state.Tasks = append(state.Tasks, task)
		return true
	})

	s.tasks = newTree()
	s.ids.reset(0)
	return state
}

// Restore replaces the live counter and collection with state, discarding
// whatever the store held before.
func (s *Store) Restore(state models.State) {
	tree := newTree()
	for _, task := range state.Tasks {
		tree.ReplaceOrInsert(task)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = tree
	s.ids.reset(state.Counter)
}
