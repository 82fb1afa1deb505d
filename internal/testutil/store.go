package testutil

import (
	"context"
	"sort"
	"sync"

	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
)

// FilterFunc is a generic filter function type
type FilterFunc[T any] func(ctx context.Context, item T) bool

// SortFunc is a generic sort function type
type SortFunc[T any] func(i, j T) bool

// Snapshotter is implemented by stores whose state the mock transaction
// client saves before a transaction and restores on rollback
type Snapshotter interface {
	Snapshot() any
	Restore(snapshot any)
}

// InMemoryStore implements a generic in-memory store. Items are copied on
// the way in and out so callers never share memory with the store, the
// same way rows read from a database are independent values.
type InMemoryStore[T any] struct {
	mu     sync.RWMutex
	items  map[string]T
	copyFn func(T) T
	faults *faultInjector
}

// NewInMemoryStore creates a new InMemoryStore
func NewInMemoryStore[T any](copyFn func(T) T) *InMemoryStore[T] {
	return &InMemoryStore[T]{
		items:  make(map[string]T),
		copyFn: copyFn,
		faults: newFaultInjector(),
	}
}

// Create adds a new item to the store
func (s *InMemoryStore[T]) Create(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return ierr.NewError("item already exists").
			WithHintf("Item %s already exists", id).
			Mark(ierr.ErrAlreadyExists)
	}

	s.items[id] = s.copyFn(item)
	return nil
}

// Get retrieves an item by ID
func (s *InMemoryStore[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[id]; exists {
		return s.copyFn(item), nil
	}

	var zero T
	return zero, ierr.NewError("item not found").
		WithHintf("Item %s not found", id).
		Mark(ierr.ErrNotFound)
}

// List retrieves the items accepted by filterFn, ordered by sortFn
func (s *InMemoryStore[T]) List(ctx context.Context, filterFn FilterFunc[T], sortFn SortFunc[T]) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []T
	for _, item := range s.items {
		if filterFn == nil || filterFn(ctx, item) {
			result = append(result, s.copyFn(item))
		}
	}

	if sortFn != nil {
		sort.Slice(result, func(i, j int) bool {
			return sortFn(result[i], result[j])
		})
	}
	return result
}

// Mutate applies fn to the stored items accepted by filterFn and returns
// how many were changed
func (s *InMemoryStore[T]) Mutate(filterFn FilterFunc[T], fn func(T) T) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for id, item := range s.items {
		if filterFn(context.Background(), item) {
			s.items[id] = s.copyFn(fn(item))
			changed++
		}
	}
	return changed
}

// Update updates an existing item
func (s *InMemoryStore[T]) Update(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return ierr.NewError("item not found").
			WithHintf("Item %s not found", id).
			Mark(ierr.ErrNotFound)
	}

	s.items[id] = s.copyFn(item)
	return nil
}

// Count returns the number of stored items
func (s *InMemoryStore[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear removes all items from the store
func (s *InMemoryStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
	s.faults.clear()
}

func (s *InMemoryStore[T]) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]T, len(s.items))
	for id, item := range s.items {
		snapshot[id] = s.copyFn(item)
	}
	return snapshot
}

func (s *InMemoryStore[T]) Restore(snapshot any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = snapshot.(map[string]T)
}

// FailNext makes the next call of the named repository method return err
func (s *InMemoryStore[T]) FailNext(method string, err error) {
	s.faults.failNext(method, err)
}

// faultInjector holds one-shot errors keyed by repository method
type faultInjector struct {
	mu     sync.Mutex
	errors map[string][]error
}

func newFaultInjector() *faultInjector {
	return &faultInjector{errors: make(map[string][]error)}
}

func (f *faultInjector) failNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[method] = append(f.errors[method], err)
}

func (f *faultInjector) take(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.errors[method]
	if len(queue) == 0 {
		return nil
	}
	f.errors[method] = queue[1:]
	return queue[0]
}

func (f *faultInjector) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = make(map[string][]error)
}
