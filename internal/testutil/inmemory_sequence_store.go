package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain/sequence"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
)

var _ sequence.Repository = (*InMemorySequenceStore)(nil)

// InMemorySequenceStore implements sequence.Repository. Mutual exclusion of
// the counter comes from the mock transaction client, which runs one
// transaction at a time.
type InMemorySequenceStore struct {
	mu      sync.Mutex
	counter *sequence.Counter
	locks   int
	faults  *faultInjector
}

func NewInMemorySequenceStore() *InMemorySequenceStore {
	return &InMemorySequenceStore{faults: newFaultInjector()}
}

func (s *InMemorySequenceStore) Lock(ctx context.Context) (*sequence.Counter, error) {
	if err := s.faults.take("Lock"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counter == nil {
		s.counter = &sequence.Counter{NextValue: sequence.InitialValue, UpdatedAt: time.Now().UTC()}
	}
	s.locks++
	c := *s.counter
	return &c, nil
}

func (s *InMemorySequenceStore) Advance(ctx context.Context, next int64) error {
	if err := s.faults.take("Advance"); err != nil {
		return err
	}
	if next < sequence.InitialValue {
		return ierr.NewError("invalid counter value").Mark(ierr.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counter == nil {
		return ierr.NewError("invoice counter not found").Mark(ierr.ErrNotFound)
	}
	s.counter.NextValue = next
	s.counter.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemorySequenceStore) Peek(ctx context.Context) (*sequence.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counter == nil {
		return &sequence.Counter{NextValue: sequence.InitialValue}, nil
	}
	c := *s.counter
	return &c, nil
}

// Seed sets the next value handed out, as if earlier invoices had been numbered
func (s *InMemorySequenceStore) Seed(next int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter = &sequence.Counter{NextValue: next, UpdatedAt: time.Now().UTC()}
}

// LockCount returns how many times the counter row was locked
func (s *InMemorySequenceStore) LockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locks
}

// FailNext makes the next call of the named method return err
func (s *InMemorySequenceStore) FailNext(method string, err error) {
	s.faults.failNext(method, err)
}

func (s *InMemorySequenceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter = nil
	s.locks = 0
	s.faults.clear()
}

func (s *InMemorySequenceStore) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counter == nil {
		return (*sequence.Counter)(nil)
	}
	c := *s.counter
	return &c
}

func (s *InMemorySequenceStore) Restore(snapshot any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter = snapshot.(*sequence.Counter)
}
