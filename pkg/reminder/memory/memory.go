// Package memory is an in-process reminder store. It backs tests and the
// CLI when no persistent store is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/chriscow/memora/pkg/ai"
	"github.com/chriscow/memora/pkg/reminder"
	"github.com/google/uuid"
)

// Store keeps reminders in insertion order.
type Store struct {
	mu        sync.Mutex
	reminders []reminder.Reminder
	created   []reminder.Draft
	deleted   []string
	err       error
}

// New creates a store seeded with reminders.
func New(seed ...reminder.Reminder) *Store {
	return &Store{reminders: append([]reminder.Reminder(nil), seed...)}
}

// SetErr makes every call fail with an error wrapping ai.ErrBackendUnavailable.
func (s *Store) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) List(ctx context.Context) ([]reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrBackendUnavailable, s.err)
	}
	out := make([]reminder.Reminder, len(s.reminders))
	copy(out, s.reminders)
	return out, nil
}

func (s *Store) Create(ctx context.Context, d reminder.Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return fmt.Errorf("%w: %v", ai.ErrBackendUnavailable, s.err)
	}
	r := d.Reminder()
	r.ID = uuid.NewString()
	s.reminders = append(s.reminders, r)
	s.created = append(s.created, d)
	return nil
}

// Delete removes the reminder whose ID or name equals nameOrID.
func (s *Store) Delete(ctx context.Context, nameOrID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return fmt.Errorf("%w: %v", ai.ErrBackendUnavailable, s.err)
	}
	for i, r := range s.reminders {
		if r.ID == nameOrID || r.Name == nameOrID {
			s.reminders = append(s.reminders[:i], s.reminders[i+1:]...)
			s.deleted = append(s.deleted, nameOrID)
			return nil
		}
	}
	return fmt.Errorf("delete %q: %w", nameOrID, reminder.ErrNotFound)
}

// Created returns every draft passed to a successful Create.
func (s *Store) Created() []reminder.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reminder.Draft(nil), s.created...)
}

// Deleted returns every identifier passed to a successful Delete.
func (s *Store) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}
