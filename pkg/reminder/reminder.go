// Package reminder defines reminders, the in-progress draft the dialogue
// fills in, and the store contract the voice engine persists through.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chriscow/memora/pkg/ai"
	"github.com/chriscow/memora/pkg/normalize"
)

// Reminder is a stored reminder.
type Reminder struct {
	ID         string   `json:"id,omitempty"`
	Name       string   `json:"name"`
	Date       string   `json:"date"` // YYYY-MM-DD
	Time       string   `json:"time"` // HH:MM
	Repeat     bool     `json:"repeat"`
	RepeatDays []string `json:"repeatDays,omitempty"`
}

// Ident returns the identifier used to delete r: its ID, else its name.
func (r Reminder) Ident() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Name
}

// Draft accumulates reminder fields across dialogue turns. Empty strings and
// a nil Repeat mean "not provided yet".
type Draft struct {
	Name       string
	Date       string
	Time       string
	Repeat     *bool
	RepeatDays []string
}

// Bool returns a pointer to b, for Draft.Repeat.
func Bool(b bool) *bool { return &b }

// Missing lists the fields that still need a value.
func (d Draft) Missing() []string {
	var m []string
	if strings.TrimSpace(d.Name) == "" {
		m = append(m, "name")
	}
	if d.Date == "" {
		m = append(m, "date")
	}
	if d.Time == "" {
		m = append(m, "time")
	}
	if d.Repeat == nil {
		m = append(m, "repeat")
	}
	return m
}

// Complete reports whether every required field is set.
func (d Draft) Complete() bool {
	return len(d.Missing()) == 0
}

// Validate returns an error wrapping ai.ErrIncompleteDraft when fields are missing.
func (d Draft) Validate() error {
	if m := d.Missing(); len(m) > 0 {
		return fmt.Errorf("%w: missing %s", ai.ErrIncompleteDraft, strings.Join(m, ", "))
	}
	return nil
}

// Reminder converts a complete draft into the record to persist. RepeatDays
// is dropped for non-repeating reminders.
func (d Draft) Reminder() Reminder {
	r := Reminder{Name: d.Name, Date: d.Date, Time: d.Time}
	if d.Repeat != nil && *d.Repeat {
		r.Repeat = true
		r.RepeatDays = append([]string(nil), d.RepeatDays...)
	}
	return r
}

// ErrNotFound is returned by stores when a delete matches nothing.
var ErrNotFound = errors.New("reminder not found")

// Store persists reminders.
type Store interface {
	List(ctx context.Context) ([]Reminder, error)
	Create(ctx context.Context, d Draft) error
	Delete(ctx context.Context, nameOrID string) error
}

// Find returns the reminder whose name equals name. An exact match wins;
// otherwise names are compared case and accent insensitively.
func Find(list []Reminder, name string) (Reminder, bool) {
	for _, r := range list {
		if r.Name == name {
			return r, true
		}
	}
	folded := normalize.Fold(name)
	for _, r := range list {
		if normalize.Fold(r.Name) == folded {
			return r, true
		}
	}
	return Reminder{}, false
}
