// Package httpstore persists reminders through the reminders REST backend:
// GET, POST and DELETE on <base>/reminders with JSON bodies.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chriscow/memora/pkg/ai"
	"github.com/chriscow/memora/pkg/reminder"
	"github.com/chriscow/memora/pkg/version"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Store implements reminder.Store against the backend.
type Store struct {
	base   string
	client *http.Client
}

// New creates a store for the backend at base, e.g. http://localhost:3000/api.
// Requests are traced with otelhttp.
func New(base string, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{
		base: strings.TrimRight(base, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// wireReminder is the backend's JSON shape. repeatDays travels as a
// comma-joined string, and older records may hold an array.
type wireReminder struct {
	ID         json.RawMessage `json:"id,omitempty"`
	Name       string          `json:"name"`
	Date       string          `json:"date"`
	Time       string          `json:"time"`
	Repeat     bool            `json:"repeat"`
	RepeatDays json.RawMessage `json:"repeatDays"`
}

func (w wireReminder) reminder() reminder.Reminder {
	r := reminder.Reminder{Name: w.Name, Date: w.Date, Time: w.Time, Repeat: w.Repeat}

	var id any
	if json.Unmarshal(w.ID, &id) == nil && id != nil {
		switch v := id.(type) {
		case string:
			r.ID = v
		case float64:
			r.ID = fmt.Sprintf("%.0f", v)
		}
	}

	var joined string
	var list []string
	switch {
	case json.Unmarshal(w.RepeatDays, &joined) == nil && joined != "":
		r.RepeatDays = strings.Split(joined, ",")
	case json.Unmarshal(w.RepeatDays, &list) == nil && len(list) > 0:
		r.RepeatDays = list
	}
	return r
}

type createBody struct {
	Name       string  `json:"name"`
	Date       string  `json:"date"`
	Time       string  `json:"time"`
	Repeat     bool    `json:"repeat"`
	RepeatDays *string `json:"repeatDays"`
}

func (s *Store) do(ctx context.Context, method string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", method, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.base+"/reminders", rd)
	if err != nil {
		return fmt.Errorf("%w: %v", ai.ErrBackendUnavailable, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s /reminders: %v", ai.ErrBackendUnavailable, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodDelete {
		return reminder.ErrNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s /reminders: %s: %s", ai.ErrBackendUnavailable, method, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s /reminders: %v", ai.ErrBackendUnavailable, method, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]reminder.Reminder, error) {
	var wire []wireReminder
	if err := s.do(ctx, http.MethodGet, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]reminder.Reminder, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.reminder())
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, d reminder.Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	r := d.Reminder()
	body := createBody{Name: r.Name, Date: r.Date, Time: r.Time, Repeat: r.Repeat}
	if r.Repeat && len(r.RepeatDays) > 0 {
		days := strings.Join(r.RepeatDays, ",")
		body.RepeatDays = &days
	}
	return s.do(ctx, http.MethodPost, body, nil)
}

// Delete sends the identifier as the name, which the backend matches
// against both names and IDs.
func (s *Store) Delete(ctx context.Context, nameOrID string) error {
	err := s.do(ctx, http.MethodDelete, map[string]string{"name": nameOrID}, nil)
	if errors.Is(err, reminder.ErrNotFound) {
		return fmt.Errorf("delete %q: %w", nameOrID, reminder.ErrNotFound)
	}
	return err
}

var _ reminder.Store = (*Store)(nil)
