package httpstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/chriscow/memora/pkg/ai"
	"github.com/chriscow/memora/pkg/reminder"
	"github.com/chriscow/memora/pkg/version"
	"github.com/matryer/is"
)

type backend struct {
	mu      sync.Mutex
	posted  []map[string]any
	deleted []string
	status  int
	agent   string
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.agent = r.UserAgent()
	if r.URL.Path != "/api/reminders" {
		http.NotFound(w, r)
		return
	}
	if b.status != 0 {
		http.Error(w, "boom", b.status)
		return
	}
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 7, "name": "Consulta", "date": "2026-10-15", "time": "15:00", "repeat": false, "repeatDays": null},
			{"id": "abc", "name": "Reunião", "date": "2026-10-19", "time": "09:00", "repeat": true, "repeatDays": "monday,thursday"},
			{"name": "Remédio", "date": "2026-10-16", "time": "08:00", "repeat": true, "repeatDays": ["friday"]}
		]`))
	case http.MethodPost:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.posted = append(b.posted, body)
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["name"] == "ghost" {
			http.NotFound(w, r)
			return
		}
		b.deleted = append(b.deleted, body["name"])
	}
}

func newStore(t *testing.T) (*Store, *backend) {
	t.Helper()
	b := &backend{}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", time.Second), b
}

func TestList(t *testing.T) {
	is := is.New(t)
	s, b := newStore(t)

	list, err := s.List(context.Background())
	is.NoErr(err)
	is.Equal(len(list), 3)
	b.mu.Lock()
	is.Equal(b.agent, version.UserAgent())
	b.mu.Unlock()
	is.Equal(list[0].ID, "7")
	is.Equal(len(list[0].RepeatDays), 0)
	is.Equal(list[1].ID, "abc")
	is.Equal(list[1].RepeatDays, []string{"monday", "thursday"})
	is.Equal(list[2].RepeatDays, []string{"friday"})
	is.Equal(list[2].Ident(), "Remédio")
}

func TestCreateSendsJoinedDays(t *testing.T) {
	is := is.New(t)
	s, b := newStore(t)
	ctx := context.Background()

	is.NoErr(s.Create(ctx, reminder.Draft{Name: "Reunião", Date: "2026-10-19", Time: "09:00", Repeat: reminder.Bool(true), RepeatDays: []string{"monday", "thursday"}}))
	is.NoErr(s.Create(ctx, reminder.Draft{Name: "Consulta", Date: "2026-10-15", Time: "15:00", Repeat: reminder.Bool(false)}))

	is.Equal(len(b.posted), 2)
	is.Equal(b.posted[0]["repeatDays"], "monday,thursday")
	is.Equal(b.posted[0]["repeat"], true)
	is.Equal(b.posted[1]["repeatDays"], nil)

	err := s.Create(ctx, reminder.Draft{Name: "Consulta"})
	is.True(errors.Is(err, ai.ErrIncompleteDraft))
	is.Equal(len(b.posted), 2)
}

func TestDelete(t *testing.T) {
	is := is.New(t)
	s, b := newStore(t)
	ctx := context.Background()

	is.NoErr(s.Delete(ctx, "Consulta"))
	is.Equal(b.deleted, []string{"Consulta"})
	is.True(errors.Is(s.Delete(ctx, "ghost"), reminder.ErrNotFound))
}

func TestBackendErrors(t *testing.T) {
	is := is.New(t)
	s, b := newStore(t)
	b.status = http.StatusInternalServerError

	_, err := s.List(context.Background())
	is.True(errors.Is(err, ai.ErrBackendUnavailable))

	down := New("http://127.0.0.1:1", 200*time.Millisecond)
	_, err = down.List(context.Background())
	is.True(errors.Is(err, ai.ErrBackendUnavailable))
}
