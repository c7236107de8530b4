package announce

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/chriscow/memora/pkg/reminder"
	"github.com/chriscow/memora/pkg/reminder/memory"
	"github.com/matryer/is"
)

type fakeEngine struct {
	mu        sync.Mutex
	busy      bool
	announced []string
}

func (f *fakeEngine) Idle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.busy
}

func (f *fakeEngine) Announce(r reminder.Reminder) {
	f.mu.Lock()
	f.announced = append(f.announced, r.Name)
	f.mu.Unlock()
}

func (f *fakeEngine) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.announced...)
}

func newScheduler(t *testing.T, store reminder.Store, eng Engine, now time.Time) *Scheduler {
	t.Helper()
	s, err := New("* * * * *", store, eng, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return now }
	return s
}

func TestCheckAnnouncesDueReminders(t *testing.T) {
	is := is.New(t)
	now := time.Date(2026, 3, 10, 8, 0, 25, 0, time.Local)
	store := memory.New(
		reminder.Reminder{ID: "1", Name: "remédio", Date: "2026-03-10", Time: "08:00"},
		reminder.Reminder{ID: "2", Name: "dentista", Date: "2026-03-10", Time: "09:00"},
		reminder.Reminder{ID: "3", Name: "ontem", Date: "2026-03-09", Time: "08:00"},
	)
	eng := &fakeEngine{}
	s := newScheduler(t, store, eng, now)

	s.check(context.Background())
	is.Equal(eng.names(), []string{"remédio"})

	// Same minute: not repeated.
	s.check(context.Background())
	is.Equal(eng.names(), []string{"remédio"})

	s.now = func() time.Time { return now.Add(time.Hour) }
	s.check(context.Background())
	is.Equal(eng.names(), []string{"remédio", "dentista"})
	is.Equal(len(s.announced), 1) // the 08:00 entry was pruned
}

func TestCheckSkipsWhenBusy(t *testing.T) {
	is := is.New(t)
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.Local)
	store := memory.New(reminder.Reminder{Name: "remédio", Date: "2026-03-10", Time: "08:00"})
	eng := &fakeEngine{busy: true}
	s := newScheduler(t, store, eng, now)

	s.check(context.Background())
	is.Equal(len(eng.names()), 0)

	eng.busy = false
	s.check(context.Background())
	is.Equal(eng.names(), []string{"remédio"})
}

func TestCheckStoreError(t *testing.T) {
	is := is.New(t)
	store := memory.New(reminder.Reminder{Name: "remédio", Date: "2026-03-10", Time: "08:00"})
	store.SetErr(errors.New("offline"))
	eng := &fakeEngine{}
	s := newScheduler(t, store, eng, time.Date(2026, 3, 10, 8, 0, 0, 0, time.Local))

	s.check(context.Background())
	is.Equal(len(eng.names()), 0)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	is := is.New(t)
	_, err := New("every minute", memory.New(), &fakeEngine{}, nil)
	is.True(err != nil)
}

func TestRunStopsWithContext(t *testing.T) {
	is := is.New(t)
	s, err := New("* * * * *", memory.New(), &fakeEngine{}, nil)
	is.NoErr(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		is.NoErr(err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
