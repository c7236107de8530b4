// Package announce speaks reminders when they come due.
package announce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chriscow/memora/pkg/reminder"
	"github.com/robfig/cron/v3"
)

// Engine is the part of the dialogue engine the scheduler drives.
type Engine interface {
	Idle() bool
	Announce(reminder.Reminder)
}

// Scheduler checks the store on a cron schedule and hands reminders due in
// the current minute to the engine. A reminder is announced at most once per
// due minute; when the engine is busy the check is skipped.
type Scheduler struct {
	cron   *cron.Cron
	store  reminder.Store
	engine Engine
	log    *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	announced map[string]time.Time
}

// New builds a scheduler for a standard five-field cron expression.
func New(schedule string, store reminder.Store, engine Engine, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cron:      cron.New(),
		store:     store,
		engine:    engine,
		log:       logger.With("component", "announce"),
		now:       time.Now,
		announced: make(map[string]time.Time),
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.check(context.Background()) }); err != nil {
		return nil, fmt.Errorf("announce schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) check(ctx context.Context) {
	if !s.engine.Idle() {
		s.log.Debug("engine busy, skipping check")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	list, err := s.store.List(ctx)
	if err != nil {
		s.log.Warn("list reminders failed", "error", err)
		return
	}

	now := s.now()
	minute := now.Truncate(time.Minute)

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, at := range s.announced {
		if at.Before(minute) {
			delete(s.announced, key)
		}
	}
	for _, r := range list {
		if !r.DueAt(now) {
			continue
		}
		key := r.Ident()
		if _, done := s.announced[key]; done {
			continue
		}
		s.announced[key] = minute
		s.log.Info("announcing reminder", "name", r.Name, "at", minute.Format("15:04"))
		s.engine.Announce(r)
	}
}
