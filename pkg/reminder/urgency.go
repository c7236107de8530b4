package reminder

import (
	"time"

	"github.com/chriscow/memora/pkg/normalize"
)

// Urgency classifies how close a reminder is, for display.
type Urgency int

const (
	UrgencyUnknown Urgency = iota
	UrgencyOverdue
	UrgencyNow      // due within 15 minutes
	UrgencySoon     // due within the hour
	UrgencyToday    // later today
	UrgencyUpcoming // another day
)

func (u Urgency) String() string {
	switch u {
	case UrgencyOverdue:
		return "overdue"
	case UrgencyNow:
		return "now"
	case UrgencySoon:
		return "soon"
	case UrgencyToday:
		return "today"
	case UrgencyUpcoming:
		return "upcoming"
	default:
		return "unknown"
	}
}

// Next returns the next time r fires at or after now. One-off reminders
// return their scheduled time even when it is in the past. Recurring
// reminders never fire before their anchor date; an empty day list means
// every day.
func (r Reminder) Next(now time.Time) (time.Time, bool) {
	at, err := time.ParseInLocation(normalize.ISODate+" 15:04", r.Date+" "+r.Time, now.Location())
	if err != nil {
		return time.Time{}, false
	}
	if !r.Repeat {
		return at, true
	}

	days := make(map[time.Weekday]bool, len(r.RepeatDays))
	for _, c := range r.RepeatDays {
		if d, ok := normalize.ParseWeekday(c); ok {
			days[d] = true
		}
	}

	start := now
	if at.After(now) {
		start = at
	}
	y, m, d := start.Date()
	for i := 0; i <= 7; i++ {
		c := time.Date(y, m, d+i, at.Hour(), at.Minute(), 0, 0, now.Location())
		if c.Before(start) {
			continue
		}
		if len(days) == 0 || days[c.Weekday()] {
			return c, true
		}
	}
	return time.Time{}, false
}

// Urgency derives the display class of r at now.
func (r Reminder) Urgency(now time.Time) Urgency {
	next, ok := r.Next(now)
	if !ok {
		return UrgencyUnknown
	}
	delta := next.Sub(now)
	switch {
	case delta < 0:
		return UrgencyOverdue
	case delta <= 15*time.Minute:
		return UrgencyNow
	case delta <= time.Hour:
		return UrgencySoon
	}
	ny, nm, nd := next.Date()
	y, m, d := now.Date()
	if ny == y && nm == m && nd == d {
		return UrgencyToday
	}
	return UrgencyUpcoming
}

// DueAt reports whether r fires during the minute containing now.
func (r Reminder) DueAt(now time.Time) bool {
	minute := now.Truncate(time.Minute)
	next, ok := r.Next(minute)
	return ok && next.Equal(minute)
}
