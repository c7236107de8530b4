// Package interpret extracts a complete reminder from a single spoken
// command such as "criar lembrete consulta médica às 14:30 amanhã".
package interpret

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chriscow/memora/pkg/normalize"
	"github.com/chriscow/memora/pkg/reminder"
)

// Name patterns, tried in order; the first match wins. Each captures the
// name up to the first temporal keyword.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`criar\s+(?:(?:um\s+lembrete|lembrete|um)\s+)?(?:(?:sobre|de|para|do|da)\s+)?([^0-9]+?)\s+(?:as|às|na|no|dia|amanha|amanhã|hoje|segunda|terca|terça|quarta|quinta|sexta|sabado|sábado|domingo)(?:\s|$)`),
	regexp.MustCompile(`criar\s+(?:(?:um\s+lembrete|lembrete|um)\s+)?(?:(?:sobre|de|para|do|da)\s+)?(.+?)\s+(?:as|às|na|no|dia|amanha|amanhã|hoje)(?:\s|$)`),
	regexp.MustCompile(`criar\s+(?:um\s+)?(.+?)\s+(?:as|às)(?:\s|$)`),
}

var leadingLembrete = regexp.MustCompile(`^(?:um\s+)?lembrete\s+`)

// Time patterns, in precedence order.
var (
	atClockRe = regexp.MustCompile(`(?:as|às)\s+(\d{1,2}):(\d{2})`)
	atHoursRe = regexp.MustCompile(`(?:as|às)\s+(\d{1,2})\s*(?:horas?|h)`)
	clockRe   = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
)

// Date patterns over folded text.
var (
	dayOfMonthRe = regexp.MustCompile(`(?:dia|no)\s+(\d{1,2})\s+de\s+(` + normalize.MonthPattern + `)`)
	dayMonthRe   = regexp.MustCompile(`(?:dia|no)\s+(\d{1,2})\s+(` + normalize.MonthPattern + `)`)
)

// IsCommand reports whether text carries a create trigger word.
func IsCommand(text string) bool {
	t := normalize.Fold(text)
	return strings.Contains(t, "criar") || strings.Contains(t, "lembrete")
}

// Parse returns a complete draft when text names both a reminder and a time.
// Otherwise it returns false and the caller should fall back to asking for
// one field at a time.
func Parse(text string, now time.Time) (reminder.Draft, bool) {
	if !IsCommand(text) {
		return reminder.Draft{}, false
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	folded := normalize.Fold(text)

	name := extractName(lower)
	at := extractTime(lower)
	if name == "" || at == "" {
		return reminder.Draft{}, false
	}

	d := reminder.Draft{
		Name:   normalize.TitleCase(name),
		Time:   at,
		Repeat: reminder.Bool(false),
	}

	if days := normalize.Weekdays(folded); len(days) > 0 {
		d.Repeat = reminder.Bool(true)
		d.RepeatDays = days
		d.Date, _ = normalize.NextWeekday(now, days[0])
		return d, true
	}

	d.Date = extractDate(folded, now)
	return d, true
}

func extractName(lower string) string {
	for _, re := range namePatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(leadingLembrete.ReplaceAllString(strings.TrimSpace(m[1]), ""))
		if name == "lembrete" {
			name = ""
		}
		return name
	}
	return ""
}

func extractTime(lower string) string {
	var hs, ms string
	if m := atClockRe.FindStringSubmatch(lower); m != nil {
		hs, ms = m[1], m[2]
	} else if m := atHoursRe.FindStringSubmatch(lower); m != nil {
		hs, ms = m[1], "00"
	} else if m := clockRe.FindStringSubmatch(lower); m != nil {
		hs, ms = m[1], m[2]
	} else {
		return ""
	}
	h, _ := strconv.Atoi(hs)
	m, _ := strconv.Atoi(ms)
	if h > 23 || m > 59 {
		return ""
	}
	t, _ := normalize.Time(hs + ":" + ms)
	return t
}

func extractDate(folded string, now time.Time) string {
	for _, re := range []*regexp.Regexp{dayOfMonthRe, dayMonthRe} {
		if m := re.FindStringSubmatch(folded); m != nil {
			day, _ := strconv.Atoi(m[1])
			if d, ok := normalize.DayMonth(day, m[2], now); ok {
				return d
			}
		}
	}
	if d, ok := normalize.Date(relative(folded), now); ok {
		return d
	}
	d, _ := normalize.Date("hoje", now)
	return d
}

// relative keeps only the relative day words of folded so that Date does not
// pick up the clock time as a numeric date.
func relative(folded string) string {
	switch {
	case strings.Contains(folded, "depois de amanha"):
		return "depois de amanha"
	case strings.Contains(folded, "amanha"):
		return "amanha"
	case strings.Contains(folded, "hoje"):
		return "hoje"
	}
	return ""
}
