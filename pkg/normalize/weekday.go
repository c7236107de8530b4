package normalize

import (
	"strconv"
	"strings"
	"time"
)

type weekday struct {
	token  string // folded Portuguese stem
	canon  string
	spoken string
	day    time.Weekday
}

// Fixed scan order. Results follow this order, not the order spoken.
var weekdays = []weekday{
	{"segunda", "monday", "segunda-feira", time.Monday},
	{"terca", "tuesday", "terça-feira", time.Tuesday},
	{"quarta", "wednesday", "quarta-feira", time.Wednesday},
	{"quinta", "thursday", "quinta-feira", time.Thursday},
	{"sexta", "friday", "sexta-feira", time.Friday},
	{"sabado", "saturday", "sábado", time.Saturday},
	{"domingo", "sunday", "domingo", time.Sunday},
}

// Weekdays returns the canonical weekday tokens named in text, in Monday to
// Sunday order, without duplicates. "todos os dias", "dias úteis" and
// "fim de semana" expand to their days.
func Weekdays(text string) []string {
	t := Fold(text)
	var out []string
	for _, w := range weekdays {
		if strings.Contains(t, w.token) || expands(t, w.day) {
			out = append(out, w.canon)
		}
	}
	return out
}

func expands(t string, d time.Weekday) bool {
	switch {
	case strings.Contains(t, "todos os dias") || strings.Contains(t, "todo dia"):
		return true
	case strings.Contains(t, "dias uteis"):
		return d >= time.Monday && d <= time.Friday
	case strings.Contains(t, "fim de semana") || strings.Contains(t, "final de semana"):
		return d == time.Saturday || d == time.Sunday
	}
	return false
}

// ParseWeekday maps a canonical token back to time.Weekday.
func ParseWeekday(canon string) (time.Weekday, bool) {
	for _, w := range weekdays {
		if w.canon == canon {
			return w.day, true
		}
	}
	return 0, false
}

// NextWeekday returns the next date strictly after now that falls on the
// canonical weekday, one to seven days ahead.
func NextWeekday(now time.Time, canon string) (string, bool) {
	target, ok := ParseWeekday(canon)
	if !ok {
		return "", false
	}
	today := truncateDay(now)
	diff := int(target) - int(today.Weekday())
	if diff <= 0 {
		diff += 7
	}
	return today.AddDate(0, 0, diff).Format(ISODate), true
}

var monthsSpoken = []string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// DateForSpeech renders an ISO date as "segunda-feira, 19 de outubro".
// Anything that is not an ISO date is returned unchanged.
func DateForSpeech(iso string) string {
	d, err := time.Parse(ISODate, iso)
	if err != nil {
		return iso
	}
	var day string
	for _, w := range weekdays {
		if w.day == d.Weekday() {
			day = w.spoken
		}
	}
	return day + ", " + strconv.Itoa(d.Day()) + " de " + monthsSpoken[d.Month()-1]
}

// WeekdaysForSpeech renders canonical tokens as a Portuguese list, e.g.
// "segunda-feira, quarta-feira e sexta-feira". Unknown tokens are kept.
func WeekdaysForSpeech(days []string) string {
	names := make([]string, 0, len(days))
	for _, c := range days {
		name := c
		for _, w := range weekdays {
			if w.canon == c {
				name = w.spoken
			}
		}
		names = append(names, name)
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " e " + names[len(names)-1]
}
