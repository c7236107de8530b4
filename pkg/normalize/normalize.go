// Package normalize turns Brazilian Portuguese spoken date, time and weekday
// phrases into canonical forms: HH:MM times, YYYY-MM-DD dates and English
// weekday tokens ("monday" ... "sunday").
//
// All functions are pure. Functions that depend on the current date take it
// as an argument.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ISODate is the layout of canonical dates.
const ISODate = "2006-01-02"

// Fold lowercases s, strips diacritics and trims surrounding space.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(strings.ToLower(out))
}

// TitleCase capitalizes every word of s and lowercases the rest.
func TitleCase(s string) string {
	return cases.Title(language.BrazilianPortuguese).String(strings.TrimSpace(s))
}

var (
	clockRe    = regexp.MustCompile(`(\d{1,2})\s*(?::|h)\s*(\d{2})`)
	hoursRe    = regexp.MustCompile(`(\d{1,2})\s*(?:horas?|hrs?|h)(?:\s+e\s+(\d{1,2})(?:\s*minutos?)?)?`)
	bareRe     = regexp.MustCompile(`^\D*?(\d{1,2})\D*$`)
	pmRe       = regexp.MustCompile(`da (?:tarde|noite)`)
	noonRe     = regexp.MustCompile(`meio[\s-]?dia`)
	midnightRe = regexp.MustCompile(`meia[\s-]?noite`)
)

// Time normalizes a spoken time to HH:MM. It accepts "9:30", "9h30",
// "9 horas", "9 horas e 15", a bare "9", "meio-dia" and "meia-noite", and
// shifts "3 da tarde" to 15:00. Minutes default to 00.
func Time(text string) (string, bool) {
	t := Fold(text)
	if t == "" {
		return "", false
	}

	var hour, minute int
	switch {
	case noonRe.MatchString(t):
		hour = 12
	case midnightRe.MatchString(t):
		hour = 0
	default:
		var hs, ms string
		if m := clockRe.FindStringSubmatch(t); m != nil {
			hs, ms = m[1], m[2]
		} else if m := hoursRe.FindStringSubmatch(t); m != nil {
			hs, ms = m[1], m[2]
		} else if m := bareRe.FindStringSubmatch(t); m != nil {
			hs = m[1]
		} else {
			return "", false
		}
		hour, _ = strconv.Atoi(hs)
		if ms != "" {
			minute, _ = strconv.Atoi(ms)
		}
		if pmRe.MatchString(t) && hour < 12 {
			hour += 12
		}
	}

	if hour > 23 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// Months in calendar order, accent folded.
var months = []string{
	"janeiro", "fevereiro", "marco", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// MonthPattern matches any folded month name.
const MonthPattern = `janeiro|fevereiro|marco|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro`

var (
	dayMonthRe = regexp.MustCompile(`(\d{1,2})\s+(?:de\s+)?(` + MonthPattern + `)(?:\s+(?:de\s+)?(\d{4}))?`)
	numericRe  = regexp.MustCompile(`(\d{1,2})/(\d{1,2})(?:/(\d{2}|\d{4}))?`)
)

// Date normalizes a spoken date to YYYY-MM-DD relative to now. It accepts
// "hoje", "amanhã", "depois de amanhã", "15 de outubro", "15 outubro",
// "15 de outubro de 2027" and "15/10[/2027]". A day and month without a year
// that already passed this year resolves to next year. Invalid days such as
// "32 de outubro" or "30 de fevereiro" fail.
func Date(text string, now time.Time) (string, bool) {
	t := Fold(text)
	today := truncateDay(now)

	switch {
	case strings.Contains(t, "depois de amanha"):
		return today.AddDate(0, 0, 2).Format(ISODate), true
	case strings.Contains(t, "amanha"):
		return today.AddDate(0, 0, 1).Format(ISODate), true
	case strings.Contains(t, "hoje"):
		return today.Format(ISODate), true
	}

	var day, month, year int
	if m := dayMonthRe.FindStringSubmatch(t); m != nil {
		day, _ = strconv.Atoi(m[1])
		month = MonthNumber(m[2])
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
	} else if m := numericRe.FindStringSubmatch(t); m != nil {
		day, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
	} else {
		return "", false
	}

	return resolve(day, month, year, today)
}

// DayMonth resolves a day number and a folded month name relative to now.
func DayMonth(day int, monthName string, now time.Time) (string, bool) {
	return resolve(day, MonthNumber(monthName), 0, truncateDay(now))
}

func resolve(day, month, year int, today time.Time) (string, bool) {
	if month < 1 || month > 12 || day < 1 {
		return "", false
	}
	explicitYear := year != 0
	if !explicitYear {
		year = today.Year()
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, today.Location())
	if d.Day() != day || int(d.Month()) != month {
		// time.Date normalized an out of range day.
		return "", false
	}
	if !explicitYear && d.Before(today) {
		d = d.AddDate(1, 0, 0)
		if d.Day() != day {
			// 29 de fevereiro with no leap day next year
			return "", false
		}
	}
	return d.Format(ISODate), true
}

// MonthNumber returns 1-12 for a folded month name, 0 if unknown.
func MonthNumber(name string) int {
	name = Fold(name)
	for i, m := range months {
		if m == name {
			return i + 1
		}
	}
	return 0
}

// IsISODate reports whether s is a well formed YYYY-MM-DD date.
func IsISODate(s string) bool {
	_, err := time.Parse(ISODate, s)
	return err == nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
