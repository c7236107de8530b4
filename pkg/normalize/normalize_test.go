package normalize

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

// Thursday.
var now = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func TestTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"9:30", "09:30", true},
		{"9 horas", "09:00", true},
		{"09:30", "09:30", true},
		{"9", "09:00", true},
		{"às 14:30", "14:30", true},
		{"14h30", "14:30", true},
		{"14h", "14:00", true},
		{"10 horas e 15", "10:15", true},
		{"3 da tarde", "15:00", true},
		{"8 horas da noite", "20:00", true},
		{"meio-dia", "12:00", true},
		{"meia noite", "00:00", true},
		{"25:00", "", false},
		{"9:75", "", false},
		{"cedo", "", false},
		{"", "", false},
		{"123", "", false},
	}
	for _, tt := range tests {
		got, ok := Time(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Time(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTimeIsStable(t *testing.T) {
	is := is.New(t)
	for _, in := range []string{"9:30", "9 horas", "09:30"} {
		got, ok := Time(in)
		is.True(ok)
		again, ok := Time(got)
		is.True(ok)
		is.Equal(again, got) // re-normalizing is a no-op
	}
}

func TestDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"hoje", "2026-10-15", true},
		{"amanhã", "2026-10-16", true},
		{"amanha", "2026-10-16", true},
		{"depois de amanhã", "2026-10-17", true},
		{"20 de outubro", "2026-10-20", true},
		{"dia 20 outubro", "2026-10-20", true},
		{"5 de março", "2027-03-05", true}, // already passed this year
		{"15 de outubro", "2026-10-15", true},
		{"1 de janeiro de 2028", "2028-01-01", true},
		{"25/12", "2026-12-25", true},
		{"25/12/27", "2027-12-25", true},
		{"32 de outubro", "", false},
		{"31 de novembro", "", false},
		{"30 de fevereiro", "", false},
		{"semana que vem", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := Date(tt.in, now)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Date(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestWeekdays(t *testing.T) {
	is := is.New(t)

	is.Equal(Weekdays("quinta e segunda"), []string{"monday", "thursday"}) // map order
	is.Equal(Weekdays("Terça, SÁBADO"), []string{"tuesday", "saturday"})
	is.Equal(Weekdays("segunda-feira e segunda"), []string{"monday"})
	is.Equal(Weekdays("dias úteis"), []string{"monday", "tuesday", "wednesday", "thursday", "friday"})
	is.Equal(Weekdays("fim de semana"), []string{"saturday", "sunday"})
	is.Equal(len(Weekdays("todos os dias")), 7)
	is.Equal(len(Weekdays("nunca")), 0)
}

func TestNextWeekday(t *testing.T) {
	is := is.New(t)

	d, ok := NextWeekday(now, "monday")
	is.True(ok)
	is.Equal(d, "2026-10-19")

	d, _ = NextWeekday(now, "thursday")
	is.Equal(d, "2026-10-22") // today does not count

	d, _ = NextWeekday(now, "friday")
	is.Equal(d, "2026-10-16")

	_, ok = NextWeekday(now, "someday")
	is.True(!ok)
}

func TestSpeech(t *testing.T) {
	is := is.New(t)

	is.Equal(DateForSpeech("2026-10-19"), "segunda-feira, 19 de outubro")
	is.Equal(DateForSpeech("2027-03-06"), "sábado, 6 de março")
	is.Equal(DateForSpeech("amanhã"), "amanhã")

	is.Equal(WeekdaysForSpeech([]string{"monday"}), "segunda-feira")
	is.Equal(WeekdaysForSpeech([]string{"monday", "wednesday", "friday"}), "segunda-feira, quarta-feira e sexta-feira")
	is.Equal(WeekdaysForSpeech(nil), "")
}

func TestFoldAndTitle(t *testing.T) {
	is := is.New(t)

	is.Equal(Fold("  Não, AMANHÃ às Três "), "nao, amanha as tres")
	is.Equal(TitleCase("consulta médica"), "Consulta Médica")
	is.Equal(TitleCase("REUNIÃO de equipe"), "Reunião De Equipe")
	is.True(IsISODate("2026-10-15"))
	is.True(!IsISODate("2026-13-01"))
}
