package interpret

import (
	"testing"
	"time"

	"github.com/chriscow/memora/pkg/reminder"
	"github.com/matryer/is"
)

// Thursday.
var now = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func TestParseOneOff(t *testing.T) {
	is := is.New(t)

	d, ok := Parse("criar lembrete consulta médica às 14:30 amanhã", now)
	is.True(ok)
	is.Equal(d.Name, "Consulta Médica")
	is.Equal(d.Time, "14:30")
	is.Equal(d.Date, "2026-10-16")
	is.Equal(*d.Repeat, false)
	is.Equal(d.RepeatDays, nil)
}

func TestParseRecurring(t *testing.T) {
	is := is.New(t)

	d, ok := Parse("criar lembrete reunião às 9:00 segunda e quinta", now)
	is.True(ok)
	is.Equal(d.Name, "Reunião")
	is.Equal(d.Time, "09:00")
	is.Equal(*d.Repeat, true)
	is.Equal(d.RepeatDays, []string{"monday", "thursday"})
	is.Equal(d.Date, "2026-10-19") // next monday
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want reminder.Draft
		ok   bool
	}{
		{
			name: "hours form and default today",
			in:   "criar um lembrete para tomar remédio às 8 horas",
			want: reminder.Draft{Name: "Tomar Remédio", Date: "2026-10-15", Time: "08:00", Repeat: reminder.Bool(false)},
			ok:   true,
		},
		{
			name: "explicit day and month",
			in:   "Criar lembrete dentista às 10:15 dia 20 de outubro",
			want: reminder.Draft{Name: "Dentista", Date: "2026-10-20", Time: "10:15", Repeat: reminder.Bool(false)},
			ok:   true,
		},
		{
			name: "day month without de",
			in:   "criar lembrete aniversário da ana às 19:00 no 3 dezembro",
			want: reminder.Draft{Name: "Aniversário Da Ana", Date: "2026-12-03", Time: "19:00", Repeat: reminder.Bool(false)},
			ok:   true,
		},
		{
			name: "invalid day falls back to today",
			in:   "criar lembrete pagar conta às 9:00 dia 32 de outubro",
			want: reminder.Draft{Name: "Pagar Conta", Date: "2026-10-15", Time: "09:00", Repeat: reminder.Bool(false)},
			ok:   true,
		},
		{
			name: "weekday skips explicit date",
			in:   "criar lembrete academia às 7:00 sexta dia 20 de outubro",
			want: reminder.Draft{Name: "Academia", Date: "2026-10-16", Time: "07:00", Repeat: reminder.Bool(true), RepeatDays: []string{"friday"}},
			ok:   true,
		},
		{name: "no trigger", in: "consulta às 14:30 amanhã", ok: false},
		{name: "no time", in: "criar lembrete consulta amanhã", ok: false},
		{name: "no name", in: "criar às 14:30", ok: false},
		{name: "bare create", in: "criar", ok: false},
		{name: "hour out of range", in: "criar lembrete festa às 25:00", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			got, ok := Parse(tt.in, now)
			is.Equal(ok, tt.ok)
			if !tt.ok {
				return
			}
			is.Equal(got, tt.want)
		})
	}
}

func TestIsCommand(t *testing.T) {
	is := is.New(t)
	is.True(IsCommand("Criar"))
	is.True(IsCommand("quero um LEMBRETE"))
	is.True(!IsCommand("listar"))
}
