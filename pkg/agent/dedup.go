package agent

import (
	"strings"
	"unicode/utf8"

	"github.com/chriscow/memora/pkg/normalize"
)

// dedup remembers the last processed utterance so a recognizer repeating
// itself across a state change does not advance the dialogue twice.
type dedup struct {
	minLength int
	maxExtra  int

	text  string
	state State
	set   bool
}

func (d *dedup) remember(text string, s State) {
	d.text = normalize.Fold(strings.TrimSpace(text))
	d.state = s
	d.set = true
}

func (d *dedup) reset() {
	*d = dedup{minLength: d.minLength, maxExtra: d.maxExtra}
}

// duplicate reports whether text heard in state s repeats the remembered
// utterance from a different state.
func (d *dedup) duplicate(text string, s State) bool {
	if !d.set || d.state == s {
		return false
	}
	t := normalize.Fold(strings.TrimSpace(text))
	if t == d.text {
		return true
	}
	if utf8.RuneCountInString(d.text) <= d.minLength || !strings.Contains(t, d.text) {
		return false
	}
	extra := strings.TrimSpace(strings.Replace(t, d.text, "", 1))
	return utf8.RuneCountInString(extra) < d.maxExtra
}
