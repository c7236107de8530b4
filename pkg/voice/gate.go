package voice

import (
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chriscow/memora/pkg/normalize"
)

// DefaultEchoWindow is how long after a capture starts that text heard while
// output is playing is treated as bleed-through.
const DefaultEchoWindow = 5 * time.Second

// AudioGate tracks whether synthesized or recorded output is audible and
// decides whether a transcript is probably the system hearing itself.
type AudioGate interface {
	// SetTTSPlaying sets whether output audio is currently playing.
	SetTTSPlaying(playing bool)

	// IsTTSPlaying reports whether output audio is currently playing.
	IsTTSPlaying() bool

	// ShouldDiscardTranscript reports whether text, heard listenedFor after
	// the capture started, should be dropped as echo. Confirmations and
	// anything with a digit always pass.
	ShouldDiscardTranscript(text string, listenedFor time.Duration) bool
}

// NewAudioGate creates a gate with the given echo window. A non-positive
// window uses DefaultEchoWindow.
func NewAudioGate(window time.Duration) AudioGate {
	if window <= 0 {
		window = DefaultEchoWindow
	}
	return &defaultGate{window: window}
}

type defaultGate struct {
	ttsPlaying int32
	window     time.Duration
}

func (g *defaultGate) SetTTSPlaying(playing bool) {
	var val int32
	if playing {
		val = 1
	}
	atomic.StoreInt32(&g.ttsPlaying, val)
}

func (g *defaultGate) IsTTSPlaying() bool {
	return atomic.LoadInt32(&g.ttsPlaying) == 1
}

var digitRe = regexp.MustCompile(`\d`)

func (g *defaultGate) ShouldDiscardTranscript(text string, listenedFor time.Duration) bool {
	if !g.IsTTSPlaying() || listenedFor >= g.window {
		return false
	}
	return !IsConfirmation(text)
}

// IsConfirmation reports whether text holds a yes/no token or a digit.
func IsConfirmation(text string) bool {
	t := normalize.Fold(text)
	return strings.Contains(t, "sim") || strings.Contains(t, "nao") || digitRe.MatchString(t)
}
