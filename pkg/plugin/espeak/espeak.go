// Package espeak is the on-device synthesis provider. It runs espeak-ng and
// decodes the WAV it writes to stdout.
package espeak

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/chriscow/memora/pkg/ai/tts"
	"github.com/chriscow/memora/pkg/audio"
	"github.com/chriscow/memora/pkg/audio/wav"
	"github.com/chriscow/memora/pkg/plugin"
)

const (
	defaultBinary = "espeak-ng"
	defaultVoice  = "pt-br"
	// baseRate is espeak's default speed in words per minute.
	baseRate  = 175
	maxLength = 1000
)

// ErrUnavailable means the binary could not be found.
var ErrUnavailable = errors.New("espeak-ng not available")

// Config configures the provider.
type Config struct {
	Binary string
	Voice  string
}

// TTS runs espeak-ng once per request.
type TTS struct {
	binary string
	voice  string
	log    *slog.Logger
}

// New creates the provider. A missing binary is reported by Synthesize, not
// here, so that a configuration can list espeak as a fallback on machines
// that lack it.
func New(cfg Config) *TTS {
	t := &TTS{binary: cfg.Binary, voice: cfg.Voice, log: slog.Default().With("provider", "espeak")}
	if t.binary == "" {
		t.binary = defaultBinary
	}
	if t.voice == "" {
		t.voice = defaultVoice
	}
	return t
}

func (t *TTS) Name() string { return "espeak" }

// Available reports whether the binary can be found.
func (t *TTS) Available() bool {
	_, err := exec.LookPath(t.binary)
	return err == nil
}

func (t *TTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan audio.Frame, error) {
	text := sanitize(req.Text)
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}
	path, err := exec.LookPath(t.binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	voice := req.Voice
	if voice == "" {
		voice = t.voice
	}
	args := []string{"-v", voice, "--stdout"}
	if req.Speed > 0 && req.Speed != 1 {
		args = append(args, "-s", strconv.Itoa(int(baseRate*req.Speed)))
	}
	if req.Pitch > 0 && req.Pitch != 1 {
		args = append(args, "-p", strconv.Itoa(min(99, int(50*req.Pitch))))
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.log.Error("espeak failed", "error", err, "stderr", stderr.String())
		return nil, fmt.Errorf("espeak-ng: %w", err)
	}

	_, frames, err := wav.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("espeak-ng output: %w", err)
	}
	t.log.Debug("espeak synthesized", "frames", len(frames), "chars", len(text))
	return audio.Stream(frames), nil
}

func (t *TTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		Local:                true,
		SupportedLanguages:   []string{"pt", "pt-br", "en"},
		SupportedVoices:      []string{"pt-br", "pt"},
		SampleRates:          []int{22050},
		SupportsSpeedControl: true,
		SupportsPitchControl: true,
	}
}

// sanitize collapses whitespace and bounds the length so a runaway string
// cannot keep the speaker busy.
func sanitize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxLength {
		s = string(r[:maxLength])
	}
	return s
}

var _ tts.TTS = (*TTS)(nil)

func init() {
	plugin.Register(&plugin.Plugin{
		Kind: plugin.KindTTS,
		Name: "espeak",
		Factory: func(m map[string]any) (any, error) {
			binary, _ := m["binary"].(string)
			voice, _ := m["voice"].(string)
			return New(Config{Binary: binary, Voice: voice}), nil
		},
		Description: "Local espeak-ng synthesis",
		Config: map[string]any{
			"binary": defaultBinary,
			"voice":  defaultVoice,
		},
	})
}
