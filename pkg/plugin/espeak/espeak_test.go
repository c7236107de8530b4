package espeak

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/chriscow/memora/pkg/ai/tts"
	"github.com/chriscow/memora/pkg/audio/wav"
	"github.com/matryer/is"
)

// fakeBinary writes a script that records its arguments and stdin, then
// prints a canned WAV.
func fakeBinary(t *testing.T) (bin, argsFile, stdinFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	dir := t.TempDir()
	clip := filepath.Join(dir, "out.wav")
	if err := wav.WriteFile(clip, wav.Tone(440, 22050, 100), 22050, 1); err != nil {
		t.Fatal(err)
	}
	argsFile = filepath.Join(dir, "args")
	stdinFile = filepath.Join(dir, "stdin")
	bin = filepath.Join(dir, "espeak-ng")
	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\ncat > " + stdinFile + "\ncat " + clip + "\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin, argsFile, stdinFile
}

func TestSynthesize(t *testing.T) {
	is := is.New(t)
	bin, argsFile, stdinFile := fakeBinary(t)
	p := New(Config{Binary: bin})

	frames, err := p.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "  Qual o   nome do lembrete? ", Speed: 1.2})
	is.NoErr(err)
	n := 0
	for f := range frames {
		is.Equal(f.SampleRate, 22050)
		n++
	}
	is.Equal(n, 11) // 2205 samples in 220-sample frames

	args, _ := os.ReadFile(argsFile)
	is.Equal(strings.TrimSpace(string(args)), "-v pt-br --stdout -s 210")
	stdin, _ := os.ReadFile(stdinFile)
	is.Equal(string(stdin), "Qual o nome do lembrete?")
}

func TestSynthesizeMissingBinary(t *testing.T) {
	is := is.New(t)
	p := New(Config{Binary: filepath.Join(t.TempDir(), "nope")})
	is.True(!p.Available())
	_, err := p.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "Olá"})
	is.True(errors.Is(err, ErrUnavailable))
}

func TestSynthesizeEmptyText(t *testing.T) {
	is := is.New(t)
	_, err := New(Config{}).Synthesize(context.Background(), tts.SynthesizeRequest{Text: "   "})
	is.True(err != nil)
}

func TestLocal(t *testing.T) {
	is := is.New(t)
	is.True(New(Config{}).Capabilities().Local)
}
