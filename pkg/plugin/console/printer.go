package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chriscow/memora/pkg/ai/tts"
	"github.com/chriscow/memora/pkg/audio"
	"github.com/chriscow/memora/pkg/plugin"
)

// Printer is a synthesis provider that writes the text instead of speaking
// it. Each request yields one silent frame so playback completes normally.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

func NewPrinter(w io.Writer, prefix string) *Printer {
	return &Printer{w: w, prefix: prefix}
}

func (p *Printer) Name() string { return "console" }

func (p *Printer) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan audio.Frame, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("console: empty text")
	}
	p.mu.Lock()
	fmt.Fprintf(p.w, "%s%s\n", p.prefix, text)
	p.mu.Unlock()

	const rate = 16000
	f := audio.Frame{
		Data:              make([]byte, rate/100*2),
		SampleRate:        rate,
		SamplesPerChannel: rate / 100,
		NumChannels:       1,
	}
	return audio.Stream([]audio.Frame{f}), nil
}

func (p *Printer) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{Local: true, SupportedLanguages: []string{"pt-BR"}}
}

var _ tts.TTS = (*Printer)(nil)

func init() {
	plugin.Register(&plugin.Plugin{
		Kind: plugin.KindTTS,
		Name: "console",
		Factory: func(m map[string]any) (any, error) {
			prefix, ok := m["prefix"].(string)
			if !ok {
				prefix = "memora: "
			}
			return NewPrinter(os.Stdout, prefix), nil
		},
		Description: "Prints speech to stdout",
		Config:      map[string]any{"prefix": "memora: "},
	})
}
