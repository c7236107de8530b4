// Package console provides a recognition engine that reads typed lines, so
// the dialogue can be driven from a terminal without a microphone.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chriscow/memora/pkg/ai/stt"
	"github.com/chriscow/memora/pkg/audio"
	"github.com/chriscow/memora/pkg/plugin"
)

// STT turns each line read from its input into one final transcript. Audio
// pushed to its streams is ignored.
type STT struct {
	r      io.Reader
	w      io.Writer
	prompt string

	start sync.Once
	lines chan string
	eof   chan struct{}
}

// New creates an engine reading r. The prompt is written to w whenever a
// stream starts waiting for a line; a nil w disables it.
func New(r io.Reader, w io.Writer, prompt string) *STT {
	return &STT{
		r:      r,
		w:      w,
		prompt: prompt,
		lines:  make(chan string),
		eof:    make(chan struct{}),
	}
}

// Done closes when the input is exhausted.
func (s *STT) Done() <-chan struct{} {
	s.start.Do(s.read)
	return s.eof
}

func (s *STT) read() {
	go func() {
		defer close(s.eof)
		sc := bufio.NewScanner(s.r)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			s.lines <- line
		}
	}()
}

func (s *STT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.STTStream, error) {
	s.start.Do(s.read)
	if s.w != nil && s.prompt != "" {
		fmt.Fprint(s.w, s.prompt)
	}
	st := &stream{
		out:   make(chan stt.SpeechEvent, 1),
		close: make(chan struct{}),
	}
	go st.run(ctx, s)
	return st, nil
}

func (s *STT) Capabilities() stt.STTCapabilities {
	return stt.STTCapabilities{Streaming: true, SupportedLanguages: []string{"pt"}}
}

type stream struct {
	out   chan stt.SpeechEvent
	close chan struct{}
	once  sync.Once
}

func (st *stream) run(ctx context.Context, s *STT) {
	defer close(st.out)
	select {
	case line := <-s.lines:
		st.out <- stt.SpeechEvent{Type: stt.SpeechEventFinal, Text: line, IsFinal: true, Language: "pt"}
	case <-s.eof:
		st.out <- stt.SpeechEvent{Type: stt.SpeechEventEnd}
	case <-st.close:
		st.out <- stt.SpeechEvent{Type: stt.SpeechEventEnd}
	case <-ctx.Done():
	}
}

func (st *stream) Push(audio.Frame) error { return nil }

func (st *stream) Events() <-chan stt.SpeechEvent { return st.out }

func (st *stream) CloseSend() error {
	st.once.Do(func() { close(st.close) })
	return nil
}

var _ stt.STT = (*STT)(nil)

func init() {
	plugin.Register(&plugin.Plugin{
		Kind: plugin.KindSTT,
		Name: "console",
		Factory: func(m map[string]any) (any, error) {
			prompt, ok := m["prompt"].(string)
			if !ok {
				prompt = "> "
			}
			return New(os.Stdin, os.Stdout, prompt), nil
		},
		Description: "Typed lines from stdin",
		Config:      map[string]any{"prompt": "> "},
	})
}
