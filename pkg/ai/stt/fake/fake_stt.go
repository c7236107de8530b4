// Package fake provides a scripted speech recognition engine for tests.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/chriscow/memora/pkg/ai/stt"
	"github.com/chriscow/memora/pkg/audio"
)

// Result is one scripted recognition outcome.
type Result struct {
	Text  string
	Err   error
	Delay time.Duration
}

// FakeSTT delivers queued results to whichever stream is open. A stream with
// nothing queued waits until CloseSend (ending with SpeechEventEnd) or until
// its context is cancelled.
type FakeSTT struct {
	results chan Result

	mu      sync.Mutex
	opened  int
	live    int
	configs  []stt.StreamConfig
	err      error
	closeErr error
}

// NewFakeSTT creates a fake engine with the given results already queued.
func NewFakeSTT(results ...Result) *FakeSTT {
	f := &FakeSTT{results: make(chan Result, 64)}
	for _, r := range results {
		f.results <- r
	}
	return f
}

// Say queues a final transcript.
func (f *FakeSTT) Say(text string) {
	f.results <- Result{Text: text}
}

// Fail queues a recognition error.
func (f *FakeSTT) Fail(err error) {
	f.results <- Result{Err: err}
}

// SetStreamErr makes NewStream fail.
func (f *FakeSTT) SetStreamErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// SetCloseErr makes CloseSend fail with err after closing the stream.
func (f *FakeSTT) SetCloseErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeErr = err
}

// Opened returns how many streams were created.
func (f *FakeSTT) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

// Live returns how many streams have not finished.
func (f *FakeSTT) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

// Configs returns the configs streams were opened with.
func (f *FakeSTT) Configs() []stt.StreamConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stt.StreamConfig(nil), f.configs...)
}

func (f *FakeSTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.STTStream, error) {
	f.mu.Lock()
	if f.err != nil {
		err := f.err
		f.mu.Unlock()
		return nil, err
	}
	f.opened++
	f.live++
	f.configs = append(f.configs, cfg)
	f.mu.Unlock()

	s := &stream{
		parent: f,
		lang:   cfg.Lang,
		events: make(chan stt.SpeechEvent, 4),
		closed: make(chan struct{}),
	}
	go s.run(ctx)
	return s, nil
}

func (f *FakeSTT) Capabilities() stt.STTCapabilities {
	return stt.STTCapabilities{
		Streaming:          true,
		SupportedLanguages: []string{"pt-BR"},
		SampleRates:        []int{16000, 48000},
	}
}

type stream struct {
	parent *FakeSTT
	lang   string
	events chan stt.SpeechEvent
	once   sync.Once
	closed chan struct{}
	frames int
	mu     sync.Mutex
}

func (s *stream) run(ctx context.Context) {
	defer close(s.events)
	defer func() {
		s.parent.mu.Lock()
		s.parent.live--
		s.parent.mu.Unlock()
	}()

	var r Result
	select {
	case r = <-s.parent.results:
	case <-s.closed:
		s.emit(ctx, stt.SpeechEvent{Type: stt.SpeechEventEnd, Timestamp: time.Now().UnixMilli()})
		return
	case <-ctx.Done():
		return
	}

	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return
		}
	}

	if r.Err != nil {
		s.emit(ctx, stt.SpeechEvent{Type: stt.SpeechEventError, Error: r.Err, Timestamp: time.Now().UnixMilli()})
		return
	}
	s.emit(ctx, stt.SpeechEvent{
		Type:      stt.SpeechEventFinal,
		Text:      r.Text,
		IsFinal:   true,
		Language:  s.lang,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *stream) emit(ctx context.Context, ev stt.SpeechEvent) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *stream) Push(frame audio.Frame) error {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
	return nil
}

func (s *stream) Events() <-chan stt.SpeechEvent {
	return s.events
}

func (s *stream) CloseSend() error {
	s.once.Do(func() { close(s.closed) })
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	return s.parent.closeErr
}
