// Package fake provides a configurable synthesis provider for tests.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/chriscow/memora/pkg/ai/tts"
	"github.com/chriscow/memora/pkg/audio"
	"github.com/chriscow/memora/pkg/audio/wav"
)

// FakeTTS produces a short tone per request.
type FakeTTS struct {
	name string

	mu sync.Mutex
	// Err is returned from Synthesize.
	Err error
	// FirstFrameDelay holds back the first frame.
	FirstFrameDelay time.Duration
	// Silent closes the channel without producing audio.
	Silent bool
	// Local marks the provider as on-device.
	Local bool

	requests []tts.SynthesizeRequest
}

// NewFakeTTS creates a working fake provider.
func NewFakeTTS(name string) *FakeTTS {
	return &FakeTTS{name: name}
}

func (f *FakeTTS) Name() string { return f.name }

// Requests returns the requests seen so far.
func (f *FakeTTS) Requests() []tts.SynthesizeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tts.SynthesizeRequest(nil), f.requests...)
}

// Texts returns the text of every request seen so far.
func (f *FakeTTS) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.requests {
		out = append(out, r.Text)
	}
	return out
}

func (f *FakeTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan audio.Frame, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err, delay, silent := f.Err, f.FirstFrameDelay, f.Silent
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	out := make(chan audio.Frame, 8)
	go func() {
		defer close(out)
		if silent {
			return
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
		for _, frame := range audio.Split(wav.Tone(440, 16000, 50), 16000, 1) {
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *FakeTTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		Local:              f.Local,
		SupportedLanguages: []string{"pt-BR"},
		SampleRates:        []int{16000},
	}
}
