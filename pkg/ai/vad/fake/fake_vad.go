// Package fake provides a scripted voice activity detector for tests.
package fake

import (
	"context"
	"time"

	"github.com/chriscow/memora/pkg/ai/vad"
	"github.com/chriscow/memora/pkg/audio"
)

// FakeVAD reports speech starting when frame StartAt arrives and ending at
// frame EndAt, counting from 1. A zero EndAt never ends speech.
type FakeVAD struct {
	StartAt int
	EndAt   int
}

// NewFakeVAD creates a detector that fires at the given frame numbers.
func NewFakeVAD(startAt, endAt int) *FakeVAD {
	return &FakeVAD{StartAt: startAt, EndAt: endAt}
}

func (f *FakeVAD) Detect(ctx context.Context, frames <-chan audio.Frame) (<-chan vad.VADEvent, error) {
	out := make(chan vad.VADEvent, 2)
	go func() {
		defer close(out)
		var n int
		var offset time.Duration
		for {
			select {
			case fr, ok := <-frames:
				if !ok {
					return
				}
				n++
				offset += fr.Duration()
				var ev *vad.VADEvent
				switch n {
				case f.StartAt:
					ev = &vad.VADEvent{Type: vad.VADEventSpeechStart, Offset: offset}
				case f.EndAt:
					ev = &vad.VADEvent{Type: vad.VADEventSpeechEnd, Offset: offset}
				}
				if ev == nil {
					continue
				}
				select {
				case out <- *ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *FakeVAD) Capabilities() vad.VADCapabilities {
	return vad.VADCapabilities{
		SampleRates:        []int{16000, 48000},
		MinSpeechDuration:  10 * time.Millisecond,
		MinSilenceDuration: 10 * time.Millisecond,
	}
}
