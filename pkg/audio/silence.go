package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Silence is a microphone that delivers silent frames in real time. It
// stands in for a device when transcripts come from somewhere else, such as
// a terminal.
type Silence struct {
	SampleRate int
}

func (s Silence) Open(ctx context.Context) (MicStream, error) {
	rate := s.SampleRate
	if rate == 0 {
		rate = 16000
	}
	st := &silentStream{frames: make(chan Frame, 8), stop: make(chan struct{})}
	st.active.Store(true)
	go st.run(rate)
	return st, nil
}

type silentStream struct {
	frames chan Frame
	stop   chan struct{}
	once   sync.Once
	active atomic.Bool
}

func (s *silentStream) run(rate int) {
	defer close(s.frames)
	t := time.NewTicker(FrameDuration)
	defer t.Stop()
	data := make([]byte, rate/100*2)
	var ts time.Duration
	for {
		select {
		case <-t.C:
			f := Frame{Data: data, SampleRate: rate, SamplesPerChannel: rate / 100, NumChannels: 1, Timestamp: ts}
			ts += FrameDuration
			select {
			case s.frames <- f:
			default:
			}
		case <-s.stop:
			return
		}
	}
}

func (s *silentStream) Frames() <-chan Frame { return s.frames }

func (s *silentStream) Active() bool { return s.active.Load() }

func (s *silentStream) Close() error {
	s.once.Do(func() {
		s.active.Store(false)
		close(s.stop)
	})
	return nil
}
