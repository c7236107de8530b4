// Package fake provides in-memory microphone and speaker doubles.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/chriscow/memora/pkg/audio"
)

// Microphone hands out fake streams. Set Err to make Open fail.
type Microphone struct {
	mu      sync.Mutex
	Err     error
	opens   int
	streams []*MicStream
}

// NewMicrophone creates a working fake microphone.
func NewMicrophone() *Microphone {
	return &Microphone{}
}

// Open returns a new stream or m.Err.
func (m *Microphone) Open(ctx context.Context) (audio.MicStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	if m.Err != nil {
		return nil, m.Err
	}
	s := &MicStream{frames: make(chan audio.Frame, 64), active: true}
	m.streams = append(m.streams, s)
	return s, nil
}

// SetErr changes the error returned by Open.
func (m *Microphone) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// Opens returns how many times Open was called.
func (m *Microphone) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Last returns the most recently opened stream.
func (m *Microphone) Last() *MicStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) == 0 {
		return nil
	}
	return m.streams[len(m.streams)-1]
}

// MicStream is a fake capture stream fed by Push.
type MicStream struct {
	mu     sync.Mutex
	frames chan audio.Frame
	active bool
}

// Push queues a frame if the stream is active.
func (s *MicStream) Push(f audio.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	select {
	case s.frames <- f:
	default:
	}
}

// End simulates the device going away (unplugged track).
func (s *MicStream) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.active = false
		close(s.frames)
	}
}

func (s *MicStream) Frames() <-chan audio.Frame { return s.frames }

func (s *MicStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *MicStream) Close() error {
	s.End()
	return nil
}

// Played records one Speaker.Play call.
type Played struct {
	Frames int
	Rate   float64
}

// Speaker records playback and tracks how many plays overlap.
type Speaker struct {
	mu sync.Mutex

	// Duration overrides the natural length of every playback when non-zero.
	Duration time.Duration
	// Hang makes playback never end on its own.
	Hang bool
	// LoadErr is returned from Play.
	LoadErr error
	// PlayErr is reported on the done channel once playback starts.
	PlayErr error

	plays   []Played
	active  int
	maxSeen int
}

// NewSpeaker creates a speaker whose playbacks last d.
func NewSpeaker(d time.Duration) *Speaker {
	return &Speaker{Duration: d}
}

func (s *Speaker) Play(ctx context.Context, frames <-chan audio.Frame, rate float64) (<-chan error, error) {
	s.mu.Lock()
	if s.LoadErr != nil {
		err := s.LoadErr
		s.mu.Unlock()
		return nil, err
	}
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	idx := len(s.plays)
	s.plays = append(s.plays, Played{Rate: rate})
	d, hang, playErr := s.Duration, s.Hang, s.PlayErr
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
		}()

		var natural time.Duration
	drain:
		for {
			select {
			case f, ok := <-frames:
				if !ok {
					break drain
				}
				natural += f.Duration()
				s.mu.Lock()
				s.plays[idx].Frames++
				s.mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
		if playErr != nil {
			done <- playErr
			return
		}
		if d == 0 {
			d = time.Duration(float64(natural) / max(rate, 0.1))
		}
		if hang {
			<-ctx.Done()
			return
		}
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
	}()
	return done, nil
}

// Plays returns a copy of the recorded playbacks.
func (s *Speaker) Plays() []Played {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Played(nil), s.plays...)
}

// MaxConcurrent returns the largest number of overlapping playbacks seen.
func (s *Speaker) MaxConcurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxSeen
}

// Active returns how many playbacks are running now.
func (s *Speaker) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
