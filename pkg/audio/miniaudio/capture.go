package miniaudio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chriscow/memora/pkg/audio"
	"github.com/gen2brain/malgo"
)

type microphone struct {
	c *Client
}

func (m *microphone) Open(ctx context.Context) (audio.MicStream, error) {
	mctx, err := m.c.context()
	if err != nil {
		return nil, err
	}
	rate, channels := m.c.cfg.SampleRate, m.c.cfg.NumChannels

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.SampleRate = uint32(rate)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(channels)
	cfg.Alsa.NoMMap = 1
	cfg.PerformanceProfile = malgo.LowLatency
	cfg.PeriodSizeInFrames = uint32(rate / 100)
	cfg.Periods = 3

	s := &micStream{
		frames: make(chan audio.Frame, 100),
		chunk:  newChunker(rate, channels),
		log:    m.c.log,
	}
	bytesPerFrame := malgo.SampleSizeInBytes(cfg.Capture.Format) * channels
	s.dev, err = malgo.InitDevice(mctx, cfg, malgo.DeviceCallbacks{
		Data: func(_, in []byte, n uint32) {
			size := int(n) * bytesPerFrame
			if size == 0 || len(in) < size {
				return
			}
			s.deliver(in[:size])
		},
		Stop: func() { go s.Close() },
	})
	if err != nil {
		if permissionDenied(err) {
			return nil, fmt.Errorf("%w: %v", audio.ErrPermission, err)
		}
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := s.dev.Start(); err != nil {
		s.dev.Uninit()
		if permissionDenied(err) {
			return nil, fmt.Errorf("%w: %v", audio.ErrPermission, err)
		}
		return nil, fmt.Errorf("start capture device: %w", err)
	}
	s.active.Store(true)
	return s, nil
}

type micStream struct {
	dev    *malgo.Device
	frames chan audio.Frame
	log    *slog.Logger

	mu     sync.Mutex
	chunk  *chunker
	closed bool
	active atomic.Bool
	drops  int
}

// deliver runs on the audio thread and never blocks it.
func (s *micStream) deliver(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, f := range s.chunk.push(pcm) {
		select {
		case s.frames <- f:
		default:
			s.drops++
			if s.drops%100 == 1 {
				s.log.Warn("capture consumer too slow, dropping audio", "dropped", s.drops)
			}
		}
	}
}

func (s *micStream) Frames() <-chan audio.Frame { return s.frames }

func (s *micStream) Active() bool { return s.active.Load() }

func (s *micStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.active.Store(false)
	close(s.frames)
	s.mu.Unlock()

	// Uninit waits for the audio thread, so it runs without the lock held.
	s.dev.Uninit()
	return nil
}

// chunker regroups device callbacks into 10 ms frames.
type chunker struct {
	rate, channels int
	size           int
	buf            []byte
	ts             time.Duration
}

func newChunker(rate, channels int) *chunker {
	return &chunker{rate: rate, channels: channels, size: rate / 100 * channels * 2}
}

func (c *chunker) push(pcm []byte) []audio.Frame {
	c.buf = append(c.buf, pcm...)
	var out []audio.Frame
	for len(c.buf) >= c.size {
		data := make([]byte, c.size)
		copy(data, c.buf[:c.size])
		c.buf = c.buf[c.size:]
		out = append(out, audio.Frame{
			Data:              data,
			SampleRate:        c.rate,
			SamplesPerChannel: c.rate / 100,
			NumChannels:       c.channels,
			Timestamp:         c.ts,
		})
		c.ts += audio.FrameDuration
	}
	return out
}
