package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chriscow/memora/pkg/audio"
	"github.com/gen2brain/malgo"
)

var errNoAudio = errors.New("no audio to play")

type speaker struct {
	c *Client
}

// Play opens a playback device at the format of the first frame, so clips
// and synthesized speech keep their native rate. The device is released when
// the queue drains or ctx is cancelled.
func (s *speaker) Play(ctx context.Context, frames <-chan audio.Frame, rate float64) (<-chan error, error) {
	var first audio.Frame
	select {
	case f, ok := <-frames:
		if !ok {
			return nil, errNoAudio
		}
		first = f
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	mctx, err := s.c.context()
	if err != nil {
		return nil, err
	}
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.SampleRate = uint32(first.SampleRate)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(first.NumChannels)
	cfg.Alsa.NoMMap = 1
	cfg.PeriodSizeInFrames = uint32(first.SampleRate / 20)
	cfg.Periods = 4

	q := newQueue()
	q.push(audio.Speed(first, rate).Data)

	dev, err := malgo.InitDevice(mctx, cfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) { q.pull(out) },
	})
	if err != nil {
		return nil, fmt.Errorf("init playback device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("start playback device: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		defer close(done)
		defer dev.Uninit()
	feed:
		for {
			select {
			case f, ok := <-frames:
				if !ok {
					break feed
				}
				q.push(audio.Speed(f, rate).Data)
			case <-ctx.Done():
				return
			}
		}
		q.finish()
		select {
		case <-q.drained:
		case <-ctx.Done():
		}
	}()
	return done, nil
}

// queue hands PCM to the audio thread and reports when the last byte has
// been consumed after finish.
type queue struct {
	mu       sync.Mutex
	buf      []byte
	finished bool
	once     sync.Once
	drained  chan struct{}
}

func newQueue() *queue {
	return &queue{drained: make(chan struct{})}
}

func (q *queue) push(pcm []byte) {
	q.mu.Lock()
	q.buf = append(q.buf, pcm...)
	q.mu.Unlock()
}

func (q *queue) finish() {
	q.mu.Lock()
	q.finished = true
	empty := len(q.buf) == 0
	q.mu.Unlock()
	if empty {
		q.once.Do(func() { close(q.drained) })
	}
}

// pull fills out, padding with silence when the queue runs dry.
func (q *queue) pull(out []byte) int {
	q.mu.Lock()
	n := copy(out, q.buf)
	q.buf = q.buf[n:]
	done := q.finished && len(q.buf) == 0
	q.mu.Unlock()

	clear(out[n:])
	if done {
		q.once.Do(func() { close(q.drained) })
	}
	return n
}
