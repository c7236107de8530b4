package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chriscow/memora/pkg/ai"
	"github.com/chriscow/memora/pkg/ai/stt"
	"github.com/chriscow/memora/pkg/audio"
	"github.com/google/uuid"
)

const (
	// DefaultMaxRecording is the hard ceiling on one recognition attempt.
	DefaultMaxRecording = 30 * time.Second
	// DefaultFlushTimeout is how long a force-stopped engine may take to
	// deliver its last result.
	DefaultFlushTimeout = 2 * time.Second
)

// ErrAttemptLive is returned by Start when an attempt is already running.
// Callers treat it as a no-op.
var ErrAttemptLive = errors.New("recognition attempt already live")

// Token identifies one recognition attempt.
type Token string

// Utterance is one final transcript.
type Utterance struct {
	Text            string
	CapturedAt      time.Time
	ListenStartedAt time.Time
	Token           Token
}

// CaptureConfig configures a Capture.
type CaptureConfig struct {
	Microphone audio.Microphone
	STT        stt.STT

	Language    string
	SampleRate  int
	NumChannels int

	MaxRecording time.Duration
	FlushTimeout time.Duration
	// StartDelay lets the device settle before recognition begins.
	StartDelay time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Capture owns the microphone and at most one recognition attempt.
type Capture struct {
	cfg CaptureConfig
	log *slog.Logger

	permOnce sync.Once
	permErr  error

	mu     sync.Mutex
	stream audio.MicStream
	live   *attempt
}

type attempt struct {
	token   Token
	started time.Time
	cancel  context.CancelFunc
	stt     stt.STTStream
}

// NewCapture validates cfg and creates a Capture.
func NewCapture(cfg CaptureConfig) (*Capture, error) {
	if cfg.Microphone == nil {
		return nil, fmt.Errorf("microphone is required")
	}
	if cfg.STT == nil {
		return nil, fmt.Errorf("STT is required")
	}
	if cfg.Language == "" {
		cfg.Language = "pt-BR"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.NumChannels == 0 {
		cfg.NumChannels = 1
	}
	if cfg.MaxRecording <= 0 {
		cfg.MaxRecording = DefaultMaxRecording
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultFlushTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Capture{cfg: cfg, log: cfg.Logger.With("component", "capture")}, nil
}

// EnsurePermission acquires the microphone once per process and caches the
// outcome. It returns false only when access was refused; other device
// failures surface from Start.
func (c *Capture) EnsurePermission(ctx context.Context) bool {
	c.permOnce.Do(func() {
		s, err := c.cfg.Microphone.Open(ctx)
		if err != nil {
			if errors.Is(err, audio.ErrPermission) {
				c.permErr = fmt.Errorf("%w: %v", ai.ErrPermissionDenied, err)
				c.log.Warn("microphone permission denied", "error", err)
				return
			}
			c.log.Warn("microphone not available yet", "error", err)
			return
		}
		c.mu.Lock()
		if c.stream == nil {
			c.stream = s
		} else {
			s.Close()
		}
		c.mu.Unlock()
	})
	return c.permErr == nil
}

// IsLive reports whether an attempt is running.
func (c *Capture) IsLive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live != nil
}

// Start runs one recognition attempt and blocks until it produces a final
// transcript or ends. If another attempt is live it returns ErrAttemptLive
// without disturbing it.
func (c *Capture) Start(ctx context.Context) (Utterance, error) {
	c.mu.Lock()
	if c.live != nil {
		c.mu.Unlock()
		c.log.Info("recognition already live, ignoring start")
		return Utterance{}, ErrAttemptLive
	}
	actx, cancel := context.WithCancel(ctx)
	at := &attempt{token: Token(uuid.NewString()), started: c.cfg.Now(), cancel: cancel}
	c.live = at
	c.mu.Unlock()

	stream, err := c.acquire(actx, at)
	if err != nil {
		return c.finish(at, Utterance{}, err)
	}

	if c.cfg.StartDelay > 0 {
		select {
		case <-time.After(c.cfg.StartDelay):
		case <-actx.Done():
			return c.finish(at, Utterance{}, ai.ErrRecognitionAborted)
		}
	}

	rec, err := c.cfg.STT.NewStream(actx, stt.StreamConfig{
		SampleRate:      c.cfg.SampleRate,
		NumChannels:     c.cfg.NumChannels,
		Lang:            c.cfg.Language,
		SingleUtterance: true,
	})
	if err != nil {
		return c.finish(at, Utterance{}, fmt.Errorf("open recognition stream: %w", err))
	}
	c.mu.Lock()
	if c.live == at {
		at.stt = rec
	}
	c.mu.Unlock()

	c.log.Debug("recognition started", "token", at.token)
	go c.feed(actx, stream, rec)
	return c.await(actx, at, rec)
}

// acquire reuses the open microphone stream if it is still active.
func (c *Capture) acquire(ctx context.Context, at *attempt) (audio.MicStream, error) {
	c.mu.Lock()
	s := c.stream
	c.mu.Unlock()
	if s != nil && s.Active() {
		return s, nil
	}
	if s != nil {
		s.Close()
	}

	s, err := c.cfg.Microphone.Open(ctx)
	if err != nil {
		if errors.Is(err, audio.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ai.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("%w: %v", ai.ErrDeviceUnavailable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live != at {
		s.Close()
		return nil, ai.ErrRecognitionAborted
	}
	c.stream = s
	return s, nil
}

// feed copies microphone frames into the recognizer. Frames buffered before
// the attempt started are dropped so the engine never hears stale audio.
func (c *Capture) feed(ctx context.Context, s audio.MicStream, rec stt.STTStream) {
	frames := s.Frames()
drain:
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				rec.CloseSend()
				return
			}
		default:
			break drain
		}
	}
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				rec.CloseSend()
				return
			}
			if err := rec.Push(f); err != nil {
				c.log.Debug("recognizer rejected frame", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Capture) await(ctx context.Context, at *attempt, rec stt.STTStream) (Utterance, error) {
	ceiling := time.NewTimer(c.cfg.MaxRecording)
	defer ceiling.Stop()
	var flush <-chan time.Time

	events := rec.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return c.finish(at, Utterance{}, ai.ErrNoSpeechDetected)
			}
			switch ev.Type {
			case stt.SpeechEventFinal:
				text := strings.TrimSpace(ev.Text)
				if text == "" {
					return c.finish(at, Utterance{}, ai.ErrNoSpeechDetected)
				}
				return c.finish(at, Utterance{
					Text:            text,
					CapturedAt:      c.cfg.Now(),
					ListenStartedAt: at.started,
					Token:           at.token,
				}, nil)
			case stt.SpeechEventError:
				return c.finish(at, Utterance{}, ev.Error)
			case stt.SpeechEventEnd:
				return c.finish(at, Utterance{}, ai.ErrNoSpeechDetected)
			}
		case <-ceiling.C:
			c.log.Info("maximum recording time reached, stopping", "token", at.token, "max", c.cfg.MaxRecording)
			if err := rec.CloseSend(); err != nil {
				c.log.Warn("recognizer close failed", "error", err)
			}
			t := time.NewTimer(c.cfg.FlushTimeout)
			defer t.Stop()
			flush = t.C
		case <-flush:
			return c.finish(at, Utterance{}, ai.ErrNoSpeechDetected)
		case <-ctx.Done():
			return c.finish(at, Utterance{}, ai.ErrRecognitionAborted)
		}
	}
}

// finish ends at. If at was invalidated by Stop or Abort in the meantime,
// whatever it produced is discarded.
func (c *Capture) finish(at *attempt, u Utterance, err error) (Utterance, error) {
	c.mu.Lock()
	stale := c.live != at
	if !stale {
		c.live = nil
	}
	c.mu.Unlock()
	at.cancel()

	if stale {
		return Utterance{}, ai.ErrRecognitionAborted
	}
	if err != nil {
		c.log.Debug("recognition ended", "token", at.token, "error", err)
	}
	return u, err
}

// Stop ends the live attempt, if any, and releases the microphone.
func (c *Capture) Stop() {
	c.mu.Lock()
	at := c.live
	c.live = nil
	s := c.stream
	c.stream = nil
	c.mu.Unlock()

	c.teardown(at)
	if s != nil {
		if err := s.Close(); err != nil {
			c.log.Warn("microphone close failed", "error", err)
		}
	}
}

// Abort ends the live attempt, if any, keeping the microphone open for the
// next one.
func (c *Capture) Abort() {
	c.mu.Lock()
	at := c.live
	c.live = nil
	c.mu.Unlock()

	c.teardown(at)
}

func (c *Capture) teardown(at *attempt) {
	if at == nil {
		return
	}
	if at.stt != nil {
		if err := at.stt.CloseSend(); err != nil {
			c.log.Warn("recognizer teardown failed", "token", at.token, "error", err)
		}
	}
	at.cancel()
}
