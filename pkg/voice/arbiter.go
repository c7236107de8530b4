// Package voice owns the two physical resources of the assistant: the
// speaker, through a single-output Arbiter, and the microphone, through a
// single-attempt Capture session.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chriscow/memora/pkg/ai"
	"github.com/chriscow/memora/pkg/ai/tts"
	"github.com/chriscow/memora/pkg/audio"
)

const (
	// DefaultSafetyTimeout bounds how long a playback may go without ending.
	DefaultSafetyTimeout = 30 * time.Second
	// DefaultFallbackDelay is the pause before trying the next synthesis provider.
	DefaultFallbackDelay = 500 * time.Millisecond
	// FastRate is the playback rate used for short prompts.
	FastRate = 1.2

	stopGrace = 2 * time.Second
)

// Request is one unit of output: a prerecorded clip or text to synthesize.
type Request struct {
	ClipKey string
	Rate    float64
	Text    string
}

// Clip requests a prerecorded clip at normal speed.
func Clip(key string) Request { return Request{ClipKey: key, Rate: 1} }

// FastClip requests a prerecorded clip at FastRate.
func FastClip(key string) Request { return Request{ClipKey: key, Rate: FastRate} }

// Say requests synthesized speech.
func Say(text string) Request { return Request{Text: text} }

func (r Request) String() string {
	if r.Text != "" {
		return fmt.Sprintf("say(%q)", r.Text)
	}
	return fmt.Sprintf("clip(%s@%.1f)", r.ClipKey, r.Rate)
}

// EndReason says why a request completed.
type EndReason int

const (
	ReasonEnded   EndReason = iota // played to the end
	ReasonStopped                  // preempted or stopped
	ReasonTimeout                  // safety timeout fired
	ReasonMissing                  // unknown clip key, nothing played
	ReasonFailed                   // could not play
)

func (r EndReason) String() string {
	switch r {
	case ReasonEnded:
		return "ended"
	case ReasonStopped:
		return "stopped"
	case ReasonTimeout:
		return "timeout"
	case ReasonMissing:
		return "missing"
	case ReasonFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Completion is delivered exactly once per request.
type Completion struct {
	Request  Request
	Reason   EndReason
	Provider string // synthesis provider that played, if any
	Err      error  // set when Reason is ReasonFailed
}

// ClipSource resolves clip keys to audio.
type ClipSource interface {
	// Clip returns the frames for key. ok is false for unknown keys.
	Clip(key string) (frames []audio.Frame, ok bool, err error)
}

// Provider is a synthesis provider with its time-to-first-audio limit.
// A zero Timeout means no limit.
type Provider struct {
	TTS     tts.TTS
	Timeout time.Duration
}

// ArbiterConfig configures an Arbiter.
type ArbiterConfig struct {
	Speaker   audio.Speaker
	Clips     ClipSource
	Providers []Provider // priority order

	Voice    string
	Language string
	Speed    float32
	Pitch    float32

	FallbackDelay time.Duration
	SafetyTimeout time.Duration

	Gate   AudioGate
	Logger *slog.Logger

	// OnFallback is called whenever a provider fails and the next one is tried.
	OnFallback func(provider string, err error)
}

// Arbiter serializes all output through one speaker. Starting a request
// stops the current one and waits for it to release the speaker.
type Arbiter struct {
	cfg ArbiterConfig
	log *slog.Logger

	mu      sync.Mutex
	current *playback
	seq     uint64
}

type playback struct {
	id      uint64
	req     Request
	cancel  context.CancelFunc
	done    chan struct{}
	stopped atomic.Bool
	playing atomic.Bool
}

// NewArbiter validates cfg and creates an Arbiter.
func NewArbiter(cfg ArbiterConfig) (*Arbiter, error) {
	if cfg.Speaker == nil {
		return nil, fmt.Errorf("speaker is required")
	}
	if cfg.SafetyTimeout <= 0 {
		cfg.SafetyTimeout = DefaultSafetyTimeout
	}
	if cfg.FallbackDelay < 0 {
		cfg.FallbackDelay = 0
	}
	if cfg.Gate == nil {
		cfg.Gate = NewAudioGate(0)
	}
	if cfg.Language == "" {
		cfg.Language = "pt-BR"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Arbiter{cfg: cfg, log: cfg.Logger.With("component", "arbiter")}, nil
}

// Gate returns the gate the arbiter keeps up to date.
func (a *Arbiter) Gate() AudioGate { return a.cfg.Gate }

// Play starts req, preempting whatever is playing. The returned channel
// receives one Completion and is then closed.
func (a *Arbiter) Play(ctx context.Context, req Request) <-chan Completion {
	a.mu.Lock()
	prev := a.current
	if prev != nil {
		prev.stopped.Store(true)
		prev.cancel()
	}
	a.seq++
	pctx, cancel := context.WithCancel(ctx)
	p := &playback{id: a.seq, req: req, cancel: cancel, done: make(chan struct{})}
	a.current = p
	a.mu.Unlock()

	out := make(chan Completion, 1)
	go func() {
		defer close(p.done)
		defer close(out)
		defer cancel()

		if prev != nil {
			<-prev.done
		}
		c := a.run(pctx, p)
		c.Request = req
		a.release(p)
		a.log.Debug("playback complete", "id", p.id, "request", req.String(), "reason", c.Reason.String(), "provider", c.Provider)
		out <- c
	}()
	return out
}

// PlayAndWait plays req and blocks until it completes.
func (a *Arbiter) PlayAndWait(ctx context.Context, req Request) Completion {
	return <-a.Play(ctx, req)
}

// StopCurrent stops the current request, if any.
func (a *Arbiter) StopCurrent() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		a.current.stopped.Store(true)
		a.current.cancel()
	}
}

// IsPlaying reports whether audio is coming out of the speaker.
func (a *Arbiter) IsPlaying() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current != nil && a.current.playing.Load()
}

func (a *Arbiter) release(p *playback) {
	p.playing.Store(false)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == p {
		a.current = nil
	}
	if a.current == nil || !a.current.playing.Load() {
		a.cfg.Gate.SetTTSPlaying(false)
	}
}

func (a *Arbiter) run(ctx context.Context, p *playback) Completion {
	if ctx.Err() != nil {
		return Completion{Reason: ReasonStopped}
	}
	if p.req.Text != "" {
		return a.speak(ctx, p)
	}

	if a.cfg.Clips == nil {
		return Completion{Reason: ReasonMissing}
	}
	frames, ok, err := a.cfg.Clips.Clip(p.req.ClipKey)
	if !ok {
		a.log.Debug("unknown clip", "key", p.req.ClipKey)
		return Completion{Reason: ReasonMissing}
	}
	if err != nil {
		return Completion{Reason: ReasonFailed, Err: fmt.Errorf("load clip %s: %w", p.req.ClipKey, err)}
	}
	rate := p.req.Rate
	if rate <= 0 {
		rate = 1
	}
	return a.playFrames(ctx, p, audio.Stream(frames), rate)
}

func (a *Arbiter) playFrames(ctx context.Context, p *playback, frames <-chan audio.Frame, rate float64) Completion {
	done, err := a.cfg.Speaker.Play(ctx, frames, rate)
	if err != nil {
		return Completion{Reason: ReasonFailed, Err: fmt.Errorf("start playback: %w", err)}
	}
	p.playing.Store(true)
	a.cfg.Gate.SetTTSPlaying(true)

	safety := time.NewTimer(a.cfg.SafetyTimeout)
	defer safety.Stop()

	select {
	case err, ok := <-done:
		if ok && err != nil {
			a.drain(done)
			return Completion{Reason: ReasonFailed, Err: err}
		}
		return Completion{Reason: ReasonEnded}
	case <-ctx.Done():
		a.drain(done)
		return Completion{Reason: ReasonStopped}
	case <-safety.C:
		a.log.Warn("playback never ended, giving up", "request", p.req.String(), "timeout", a.cfg.SafetyTimeout)
		p.cancel()
		a.drain(done)
		return Completion{Reason: ReasonTimeout}
	}
}

// drain waits for the speaker to let go of the device.
func (a *Arbiter) drain(done <-chan error) {
	t := time.NewTimer(stopGrace)
	defer t.Stop()
	for {
		select {
		case _, ok := <-done:
			if !ok {
				return
			}
		case <-t.C:
			a.log.Warn("speaker did not stop in time")
			return
		}
	}
}

func (a *Arbiter) speak(ctx context.Context, p *playback) Completion {
	req := tts.SynthesizeRequest{
		Text:     p.req.Text,
		Voice:    a.cfg.Voice,
		Language: a.cfg.Language,
		Speed:    a.cfg.Speed,
		Pitch:    a.cfg.Pitch,
	}

	var errs []error
	for i, prov := range a.cfg.Providers {
		if i > 0 && a.cfg.FallbackDelay > 0 {
			select {
			case <-time.After(a.cfg.FallbackDelay):
			case <-ctx.Done():
				return Completion{Reason: ReasonStopped}
			}
		}

		frames, err := a.attempt(ctx, prov, req)
		if err != nil {
			if ctx.Err() != nil {
				return Completion{Reason: ReasonStopped}
			}
			name := prov.TTS.Name()
			a.log.Warn("synthesis provider failed", "provider", name, "error", err)
			if a.cfg.OnFallback != nil {
				a.cfg.OnFallback(name, err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		c := a.playFrames(ctx, p, frames, 1)
		c.Provider = prov.TTS.Name()
		return c
	}

	err := ai.ErrSynthesisProviderFailure
	if len(errs) > 0 {
		err = fmt.Errorf("%w: %w", ai.ErrSynthesisProviderFailure, errors.Join(errs...))
	}
	return Completion{Reason: ReasonFailed, Err: err}
}

var errNoAudio = errors.New("provider produced no audio")

// attempt races one provider against its timeout. It succeeds once the first
// frame is available and returns a stream that starts with it.
func (a *Arbiter) attempt(ctx context.Context, prov Provider, req tts.SynthesizeRequest) (<-chan audio.Frame, error) {
	actx, cancel := context.WithCancel(ctx)

	var timeout <-chan time.Time
	if prov.Timeout > 0 {
		t := time.NewTimer(prov.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	type result struct {
		frames <-chan audio.Frame
		err    error
	}
	started := make(chan result, 1)
	go func() {
		frames, err := prov.TTS.Synthesize(actx, req)
		started <- result{frames, err}
	}()

	var src <-chan audio.Frame
	select {
	case r := <-started:
		if r.err != nil {
			cancel()
			return nil, r.err
		}
		src = r.frames
	case <-timeout:
		cancel()
		return nil, fmt.Errorf("no audio within %s: %w", prov.Timeout, context.DeadlineExceeded)
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	var first audio.Frame
	select {
	case f, ok := <-src:
		if !ok {
			cancel()
			return nil, errNoAudio
		}
		first = f
	case <-timeout:
		cancel()
		return nil, fmt.Errorf("no audio within %s: %w", prov.Timeout, context.DeadlineExceeded)
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	out := make(chan audio.Frame, 16)
	go func() {
		defer cancel()
		defer close(out)
		select {
		case out <- first:
		case <-actx.Done():
			return
		}
		for {
			select {
			case f, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- f:
				case <-actx.Done():
					return
				}
			case <-actx.Done():
				return
			}
		}
	}()
	return out, nil
}
