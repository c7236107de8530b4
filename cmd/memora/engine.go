package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chriscow/memora/internal/announce"
	"github.com/chriscow/memora/internal/bridge"
	"github.com/chriscow/memora/internal/store/httpstore"
	"github.com/chriscow/memora/internal/store/sqlite"
	"github.com/chriscow/memora/pkg/agent"
	"github.com/chriscow/memora/pkg/ai/stt"
	"github.com/chriscow/memora/pkg/audio"
	"github.com/chriscow/memora/pkg/audio/clips"
	"github.com/chriscow/memora/pkg/plugin"
	"github.com/chriscow/memora/pkg/reminder"
	"github.com/chriscow/memora/pkg/reminder/memory"
	"github.com/chriscow/memora/pkg/voice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// devices are the pieces that differ between the voice and terminal modes.
type devices struct {
	mic       audio.Microphone
	speaker   audio.Speaker
	stt       stt.STT
	providers []voice.Provider
	clips     voice.ClipSource
}

// openStore returns the configured reminder store and a function releasing it.
func (a *app) openStore() (reminder.Store, func(), error) {
	switch a.cfg.Store.Backend {
	case "memory":
		return memory.New(), func() {}, nil
	case "http":
		return httpstore.New(a.cfg.Store.URL, a.cfg.Store.Timeout), func() {}, nil
	default:
		s, err := sqlite.Open(a.cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				a.logger.Warn("closing reminder database", "error", err)
			}
		}, nil
	}
}

// synthesizers builds the synthesis fallback chain. Providers that cannot be
// built are skipped.
func (a *app) synthesizers() ([]voice.Provider, error) {
	var out []voice.Provider
	var errs []error
	for _, p := range a.cfg.TTS.Providers {
		t, err := plugin.NewTTS(p.Name, p.Options)
		if err != nil {
			a.logger.Warn("synthesis provider unavailable", "provider", p.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		out = append(out, voice.Provider{TTS: t, Timeout: p.Timeout})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no synthesis provider could be built: %w", errors.Join(errs...))
	}
	return out, nil
}

func (a *app) clipLibrary() (*clips.Library, error) {
	m, err := clips.LoadManifest(a.cfg.Clips.Manifest, clips.Manifest{Dir: a.cfg.Clips.Dir, Clips: agent.ClipFiles})
	if err != nil {
		return nil, err
	}
	return clips.New(m, a.logger), nil
}

// buildAgent wires the output arbiter, the capture session and the dialogue
// engine around d.
func (a *app) buildAgent(d devices, store reminder.Store, metrics *agent.Metrics) (*agent.Agent, *voice.Arbiter, error) {
	cfg := a.cfg
	arb, err := voice.NewArbiter(voice.ArbiterConfig{
		Speaker:       d.speaker,
		Clips:         d.clips,
		Providers:     d.providers,
		Voice:         cfg.TTS.Voice,
		Language:      cfg.Audio.Language,
		Speed:         float32(cfg.TTS.Speed),
		Pitch:         float32(cfg.TTS.Pitch),
		FallbackDelay: cfg.TTS.FallbackDelay,
		SafetyTimeout: cfg.TTS.SafetyTimeout,
		Logger:        a.logger,
		OnFallback:    metrics.ObserveFallback,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("output arbiter: %w", err)
	}

	capture, err := voice.NewCapture(voice.CaptureConfig{
		Microphone:   d.mic,
		STT:          d.stt,
		Language:     cfg.Audio.Language,
		SampleRate:   cfg.Audio.SampleRate,
		MaxRecording: cfg.Audio.MaxRecording,
		FlushTimeout: cfg.Audio.FlushTimeout,
		StartDelay:   cfg.Audio.StartDelay,
		Logger:       a.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("capture session: %w", err)
	}

	ag, err := agent.New(agent.Config{
		Output:   arb,
		Listener: capture,
		Store:    store,
		Delays: agent.Delays{
			Prompt: cfg.Dialogue.PromptDelay,
			Field:  cfg.Dialogue.FieldDelay,
			Retry:  cfg.Dialogue.RetryDelay,
			Cue:    cfg.Dialogue.CueDelay,
		},
		DedupMinLength:    cfg.Dialogue.DedupMinLength,
		DedupMaxExtra:     cfg.Dialogue.DedupMaxExtra,
		SpeakMissingClips: cfg.Dialogue.SpeakMissingClips,
		SkipWelcome:       cfg.Dialogue.SkipWelcome,
		Metrics:           metrics,
		Logger:            a.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return ag, arb, nil
}

// newMetrics registers the engine collectors, plus the Go runtime ones, on a
// fresh registry.
func newMetrics() (*agent.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return agent.NewMetrics(reg), reg
}

// serve runs the engine and its optional companions (host bridge,
// announcement schedule, metrics endpoint) until ctx is done.
func (a *app) serve(ctx context.Context, ag *agent.Agent, store reminder.Store, reg *prometheus.Registry) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	goRun := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error(name+" stopped", "error", err)
			}
		}()
	}

	if url := a.cfg.Bridge.URL; url != "" {
		b := bridge.New(bridge.Config{URL: url, Token: a.cfg.Bridge.Token}, ag, a.logger)
		goRun("bridge", b.Run)
	}
	if a.cfg.Announce.Enabled {
		s, err := announce.New(a.cfg.Announce.Schedule, store, ag, a.logger)
		if err != nil {
			return err
		}
		goRun("announce", s.Run)
	}
	if addr := a.cfg.Metrics.Addr; addr != "" && reg != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		goRun("metrics", func(ctx context.Context) error {
			go func() {
				<-ctx.Done()
				shutdown, done := context.WithTimeout(context.Background(), 2*time.Second)
				defer done()
				_ = srv.Shutdown(shutdown)
			}()
			a.logger.Info("serving metrics", "addr", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	err := ag.Run(ctx)
	cancel()
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
