package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chriscow/memora/pkg/agent"
	"github.com/chriscow/memora/pkg/audio"
	"github.com/chriscow/memora/pkg/audio/miniaudio"
	"github.com/chriscow/memora/pkg/plugin"
	"github.com/chriscow/memora/pkg/plugin/console"
	"github.com/chriscow/memora/pkg/version"
	"github.com/chriscow/memora/pkg/voice"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the assistant on the default microphone and speaker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return a.run(ctx)
		},
	}
	cmd.Flags().String("bridge-url", "", "Host UI WebSocket URL")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	_ = a.v.BindPFlag("bridge.url", cmd.Flags().Lookup("bridge-url"))
	_ = a.v.BindPFlag("metrics.addr", cmd.Flags().Lookup("metrics-addr"))
	return cmd
}

func (a *app) run(ctx context.Context) error {
	cfg := a.cfg
	a.logger.Info("starting memora",
		"version", version.Version,
		"stt", cfg.STT.Provider,
		"store", cfg.Store.Backend)

	client, err := miniaudio.NewClient(miniaudio.Config{SampleRate: cfg.Audio.SampleRate, Logger: a.logger})
	if err != nil {
		return err
	}
	defer client.Close()

	rec, err := plugin.NewSTT(cfg.STT.Provider, cfg.STT.Options)
	if err != nil {
		return err
	}
	providers, err := a.synthesizers()
	if err != nil {
		return err
	}
	lib, err := a.clipLibrary()
	if err != nil {
		return err
	}
	if problems := lib.Check(); len(problems) > 0 {
		a.logger.Warn("some prompt clips cannot be played", "count", len(problems))
	}
	if cfg.Clips.Watch {
		go func() {
			if err := lib.Watch(ctx); err != nil {
				a.logger.Warn("clip watcher stopped", "error", err)
			}
		}()
	}

	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	metrics, reg := newMetrics()
	ag, _, err := a.buildAgent(devices{
		mic:       client.Microphone(),
		speaker:   client.Speaker(),
		stt:       rec,
		providers: providers,
		clips:     lib,
	}, store, metrics)
	if err != nil {
		return err
	}
	return a.serve(ctx, ag, store, reg)
}

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Drive the dialogue from the terminal: type what you would say",
		Long: `chat runs the full dialogue engine with typed input in place of the
microphone and printed text in place of the speaker. It ends at end of input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return a.chat(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (a *app) chat(ctx context.Context, in io.Reader, out io.Writer) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	rec := console.New(in, out, "> ")
	a.cfg.Dialogue.SpeakMissingClips = true
	metrics, _ := newMetrics()
	ag, arb, err := a.buildAgent(devices{
		mic:       audio.Silence{SampleRate: a.cfg.Audio.SampleRate},
		speaker:   audio.Discard{},
		stt:       rec,
		providers: []voice.Provider{{TTS: console.NewPrinter(out, "memora: ")}},
	}, store, metrics)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- a.serve(ctx, ag, store, nil) }()

	converse(ctx, ag, arb.IsPlaying, rec.Done(), out)
	cancel()
	return <-errc
}

// chatEngine is what the terminal loop needs from the dialogue engine.
type chatEngine interface {
	Snapshot() agent.Snapshot
	Subscribe() (<-chan struct{}, func())
	ToggleRecording()
}

const settle = 150 * time.Millisecond

// converse keeps the engine listening whenever it comes to rest, which is
// what tapping the microphone does in the voice UI. Feedback changes are
// printed. It returns once input is exhausted and the engine is at rest.
func converse(ctx context.Context, e chatEngine, playing func() bool, eof <-chan struct{}, out io.Writer) {
	changes, unsubscribe := e.Subscribe()
	defer unsubscribe()

	timer := time.NewTimer(settle)
	defer timer.Stop()

	var lastFeedback string
	ended := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			snap := e.Snapshot()
			if f := snap.Feedback; f != nil && f.Type != agent.FeedbackInfo && f.Message != lastFeedback {
				fmt.Fprintf(out, "[%s] %s\n", f.Type, f.Message)
				lastFeedback = f.Message
			} else if f == nil {
				lastFeedback = ""
			}
			timer.Reset(settle)
		case <-eof:
			eof = nil
			ended = true
			timer.Reset(settle)
		case <-timer.C:
			snap := e.Snapshot()
			if snap.Status != agent.StatusReady || snap.Recording || playing() {
				continue
			}
			if ended {
				return
			}
			e.ToggleRecording()
		}
	}
}
