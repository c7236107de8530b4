// Package bridge connects the engine to a host UI over a WebSocket. The host
// sends signals (toggle, typed text, delete flow, speak); the bridge answers
// with engine snapshots whenever they change.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/chriscow/memora/pkg/agent"
)

// Signal types sent by the host.
const (
	SignalPing          = "ping"
	SignalToggle        = "toggle"
	SignalSubmit        = "submit"
	SignalDelete        = "delete"
	SignalConfirmDelete = "confirmDelete"
	SignalCancelDelete  = "cancelDelete"
	SignalSpeak         = "speak"
	SignalReload        = "reload"
)

// Command types sent to the host.
const (
	CommandPong     = "pong"
	CommandSnapshot = "snapshot"
)

// Engine is the part of the dialogue engine the host drives.
type Engine interface {
	ToggleRecording()
	Submit(text string)
	RequestDelete(name string)
	ConfirmDelete()
	CancelDelete()
	SpeakReminder(id string)
	Reload()
	Snapshot() agent.Snapshot
	Subscribe() (<-chan struct{}, func())
}

type Config struct {
	URL   string
	Token string
}

// Bridge keeps a connection to the host open, reconnecting with backoff.
type Bridge struct {
	url    string
	engine Engine
	client *WebSocketClient
	logger *slog.Logger

	mu             sync.RWMutex
	connected      bool
	backoffAttempt int
}

func New(cfg Config, engine Engine, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bridge")
	return &Bridge{
		url:    cfg.URL,
		engine: engine,
		client: NewWebSocketClient(cfg.URL, cfg.Token, logger),
		logger: logger,
	}
}

// Run serves the host until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("starting bridge", "url", b.url)
	for {
		if err := b.connectAndRun(ctx); err != nil {
			b.logger.Error("bridge connection failed", "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if err := b.backoffDelay(ctx); err != nil {
			return nil
		}
	}
}

func (b *Bridge) connectAndRun(ctx context.Context) error {
	if err := b.client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		if err := b.client.Close(); err != nil {
			b.logger.Debug("error closing websocket", "error", err)
		}
	}()

	b.setConnected(true)
	defer b.setConnected(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes, unsubscribe := b.engine.Subscribe()
	defer unsubscribe()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := b.readSignals(ctx); err != nil {
			errCh <- fmt.Errorf("read signals: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := b.pushSnapshots(ctx, changes); err != nil {
			errCh <- fmt.Errorf("push snapshots: %w", err)
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
	}
	cancel()
	// Closing the socket unblocks the reader.
	_ = b.client.Close()
	wg.Wait()
	return err
}

func (b *Bridge) readSignals(ctx context.Context) error {
	for {
		s, err := b.client.ReadSignal()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.handleSignal(s)
	}
}

// pushSnapshots sends the current snapshot at once and again after every
// change.
func (b *Bridge) pushSnapshots(ctx context.Context, changes <-chan struct{}) error {
	for {
		if err := b.client.WriteCommand(&Command{Type: CommandSnapshot, Data: b.engine.Snapshot()}); err != nil {
			return err
		}
		select {
		case <-changes:
		case <-ctx.Done():
			return nil
		}
	}
}

func (b *Bridge) handleSignal(s *Signal) {
	str := func(key string) string {
		v, _ := s.Data[key].(string)
		return v
	}

	switch s.Type {
	case SignalPing:
		if err := b.client.WriteCommand(&Command{Type: CommandPong, Data: s.Data}); err != nil {
			b.logger.Debug("pong failed", "error", err)
		}
	case SignalToggle:
		b.engine.ToggleRecording()
	case SignalSubmit:
		if text := str("text"); text != "" {
			b.engine.Submit(text)
		}
	case SignalDelete:
		if name := str("name"); name != "" {
			b.engine.RequestDelete(name)
		}
	case SignalConfirmDelete:
		b.engine.ConfirmDelete()
	case SignalCancelDelete:
		b.engine.CancelDelete()
	case SignalSpeak:
		b.engine.SpeakReminder(str("id"))
	case SignalReload:
		b.engine.Reload()
	default:
		b.logger.Warn("unknown signal type", "type", s.Type)
	}
}

func (b *Bridge) backoffDelay(ctx context.Context) error {
	b.mu.Lock()
	b.backoffAttempt++
	attempt := b.backoffAttempt
	b.mu.Unlock()

	delay := backoffFor(attempt)
	b.logger.Info("reconnecting", "attempt", attempt, "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// backoffFor returns 1s, 2s, 4s, 8s, then 10s.
func backoffFor(attempt int) time.Duration {
	return time.Duration(math.Min(math.Pow(2, float64(attempt-1)), 10)) * time.Second
}

func (b *Bridge) setConnected(connected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if connected && !b.connected {
		b.backoffAttempt = 0
	}
	b.connected = connected
}

func (b *Bridge) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}
