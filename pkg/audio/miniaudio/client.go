// Package miniaudio implements the microphone and speaker on top of
// miniaudio through malgo.
package miniaudio

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chriscow/memora/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Config selects the capture format.
type Config struct {
	SampleRate  int // default 16000
	NumChannels int // default 1
	Logger      *slog.Logger
}

// Client owns the miniaudio context shared by the microphone and speaker.
type Client struct {
	cfg Config
	log *slog.Logger

	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// NewClient initializes the audio backend.
func NewClient(cfg Config) (*Client, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.NumChannels == 0 {
		cfg.NumChannels = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	log := cfg.Logger.With("component", "miniaudio")

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		log.Debug("malgo", "message", strings.TrimSpace(msg))
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Client{cfg: cfg, log: log, ctx: ctx}, nil
}

// Close releases the backend. Devices must be closed first.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return nil
	}
	err := c.ctx.Uninit()
	c.ctx.Free()
	c.ctx = nil
	return err
}

// Microphone returns the capture side.
func (c *Client) Microphone() audio.Microphone { return &microphone{c: c} }

// Speaker returns the playback side.
func (c *Client) Speaker() audio.Speaker { return &speaker{c: c} }

func (c *Client) context() (malgo.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return malgo.Context{}, fmt.Errorf("audio client closed")
	}
	return c.ctx.Context, nil
}

// permissionDenied recognizes the backend's access errors, which malgo only
// exposes as result text.
func permissionDenied(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "access denied") || strings.Contains(s, "permission")
}
