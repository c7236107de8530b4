// Package openai provides speech recognition through Whisper and speech
// synthesis through the OpenAI audio API.
package openai

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/chriscow/memora/pkg/ai"
	"github.com/chriscow/memora/pkg/plugin"
	openai "github.com/sashabaranov/go-openai"
)

// Config holds the settings shared by both providers.
type Config struct {
	APIKey  string
	BaseURL string // optional, for proxies and tests

	// Model defaults to whisper-1 for recognition and tts-1 for synthesis.
	Model string
	// Voice is the synthesis voice, default nova.
	Voice string
	// Language is the ISO-639-1 hint sent to Whisper. Derived from the
	// stream language when empty.
	Language string
	// Timeout bounds each API call.
	Timeout time.Duration
}

func newClient(cfg Config) (*openai.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY or api_key)")
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(cc), nil
}

// configFrom reads a provider section. The key falls back to OPENAI_API_KEY.
func configFrom(m map[string]any) Config {
	cfg := Config{
		APIKey:   str(m, "api_key"),
		BaseURL:  str(m, "base_url"),
		Model:    str(m, "model"),
		Voice:    str(m, "voice"),
		Language: str(m, "language"),
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	switch v := m["timeout"].(type) {
	case time.Duration:
		cfg.Timeout = v
	case string:
		cfg.Timeout, _ = time.ParseDuration(v)
	}
	return cfg
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// classify maps an API failure onto the voice error taxonomy. Transport
// failures, rate limits and server errors are network problems worth
// retrying on a later turn; anything else is fatal.
func classify(kind error, err error) error {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr):
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return ai.NewRecoverableError(fmt.Errorf("%w: %v", kind, err), "openai")
		}
		return ai.NewFatalError(err, "openai")
	case errors.As(err, &reqErr):
		if reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500 {
			return ai.NewRecoverableError(fmt.Errorf("%w: %v", kind, err), "openai")
		}
		return ai.NewFatalError(err, "openai")
	case errors.As(err, &netErr), strings.Contains(err.Error(), "connection refused"):
		return ai.NewRecoverableError(fmt.Errorf("%w: %v", kind, err), "openai")
	}
	return ai.NewFatalError(err, "openai")
}

func newWhisperFromConfig(m map[string]any) (any, error) {
	w, err := NewWhisperSTT(configFrom(m))
	if err != nil {
		return nil, err
	}
	if name, _ := m["vad"].(string); name != "" {
		sub, _ := m["vad_config"].(map[string]any)
		v, err := plugin.NewVAD(name, sub)
		if err != nil {
			return nil, err
		}
		w.SetVAD(v)
	}
	return w, nil
}

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        "openai",
		Factory:     newWhisperFromConfig,
		Description: "OpenAI Whisper transcription, endpointed locally by an energy detector",
		Config: map[string]any{
			"api_key":  "OpenAI API key (or set OPENAI_API_KEY)",
			"model":    openai.Whisper1,
			"language": "pt",
			"timeout":  "15s",
			"vad":      "energy",
		},
	})
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "openai",
		Factory:     func(m map[string]any) (any, error) { return NewTTS(configFrom(m)) },
		Description: "OpenAI text-to-speech, 24 kHz PCM",
		Config: map[string]any{
			"api_key": "OpenAI API key (or set OPENAI_API_KEY)",
			"model":   string(openai.TTSModel1),
			"voice":   string(openai.VoiceNova),
		},
	})
}
