// Package config loads memora's settings from defaults, a YAML file, a .env
// file and MEMORA_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MEMORA_STORE_BACKEND.
const EnvPrefix = "MEMORA"

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Audio    AudioConfig    `mapstructure:"audio"`
	STT      STTConfig      `mapstructure:"stt"`
	TTS      TTSConfig      `mapstructure:"tts"`
	Clips    ClipsConfig    `mapstructure:"clips"`
	Store    StoreConfig    `mapstructure:"store"`
	Dialogue DialogueConfig `mapstructure:"dialogue"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Announce AnnounceConfig `mapstructure:"announce"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json, otel
}

// AudioConfig configures capture.
type AudioConfig struct {
	SampleRate   int           `mapstructure:"sample_rate"`
	Language     string        `mapstructure:"language"`
	MaxRecording time.Duration `mapstructure:"max_recording"`
	FlushTimeout time.Duration `mapstructure:"flush_timeout"`
	StartDelay   time.Duration `mapstructure:"start_delay"`
}

// STTConfig picks the recognition provider. Options go to its factory.
type STTConfig struct {
	Provider string         `mapstructure:"provider"`
	Options  map[string]any `mapstructure:"options"`
}

// ProviderConfig is one synthesis provider in the fallback chain.
type ProviderConfig struct {
	Name    string         `mapstructure:"name"`
	Timeout time.Duration  `mapstructure:"timeout"`
	Options map[string]any `mapstructure:"options"`
}

// TTSConfig configures synthesis and the output arbiter.
type TTSConfig struct {
	Providers     []ProviderConfig `mapstructure:"providers"`
	Voice         string           `mapstructure:"voice"`
	Speed         float64          `mapstructure:"speed"`
	Pitch         float64          `mapstructure:"pitch"`
	FallbackDelay time.Duration    `mapstructure:"fallback_delay"`
	SafetyTimeout time.Duration    `mapstructure:"safety_timeout"`
}

type ClipsConfig struct {
	Manifest string `mapstructure:"manifest"`
	Dir      string `mapstructure:"dir"`
	Watch    bool   `mapstructure:"watch"`
}

// StoreConfig selects where reminders live.
type StoreConfig struct {
	Backend string        `mapstructure:"backend"` // memory, sqlite, http
	Path    string        `mapstructure:"path"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DialogueConfig holds the conversation tunables.
type DialogueConfig struct {
	DedupMinLength    int           `mapstructure:"dedup_min_length"`
	DedupMaxExtra     int           `mapstructure:"dedup_max_extra"`
	SpeakMissingClips bool          `mapstructure:"speak_missing_clips"`
	SkipWelcome       bool          `mapstructure:"skip_welcome"`
	PromptDelay       time.Duration `mapstructure:"prompt_delay"`
	FieldDelay        time.Duration `mapstructure:"field_delay"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	CueDelay          time.Duration `mapstructure:"cue_delay"`
}

// BridgeConfig points at the host UI's WebSocket. An empty URL disables it.
type BridgeConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

type AnnounceConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Audio: AudioConfig{
			SampleRate:   16000,
			Language:     "pt-BR",
			MaxRecording: 30 * time.Second,
			FlushTimeout: 2 * time.Second,
		},
		STT: STTConfig{Provider: "openai"},
		TTS: TTSConfig{
			Providers: []ProviderConfig{
				{Name: "openai", Timeout: 15 * time.Second},
				{Name: "espeak", Timeout: 3 * time.Second},
			},
			Speed:         1,
			Pitch:         1,
			FallbackDelay: 500 * time.Millisecond,
			SafetyTimeout: 30 * time.Second,
		},
		Clips: ClipsConfig{Manifest: "clips.yaml", Dir: "audio", Watch: true},
		Store: StoreConfig{Backend: "sqlite", Path: defaultDBPath(), Timeout: 10 * time.Second},
		Dialogue: DialogueConfig{
			DedupMinLength: 5,
			DedupMaxExtra:  3,
			PromptDelay:    time.Second,
			FieldDelay:     2 * time.Second,
			RetryDelay:     1500 * time.Millisecond,
			CueDelay:       100 * time.Millisecond,
		},
		Announce: AnnounceConfig{Enabled: true, Schedule: "* * * * *"},
	}
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "memora.db"
	}
	return filepath.Join(dir, "memora", "memora.db")
}

// NewViper returns a viper instance holding the defaults and wired to the
// environment. Callers bind CLI flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.language", d.Audio.Language)
	v.SetDefault("audio.max_recording", d.Audio.MaxRecording)
	v.SetDefault("audio.flush_timeout", d.Audio.FlushTimeout)
	v.SetDefault("audio.start_delay", d.Audio.StartDelay)
	v.SetDefault("stt.provider", d.STT.Provider)
	v.SetDefault("tts.providers", []map[string]any{
		{"name": "openai", "timeout": "15s"},
		{"name": "espeak", "timeout": "3s"},
	})
	v.SetDefault("tts.voice", d.TTS.Voice)
	v.SetDefault("tts.speed", d.TTS.Speed)
	v.SetDefault("tts.pitch", d.TTS.Pitch)
	v.SetDefault("tts.fallback_delay", d.TTS.FallbackDelay)
	v.SetDefault("tts.safety_timeout", d.TTS.SafetyTimeout)
	v.SetDefault("clips.manifest", d.Clips.Manifest)
	v.SetDefault("clips.dir", d.Clips.Dir)
	v.SetDefault("clips.watch", d.Clips.Watch)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.url", d.Store.URL)
	v.SetDefault("store.timeout", d.Store.Timeout)
	v.SetDefault("dialogue.dedup_min_length", d.Dialogue.DedupMinLength)
	v.SetDefault("dialogue.dedup_max_extra", d.Dialogue.DedupMaxExtra)
	v.SetDefault("dialogue.speak_missing_clips", d.Dialogue.SpeakMissingClips)
	v.SetDefault("dialogue.skip_welcome", d.Dialogue.SkipWelcome)
	v.SetDefault("dialogue.prompt_delay", d.Dialogue.PromptDelay)
	v.SetDefault("dialogue.field_delay", d.Dialogue.FieldDelay)
	v.SetDefault("dialogue.retry_delay", d.Dialogue.RetryDelay)
	v.SetDefault("dialogue.cue_delay", d.Dialogue.CueDelay)
	v.SetDefault("bridge.url", d.Bridge.URL)
	v.SetDefault("bridge.token", d.Bridge.Token)
	v.SetDefault("announce.enabled", d.Announce.Enabled)
	v.SetDefault("announce.schedule", d.Announce.Schedule)
	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the .env file and config file into v and returns the validated
// result. An empty file searches memora.yaml in the working directory and in
// the user config directory; not finding one is fine. An explicit file must
// exist.
func Load(v *viper.Viper, file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("memora")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "memora"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive"))
	}
	if c.STT.Provider == "" {
		errs = append(errs, fmt.Errorf("stt.provider is required"))
	}
	if len(c.TTS.Providers) == 0 {
		errs = append(errs, fmt.Errorf("tts.providers needs at least one provider"))
	}
	for i, p := range c.TTS.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("tts.providers[%d].name is required", i))
		}
	}
	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for the sqlite backend"))
		}
	case "http":
		if c.Store.URL == "" {
			errs = append(errs, fmt.Errorf("store.url is required for the http backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of memory, sqlite, http", c.Store.Backend))
	}
	if c.Dialogue.DedupMinLength < 0 || c.Dialogue.DedupMaxExtra < 0 {
		errs = append(errs, fmt.Errorf("dialogue dedup tunables cannot be negative"))
	}
	if c.Announce.Enabled {
		if _, err := cron.ParseStandard(c.Announce.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("announce.schedule: %w", err))
		}
	}
	switch c.Log.Format {
	case "text", "json", "otel":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json, otel", c.Log.Format))
	}
	return errors.Join(errs...)
}
