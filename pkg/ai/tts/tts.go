// Package tts defines the speech synthesis provider contract.
package tts

import (
	"context"

	"github.com/chriscow/memora/pkg/audio"
)

// SynthesizeRequest contains parameters for text-to-speech synthesis.
type SynthesizeRequest struct {
	Text     string
	Voice    string
	Language string
	Speed    float32 // 1.0 is normal
	Pitch    float32 // 1.0 is normal
}

// TTSCapabilities describes the capabilities of a TTS provider.
type TTSCapabilities struct {
	Streaming            bool
	Local                bool // runs on this machine, no network
	SupportedLanguages   []string
	SupportedVoices      []string
	SampleRates          []int
	SupportsSpeedControl bool
	SupportsPitchControl bool
}

// TTS is a speech synthesis provider.
type TTS interface {
	// Name identifies the provider in logs and config.
	Name() string

	// Synthesize converts text to audio frames. The channel closes when
	// synthesis is complete or ctx is cancelled. Errors found before any
	// audio is produced are returned directly; a channel that closes without
	// a single frame also counts as a failure.
	Synthesize(ctx context.Context, req SynthesizeRequest) (<-chan audio.Frame, error)

	Capabilities() TTSCapabilities
}
