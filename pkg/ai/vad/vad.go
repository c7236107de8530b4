// Package vad finds where speech starts and stops in a stream of frames.
// Recognizers that only transcribe whole clips use it to decide when an
// utterance is over.
package vad

import (
	"context"
	"time"

	"github.com/chriscow/memora/pkg/audio"
)

// VADEventType represents the type of VAD event.
type VADEventType int

const (
	VADEventSpeechStart VADEventType = iota
	VADEventSpeechEnd
	VADEventError
)

func (t VADEventType) String() string {
	switch t {
	case VADEventSpeechStart:
		return "speech_start"
	case VADEventSpeechEnd:
		return "speech_end"
	case VADEventError:
		return "error"
	default:
		return "unknown"
	}
}

// VADEvent represents a voice activity detection event. Offset is the
// stream position of the frame that triggered it.
type VADEvent struct {
	Type   VADEventType
	Offset time.Duration
	Error  error
}

// VADCapabilities describes the capabilities of a VAD provider.
type VADCapabilities struct {
	SampleRates        []int
	MinSpeechDuration  time.Duration
	MinSilenceDuration time.Duration
}

// VAD is the main interface for voice activity detection providers.
type VAD interface {
	// Detect processes audio frames and returns VAD events.
	// The returned channel will be closed when the input channel is closed or context is cancelled.
	Detect(ctx context.Context, frames <-chan audio.Frame) (<-chan VADEvent, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() VADCapabilities
}
