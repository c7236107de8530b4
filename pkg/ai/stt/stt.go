// Package stt defines the speech recognition engine contract used by the
// capture session: a stream that takes microphone frames and yields one
// final transcript, an error, or an end-of-input marker.
package stt

import (
	"context"

	"github.com/chriscow/memora/pkg/audio"
)

// StreamConfig contains configuration for a recognition stream.
type StreamConfig struct {
	SampleRate  int
	NumChannels int
	Lang        string // BCP-47, e.g. "pt-BR"

	// SingleUtterance asks the engine to stop after the first final result.
	SingleUtterance bool
	// Interim enables partial results. The capture session leaves it off.
	Interim bool
}

// SpeechEvent represents a speech recognition event.
type SpeechEvent struct {
	Type      SpeechEventType
	Text      string
	IsFinal   bool
	Language  string
	Timestamp int64 // milliseconds since epoch
	Error     error
}

// SpeechEventType represents the type of speech recognition event.
type SpeechEventType int

const (
	SpeechEventInterim SpeechEventType = iota
	SpeechEventFinal
	SpeechEventError
	// SpeechEventEnd means the engine stopped without a final result.
	SpeechEventEnd
)

func (t SpeechEventType) String() string {
	switch t {
	case SpeechEventInterim:
		return "interim"
	case SpeechEventFinal:
		return "final"
	case SpeechEventError:
		return "error"
	case SpeechEventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// STTCapabilities describes the capabilities of an engine.
type STTCapabilities struct {
	Streaming          bool
	InterimResults     bool
	SupportedLanguages []string
	SampleRates        []int
}

// STT is a speech recognition engine.
type STT interface {
	// NewStream opens a recognition attempt. Cancelling ctx aborts it; the
	// events channel then closes without further events.
	NewStream(ctx context.Context, cfg StreamConfig) (STTStream, error)

	Capabilities() STTCapabilities
}

// STTStream is one recognition attempt.
type STTStream interface {
	// Push sends an audio frame for processing.
	Push(frame audio.Frame) error

	// Events returns recognition events. It closes when the attempt is over.
	Events() <-chan SpeechEvent

	// CloseSend signals that no more audio will be sent. The engine flushes
	// buffered audio and may still deliver a final result.
	CloseSend() error
}
