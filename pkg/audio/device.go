package audio

import (
	"context"
	"errors"
)

// ErrPermission is returned by Microphone.Open when the OS refuses access.
var ErrPermission = errors.New("audio device permission denied")

// Microphone acquires a capture stream.
type Microphone interface {
	// Open acquires the device. Errors wrapping ErrPermission mean access
	// was refused; anything else means the device is unavailable.
	Open(ctx context.Context) (MicStream, error)
}

// MicStream is a live capture stream.
type MicStream interface {
	// Frames delivers captured audio. The channel closes when the stream ends.
	Frames() <-chan Frame

	// Active reports whether the stream is still delivering audio.
	Active() bool

	// Close releases the device. Safe to call more than once.
	Close() error
}

// Speaker plays audio.
type Speaker interface {
	// Play starts playing frames at the given rate multiplier. A nil error
	// means the audio is loaded and playing. The returned channel closes when
	// playback ends, either naturally or because ctx was cancelled; a
	// playback error is sent on it before it closes.
	Play(ctx context.Context, frames <-chan Frame, rate float64) (<-chan error, error)
}
