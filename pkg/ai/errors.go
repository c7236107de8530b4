// Package ai holds the error taxonomy shared by the speech recognition and
// synthesis providers and by the voice engine that drives them.
package ai

import (
	"errors"
)

// Error classes. Every error produced by a provider should match one of them
// through errors.Is.
var (
	// ErrRecoverable marks a failure that may succeed on a later turn.
	ErrRecoverable = errors.New("recoverable voice error")

	// ErrFatal marks a failure that will not go away by asking again.
	ErrFatal = errors.New("fatal voice error")
)

// Error kinds surfaced by the voice engine.
var (
	// ErrPermissionDenied means the user or OS refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrDeviceUnavailable means the microphone could not be acquired.
	ErrDeviceUnavailable = errors.New("microphone unavailable")

	// ErrNoSpeechDetected ends an attempt that heard nothing. Not user facing.
	ErrNoSpeechDetected = errors.New("no speech detected")

	// ErrRecognitionAborted ends an attempt the caller cancelled. Not user facing.
	ErrRecognitionAborted = errors.New("recognition aborted")

	// ErrRecognitionNetwork means the recognition engine could not reach its service.
	ErrRecognitionNetwork = errors.New("recognition network error")

	// ErrSynthesisProviderFailure is returned when every synthesis provider failed.
	ErrSynthesisProviderFailure = errors.New("all synthesis providers failed")

	// ErrIncompleteDraft is returned when a reminder is saved with missing fields.
	ErrIncompleteDraft = errors.New("reminder draft incomplete")

	// ErrBackendUnavailable wraps reminder store failures.
	ErrBackendUnavailable = errors.New("reminder backend unavailable")
)

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsFatal checks if an error is fatal.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// IsSilent reports whether err ends a recognition attempt without any
// feedback to the user.
func IsSilent(err error) bool {
	return errors.Is(err, ErrNoSpeechDetected) || errors.Is(err, ErrRecognitionAborted)
}

// RetryableError attaches a class to an underlying error. Both the underlying
// error and the class are visible to errors.Is.
type RetryableError struct {
	Underlying error
	Retryable  bool
	Message    string
}

func (e *RetryableError) Error() string {
	if e.Message != "" {
		if e.Underlying != nil {
			return e.Message + ": " + e.Underlying.Error()
		}
		return e.Message
	}
	if e.Underlying == nil {
		return "voice error"
	}
	return e.Underlying.Error()
}

func (e *RetryableError) Unwrap() []error {
	class := ErrFatal
	if e.Retryable {
		class = ErrRecoverable
	}
	if e.Underlying == nil {
		return []error{class}
	}
	return []error{e.Underlying, class}
}

// NewRecoverableError creates a recoverable error with context.
func NewRecoverableError(underlying error, message string) error {
	return &RetryableError{
		Underlying: underlying,
		Retryable:  true,
		Message:    message,
	}
}

// NewFatalError creates a fatal error with context.
func NewFatalError(underlying error, message string) error {
	return &RetryableError{
		Underlying: underlying,
		Retryable:  false,
		Message:    message,
	}
}
