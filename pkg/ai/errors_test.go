package ai

import (
	"errors"
	"fmt"
	"testing"

	"github.com/matryer/is"
)

func TestRetryableErrorClasses(t *testing.T) {
	is := is.New(t)

	err := NewRecoverableError(ErrRecognitionNetwork, "whisper request failed")
	is.True(IsRecoverable(err))                    // recoverable class
	is.True(!IsFatal(err))                         // not fatal
	is.True(errors.Is(err, ErrRecognitionNetwork)) // kind still visible
	is.Equal(err.Error(), "whisper request failed: recognition network error")

	wrapped := fmt.Errorf("turn: %w", NewFatalError(ErrPermissionDenied, ""))
	is.True(IsFatal(wrapped))
	is.True(errors.Is(wrapped, ErrPermissionDenied))
}

func TestIsSilent(t *testing.T) {
	tests := []struct {
		err    error
		silent bool
	}{
		{ErrNoSpeechDetected, true},
		{ErrRecognitionAborted, true},
		{fmt.Errorf("attempt: %w", ErrNoSpeechDetected), true},
		{ErrRecognitionNetwork, false},
		{ErrPermissionDenied, false},
		{errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := IsSilent(tt.err); got != tt.silent {
			t.Errorf("IsSilent(%v) = %v, want %v", tt.err, got, tt.silent)
		}
	}
}
