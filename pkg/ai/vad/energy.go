package vad

import (
	"context"
	"time"

	"github.com/chriscow/memora/pkg/audio"
)

// EnergyConfig tunes an Energy detector.
type EnergyConfig struct {
	// Threshold is the RMS level, 0..1, above which a frame counts as voiced.
	Threshold float64
	// MinSpeech is how much voiced audio must accumulate before speech starts.
	MinSpeech time.Duration
	// MinSilence is how much unvoiced audio ends speech.
	MinSilence time.Duration
}

// DefaultEnergyConfig suits a close-talking microphone in a quiet room.
func DefaultEnergyConfig() EnergyConfig {
	return EnergyConfig{
		Threshold:  0.02,
		MinSpeech:  150 * time.Millisecond,
		MinSilence: 800 * time.Millisecond,
	}
}

// Energy is a level-based detector with hysteresis.
type Energy struct {
	cfg EnergyConfig
}

// NewEnergy creates a detector. Zero fields take their defaults.
func NewEnergy(cfg EnergyConfig) *Energy {
	def := DefaultEnergyConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.MinSpeech <= 0 {
		cfg.MinSpeech = def.MinSpeech
	}
	if cfg.MinSilence <= 0 {
		cfg.MinSilence = def.MinSilence
	}
	return &Energy{cfg: cfg}
}

func (e *Energy) Detect(ctx context.Context, frames <-chan audio.Frame) (<-chan VADEvent, error) {
	out := make(chan VADEvent, 4)
	go func() {
		defer close(out)

		var (
			offset   time.Duration
			voiced   time.Duration
			silent   time.Duration
			speaking bool
		)
		emit := func(t VADEventType) bool {
			select {
			case out <- VADEvent{Type: t, Offset: offset}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case f, ok := <-frames:
				if !ok {
					if speaking {
						emit(VADEventSpeechEnd)
					}
					return
				}
				d := f.Duration()
				offset += d
				if f.RMS() >= e.cfg.Threshold {
					voiced += d
					silent = 0
				} else {
					silent += d
					if !speaking {
						voiced = 0
					}
				}

				switch {
				case !speaking && voiced >= e.cfg.MinSpeech:
					speaking = true
					if !emit(VADEventSpeechStart) {
						return
					}
				case speaking && silent >= e.cfg.MinSilence:
					speaking = false
					voiced = 0
					if !emit(VADEventSpeechEnd) {
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (e *Energy) Capabilities() VADCapabilities {
	return VADCapabilities{
		SampleRates:        []int{8000, 16000, 24000, 44100, 48000},
		MinSpeechDuration:  e.cfg.MinSpeech,
		MinSilenceDuration: e.cfg.MinSilence,
	}
}
