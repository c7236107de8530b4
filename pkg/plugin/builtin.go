package plugin

import (
	"time"

	"github.com/chriscow/memora/pkg/ai/vad"
)

func init() {
	Register(&Plugin{
		Kind: KindVAD,
		Name: "energy",
		Factory: func(m map[string]any) (any, error) {
			cfg := vad.EnergyConfig{}
			if v, ok := m["threshold"].(float64); ok {
				cfg.Threshold = v
			}
			cfg.MinSpeech = duration(m["min_speech"])
			cfg.MinSilence = duration(m["min_silence"])
			return vad.NewEnergy(cfg), nil
		},
		Description: "RMS level detector with hysteresis",
		Config: map[string]any{
			"threshold":   0.02,
			"min_speech":  "150ms",
			"min_silence": "800ms",
		},
	})
}

// duration accepts a time.Duration or a string such as "800ms".
func duration(v any) time.Duration {
	switch d := v.(type) {
	case time.Duration:
		return d
	case string:
		p, _ := time.ParseDuration(d)
		return p
	}
	return 0
}
