// Package fake registers the scripted providers under the name "fake", so a
// configuration can run the whole engine without audio hardware or network.
package fake

import (
	sttfake "github.com/chriscow/memora/pkg/ai/stt/fake"
	ttsfake "github.com/chriscow/memora/pkg/ai/tts/fake"
	vadfake "github.com/chriscow/memora/pkg/ai/vad/fake"
	"github.com/chriscow/memora/pkg/plugin"
)

func newFakeSTT(cfg map[string]any) (any, error) {
	f := sttfake.NewFakeSTT()
	switch ts := cfg["transcripts"].(type) {
	case []string:
		for _, t := range ts {
			f.Say(t)
		}
	case []any:
		for _, t := range ts {
			if s, ok := t.(string); ok {
				f.Say(s)
			}
		}
	}
	return f, nil
}

func newFakeTTS(cfg map[string]any) (any, error) {
	name, _ := cfg["name"].(string)
	if name == "" {
		name = "fake"
	}
	f := ttsfake.NewFakeTTS(name)
	f.Local, _ = cfg["local"].(bool)
	return f, nil
}

func newFakeVAD(cfg map[string]any) (any, error) {
	start, _ := cfg["start_at"].(int)
	end, _ := cfg["end_at"].(int)
	return vadfake.NewFakeVAD(start, end), nil
}

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        "fake",
		Factory:     newFakeSTT,
		Description: "Scripted transcripts",
		Config:      map[string]any{"transcripts": []string{"listar lembretes"}},
	})
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "fake",
		Factory:     newFakeTTS,
		Description: "Short tone per request",
		Config:      map[string]any{"name": "fake", "local": true},
	})
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindVAD,
		Name:        "fake",
		Factory:     newFakeVAD,
		Description: "Fires at scripted frame numbers",
		Config:      map[string]any{"start_at": 1, "end_at": 10},
	})
}
