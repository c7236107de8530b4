package fake

import (
	"context"
	"testing"
	"time"

	"github.com/chriscow/memora/pkg/ai/stt"
	"github.com/chriscow/memora/pkg/ai/tts"
	"github.com/chriscow/memora/pkg/plugin"
	"github.com/matryer/is"
)

func TestRegisteredProvidersWork(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rec, err := plugin.NewSTT("fake", map[string]any{"transcripts": []any{"listar lembretes"}})
	is.NoErr(err)
	s, err := rec.NewStream(ctx, stt.StreamConfig{Lang: "pt-BR"})
	is.NoErr(err)
	ev := <-s.Events()
	is.Equal(ev.Type, stt.SpeechEventFinal)
	is.Equal(ev.Text, "listar lembretes")

	syn, err := plugin.NewTTS("fake", map[string]any{"name": "local", "local": true})
	is.NoErr(err)
	is.Equal(syn.Name(), "local")
	is.True(syn.Capabilities().Local)
	frames, err := syn.Synthesize(ctx, tts.SynthesizeRequest{Text: "Olá"})
	is.NoErr(err)
	n := 0
	for range frames {
		n++
	}
	is.True(n > 0)

	_, err = plugin.NewVAD("fake", nil)
	is.NoErr(err)
	_, err = plugin.NewVAD("energy", map[string]any{"min_silence": "500ms"})
	is.NoErr(err)
}

func TestKindsListed(t *testing.T) {
	is := is.New(t)
	is.Equal(plugin.Default().Names(plugin.KindSTT), []string{"fake"})
	is.Equal(plugin.Default().Names(plugin.KindVAD), []string{"energy", "fake"})
}
