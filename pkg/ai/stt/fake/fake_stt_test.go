package fake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chriscow/memora/pkg/ai/stt"
	"github.com/matryer/is"
)

func collect(t *testing.T, s stt.STTStream) []stt.SpeechEvent {
	t.Helper()
	var events []stt.SpeechEvent
	timeout := time.After(time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("events channel never closed")
		}
	}
}

func TestFakeSTTDeliversQueuedResult(t *testing.T) {
	is := is.New(t)
	f := NewFakeSTT(Result{Text: "criar lembrete"})

	s, err := f.NewStream(context.Background(), stt.StreamConfig{Lang: "pt-BR", SingleUtterance: true})
	is.NoErr(err)

	events := collect(t, s)
	is.Equal(len(events), 1)
	is.Equal(events[0].Type, stt.SpeechEventFinal)
	is.Equal(events[0].Text, "criar lembrete")
	is.Equal(events[0].Language, "pt-BR")
	is.Equal(f.Live(), 0)
	is.Equal(f.Configs()[0].SingleUtterance, true)
}

func TestFakeSTTErrorResult(t *testing.T) {
	is := is.New(t)
	boom := errors.New("network")
	f := NewFakeSTT()
	f.Fail(boom)

	s, err := f.NewStream(context.Background(), stt.StreamConfig{})
	is.NoErr(err)
	events := collect(t, s)
	is.Equal(len(events), 1)
	is.Equal(events[0].Type, stt.SpeechEventError)
	is.True(errors.Is(events[0].Error, boom))
}

func TestFakeSTTCloseSendWithoutSpeech(t *testing.T) {
	is := is.New(t)
	f := NewFakeSTT()

	s, err := f.NewStream(context.Background(), stt.StreamConfig{})
	is.NoErr(err)
	is.NoErr(s.CloseSend())
	is.NoErr(s.CloseSend()) // idempotent

	events := collect(t, s)
	is.Equal(len(events), 1)
	is.Equal(events[0].Type, stt.SpeechEventEnd)
}

func TestFakeSTTCancel(t *testing.T) {
	is := is.New(t)
	f := NewFakeSTT()
	ctx, cancel := context.WithCancel(context.Background())

	s, err := f.NewStream(ctx, stt.StreamConfig{})
	is.NoErr(err)
	is.Equal(f.Live(), 1)
	cancel()

	events := collect(t, s)
	is.Equal(len(events), 0) // aborted streams stay quiet
	is.Equal(f.Live(), 0)
}
