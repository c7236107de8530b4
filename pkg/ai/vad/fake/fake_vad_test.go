package fake

import (
	"context"
	"testing"
	"time"

	"github.com/chriscow/memora/pkg/ai/vad"
	"github.com/chriscow/memora/pkg/audio"
	"github.com/matryer/is"
)

func TestFakeVADFiresAtScriptedFrames(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frames := audio.Split(make([]byte, 16000*2/10), 16000, 1) // 100 ms, ten frames
	events, err := NewFakeVAD(2, 5).Detect(ctx, audio.Stream(frames))
	is.NoErr(err)

	var got []vad.VADEvent
	for ev := range events {
		got = append(got, ev)
	}
	is.Equal(len(got), 2)
	is.Equal(got[0].Type, vad.VADEventSpeechStart)
	is.Equal(got[0].Offset, 20*time.Millisecond)
	is.Equal(got[1].Type, vad.VADEventSpeechEnd)
	is.Equal(got[1].Offset, 50*time.Millisecond)
}
