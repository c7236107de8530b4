package voice

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chriscow/memora/pkg/ai"
	sttfake "github.com/chriscow/memora/pkg/ai/stt/fake"
	"github.com/chriscow/memora/pkg/audio"
	audiofake "github.com/chriscow/memora/pkg/audio/fake"
	"github.com/matryer/is"
)

type startResult struct {
	u   Utterance
	err error
}

func newTestCapture(t *testing.T, mic *audiofake.Microphone, engine *sttfake.FakeSTT) *Capture {
	t.Helper()
	c, err := NewCapture(CaptureConfig{Microphone: mic, STT: engine})
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	return c
}

func startAsync(c *Capture) <-chan startResult {
	out := make(chan startResult, 1)
	go func() {
		u, err := c.Start(context.Background())
		out <- startResult{u, err}
	}()
	return out
}

func waitLive(t *testing.T, c *Capture) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !c.IsLive() {
		if time.Now().After(deadline) {
			t.Fatal("attempt never went live")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCaptureReturnsTranscript(t *testing.T) {
	is := is.New(t)
	engine := sttfake.NewFakeSTT(sttfake.Result{Text: "  criar lembrete  "})
	c := newTestCapture(t, audiofake.NewMicrophone(), engine)

	u, err := c.Start(context.Background())
	is.NoErr(err)
	is.Equal(u.Text, "criar lembrete")
	is.True(u.Token != "")
	is.True(!u.CapturedAt.Before(u.ListenStartedAt))
	is.True(!c.IsLive())

	cfg := engine.Configs()[0]
	is.Equal(cfg.Lang, "pt-BR")
	is.True(cfg.SingleUtterance)
	is.True(!cfg.Interim)
}

func TestCaptureSingleLiveAttempt(t *testing.T) {
	is := is.New(t)
	engine := sttfake.NewFakeSTT()
	c := newTestCapture(t, audiofake.NewMicrophone(), engine)

	first := startAsync(c)
	waitLive(t, c)

	for i := 0; i < 5; i++ {
		_, err := c.Start(context.Background())
		is.True(errors.Is(err, ErrAttemptLive)) // overlapping start is a no-op
	}
	is.Equal(engine.Opened(), 1)

	engine.Say("sim")
	r := <-first
	is.NoErr(r.err)
	is.Equal(r.u.Text, "sim")
}

func TestCaptureStopInvalidatesAttempt(t *testing.T) {
	is := is.New(t)
	mic := audiofake.NewMicrophone()
	c := newTestCapture(t, mic, sttfake.NewFakeSTT())

	res := startAsync(c)
	waitLive(t, c)
	c.Stop()

	r := <-res
	is.True(errors.Is(r.err, ai.ErrRecognitionAborted))
	is.Equal(r.u.Text, "")
	is.True(!c.IsLive())
	is.True(!mic.Last().Active()) // stop releases the microphone

	c.Stop() // idempotent
}

func TestCaptureAbortKeepsMicrophone(t *testing.T) {
	is := is.New(t)
	mic := audiofake.NewMicrophone()
	engine := sttfake.NewFakeSTT()
	c := newTestCapture(t, mic, engine)

	res := startAsync(c)
	waitLive(t, c)
	c.Abort()
	r := <-res
	is.True(errors.Is(r.err, ai.ErrRecognitionAborted))

	engine.Say("hoje")
	u, err := c.Start(context.Background())
	is.NoErr(err)
	is.Equal(u.Text, "hoje")
	is.Equal(mic.Opens(), 1) // live stream reused
}

func TestCaptureTeardownErrorStillEndsAttempt(t *testing.T) {
	for _, tt := range []struct {
		name string
		end  func(*Capture)
	}{
		{"stop", (*Capture).Stop},
		{"abort", (*Capture).Abort},
	} {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			engine := sttfake.NewFakeSTT()
			engine.SetCloseErr(errors.New("recognizer already gone"))
			c := newTestCapture(t, audiofake.NewMicrophone(), engine)

			res := startAsync(c)
			waitLive(t, c)
			tt.end(c)
			is.True(!c.IsLive())

			select {
			case r := <-res:
				is.True(errors.Is(r.err, ai.ErrRecognitionAborted))
				is.Equal(r.u.Text, "")
			case <-time.After(time.Second):
				t.Fatal("pending Start never returned")
			}

			engine.SetCloseErr(nil)
			engine.Say("amanhã")
			u, err := c.Start(context.Background())
			is.NoErr(err)
			is.Equal(u.Text, "amanhã")
		})
	}
}

func TestCaptureReacquiresEndedStream(t *testing.T) {
	is := is.New(t)
	mic := audiofake.NewMicrophone()
	engine := sttfake.NewFakeSTT(sttfake.Result{Text: "um"}, sttfake.Result{Text: "dois"})
	c := newTestCapture(t, mic, engine)

	_, err := c.Start(context.Background())
	is.NoErr(err)
	mic.Last().End() // device went away

	u, err := c.Start(context.Background())
	is.NoErr(err)
	is.Equal(u.Text, "dois")
	is.Equal(mic.Opens(), 2)
}

func TestCaptureDeviceUnavailable(t *testing.T) {
	is := is.New(t)
	mic := audiofake.NewMicrophone()
	mic.SetErr(errors.New("no capture device"))
	c := newTestCapture(t, mic, sttfake.NewFakeSTT())

	_, err := c.Start(context.Background())
	is.True(errors.Is(err, ai.ErrDeviceUnavailable))
	is.True(!c.IsLive())
	is.Equal(mic.Opens(), 1) // no automatic retry
}

func TestCapturePermission(t *testing.T) {
	is := is.New(t)
	mic := audiofake.NewMicrophone()
	mic.SetErr(fmt.Errorf("pulse: %w", audio.ErrPermission))
	c := newTestCapture(t, mic, sttfake.NewFakeSTT())

	is.True(!c.EnsurePermission(context.Background()))
	mic.SetErr(nil)
	is.True(!c.EnsurePermission(context.Background())) // cached for the process
	is.Equal(mic.Opens(), 1)

	granted := newTestCapture(t, audiofake.NewMicrophone(), sttfake.NewFakeSTT())
	is.True(granted.EnsurePermission(context.Background()))
}

func TestCaptureMaxRecording(t *testing.T) {
	is := is.New(t)
	c, err := NewCapture(CaptureConfig{
		Microphone:   audiofake.NewMicrophone(),
		STT:          sttfake.NewFakeSTT(),
		MaxRecording: 20 * time.Millisecond,
		FlushTimeout: 50 * time.Millisecond,
	})
	is.NoErr(err)

	start := time.Now()
	_, err = c.Start(context.Background())
	is.True(errors.Is(err, ai.ErrNoSpeechDetected))
	is.True(time.Since(start) < time.Second)
	is.True(!c.IsLive())
}

func TestCaptureRecognitionError(t *testing.T) {
	is := is.New(t)
	engine := sttfake.NewFakeSTT(sttfake.Result{Err: ai.NewRecoverableError(ai.ErrRecognitionNetwork, "whisper")})
	c := newTestCapture(t, audiofake.NewMicrophone(), engine)

	_, err := c.Start(context.Background())
	is.True(errors.Is(err, ai.ErrRecognitionNetwork))
	is.True(!ai.IsSilent(err))
}

func TestCaptureStreamOpenFailure(t *testing.T) {
	is := is.New(t)
	engine := sttfake.NewFakeSTT()
	engine.SetStreamErr(errors.New("no api key"))
	c := newTestCapture(t, audiofake.NewMicrophone(), engine)

	_, err := c.Start(context.Background())
	is.True(err != nil)
	is.True(!c.IsLive())
}
