package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chriscow/memora/pkg/ai"
	"github.com/chriscow/memora/pkg/ai/stt"
	"github.com/chriscow/memora/pkg/ai/vad"
	"github.com/chriscow/memora/pkg/audio"
	"github.com/chriscow/memora/pkg/audio/wav"
	openai "github.com/sashabaranov/go-openai"
)

// minAudio is the shortest clip the transcription endpoint accepts.
const minAudio = 100 * time.Millisecond

var errStreamClosed = errors.New("stream is closed")

// WhisperSTT transcribes whole utterances with Whisper. The end of an
// utterance is found locally by a voice activity detector, so a stream
// yields a result without waiting for CloseSend.
type WhisperSTT struct {
	client   *openai.Client
	model    string
	language string
	timeout  time.Duration
	vad      vad.VAD
	log      *slog.Logger
}

// NewWhisperSTT creates a Whisper recognizer endpointed by an energy detector.
func NewWhisperSTT(cfg Config) (*WhisperSTT, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	w := &WhisperSTT{
		client:   client,
		model:    cfg.Model,
		language: cfg.Language,
		timeout:  cfg.Timeout,
		vad:      vad.NewEnergy(vad.DefaultEnergyConfig()),
		log:      slog.Default().With("provider", "openai-stt"),
	}
	if w.model == "" {
		w.model = openai.Whisper1
	}
	if w.timeout <= 0 {
		w.timeout = 15 * time.Second
	}
	return w, nil
}

// SetVAD replaces the endpoint detector.
func (w *WhisperSTT) SetVAD(v vad.VAD) { w.vad = v }

func (w *WhisperSTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.STTStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	in := make(chan audio.Frame, 64)
	events, err := w.vad.Detect(ctx, in)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start endpoint detector: %w", err)
	}

	lang := w.language
	if lang == "" && cfg.Lang != "" {
		lang = strings.ToLower(strings.SplitN(cfg.Lang, "-", 2)[0])
	}

	s := &whisperStream{
		w:      w,
		ctx:    ctx,
		cancel: cancel,
		lang:   lang,
		single: cfg.SingleUtterance,
		in:     in,
		out:    make(chan stt.SpeechEvent, 1),
		done:   make(chan struct{}),
	}
	go s.run(events)
	return s, nil
}

func (w *WhisperSTT) Capabilities() stt.STTCapabilities {
	return stt.STTCapabilities{
		Streaming:          false,
		InterimResults:     false,
		SupportedLanguages: []string{"pt", "en", "es", "fr", "de", "it"},
		SampleRates:        []int{16000, 24000, 44100, 48000},
	}
}

type whisperStream struct {
	w      *WhisperSTT
	ctx    context.Context
	cancel context.CancelFunc
	lang   string
	single bool

	in   chan audio.Frame
	out  chan stt.SpeechEvent
	done chan struct{}

	sendMu sync.Mutex
	closed bool

	bufMu  sync.Mutex
	frames []audio.Frame
}

func (s *whisperStream) Push(f audio.Frame) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return errStreamClosed
	}

	s.bufMu.Lock()
	s.frames = append(s.frames, *f.Clone())
	s.bufMu.Unlock()

	select {
	case s.in <- f:
	case <-s.done:
	case <-s.ctx.Done():
	}
	return nil
}

func (s *whisperStream) Events() <-chan stt.SpeechEvent { return s.out }

func (s *whisperStream) CloseSend() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	s.closed = true
	close(s.in)
	return nil
}

// run waits for the detector to report the end of speech, or for the input
// to close, then transcribes everything buffered so far.
func (s *whisperStream) run(events <-chan vad.VADEvent) {
	defer close(s.out)
	defer close(s.done)
	defer s.cancel()

	heard := false
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if heard {
					s.finish()
				} else {
					s.emit(stt.SpeechEvent{Type: stt.SpeechEventEnd})
				}
				return
			}
			switch ev.Type {
			case vad.VADEventSpeechStart:
				heard = true
			case vad.VADEventSpeechEnd:
				if s.single {
					s.finish()
					return
				}
			case vad.VADEventError:
				s.emit(stt.SpeechEvent{Type: stt.SpeechEventError, Error: ev.Error})
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *whisperStream) finish() {
	s.bufMu.Lock()
	frames := s.frames
	s.frames = nil
	s.bufMu.Unlock()

	var dur time.Duration
	for i := range frames {
		dur += frames[i].Duration()
	}
	if len(frames) == 0 || dur < minAudio {
		s.emit(stt.SpeechEvent{Type: stt.SpeechEventEnd})
		return
	}

	text, lang, err := s.transcribe(frames)
	switch {
	case err != nil:
		if s.ctx.Err() != nil {
			return
		}
		s.w.log.Error("whisper transcription failed", "error", err)
		s.emit(stt.SpeechEvent{Type: stt.SpeechEventError, Error: err})
	case strings.TrimSpace(text) == "":
		s.emit(stt.SpeechEvent{Type: stt.SpeechEventEnd})
	default:
		s.emit(stt.SpeechEvent{
			Type:      stt.SpeechEventFinal,
			Text:      text,
			IsFinal:   true,
			Language:  lang,
			Timestamp: time.Now().UnixMilli(),
		})
	}
}

func (s *whisperStream) transcribe(frames []audio.Frame) (string, string, error) {
	var buf bytes.Buffer
	if err := wav.Encode(&buf, audio.Join(frames), frames[0].SampleRate, frames[0].NumChannels); err != nil {
		return "", "", fmt.Errorf("encode wav: %w", err)
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.w.timeout)
	defer cancel()
	resp, err := s.w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.w.model,
		Language: s.lang,
		Format:   openai.AudioResponseFormatJSON,
		Reader:   &buf,
		FilePath: "audio.wav",
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && s.ctx.Err() == nil {
			return "", "", ai.NewRecoverableError(fmt.Errorf("%w: %v", ai.ErrRecognitionNetwork, err), "openai")
		}
		return "", "", classify(ai.ErrRecognitionNetwork, err)
	}
	s.w.log.Debug("whisper transcription", "text", resp.Text, "language", resp.Language)
	return resp.Text, resp.Language, nil
}

func (s *whisperStream) emit(ev stt.SpeechEvent) {
	select {
	case s.out <- ev:
	case <-s.ctx.Done():
	}
}

var _ stt.STT = (*WhisperSTT)(nil)
