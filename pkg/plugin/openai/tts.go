package openai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/chriscow/memora/pkg/ai/tts"
	"github.com/chriscow/memora/pkg/audio"
	openai "github.com/sashabaranov/go-openai"
)

// SampleRate is the rate of the raw PCM the speech endpoint returns.
const SampleRate = 24000

var errSynthesis = errors.New("openai synthesis failed")

// TTS synthesizes speech with the OpenAI audio API.
type TTS struct {
	client *openai.Client
	model  string
	voice  string
	log    *slog.Logger
}

// NewTTS creates the provider.
func NewTTS(cfg Config) (*TTS, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	t := &TTS{
		client: client,
		model:  cfg.Model,
		voice:  cfg.Voice,
		log:    slog.Default().With("provider", "openai-tts"),
	}
	if t.model == "" {
		t.model = string(openai.TTSModel1)
	}
	if t.voice == "" {
		t.voice = string(openai.VoiceNova)
	}
	return t, nil
}

func (t *TTS) Name() string { return "openai" }

// Synthesize requests raw PCM and streams it as 10 ms frames. The request
// itself runs before returning so that API failures surface as errors.
func (t *TTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (<-chan audio.Frame, error) {
	voice := req.Voice
	if voice == "" {
		voice = t.voice
	}
	sr := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(t.model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	}
	if req.Speed > 0 {
		sr.Speed = float64(req.Speed)
	}

	start := time.Now()
	resp, err := t.client.CreateSpeech(ctx, sr)
	if err != nil {
		return nil, classify(errSynthesis, err)
	}

	out := make(chan audio.Frame, 16)
	go func() {
		defer close(out)
		defer resp.Close()

		size := SampleRate / 100 * 2
		buf := make([]byte, size)
		var ts time.Duration
		for {
			n, err := io.ReadFull(resp, buf)
			if n > 0 {
				// Drop a trailing odd byte; frames hold whole samples.
				n -= n % 2
				data := make([]byte, n)
				copy(data, buf[:n])
				f := audio.Frame{
					Data:              data,
					SampleRate:        SampleRate,
					SamplesPerChannel: n / 2,
					NumChannels:       1,
					Timestamp:         ts,
				}
				ts += f.Duration()
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && ctx.Err() == nil {
					t.log.Warn("speech stream interrupted", "error", err)
				}
				t.log.Debug("synthesis finished", "audio", ts, "elapsed", time.Since(start))
				return
			}
		}
	}()
	return out, nil
}

func (t *TTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		Streaming:            true,
		SupportedLanguages:   []string{"pt", "en", "es", "fr", "de", "it"},
		SupportedVoices:      []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"},
		SampleRates:          []int{SampleRate},
		SupportsSpeedControl: true,
	}
}

var _ tts.TTS = (*TTS)(nil)
