package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/chriscow/memora/pkg/ai"
	sttfake "github.com/chriscow/memora/pkg/ai/stt/fake"
	ttsfake "github.com/chriscow/memora/pkg/ai/tts/fake"
	"github.com/chriscow/memora/pkg/audio"
	audiofake "github.com/chriscow/memora/pkg/audio/fake"
	"github.com/chriscow/memora/pkg/reminder"
	"github.com/chriscow/memora/pkg/reminder/memory"
	"github.com/chriscow/memora/pkg/voice"
	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Thursday.
var testNow = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

type harness struct {
	agent   *Agent
	stt     *sttfake.FakeSTT
	mic     *audiofake.Microphone
	tts     *ttsfake.FakeTTS
	store   *memory.Store
	metrics *Metrics

	cancel context.CancelFunc
	errc   chan error
}

func newHarness(t *testing.T, seed []reminder.Reminder, opts ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		stt:     sttfake.NewFakeSTT(),
		mic:     audiofake.NewMicrophone(),
		tts:     ttsfake.NewFakeTTS("local"),
		store:   memory.New(seed...),
		metrics: NewMetrics(nil),
	}

	arb, err := voice.NewArbiter(voice.ArbiterConfig{
		Speaker:       audiofake.NewSpeaker(time.Millisecond),
		Providers:     []voice.Provider{{TTS: h.tts}},
		FallbackDelay: time.Millisecond,
		SafetyTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewArbiter: %v", err)
	}
	capture, err := voice.NewCapture(voice.CaptureConfig{
		Microphone:   h.mic,
		STT:          h.stt,
		MaxRecording: 2 * time.Second,
		FlushTimeout: 100 * time.Millisecond,
		Now:          func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}

	cfg := Config{
		Output:      arb,
		Listener:    capture,
		Store:       h.store,
		Delays:      Delays{Prompt: time.Millisecond, Field: time.Millisecond, Retry: time.Millisecond, Cue: time.Hour},
		SkipWelcome: true,
		Metrics:     h.metrics,
		Now:         func() time.Time { return testNow },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.agent, err = New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.errc = make(chan error, 1)
	go func() { h.errc <- h.agent.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.errc:
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})
	eventually(t, "engine ready", func() bool { return h.agent.Snapshot().State == StateListening })
}

// speak queues utterances and presses the microphone button once.
func (h *harness) speak(texts ...string) {
	for _, s := range texts {
		h.stt.Say(s)
	}
	h.agent.ToggleRecording()
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	is := is.New(t)
	_, err := New(Config{})
	is.True(err != nil)
}

func TestSlotFillingCreatesOnce(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	h.start(t)

	h.speak("criar", "Consulta", "hoje", "15:00", "não")

	eventually(t, "reminder created", func() bool { return len(h.store.Created()) == 1 })
	eventually(t, "back to welcome", func() bool {
		s := h.agent.Snapshot()
		return s.State == StateWelcome && s.Status == StatusReady
	})

	got := h.store.Created()[0]
	is.Equal(got.Name, "Consulta")
	is.Equal(got.Date, "2026-10-15")
	is.Equal(got.Time, "15:00")
	is.True(got.Repeat != nil && !*got.Repeat)
	is.Equal(got.RepeatDays, nil)

	snap := h.agent.Snapshot()
	is.Equal(len(snap.Reminders), 1) // list reloaded after save
	is.Equal(snap.Draft.Name, "")    // draft cleared
	is.Equal(testutil.ToFloat64(h.metrics.RemindersSaved), 1.0)
	is.Equal(testutil.ToFloat64(h.metrics.StateTransitions.WithLabelValues("reminder_repeat", "welcome")), 1.0)
}

func TestSameUtteranceAcrossStatesAdvancesOnce(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	h.start(t)

	h.speak("criar", "criar")
	eventually(t, "duplicate dropped", func() bool {
		return testutil.ToFloat64(h.metrics.Utterances.WithLabelValues("duplicate")) == 1
	})
	snap := h.agent.Snapshot()
	is.Equal(snap.State, StateReminderName)
	is.Equal(snap.Draft.Name, "")
	is.Equal(testutil.ToFloat64(h.metrics.StateTransitions.WithLabelValues("listening", "reminder_name")), 1.0)

	// the engine keeps listening after the dropped repeat
	h.stt.Say("Consulta")
	eventually(t, "name stored", func() bool { return h.agent.Snapshot().State == StateReminderDate })
	is.Equal(h.agent.Snapshot().Draft.Name, "Consulta")
}

func TestInvalidDateStaysInDateState(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	h.start(t)

	h.speak("criar", "Consulta", "32 de outubro")
	eventually(t, "date rejected", func() bool { return slices.Contains(h.tts.Texts(), msgBadDate) })
	is.Equal(h.agent.Snapshot().State, StateReminderDate)
	is.Equal(h.agent.Snapshot().Draft.Date, "")

	h.stt.Say("amanhã")
	eventually(t, "date accepted", func() bool { return h.agent.Snapshot().State == StateReminderTime })
	is.Equal(h.agent.Snapshot().Draft.Date, "2026-10-16")
}

func TestInvalidTimeStaysInTimeState(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	h.start(t)

	h.speak("criar", "Consulta", "hoje", "mais tarde")
	eventually(t, "time rejected", func() bool { return slices.Contains(h.tts.Texts(), msgBadTime) })
	is.Equal(h.agent.Snapshot().State, StateReminderTime)
}

func TestRepeatingReminderByVoice(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	h.start(t)

	h.speak("criar", "Academia", "amanhã", "7 horas", "sim", "segunda e quarta")
	eventually(t, "reminder created", func() bool { return len(h.store.Created()) == 1 })

	got := h.store.Created()[0]
	is.True(*got.Repeat)
	is.Equal(got.RepeatDays, []string{"monday", "wednesday"})
	is.Equal(got.Time, "07:00")
	is.True(slices.Contains(h.tts.Texts(), msgAskDays))
}

func TestFullCommand(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	h.start(t)

	h.speak("criar lembrete consulta médica às 14:30 amanhã")
	eventually(t, "reminder created", func() bool { return len(h.store.Created()) == 1 })

	got := h.store.Created()[0]
	is.Equal(got.Name, "Consulta Médica")
	is.Equal(got.Date, "2026-10-16")
	is.Equal(got.Time, "14:30")
	is.True(!*got.Repeat)
	eventually(t, "welcome", func() bool { return h.agent.Snapshot().State == StateWelcome })
}

func TestTypedCommand(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	h.start(t)

	h.agent.Submit("criar lembrete reunião às 9:00 segunda e quinta")
	eventually(t, "reminder created", func() bool { return len(h.store.Created()) == 1 })

	got := h.store.Created()[0]
	is.Equal(got.Name, "Reunião")
	is.Equal(got.Date, "2026-10-19")
	is.Equal(got.RepeatDays, []string{"monday", "thursday"})
	is.Equal(h.stt.Opened(), 0) // typed input never touches the recognizer
}

func TestListReminders(t *testing.T) {
	tests := []struct {
		name      string
		seed      []reminder.Reminder
		err       error
		want      string
		reminders int
	}{
		{"two", []reminder.Reminder{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}}, nil, "Você tem 2 lembretes.", 2},
		{"one", []reminder.Reminder{{ID: "1", Name: "A"}}, nil, "Você tem 1 lembrete.", 1},
		{"none", nil, nil, "Você não tem lembretes.", 0},
		{"store down", []reminder.Reminder{{ID: "1", Name: "A"}}, errors.New("connection refused"), msgListFailed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			h := newHarness(t, tt.seed, func(c *Config) { c.SpeakMissingClips = true })
			h.start(t)
			if tt.err != nil {
				h.store.SetErr(tt.err)
			}

			h.agent.Submit("quais lembretes eu tenho")
			eventually(t, "result spoken", func() bool { return slices.Contains(h.tts.Texts(), tt.want) })
			eventually(t, "welcome", func() bool { return h.agent.Snapshot().State == StateWelcome })
			is.Equal(len(h.agent.Snapshot().Reminders), tt.reminders)
			if tt.err != nil {
				is.Equal(h.agent.Snapshot().Feedback.Type, FeedbackError)
			}
		})
	}
}

func TestDeleteByVoiceWithConfirmation(t *testing.T) {
	is := is.New(t)
	seed := []reminder.Reminder{{ID: "r1", Name: "Dentista", Date: "2026-10-20", Time: "09:00"}}
	h := newHarness(t, seed)
	h.start(t)

	h.speak("apagar lembrete", "dentista")
	eventually(t, "pending delete", func() bool { return h.agent.Snapshot().PendingDelete != nil })
	p := h.agent.Snapshot().PendingDelete
	is.Equal(p.Name, "Dentista")
	is.Equal(p.ID, "r1")
	is.Equal(h.agent.Snapshot().State, StateDeleteReminderName)

	h.stt.Say("sim")
	eventually(t, "deleted", func() bool { return len(h.store.Deleted()) == 1 })
	is.Equal(h.store.Deleted(), []string{"r1"})
	eventually(t, "welcome", func() bool {
		s := h.agent.Snapshot()
		return s.State == StateWelcome && s.PendingDelete == nil && len(s.Reminders) == 0
	})
	is.Equal(testutil.ToFloat64(h.metrics.RemindersDeleted), 1.0)
}

func TestDeleteFromHost(t *testing.T) {
	is := is.New(t)
	seed := []reminder.Reminder{{ID: "r1", Name: "Dentista"}}
	h := newHarness(t, seed)
	h.start(t)

	h.agent.ConfirmDelete() // nothing pending
	h.agent.RequestDelete("Farmácia")
	eventually(t, "pending", func() bool { return h.agent.Snapshot().PendingDelete != nil })
	is.Equal(h.agent.Snapshot().PendingDelete.ID, "Farmácia") // unknown names pass through

	h.agent.CancelDelete()
	eventually(t, "cancelled", func() bool { return h.agent.Snapshot().PendingDelete == nil })
	is.Equal(len(h.store.Deleted()), 0)

	h.agent.RequestDelete("Dentista")
	h.agent.ConfirmDelete()
	eventually(t, "deleted", func() bool { return len(h.store.Deleted()) == 1 })
	is.Equal(h.store.Deleted()[0], "r1")
}

func TestUnclearDeleteAnswerKeepsTarget(t *testing.T) {
	is := is.New(t)
	seed := []reminder.Reminder{{ID: "r1", Name: "Dentista"}}
	h := newHarness(t, seed)
	h.start(t)

	h.speak("apagar lembrete", "dentista", "talvez", "sim")
	eventually(t, "deleted", func() bool { return len(h.store.Deleted()) == 1 })
	is.Equal(h.store.Deleted(), []string{"r1"})
	is.True(slices.Contains(h.tts.Texts(), msgConfirmDelete))
	is.Equal(testutil.ToFloat64(h.metrics.Utterances.WithLabelValues("delete_unclear")), 1.0)
}

func TestPendingDeleteNeedsWholeWordAnswer(t *testing.T) {
	is := is.New(t)
	seed := []reminder.Reminder{{ID: "r1", Name: "Dentista"}}
	h := newHarness(t, seed)
	h.start(t)

	h.agent.RequestDelete("Dentista")
	eventually(t, "pending", func() bool { return h.agent.Snapshot().PendingDelete != nil })

	h.agent.Submit("criar lembrete simulado às 10:00 amanhã")
	eventually(t, "reminder created", func() bool { return len(h.store.Created()) == 1 })
	is.Equal(h.store.Created()[0].Name, "Simulado")

	h.agent.Submit("Simone")
	eventually(t, "not understood", func() bool {
		return testutil.ToFloat64(h.metrics.Utterances.WithLabelValues("unrecognized")) == 1
	})
	is.Equal(len(h.store.Deleted()), 0)
	is.Equal(h.agent.Snapshot().PendingDelete.ID, "r1")

	h.agent.Submit("sim, pode apagar")
	eventually(t, "deleted", func() bool { return len(h.store.Deleted()) == 1 })
	is.Equal(h.store.Deleted(), []string{"r1"})
}

func TestDeleteStoreErrorIsSpoken(t *testing.T) {
	is := is.New(t)
	seed := []reminder.Reminder{{ID: "r1", Name: "Dentista"}}
	h := newHarness(t, seed)
	h.start(t)

	h.agent.RequestDelete("Dentista")
	eventually(t, "pending", func() bool { return h.agent.Snapshot().PendingDelete != nil })
	h.store.SetErr(errors.New("connection refused"))
	h.agent.ConfirmDelete()

	eventually(t, "error spoken", func() bool { return slices.Contains(h.tts.Texts(), msgDeleteFailed) })
	eventually(t, "welcome", func() bool { return h.agent.Snapshot().State == StateWelcome })
	snap := h.agent.Snapshot()
	is.True(snap.PendingDelete == nil)
	is.Equal(snap.Feedback.Type, FeedbackError)
	is.Equal(testutil.ToFloat64(h.metrics.StoreErrors.WithLabelValues("delete")), 1.0)
}

// heldGate ignores the arbiter so a test decides when output is audible.
type heldGate struct{ voice.AudioGate }

func (heldGate) SetTTSPlaying(bool) {}

func TestEchoDroppedWhileOutputPlays(t *testing.T) {
	is := is.New(t)
	gate := voice.NewAudioGate(time.Minute)
	h := newHarness(t, nil, func(c *Config) {
		arb, err := voice.NewArbiter(voice.ArbiterConfig{
			Speaker:       audiofake.NewSpeaker(time.Millisecond),
			Providers:     []voice.Provider{{TTS: ttsfake.NewFakeTTS("local")}},
			FallbackDelay: time.Millisecond,
			SafetyTimeout: time.Second,
			Gate:          heldGate{gate},
		})
		if err != nil {
			t.Fatalf("NewArbiter: %v", err)
		}
		c.Output = arb
	})
	h.start(t)

	h.speak("criar")
	eventually(t, "asking name", func() bool { return h.agent.Snapshot().State == StateReminderName })

	// output still audible: plain words are bleed-through, answers are kept
	gate.SetTTSPlaying(true)
	h.stt.Say("Consulta")
	h.stt.Say("sim")
	eventually(t, "name stored", func() bool { return h.agent.Snapshot().State == StateReminderDate })
	is.Equal(h.agent.Snapshot().Draft.Name, "Sim")

	h.stt.Say("amanhã")
	h.stt.Say("dia 20 outubro")
	eventually(t, "date stored", func() bool { return h.agent.Snapshot().State == StateReminderTime })
	is.Equal(h.agent.Snapshot().Draft.Date, "2026-10-20")
	is.Equal(testutil.ToFloat64(h.metrics.Utterances.WithLabelValues("echo")), 2.0)
}

func TestCancelWordStopsEverything(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	h.start(t)

	h.speak("criar", "cancelar")
	eventually(t, "cancel handled", func() bool {
		return testutil.ToFloat64(h.metrics.Utterances.WithLabelValues("cancel")) == 1
	})
	snap := h.agent.Snapshot()
	is.Equal(snap.Status, StatusReady)
	is.True(!snap.Recording)
	is.Equal(snap.State, StateReminderName) // slot filling resumes on the next capture
	is.Equal(len(h.store.Created()), 0)
}

func TestSystemPhrasesAreIgnored(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	h.start(t)

	h.agent.Submit("Estou ouvindo")
	h.agent.Submit("a")
	eventually(t, "both dropped", func() bool {
		return testutil.ToFloat64(h.metrics.Utterances.WithLabelValues("system")) == 1 &&
			testutil.ToFloat64(h.metrics.Utterances.WithLabelValues("short")) == 1
	})
	is.Equal(h.agent.Snapshot().State, StateListening)
}

func TestUnrecognizedCommandAsksToRepeat(t *testing.T) {
	h := newHarness(t, nil, func(c *Config) { c.SpeakMissingClips = true })
	h.start(t)

	h.agent.Submit("bom dia")
	eventually(t, "repeat prompt", func() bool { return slices.Contains(h.tts.Texts(), clipText[ClipRepeat]) })
}

func TestBackendErrorDiscardsDraft(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	h.start(t)
	h.store.SetErr(errors.New("connection refused"))

	h.agent.Submit("criar lembrete consulta às 10:00 amanhã")
	eventually(t, "error spoken", func() bool { return slices.Contains(h.tts.Texts(), msgSaveFailed) })
	eventually(t, "welcome", func() bool { return h.agent.Snapshot().State == StateWelcome })

	snap := h.agent.Snapshot()
	is.Equal(snap.Draft.Name, "")
	is.Equal(snap.Feedback.Type, FeedbackError)
	is.Equal(testutil.ToFloat64(h.metrics.StoreErrors.WithLabelValues("create")), 1.0)
}

func TestToggleStopsListening(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	h.start(t)

	h.agent.ToggleRecording()
	eventually(t, "recording", func() bool { return h.agent.Snapshot().Recording })
	is.Equal(h.agent.Snapshot().Status, StatusRecording)

	h.agent.ToggleRecording()
	eventually(t, "stopped", func() bool { return !h.agent.Snapshot().Recording })
	is.Equal(h.agent.Snapshot().Status, StatusReady)
	eventually(t, "microphone released", func() bool { return !h.mic.Last().Active() })
	is.Equal(len(h.store.Created()), 0)
}

func TestMicrophoneUnavailable(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	h.start(t)
	h.mic.Last().End() // unplugged
	h.mic.SetErr(errors.New("no capture device"))

	h.agent.ToggleRecording()
	eventually(t, "message spoken", func() bool { return slices.Contains(h.tts.Texts(), msgMicUnavailable) })
	snap := h.agent.Snapshot()
	is.True(!snap.Recording)
	is.Equal(snap.Feedback.Message, msgMicUnavailable)
	is.Equal(testutil.ToFloat64(h.metrics.CaptureErrors.WithLabelValues("device")), 1.0)
}

func TestMicrophonePermissionDenied(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	h.mic.SetErr(fmt.Errorf("portal: %w", audio.ErrPermission))
	h.start(t)

	eventually(t, "message spoken", func() bool { return slices.Contains(h.tts.Texts(), msgMicPermission) })
	is.Equal(h.agent.Snapshot().Feedback.Message, msgMicPermission)
}

func TestRecognitionNetworkErrorIsReportedOnly(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil, func(c *Config) { c.SpeakMissingClips = true })
	h.start(t)

	h.stt.Fail(ai.NewRecoverableError(ai.ErrRecognitionNetwork, "whisper"))
	h.agent.ToggleRecording()
	eventually(t, "feedback", func() bool {
		f := h.agent.Snapshot().Feedback
		return f != nil && f.Message == msgNetwork
	})
	is.True(!slices.Contains(h.tts.Texts(), clipText[ClipRepeat])) // no retry prompt
}

func TestSpeakAndAnnounceReminder(t *testing.T) {
	seed := []reminder.Reminder{{ID: "r1", Name: "Dentista", Date: "2026-10-19", Time: "09:00", Repeat: true, RepeatDays: []string{"monday", "friday"}}}
	h := newHarness(t, seed)
	h.start(t)

	h.agent.SpeakReminder("r1")
	want := "Dentista, agendado para segunda-feira, 19 de outubro às 09:00. Este lembrete se repete nos seguintes dias: segunda-feira e sexta-feira."
	eventually(t, "reminder spoken", func() bool { return slices.Contains(h.tts.Texts(), want) })

	h.agent.Announce(seed[0])
	eventually(t, "announced", func() bool {
		return slices.Contains(h.tts.Texts(), "Está na hora do seu lembrete: Dentista, às 09:00.")
	})
}

func TestSnapshotIsACopy(t *testing.T) {
	is := is.New(t)
	seed := []reminder.Reminder{{ID: "r1", Name: "Dentista", Date: "2026-10-15", Time: "10:10", RepeatDays: []string{"monday"}}}
	h := newHarness(t, seed)
	h.start(t)

	s := h.agent.Snapshot()
	is.Equal(len(s.Reminders), 1)
	is.Equal(s.Reminders[0].Urgency, "now")
	s.Reminders[0].Name = "changed"
	s.Reminders[0].RepeatDays[0] = "sunday"

	again := h.agent.Snapshot()
	is.Equal(again.Reminders[0].Name, "Dentista")
	is.Equal(again.Reminders[0].RepeatDays[0], "monday")
}

func TestSubscribeSignalsChanges(t *testing.T) {
	h := newHarness(t, nil)
	ch, stop := h.agent.Subscribe()
	defer stop()
	h.start(t)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change signal")
	}
}

func TestStaleOutcomeIsDiscarded(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	a := h.agent
	a.state = StateListening
	a.recording = true
	a.listenGen = 2

	a.handleOutcome(context.Background(), outcome{gen: 1, u: voice.Utterance{Text: "criar"}})
	is.Equal(a.state, StateListening)
	is.True(a.recording)
}

func TestSaveIncompleteDraftKeepsIt(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	a := h.agent
	a.draft = reminder.Draft{Name: "Consulta", Date: "2026-10-15"}

	a.save(context.Background())
	is.Equal(len(h.store.Created()), 0)
	is.Equal(a.draft.Name, "Consulta")
	is.True(slices.Contains(h.tts.Texts(), msgIncomplete))
}

func TestRunTwice(t *testing.T) {
	is := is.New(t)
	h := newHarness(t, nil)
	h.start(t)
	is.True(h.agent.Run(context.Background()) != nil)
}
