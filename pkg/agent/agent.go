// Package agent implements the dialogue engine: a state machine that turns
// recognized utterances into reminder operations, filling a reminder in over
// several spoken turns when one utterance is not enough.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/chriscow/memora/pkg/ai"
	"github.com/chriscow/memora/pkg/interpret"
	"github.com/chriscow/memora/pkg/normalize"
	"github.com/chriscow/memora/pkg/reminder"
	"github.com/chriscow/memora/pkg/voice"
	"github.com/jinzhu/copier"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/chriscow/memora/pkg/agent"

// Output is the single audio output channel. *voice.Arbiter implements it.
type Output interface {
	Play(ctx context.Context, req voice.Request) <-chan voice.Completion
	PlayAndWait(ctx context.Context, req voice.Request) voice.Completion
	StopCurrent()
	IsPlaying() bool
	Gate() voice.AudioGate
}

// Listener is the microphone capture session. *voice.Capture implements it.
type Listener interface {
	EnsurePermission(ctx context.Context) bool
	Start(ctx context.Context) (voice.Utterance, error)
	Stop()
	Abort()
	IsLive() bool
}

// Delays are the pauses the engine takes around captures.
type Delays struct {
	Prompt time.Duration // after the create and delete prompts
	Field  time.Duration // after asking for a reminder field
	Retry  time.Duration // after a re-prompt
	Cue    time.Duration // from capture start to the listening cue
}

// DefaultDelays returns the production pauses.
func DefaultDelays() Delays {
	return Delays{
		Prompt: time.Second,
		Field:  2 * time.Second,
		Retry:  1500 * time.Millisecond,
		Cue:    100 * time.Millisecond,
	}
}

// Config holds configuration for creating an Agent.
type Config struct {
	Output   Output
	Listener Listener
	Store    reminder.Store

	// Delays left zero take their DefaultDelays value.
	Delays Delays

	// An utterance repeating the previous one from another state is dropped
	// when the previous text is longer than DedupMinLength runes and the new
	// text adds fewer than DedupMaxExtra runes.
	DedupMinLength int
	DedupMaxExtra  int

	// SpeakMissingClips speaks the text of a prompt whose clip is not installed.
	SpeakMissingClips bool
	// SkipWelcome skips the presentation clip on start.
	SkipWelcome bool

	Metrics *Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Agent is the dialogue engine. All conversation state is owned by the
// goroutine running Run; the exported methods post events to it.
type Agent struct {
	cfg     Config
	out     Output
	in      Listener
	store   reminder.Store
	log     *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	events  chan event
	results chan outcome
	done    chan struct{}
	running atomic.Bool

	// Owned by the Run goroutine.
	base      context.Context
	state     State
	status    Status
	feedback  *Feedback
	recording bool
	listenGen uint64
	draft     reminder.Draft
	last      dedup
	reminders []reminder.Reminder
	pending   *PendingDelete

	turnMu     sync.Mutex
	turnCancel context.CancelFunc

	mu   sync.Mutex
	view Snapshot
	subs map[chan struct{}]struct{}
}

type eventKind int

const (
	evToggle eventKind = iota
	evSubmit
	evRequestDelete
	evConfirmDelete
	evCancelDelete
	evSpeakReminder
	evAnnounce
	evReload
)

type event struct {
	kind     eventKind
	text     string
	reminder reminder.Reminder
}

type outcome struct {
	gen uint64
	u   voice.Utterance
	err error
}

// New creates a new Agent with the given configuration.
func New(cfg Config) (*Agent, error) {
	if cfg.Output == nil {
		return nil, fmt.Errorf("output is required")
	}
	if cfg.Listener == nil {
		return nil, fmt.Errorf("listener is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	def := DefaultDelays()
	if cfg.Delays.Prompt <= 0 {
		cfg.Delays.Prompt = def.Prompt
	}
	if cfg.Delays.Field <= 0 {
		cfg.Delays.Field = def.Field
	}
	if cfg.Delays.Retry <= 0 {
		cfg.Delays.Retry = def.Retry
	}
	if cfg.Delays.Cue <= 0 {
		cfg.Delays.Cue = def.Cue
	}
	if cfg.DedupMinLength <= 0 {
		cfg.DedupMinLength = 5
	}
	if cfg.DedupMaxExtra <= 0 {
		cfg.DedupMaxExtra = 3
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	a := &Agent{
		cfg:     cfg,
		out:     cfg.Output,
		in:      cfg.Listener,
		store:   cfg.Store,
		log:     cfg.Logger.With("component", "dialogue"),
		metrics: cfg.Metrics,
		tracer:  otel.Tracer(tracerName),
		events:  make(chan event, 16),
		results: make(chan outcome, 1),
		done:    make(chan struct{}),
		base:    context.Background(),
		state:   StateWelcome,
		status:  StatusReady,
		last:    dedup{minLength: cfg.DedupMinLength, maxExtra: cfg.DedupMaxExtra},
		subs:    make(map[chan struct{}]struct{}),
	}
	a.publish()
	return a, nil
}

// Run plays the welcome sequence and then processes events until ctx is
// cancelled. It may be called once.
func (a *Agent) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return errors.New("agent already running")
	}
	defer close(a.done)
	defer a.quiesce()

	a.base = ctx
	a.reload(ctx)
	a.welcome(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-a.events:
			a.handleEvent(ctx, ev)
		case o := <-a.results:
			a.handleOutcome(ctx, o)
		}
	}
}

// ToggleRecording stops whatever the engine is saying or waiting for, then
// starts listening, or stops listening if a capture is live.
func (a *Agent) ToggleRecording() {
	a.interrupt()
	a.send(event{kind: evToggle})
}

// Submit processes typed text as if it had been recognized.
func (a *Agent) Submit(text string) { a.send(event{kind: evSubmit, text: text}) }

// RequestDelete asks for confirmation to delete the reminder called name.
func (a *Agent) RequestDelete(name string) { a.send(event{kind: evRequestDelete, text: name}) }

// ConfirmDelete deletes the reminder awaiting confirmation.
func (a *Agent) ConfirmDelete() { a.send(event{kind: evConfirmDelete}) }

// CancelDelete drops the pending delete.
func (a *Agent) CancelDelete() { a.send(event{kind: evCancelDelete}) }

// SpeakReminder reads out the reminder with the given ID or name.
func (a *Agent) SpeakReminder(id string) { a.send(event{kind: evSpeakReminder, text: id}) }

// Announce speaks a due reminder if the engine is idle.
func (a *Agent) Announce(r reminder.Reminder) { a.send(event{kind: evAnnounce, reminder: r}) }

// Reload refreshes the reminder list from the store.
func (a *Agent) Reload() { a.send(event{kind: evReload}) }

// Snapshot returns a deep copy of the host-visible state.
func (a *Agent) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out Snapshot
	if err := copier.CopyWithOption(&out, &a.view, copier.Option{DeepCopy: true}); err != nil {
		a.log.Error("snapshot copy failed", "error", err)
		return a.view
	}
	return out
}

// Idle reports whether the engine is at rest with nothing pending.
func (a *Agent) Idle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := a.view
	return v.Status == StatusReady && !v.Recording && v.State.idle() && v.PendingDelete == nil
}

// Subscribe returns a channel that receives a signal after every change,
// and a function that ends the subscription. Signals coalesce.
func (a *Agent) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	a.mu.Lock()
	a.subs[ch] = struct{}{}
	a.mu.Unlock()
	return ch, func() {
		a.mu.Lock()
		delete(a.subs, ch)
		a.mu.Unlock()
	}
}

func (a *Agent) send(ev event) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

// interrupt cancels the running turn and silences output.
func (a *Agent) interrupt() {
	a.turnMu.Lock()
	if a.turnCancel != nil {
		a.turnCancel()
	}
	a.turnMu.Unlock()
	a.out.StopCurrent()
}

func (a *Agent) beginTurn(ctx context.Context) (context.Context, func()) {
	tctx, cancel := context.WithCancel(ctx)
	a.turnMu.Lock()
	a.turnCancel = cancel
	a.turnMu.Unlock()
	return tctx, func() {
		a.turnMu.Lock()
		a.turnCancel = nil
		a.turnMu.Unlock()
		cancel()
	}
}

func (a *Agent) quiesce() {
	a.in.Stop()
	a.out.StopCurrent()
	a.recording = false
	a.status = StatusReady
	a.metrics.Recording.Set(0)
	a.publish()
}

func (a *Agent) welcome(ctx context.Context) {
	tctx, end := a.beginTurn(ctx)
	defer end()

	if !a.in.EnsurePermission(tctx) {
		a.setFeedback(msgMicPermission, FeedbackError)
		a.say(tctx, msgMicPermission)
	}
	if !a.cfg.SkipWelcome && tctx.Err() == nil {
		a.playClip(tctx, voice.Clip(ClipPresentation))
	}
	a.setState(StateListening)
}

func (a *Agent) handleEvent(ctx context.Context, ev event) {
	switch ev.kind {
	case evToggle:
		if a.recording {
			a.stopListening(true)
			a.status = StatusReady
			a.feedback = nil
			a.publish()
			return
		}
		a.listen()
	case evSubmit:
		if a.recording {
			a.stopListening(false)
		}
		now := a.cfg.Now()
		a.turn(ctx, voice.Utterance{Text: ev.text, CapturedAt: now, ListenStartedAt: now}, true)
	case evRequestDelete:
		tctx, end := a.beginTurn(ctx)
		a.requestDelete(tctx, ev.text, false)
		end()
	case evConfirmDelete:
		tctx, end := a.beginTurn(ctx)
		a.confirmDelete(tctx)
		end()
	case evCancelDelete:
		a.cancelDelete()
	case evSpeakReminder:
		tctx, end := a.beginTurn(ctx)
		a.speakReminder(tctx, ev.text)
		end()
	case evAnnounce:
		tctx, end := a.beginTurn(ctx)
		a.announce(tctx, ev.reminder)
		end()
	case evReload:
		a.reload(ctx)
	}
}

// listen starts a capture attempt whose outcome comes back through
// a.results tagged with a fresh generation.
func (a *Agent) listen() {
	if a.recording || a.in.IsLive() {
		a.log.Info("already listening, ignoring start")
		return
	}
	a.out.StopCurrent()
	a.listenGen++
	gen := a.listenGen
	a.recording = true
	a.status = StatusRecording
	a.feedback = &Feedback{Message: msgListening, Type: FeedbackInfo}
	a.metrics.Recording.Set(1)
	a.publish()

	ctx := a.base
	go func() {
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		cue := time.AfterFunc(a.cfg.Delays.Cue, func() {
			if lctx.Err() == nil {
				a.out.Play(lctx, voice.FastClip(ClipListening))
			}
		})
		u, err := a.in.Start(lctx)
		cue.Stop()
		select {
		case a.results <- outcome{gen: gen, u: u, err: err}:
		case <-a.done:
		}
	}()
}

// stopListening invalidates the live attempt. release also closes the
// microphone.
func (a *Agent) stopListening(release bool) {
	a.listenGen++
	a.recording = false
	a.metrics.Recording.Set(0)
	if release {
		a.in.Stop()
	} else {
		a.in.Abort()
	}
}

func (a *Agent) handleOutcome(ctx context.Context, o outcome) {
	if o.gen != a.listenGen || !a.recording {
		a.log.Debug("discarding stale recognition result", "gen", o.gen, "current", a.listenGen)
		return
	}
	a.recording = false
	a.metrics.Recording.Set(0)

	if o.err != nil {
		a.captureFailed(ctx, o.err)
		return
	}
	a.feedback = nil
	a.turn(ctx, o.u, false)
}

func (a *Agent) captureFailed(ctx context.Context, err error) {
	a.metrics.CaptureErrors.WithLabelValues(errorKind(err)).Inc()
	a.status = StatusReady
	a.feedback = nil

	switch {
	case errors.Is(err, voice.ErrAttemptLive):
		a.log.Info("capture already live", "error", err)
	case ai.IsSilent(err):
		a.log.Debug("recognition ended without speech", "error", err)
	case errors.Is(err, ai.ErrPermissionDenied):
		a.feedback = &Feedback{Message: msgMicPermission, Type: FeedbackError}
	case errors.Is(err, ai.ErrRecognitionNetwork):
		a.log.Warn("recognition network error", "error", err)
		a.feedback = &Feedback{Message: msgNetwork, Type: FeedbackError}
	case errors.Is(err, ai.ErrDeviceUnavailable):
		a.log.Error("microphone unavailable", "error", err)
		a.feedback = &Feedback{Message: msgMicUnavailable, Type: FeedbackError}
		a.publish()
		tctx, end := a.beginTurn(ctx)
		a.say(tctx, msgMicUnavailable)
		end()
	default:
		a.log.Warn("recognition failed", "error", err)
		a.publish()
		tctx, end := a.beginTurn(ctx)
		a.prompt(tctx, ClipRepeat)
		end()
	}
	a.publish()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ai.ErrNoSpeechDetected):
		return "no_speech"
	case errors.Is(err, ai.ErrRecognitionAborted):
		return "aborted"
	case errors.Is(err, ai.ErrPermissionDenied):
		return "permission"
	case errors.Is(err, ai.ErrDeviceUnavailable):
		return "device"
	case errors.Is(err, ai.ErrRecognitionNetwork):
		return "network"
	case errors.Is(err, voice.ErrAttemptLive):
		return "live"
	default:
		return "other"
	}
}

// turn runs one utterance through the filters and the state machine.
func (a *Agent) turn(ctx context.Context, u voice.Utterance, typed bool) {
	start := time.Now()
	tctx, end := a.beginTurn(ctx)
	defer end()

	tctx, span := a.tracer.Start(tctx, "agent.turn", trace.WithAttributes(
		attribute.String("state", a.state.String()),
		attribute.Bool("typed", typed),
	))
	defer span.End()

	result := a.process(tctx, u, typed)

	span.SetAttributes(attribute.String("outcome", result), attribute.String("next_state", a.state.String()))
	a.metrics.Utterances.WithLabelValues(result).Inc()
	a.metrics.TurnDuration.Observe(time.Since(start).Seconds())
	if a.status == StatusProcessing {
		a.status = StatusReady
	}
	a.publish()
}

func (a *Agent) process(ctx context.Context, u voice.Utterance, typed bool) string {
	text := strings.TrimSpace(u.Text)
	log := a.log.With("state", a.state.String(), "text", text)

	if isSystemPhrase(text) {
		log.Debug("ignoring own prompt")
		a.rearm()
		return "system"
	}
	if isCancelWord(text) {
		log.Info("cancelled by voice")
		a.quiet()
		return "cancel"
	}
	if utf8.RuneCountInString(text) < 2 {
		a.rearm()
		return "short"
	}
	if a.last.duplicate(text, a.state) {
		log.Info("ignoring repeated transcript")
		a.rearm()
		return "duplicate"
	}
	if !typed && a.out.Gate().ShouldDiscardTranscript(text, a.cfg.Now().Sub(u.ListenStartedAt)) {
		log.Info("ignoring probable echo")
		a.rearm()
		return "echo"
	}

	a.out.StopCurrent()
	a.status = StatusProcessing
	a.publish()
	a.last.remember(text, a.state)
	folded := normalize.Fold(text)

	if a.pending != nil && (a.state == StateDeleteReminderName || (a.state.idle() && !a.interruptsDelete(text, folded))) {
		if isNegative(folded) {
			a.cancelDelete()
			return "delete_cancelled"
		}
		if hasWord(folded, "sim") {
			a.confirmDelete(ctx)
			return "delete_confirmed"
		}
	}

	switch a.state {
	case StateWelcome, StateListening:
		return a.command(ctx, text, folded)

	case StateReminderName:
		a.draft.Name = normalize.TitleCase(text)
		a.next(ctx, StateReminderDate, ClipReminderDate)
		return "name"

	case StateReminderDate:
		date, ok := normalize.Date(text, a.cfg.Now())
		if !ok {
			a.retry(ctx, msgBadDate)
			return "bad_date"
		}
		a.draft.Date = date
		a.next(ctx, StateReminderTime, ClipReminderTime)
		return "date"

	case StateReminderTime:
		hhmm, ok := normalize.Time(text)
		if !ok {
			a.retry(ctx, msgBadTime)
			return "bad_time"
		}
		a.draft.Time = hhmm
		a.next(ctx, StateReminderRepeat, ClipReminderRepeat)
		return "time"

	case StateReminderRepeat:
		switch {
		case isNegative(folded):
			a.draft.Repeat = reminder.Bool(false)
			a.draft.RepeatDays = nil
			a.save(ctx)
			return "repeat_no"
		case isAffirmative(folded):
			a.draft.Repeat = reminder.Bool(true)
			a.setState(StateReminderDays)
			a.say(ctx, msgAskDays)
			a.settleAndListen(ctx, a.cfg.Delays.Retry)
			return "repeat_yes"
		default:
			a.prompt(ctx, ClipRepeat)
			a.settleAndListen(ctx, a.cfg.Delays.Retry)
			return "repeat_unclear"
		}

	case StateReminderDays:
		days := normalize.Weekdays(text)
		if len(days) == 0 {
			a.retry(ctx, msgBadDays)
			return "bad_days"
		}
		a.draft.RepeatDays = days
		a.save(ctx)
		return "days"

	case StateDeleteReminderName:
		if a.pending != nil {
			a.retry(ctx, msgConfirmDelete)
			return "delete_unclear"
		}
		a.requestDelete(ctx, text, true)
		return "delete_name"
	}
	return "ignored"
}

// command handles an utterance outside slot filling.
func (a *Agent) command(ctx context.Context, text, folded string) string {
	if d, ok := interpret.Parse(text, a.cfg.Now()); ok {
		a.log.Info("full command parsed", "name", d.Name, "date", d.Date, "time", d.Time, "repeat", *d.Repeat)
		a.draft = d
		a.save(ctx)
		return "command"
	}

	switch {
	case strings.Contains(folded, "criar"):
		a.draft = reminder.Draft{}
		a.setState(StateReminderName)
		a.prompt(ctx, ClipReminderName)
		a.settleAndListen(ctx, a.cfg.Delays.Prompt)
		return "create"
	case isListRequest(folded):
		a.list(ctx)
		return "list"
	case isDeleteRequest(folded):
		a.setState(StateDeleteReminderName)
		a.prompt(ctx, ClipDeleteReminder)
		a.settleAndListen(ctx, a.cfg.Delays.Prompt)
		return "delete"
	default:
		a.prompt(ctx, ClipRepeat)
		return "unrecognized"
	}
}

// interruptsDelete reports whether text starts a create or list action
// instead of answering the pending delete.
func (a *Agent) interruptsDelete(text, folded string) bool {
	if _, ok := interpret.Parse(text, a.cfg.Now()); ok {
		return true
	}
	return strings.Contains(folded, "criar") || isListRequest(folded)
}

// next moves to s once the current field is stored, then asks for the
// next field and listens again.
func (a *Agent) next(ctx context.Context, s State, clip string) {
	a.last.reset()
	a.setState(s)
	a.prompt(ctx, clip)
	a.settleAndListen(ctx, a.cfg.Delays.Field)
}

// retry re-asks in the current state.
func (a *Agent) retry(ctx context.Context, msg string) {
	a.say(ctx, msg)
	a.last.reset()
	a.settleAndListen(ctx, a.cfg.Delays.Retry)
}

// rearm listens again after a dropped utterance while a reminder is being
// filled in, so the dialogue does not stall.
func (a *Agent) rearm() {
	if !a.state.idle() {
		a.listen()
	}
}

func (a *Agent) settleAndListen(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return
	}
	a.listen()
}

// quiet handles a cancel word.
func (a *Agent) quiet() {
	a.out.StopCurrent()
	if a.recording {
		a.stopListening(false)
	}
	a.status = StatusReady
	a.feedback = nil
	a.publish()
}

// prompt plays a question clip at the fast rate.
func (a *Agent) prompt(ctx context.Context, key string) {
	a.playClip(ctx, voice.FastClip(key))
}

// playClip plays req and speaks its text if the clip could not be played.
func (a *Agent) playClip(ctx context.Context, req voice.Request) {
	c := a.out.PlayAndWait(ctx, req)
	switch c.Reason {
	case voice.ReasonFailed:
		a.log.Warn("clip failed, speaking it instead", "clip", req.ClipKey, "error", c.Err)
	case voice.ReasonMissing:
		if !a.cfg.SpeakMissingClips {
			return
		}
	default:
		return
	}
	if text, ok := clipText[req.ClipKey]; ok && ctx.Err() == nil {
		a.say(ctx, text)
	}
}

func (a *Agent) say(ctx context.Context, text string) {
	c := a.out.PlayAndWait(ctx, voice.Say(text))
	if c.Reason == voice.ReasonFailed {
		a.log.Error("could not speak", "text", text, "error", c.Err)
	}
}

func (a *Agent) save(ctx context.Context) {
	if err := a.draft.Validate(); err != nil {
		a.log.Info("not saving", "error", err)
		a.say(ctx, msgIncomplete)
		return
	}

	d := a.draft
	if err := a.storeCall(ctx, "create", func(ctx context.Context) error { return a.store.Create(ctx, d) }); err != nil {
		a.draft = reminder.Draft{}
		a.setFeedback(msgSaveFailed, FeedbackError)
		a.setState(StateWelcome)
		a.say(ctx, msgSaveFailed)
		return
	}

	a.log.Info("reminder saved", "name", d.Name, "date", d.Date, "time", d.Time)
	a.metrics.RemindersSaved.Inc()
	a.reload(ctx)
	a.draft = reminder.Draft{}
	a.last.reset()
	a.setFeedback(msgCreated, FeedbackSuccess)
	a.setState(StateWelcome)
	a.playClip(ctx, voice.Clip(ClipReminderCreated))
}

func (a *Agent) list(ctx context.Context) {
	if err := a.reload(ctx); err != nil {
		a.reminders = nil
		a.setFeedback(msgListFailed, FeedbackError)
		a.setState(StateWelcome)
		a.say(ctx, msgListFailed)
		return
	}
	if n := len(a.reminders); n > 0 {
		a.say(ctx, countMessage(n))
	} else {
		a.playClip(ctx, voice.Clip(ClipNoReminders))
	}
	a.setState(StateWelcome)
}

func (a *Agent) requestDelete(ctx context.Context, name string, byVoice bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	p := &PendingDelete{Name: name, ID: name}
	if r, ok := reminder.Find(a.reminders, name); ok {
		p.Name = r.Name
		p.ID = r.Ident()
	}
	a.pending = p
	a.publish()

	a.playClip(ctx, voice.Clip(ClipWantToDelete))
	if byVoice {
		a.settleAndListen(ctx, a.cfg.Delays.Prompt)
	}
}

func (a *Agent) confirmDelete(ctx context.Context) {
	p := a.pending
	if p == nil {
		return
	}
	a.pending = nil
	a.publish()

	if err := a.storeCall(ctx, "delete", func(ctx context.Context) error { return a.store.Delete(ctx, p.ID) }); err != nil {
		a.setFeedback(msgDeleteFailed, FeedbackError)
		a.setState(StateWelcome)
		a.say(ctx, msgDeleteFailed)
		return
	}
	a.log.Info("reminder deleted", "name", p.Name, "id", p.ID)
	a.metrics.RemindersDeleted.Inc()
	a.reload(ctx)
	a.playClip(ctx, voice.Clip(ClipDeleted))
	a.setState(StateWelcome)
}

func (a *Agent) cancelDelete() {
	a.pending = nil
	a.setState(StateWelcome)
	a.publish()
}

func (a *Agent) speakReminder(ctx context.Context, id string) {
	for _, v := range a.views() {
		if v.ID == id || (v.ID == "" && v.Name == id) {
			a.say(ctx, describe(v))
			return
		}
	}
	a.log.Warn("speak: no such reminder", "id", id)
}

func (a *Agent) announce(ctx context.Context, r reminder.Reminder) {
	if a.recording || !a.state.idle() || a.status != StatusReady || a.pending != nil {
		a.log.Info("busy, skipping announcement", "name", r.Name)
		return
	}
	a.say(ctx, announcement(a.viewOf(r)))
}

func (a *Agent) reload(ctx context.Context) error {
	var list []reminder.Reminder
	err := a.storeCall(ctx, "list", func(ctx context.Context) error {
		var err error
		list, err = a.store.List(ctx)
		return err
	})
	if err != nil {
		return err
	}
	a.reminders = list
	a.publish()
	return nil
}

func (a *Agent) storeCall(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := a.tracer.Start(ctx, "store."+op)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.metrics.StoreErrors.WithLabelValues(op).Inc()
		a.log.Error("reminder store call failed", "op", op, "error", err)
		return err
	}
	return nil
}

func (a *Agent) setState(s State) {
	if s == a.state {
		return
	}
	a.metrics.StateTransitions.WithLabelValues(a.state.String(), s.String()).Inc()
	a.log.Debug("state transition", "from", a.state.String(), "to", s.String())
	a.state = s
	a.publish()
}

func (a *Agent) setFeedback(msg string, t FeedbackType) {
	a.feedback = &Feedback{Message: msg, Type: t}
	a.publish()
}

func (a *Agent) viewOf(r reminder.Reminder) ReminderView {
	return ReminderView{
		ID:         r.ID,
		Name:       r.Name,
		Date:       r.Date,
		Time:       r.Time,
		Repeat:     r.Repeat,
		RepeatDays: r.RepeatDays,
		Urgency:    r.Urgency(a.cfg.Now()).String(),
	}
}

func (a *Agent) views() []ReminderView {
	out := make([]ReminderView, 0, len(a.reminders))
	for _, r := range a.reminders {
		out = append(out, a.viewOf(r))
	}
	return out
}

// publish copies the loop-owned state into the host view and wakes
// subscribers.
func (a *Agent) publish() {
	snap := Snapshot{
		State:     a.state,
		Status:    a.status,
		Recording: a.recording,
		Reminders: a.views(),
		Draft:     a.draft,
	}
	if a.feedback != nil {
		f := *a.feedback
		snap.Feedback = &f
	}
	if a.pending != nil {
		p := *a.pending
		snap.PendingDelete = &p
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.view = snap
	for ch := range a.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
