package agent

import (
	"fmt"

	"github.com/chriscow/memora/pkg/reminder"
)

// State is the conversation state of the dialogue engine.
type State int32

const (
	StateWelcome State = iota
	StateListening
	StateReminderName
	StateReminderDate
	StateReminderTime
	StateReminderRepeat
	StateReminderDays
	StateDeleteReminderName
)

func (s State) String() string {
	switch s {
	case StateWelcome:
		return "welcome"
	case StateListening:
		return "listening"
	case StateReminderName:
		return "reminder_name"
	case StateReminderDate:
		return "reminder_date"
	case StateReminderTime:
		return "reminder_time"
	case StateReminderRepeat:
		return "reminder_repeat"
	case StateReminderDays:
		return "reminder_days"
	case StateDeleteReminderName:
		return "delete_reminder_name"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// idle reports whether s is one of the two resting states.
func (s State) idle() bool {
	return s == StateWelcome || s == StateListening
}

// Status is the coarse activity indicator shown to hosts.
type Status string

const (
	StatusReady      Status = "ready"
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
)

// FeedbackType classifies a feedback message.
type FeedbackType string

const (
	FeedbackInfo    FeedbackType = "info"
	FeedbackSuccess FeedbackType = "success"
	FeedbackError   FeedbackType = "error"
)

// Feedback is a short message for the host to display.
type Feedback struct {
	Message string       `json:"message"`
	Type    FeedbackType `json:"type"`
}

// PendingDelete is a delete awaiting confirmation.
type PendingDelete struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ReminderView is a stored reminder plus its urgency at snapshot time.
type ReminderView struct {
	ID         string   `json:"id,omitempty"`
	Name       string   `json:"name"`
	Date       string   `json:"date"`
	Time       string   `json:"time"`
	Repeat     bool     `json:"repeat"`
	RepeatDays []string `json:"repeatDays,omitempty"`
	Urgency    string   `json:"urgency"`
}

// Snapshot is a point-in-time copy of everything a host renders.
type Snapshot struct {
	State         State          `json:"state"`
	Status        Status         `json:"status"`
	Feedback      *Feedback      `json:"feedback,omitempty"`
	Recording     bool           `json:"recording"`
	Reminders     []ReminderView `json:"reminders"`
	PendingDelete *PendingDelete `json:"pendingDelete,omitempty"`
	Draft         reminder.Draft `json:"-"`
}
