package conversation

import (
	"time"

	"github.com/northlane/advisor-scheduling/internal/booking"
	"github.com/northlane/advisor-scheduling/internal/nlu"
)

// Step is the session's position in the booking workflow.
type Step string

const (
	StepInitial          Step = "INITIAL"
	StepGreet            Step = "GREET"
	StepDisclaimer       Step = "DISCLAIMER"
	StepTopicSelection   Step = "TOPIC_SELECTION"
	StepTimePreference   Step = "TIME_PREFERENCE"
	StepSlotOffering     Step = "SLOT_OFFERING"
	StepConfirmation     Step = "CONFIRMATION"
	StepValidateCode     Step = "VALIDATE_CODE"
	StepCancellation     Step = "CANCELLATION"
	StepAvailabilityList Step = "AVAILABILITY_LIST"
	StepComplete         Step = "COMPLETE"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type StateTransition struct {
	From Step `json:"from"`
	To   Step `json:"to"`
}

type TurnMeta struct {
	FunctionCalls   []nlu.FunctionCall `json:"functionCalls,omitempty"`
	StateTransition *StateTransition   `json:"stateTransition,omitempty"`
}

// Turn is one entry in a session's append-only history.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Meta      *TurnMeta `json:"metadata,omitempty"`
}

// Context is the mutable bag the flow accumulates across turns. It is
// merged field by field, never replaced wholesale.
type Context struct {
	Topic          booking.Topic
	DatePreference string // ISO date, YYYY-MM-DD
	TimePreference string
	SelectedSlots  []booking.Slot // ordered, first is preferred
	BookingCode    string
	BookingID      string
}

// ContextUpdate carries the fields one turn wants to change. Nil
// fields leave the current value untouched.
type ContextUpdate struct {
	Topic          *booking.Topic
	DatePreference *string
	TimePreference *string
	SelectedSlots  *[]booking.Slot
	BookingCode    *string
	BookingID      *string
}

func (u ContextUpdate) isZero() bool {
	return u.Topic == nil && u.DatePreference == nil && u.TimePreference == nil &&
		u.SelectedSlots == nil && u.BookingCode == nil && u.BookingID == nil
}

// merge folds a later update into this one; later fields win.
func (u *ContextUpdate) merge(other ContextUpdate) {
	if other.Topic != nil {
		u.Topic = other.Topic
	}
	if other.DatePreference != nil {
		u.DatePreference = other.DatePreference
	}
	if other.TimePreference != nil {
		u.TimePreference = other.TimePreference
	}
	if other.SelectedSlots != nil {
		u.SelectedSlots = other.SelectedSlots
	}
	if other.BookingCode != nil {
		u.BookingCode = other.BookingCode
	}
	if other.BookingID != nil {
		u.BookingID = other.BookingID
	}
}

func (c *Context) apply(u ContextUpdate) {
	if u.Topic != nil {
		c.Topic = *u.Topic
	}
	if u.DatePreference != nil {
		c.DatePreference = *u.DatePreference
	}
	if u.TimePreference != nil {
		c.TimePreference = *u.TimePreference
	}
	if u.SelectedSlots != nil {
		c.SelectedSlots = append([]booking.Slot(nil), (*u.SelectedSlots)...)
	}
	if u.BookingCode != nil {
		c.BookingCode = *u.BookingCode
	}
	if u.BookingID != nil {
		c.BookingID = *u.BookingID
	}
}

// State is one conversation's full workflow state. The store owns it;
// callers only ever see copies.
type State struct {
	SessionID    string
	CurrentStep  Step
	Intent       nlu.Intent
	Context      Context
	History      []Turn
	CreatedAt    time.Time
	LastActivity time.Time
}

func (s *State) snapshot() State {
	out := *s
	out.History = append([]Turn(nil), s.History...)
	out.Context.SelectedSlots = append([]booking.Slot(nil), s.Context.SelectedSlots...)
	return out
}

// NLUSnapshot projects the read-only pieces the language model prompt
// needs.
func (s *State) NLUSnapshot() nlu.SessionSnapshot {
	snap := nlu.SessionSnapshot{
		CurrentStep:    string(s.CurrentStep),
		Topic:          string(s.Context.Topic),
		DatePreference: s.Context.DatePreference,
		TimePreference: s.Context.TimePreference,
	}
	for _, turn := range s.History {
		snap.History = append(snap.History, nlu.HistoryTurn{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	return snap
}
