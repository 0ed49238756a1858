// Package nlu normalizes the external language-model call into the
// {message, intent, functionCalls} shape the flow controller consumes.
package nlu

import (
	"context"
	"errors"
	"strings"
)

type Intent string

const (
	IntentBookNew       Intent = "book_new"
	IntentReschedule    Intent = "reschedule"
	IntentCancel        Intent = "cancel"
	IntentWhatToPrepare Intent = "what_to_prepare"
	IntentAvailability  Intent = "check_availability"
	IntentGreeting      Intent = "greeting"
	IntentUnknown       Intent = "unknown"
)

// Function names the model may call.
const (
	FnSelectTopic           = "select_topic"
	FnCollectTimePreference = "collect_time_preference"
	FnSelectSlot            = "select_slot"
	FnProvideBookingCode    = "provide_booking_code"
	FnConfirmAction         = "confirm_action"
)

// confirm_action argument values.
const (
	ActionConfirmBooking    = "confirm_booking"
	ActionConfirmReschedule = "confirm_reschedule"
	ActionConfirmCancel     = "confirm_cancel"
)

type FunctionCall struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

// Result is the normalized NLU output. FunctionCalls may be empty.
type Result struct {
	Message       string
	Intent        Intent
	FunctionCalls []FunctionCall
}

var ErrNotConfigured = errors.New("nlu client is not configured")

// SessionSnapshot carries the read-only pieces of conversation state
// the prompt needs.
type SessionSnapshot struct {
	CurrentStep    string
	Topic          string
	DatePreference string
	TimePreference string
	History        []HistoryTurn
}

type HistoryTurn struct {
	Role    string
	Content string
}

type Client interface {
	Process(ctx context.Context, userMessage string, snapshot SessionSnapshot) (Result, error)
}

// DetectIntent classifies the user's purpose with keyword matching.
// Deterministic on purpose: control decisions never depend on model
// output alone.
func DetectIntent(message string) Intent {
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower, "book", "schedule", "appointment"):
		return IntentBookNew
	case containsAny(lower, "reschedule", "change time", "different time"):
		return IntentReschedule
	case strings.Contains(lower, "cancel"):
		return IntentCancel
	case containsAny(lower, "prepare", "what to bring", "documents"):
		return IntentWhatToPrepare
	case containsAny(lower, "available", "slots", "when can"):
		return IntentAvailability
	case containsAny(lower, "hello", "hi", "hey"):
		return IntentGreeting
	}
	return IntentUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
