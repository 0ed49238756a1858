package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/northlane/advisor-scheduling/internal/booking"
	"github.com/northlane/advisor-scheduling/internal/config"
	"github.com/northlane/advisor-scheduling/internal/connector"
	"github.com/northlane/advisor-scheduling/internal/guardrails"
	"github.com/northlane/advisor-scheduling/internal/nlu"
	"github.com/northlane/advisor-scheduling/internal/redisclient"
)

type stubNLU struct {
	result nlu.Result
	err    error
}

func (s stubNLU) Process(ctx context.Context, userMessage string, snapshot nlu.SessionSnapshot) (nlu.Result, error) {
	return s.result, s.err
}

func newTestOrchestrator(t *testing.T, client nlu.Client) (*Orchestrator, *MemoryStore) {
	t.Helper()

	alloc := booking.NewAllocator(testLoc, booking.WithClock(flowTestNow))
	repo := booking.NewMemoryRepository()
	svc := booking.NewService(repo, alloc, redisclient.NoopLocker{}, connector.Noop{}, config.Config{
		BookingTTL: 24 * time.Hour,
	})

	flow := NewFlow(svc, testLoc)
	flow.now = flowTestNow

	store := NewMemoryStore()
	return NewOrchestrator(store, flow, client), store
}

func TestStartSession(t *testing.T) {
	o, store := newTestOrchestrator(t, nil)

	resp := o.StartSession()
	if resp.SessionID == "" {
		t.Fatal("start must return a session id")
	}
	if resp.CurrentStep != StepDisclaimer {
		t.Errorf("step = %s, want %s", resp.CurrentStep, StepDisclaimer)
	}
	if !strings.Contains(resp.Message, MsgGreet) {
		t.Errorf("greeting missing: %q", resp.Message)
	}

	state, ok := store.Get(resp.SessionID)
	if !ok {
		t.Fatal("session not stored")
	}
	if state.CurrentStep != StepDisclaimer {
		t.Errorf("stored step = %s, want %s", state.CurrentStep, StepDisclaimer)
	}
}

func TestProcessMessageUnknownSession(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)

	_, err := o.ProcessMessage(context.Background(), "no-such-session", "hello")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestProcessMessagePIIGate(t *testing.T) {
	o, store := newTestOrchestrator(t, nil)
	start := o.StartSession()

	resp, err := o.ProcessMessage(context.Background(), start.SessionID, "call me at 9876543210")
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if !resp.PIIDetected {
		t.Fatal("pii not flagged")
	}
	if resp.Message != guardrails.PIIRefusal {
		t.Errorf("message = %q, want refusal", resp.Message)
	}
	if resp.CurrentStep != StepDisclaimer {
		t.Errorf("pii gate must not change the step, got %s", resp.CurrentStep)
	}

	state, _ := store.Get(start.SessionID)
	for _, turn := range state.History {
		if strings.Contains(turn.Content, "9876543210") {
			t.Fatal("raw pii stored in history")
		}
	}
	var redacted bool
	for _, turn := range state.History {
		if turn.Role == RoleUser && turn.Content == guardrails.RedactionPlaceholder {
			redacted = true
		}
	}
	if !redacted {
		t.Error("redaction placeholder missing from history")
	}
}

func TestProcessMessageInvestmentAdviceGate(t *testing.T) {
	o, store := newTestOrchestrator(t, nil)
	start := o.StartSession()

	const msg = "should i invest in mid-cap funds?"
	resp, err := o.ProcessMessage(context.Background(), start.SessionID, msg)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if !resp.InvestmentAdviceDetected {
		t.Fatal("advice not flagged")
	}
	if len(resp.EducationalLinks) == 0 {
		t.Error("expected educational links alongside the refusal")
	}
	if resp.CurrentStep != StepDisclaimer {
		t.Errorf("advice gate must not change the step, got %s", resp.CurrentStep)
	}

	// Unlike PII, the triggering message itself is recorded.
	state, _ := store.Get(start.SessionID)
	var recorded bool
	for _, turn := range state.History {
		if turn.Role == RoleUser && turn.Content == msg {
			recorded = true
		}
	}
	if !recorded {
		t.Error("advice-triggering message should be stored verbatim")
	}
}

func TestProcessMessageNLUErrorIsSoft(t *testing.T) {
	o, store := newTestOrchestrator(t, stubNLU{err: errors.New("model unavailable")})
	start := o.StartSession()

	resp, err := o.ProcessMessage(context.Background(), start.SessionID, "book an appointment")
	if err != nil {
		t.Fatalf("nlu failure must not surface as an error: %v", err)
	}
	if !strings.Contains(resp.Message, "I apologize") {
		t.Errorf("expected apology message, got %q", resp.Message)
	}
	if resp.CurrentStep != StepDisclaimer {
		t.Errorf("nlu failure must not change the step, got %s", resp.CurrentStep)
	}

	state, _ := store.Get(start.SessionID)
	last := state.History[len(state.History)-1]
	if last.Role != RoleAssistant || !strings.Contains(last.Content, "I apologize") {
		t.Errorf("apology not recorded: %+v", last)
	}
}

func TestProcessMessageNotConfiguredFallsBackToKeywords(t *testing.T) {
	o, _ := newTestOrchestrator(t, stubNLU{err: nlu.ErrNotConfigured})
	start := o.StartSession()

	// DISCLAIMER + topic keyword should move to topic confirmation even
	// with no language model behind the client.
	resp, err := o.ProcessMessage(context.Background(), start.SessionID, "it's about my kyc verification")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.CurrentStep != StepTopicSelection {
		t.Errorf("step = %s, want %s", resp.CurrentStep, StepTopicSelection)
	}
}

func TestProcessMessageFullHappyPath(t *testing.T) {
	o, store := newTestOrchestrator(t, nil)
	ctx := context.Background()

	start := o.StartSession()
	sid := start.SessionID

	say := func(msg string) Response {
		t.Helper()
		resp, err := o.ProcessMessage(ctx, sid, msg)
		if err != nil {
			t.Fatalf("process %q: %v", msg, err)
		}
		return resp
	}

	resp := say("I'd like to talk about kyc")
	if resp.CurrentStep != StepTopicSelection {
		t.Fatalf("after topic mention step = %s", resp.CurrentStep)
	}

	resp = say("yes")
	if resp.CurrentStep != StepTimePreference {
		t.Fatalf("after topic confirm step = %s", resp.CurrentStep)
	}

	resp = say("tomorrow afternoon")
	if resp.CurrentStep != StepSlotOffering {
		t.Fatalf("after preference step = %s", resp.CurrentStep)
	}
	if len(resp.Slots) != 2 {
		t.Fatalf("offered %d slots, want 2", len(resp.Slots))
	}

	resp = say("slot 1")
	if resp.CurrentStep != StepConfirmation {
		t.Fatalf("after selection step = %s", resp.CurrentStep)
	}

	resp = say("yes, book it")
	if resp.CurrentStep != StepComplete {
		t.Fatalf("after confirmation step = %s", resp.CurrentStep)
	}
	if !booking.ValidateCode(resp.BookingCode) {
		t.Fatalf("bad booking code %q", resp.BookingCode)
	}

	state, _ := store.Get(sid)
	if state.Context.BookingCode != resp.BookingCode {
		t.Errorf("booking code not persisted to session context")
	}
}
