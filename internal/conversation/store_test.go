package conversation

import (
	"testing"
	"time"

	"github.com/northlane/advisor-scheduling/internal/booking"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()

	state := store.Create()
	if state.SessionID == "" {
		t.Fatal("session id must be assigned")
	}
	if state.CurrentStep != StepInitial {
		t.Errorf("new session step = %s, want %s", state.CurrentStep, StepInitial)
	}

	got, ok := store.Get(state.SessionID)
	if !ok {
		t.Fatal("created session not found")
	}
	if got.SessionID != state.SessionID {
		t.Errorf("session id mismatch")
	}

	if _, ok := store.Get("missing"); ok {
		t.Error("unknown session id should not resolve")
	}
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	store := NewMemoryStore()
	state := store.Create()

	snap, _ := store.Get(state.SessionID)
	snap.CurrentStep = StepComplete
	snap.Context.Topic = booking.TopicKYC

	fresh, _ := store.Get(state.SessionID)
	if fresh.CurrentStep != StepInitial || fresh.Context.Topic != "" {
		t.Error("mutating a snapshot must not affect the stored session")
	}
}

func TestMemoryStoreAppendTurnOrder(t *testing.T) {
	store := NewMemoryStore()
	state := store.Create()

	store.AppendTurn(state.SessionID, Turn{Role: RoleUser, Content: "first"})
	store.AppendTurn(state.SessionID, Turn{Role: RoleAssistant, Content: "second"})
	store.AppendTurn(state.SessionID, Turn{Role: RoleUser, Content: "third"})

	got, _ := store.Get(state.SessionID)
	if len(got.History) != 3 {
		t.Fatalf("history length = %d, want 3", len(got.History))
	}
	for i, want := range []string{"first", "second", "third"} {
		if got.History[i].Content != want {
			t.Errorf("history[%d] = %q, want %q", i, got.History[i].Content, want)
		}
	}
}

func TestMemoryStoreTransitionStep(t *testing.T) {
	store := NewMemoryStore()
	state := store.Create()

	store.TransitionStep(state.SessionID, StepDisclaimer)

	got, _ := store.Get(state.SessionID)
	if got.CurrentStep != StepDisclaimer {
		t.Fatalf("step = %s, want %s", got.CurrentStep, StepDisclaimer)
	}
	if len(got.History) != 1 {
		t.Fatalf("transition should log one system turn, got %d", len(got.History))
	}
	turn := got.History[0]
	if turn.Role != RoleSystem || turn.Meta == nil || turn.Meta.StateTransition == nil {
		t.Fatalf("transition turn malformed: %+v", turn)
	}
	if turn.Meta.StateTransition.From != StepInitial || turn.Meta.StateTransition.To != StepDisclaimer {
		t.Errorf("transition = %+v", turn.Meta.StateTransition)
	}

	// Same-step transition is a no-op.
	store.TransitionStep(state.SessionID, StepDisclaimer)
	got, _ = store.Get(state.SessionID)
	if len(got.History) != 1 {
		t.Errorf("same-step transition should not log, history=%d", len(got.History))
	}
}

func TestMemoryStoreUpdateContext(t *testing.T) {
	store := NewMemoryStore()
	state := store.Create()

	topic := booking.TopicSIP
	date := "2026-01-06"
	store.UpdateContext(state.SessionID, ContextUpdate{Topic: &topic, DatePreference: &date})

	got, _ := store.Get(state.SessionID)
	if got.Context.Topic != topic || got.Context.DatePreference != date {
		t.Fatalf("context not applied: %+v", got.Context)
	}

	// A later partial update leaves untouched fields alone.
	tp := "afternoon"
	store.UpdateContext(state.SessionID, ContextUpdate{TimePreference: &tp})
	got, _ = store.Get(state.SessionID)
	if got.Context.Topic != topic || got.Context.TimePreference != tp {
		t.Errorf("partial update clobbered context: %+v", got.Context)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore()

	base := time.Date(2026, time.January, 5, 10, 0, 0, 0, time.UTC)
	clock := base
	store.now = func() time.Time { return clock }

	stale := store.Create()
	clock = base.Add(20 * time.Minute)
	fresh := store.Create()

	clock = base.Add(35 * time.Minute)
	evicted := store.Sweep(30 * time.Minute)

	if evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if _, ok := store.Get(stale.SessionID); ok {
		t.Error("stale session should be evicted")
	}
	if _, ok := store.Get(fresh.SessionID); !ok {
		t.Error("fresh session should survive")
	}
	if store.Len() != 1 {
		t.Errorf("len = %d, want 1", store.Len())
	}
}

func TestMemoryStoreSweepRefreshedByActivity(t *testing.T) {
	store := NewMemoryStore()

	base := time.Date(2026, time.January, 5, 10, 0, 0, 0, time.UTC)
	clock := base
	store.now = func() time.Time { return clock }

	state := store.Create()

	// Activity just before the cutoff keeps the session alive.
	clock = base.Add(25 * time.Minute)
	store.AppendTurn(state.SessionID, Turn{Role: RoleUser, Content: "still here"})

	clock = base.Add(40 * time.Minute)
	if n := store.Sweep(30 * time.Minute); n != 0 {
		t.Fatalf("evicted = %d, want 0", n)
	}
	if _, ok := store.Get(state.SessionID); !ok {
		t.Error("active session should survive the sweep")
	}
}
