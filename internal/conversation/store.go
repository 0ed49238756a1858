package conversation

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store owns all session state. Mutations go through Update so a
// session is never observed half-written; the flow controller works on
// snapshots and never holds a live reference.
type Store interface {
	Create() State
	Get(sessionID string) (State, bool)
	Update(sessionID string, fn func(*State)) bool
	Delete(sessionID string)
}

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*State
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*State),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	state := &State{
		SessionID:    uuid.NewString(),
		CurrentStep:  StepInitial,
		CreatedAt:    now,
		LastActivity: now,
	}
	s.sessions[state.SessionID] = state
	return state.snapshot()
}

func (s *MemoryStore) Get(sessionID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return State{}, false
	}
	return state.snapshot(), true
}

// Update applies fn to the live session under the store lock and
// refreshes lastActivity. Returns false for unknown sessions.
func (s *MemoryStore) Update(sessionID string, fn func(*State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	fn(state)
	state.LastActivity = s.now()
	return true
}

func (s *MemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle for longer than ttl and returns how many
// were removed. Eviction is by lastActivity age only.
func (s *MemoryStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	evicted := 0
	for id, state := range s.sessions {
		if state.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps periodically until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(ttl); n > 0 {
				log.Printf("session sweep evicted %d idle sessions", n)
			}
		}
	}
}

// AppendTurn records a turn in the session history. History is
// append-only.
func (s *MemoryStore) AppendTurn(sessionID string, turn Turn) {
	s.Update(sessionID, func(state *State) {
		if turn.Timestamp.IsZero() {
			turn.Timestamp = s.now()
		}
		state.History = append(state.History, turn)
	})
}

// TransitionStep moves the session to a new step and logs the
// transition as a system turn.
func (s *MemoryStore) TransitionStep(sessionID string, next Step) {
	s.Update(sessionID, func(state *State) {
		from := state.CurrentStep
		if from == next {
			return
		}
		state.CurrentStep = next
		state.History = append(state.History, Turn{
			Role:      RoleSystem,
			Content:   "State transition: " + string(from) + " -> " + string(next),
			Timestamp: s.now(),
			Meta: &TurnMeta{
				StateTransition: &StateTransition{From: from, To: next},
			},
		})
	})
}

func (s *MemoryStore) UpdateContext(sessionID string, update ContextUpdate) {
	if update.isZero() {
		return
	}
	s.Update(sessionID, func(state *State) {
		state.Context.apply(update)
	})
}
