package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps bookings in process memory. Used when no
// Postgres DSN is configured and throughout the tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]Booking
	byCode map[string]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[uuid.UUID]Booking),
		byCode: make(map[string]uuid.UUID),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[b.ID] = cloneBooking(b)
	r.byCode[b.BookingCode] = b.ID
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[b.ID]; !ok {
		return ErrBookingNotFound
	}
	r.byID[b.ID] = cloneBooking(b)
	r.byCode[b.BookingCode] = b.ID
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	out := cloneBooking(&b)
	return &out, nil
}

func (r *MemoryRepository) GetByCode(ctx context.Context, code string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCode[code]
	if !ok {
		return nil, ErrBookingNotFound
	}
	b := r.byID[id]
	out := cloneBooking(&b)
	return &out, nil
}

func (r *MemoryRepository) FindExpiredTentative(ctx context.Context, now time.Time) ([]Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Booking
	for _, b := range r.byID {
		if b.Status == StatusTentative && !b.ExpiresAt.IsZero() && b.ExpiresAt.Before(now) {
			out = append(out, cloneBooking(&b))
		}
	}
	return out, nil
}

func (r *MemoryRepository) Remove(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byID[id]
	if !ok {
		return ErrBookingNotFound
	}
	delete(r.byID, id)
	delete(r.byCode, b.BookingCode)
	return nil
}

func cloneBooking(b *Booking) Booking {
	out := *b
	if b.PreferredDate != nil {
		d := *b.PreferredDate
		out.PreferredDate = &d
	}
	if len(b.Integrations) > 0 {
		out.Integrations = append([]IntegrationOutcome(nil), b.Integrations...)
	}
	return out
}
