package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrBookingNotFound = errors.New("booking not found")

// Repository persists booking records. Keyed by booking id with a
// secondary index on booking code. Records are never deleted in normal
// operation; cancellation is a status flip.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	Update(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByCode(ctx context.Context, code string) (*Booking, error)

	// Expiry worker
	FindExpiredTentative(ctx context.Context, now time.Time) ([]Booking, error)

	// Explicit removal only, never part of the conversational flow.
	Remove(ctx context.Context, id uuid.UUID) error
}

// Connector is the narrow interface to the external calendar, record
// sheet and email drafting system. Every call is best-effort: failures
// are caught at the call site and never abort the primary mutation.
type Connector interface {
	CreateHold(ctx context.Context, b *Booking) (holdID string, err error)
	UpdateHold(ctx context.Context, holdID string, b *Booking) error
	DeleteHold(ctx context.Context, holdID string) error
	AppendRecord(ctx context.Context, b *Booking) (recordRef string, err error)
	UpdateRecord(ctx context.Context, recordRef string, b *Booking) error
	MarkCancelled(ctx context.Context, recordRef string) error
	DraftNotificationEmail(ctx context.Context, b *Booking) (draftID string, err error)
}
