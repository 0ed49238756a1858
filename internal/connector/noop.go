// Package connector provides implementations of the external
// booking-system interface (calendar holds, record sheet, email
// drafts). The flow always talks to the same interface; which
// implementation is injected depends on configuration.
package connector

import (
	"context"

	"github.com/northlane/advisor-scheduling/internal/booking"
)

// Noop is wired when integrations are disabled. Every call succeeds
// without producing a correlation id, so bookings carry no external
// references.
type Noop struct{}

var _ booking.Connector = Noop{}

func (Noop) CreateHold(ctx context.Context, b *booking.Booking) (string, error) { return "", nil }

func (Noop) UpdateHold(ctx context.Context, holdID string, b *booking.Booking) error { return nil }

func (Noop) DeleteHold(ctx context.Context, holdID string) error { return nil }

func (Noop) AppendRecord(ctx context.Context, b *booking.Booking) (string, error) { return "", nil }

func (Noop) UpdateRecord(ctx context.Context, recordRef string, b *booking.Booking) error {
	return nil
}

func (Noop) MarkCancelled(ctx context.Context, recordRef string) error { return nil }

func (Noop) DraftNotificationEmail(ctx context.Context, b *booking.Booking) (string, error) {
	return "", nil
}
