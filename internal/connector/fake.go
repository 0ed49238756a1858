package connector

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/northlane/advisor-scheduling/internal/booking"
)

// Fake fabricates plausible correlation ids so dev and simulation runs
// exercise the full saga, including the audit trail on the booking.
type Fake struct {
	mu      sync.Mutex
	nextRow int
}

var _ booking.Connector = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{nextRow: 2} // row 1 is the sheet header
}

func (f *Fake) CreateHold(ctx context.Context, b *booking.Booking) (string, error) {
	return "evt_" + gofakeit.LetterN(12), nil
}

func (f *Fake) UpdateHold(ctx context.Context, holdID string, b *booking.Booking) error {
	return nil
}

func (f *Fake) DeleteHold(ctx context.Context, holdID string) error {
	return nil
}

func (f *Fake) AppendRecord(ctx context.Context, b *booking.Booking) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.nextRow
	f.nextRow++
	return strconv.Itoa(row), nil
}

func (f *Fake) UpdateRecord(ctx context.Context, recordRef string, b *booking.Booking) error {
	return nil
}

func (f *Fake) MarkCancelled(ctx context.Context, recordRef string) error {
	return nil
}

func (f *Fake) DraftNotificationEmail(ctx context.Context, b *booking.Booking) (string, error) {
	return fmt.Sprintf("draft_%s", gofakeit.UUID()), nil
}
