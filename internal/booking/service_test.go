package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/northlane/advisor-scheduling/internal/config"
	"github.com/northlane/advisor-scheduling/internal/redisclient"
)

type stubConnector struct {
	holdID    string
	recordRef string
	draftID   string
	err       error

	deletedHold     string
	cancelledRecord string
}

func (c *stubConnector) CreateHold(ctx context.Context, b *Booking) (string, error) {
	return c.holdID, c.err
}

func (c *stubConnector) UpdateHold(ctx context.Context, holdID string, b *Booking) error {
	return c.err
}

func (c *stubConnector) DeleteHold(ctx context.Context, holdID string) error {
	c.deletedHold = holdID
	return c.err
}

func (c *stubConnector) AppendRecord(ctx context.Context, b *Booking) (string, error) {
	return c.recordRef, c.err
}

func (c *stubConnector) UpdateRecord(ctx context.Context, recordRef string, b *Booking) error {
	return c.err
}

func (c *stubConnector) MarkCancelled(ctx context.Context, recordRef string) error {
	c.cancelledRecord = recordRef
	return c.err
}

func (c *stubConnector) DraftNotificationEmail(ctx context.Context, b *Booking) (string, error) {
	return c.draftID, c.err
}

type refusingLocker struct{}

func (refusingLocker) WithSlotLock(ctx context.Context, slotID string, fn func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

type failingRepo struct {
	*MemoryRepository
}

func (r failingRepo) Create(ctx context.Context, b *Booking) error {
	return errors.New("disk full")
}

func newTestService(conn Connector) (*Service, *Allocator, *MemoryRepository) {
	alloc := newTestAllocator()
	repo := NewMemoryRepository()
	if conn == nil {
		conn = &stubConnector{}
	}
	svc := NewService(repo, alloc, redisclient.NoopLocker{}, conn, config.Config{
		BookingTTL: 24 * time.Hour,
	})
	svc.now = testNow
	return svc, alloc, repo
}

func pickSlot(t *testing.T, alloc *Allocator) Slot {
	t.Helper()
	slots, err := alloc.ListAvailable(context.Background(), nil, "")
	if err != nil || len(slots) == 0 {
		t.Fatalf("no slots: %v", err)
	}
	return slots[0]
}

func TestServiceCreate(t *testing.T) {
	conn := &stubConnector{holdID: "evt_abc", recordRef: "row_2", draftID: "draft_xyz"}
	svc, alloc, _ := newTestService(conn)
	ctx := context.Background()

	slot := pickSlot(t, alloc)
	b, err := svc.Create(ctx, TopicKYC, slot, nil, "morning")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !ValidateCode(b.BookingCode) {
		t.Errorf("code %q invalid", b.BookingCode)
	}
	if b.Status != StatusTentative {
		t.Errorf("status = %s, want %s", b.Status, StatusTentative)
	}
	if b.SecureURL != "/booking/"+b.BookingCode {
		t.Errorf("secure url = %q", b.SecureURL)
	}
	if want := testNow().Add(24 * time.Hour); !b.ExpiresAt.Equal(want) {
		t.Errorf("expires at %s, want %s", b.ExpiresAt, want)
	}

	got, _ := alloc.Get(slot.ID)
	if got.Status != SlotBooked || got.BookingCode != b.BookingCode {
		t.Errorf("slot not booked: %+v", got)
	}

	if b.CalendarHoldID != "evt_abc" || b.NotesDocID != "row_2" || b.EmailDraftID != "draft_xyz" {
		t.Errorf("integration refs not captured: %+v", b)
	}
	if len(b.Integrations) != 3 {
		t.Fatalf("integration outcomes = %d, want 3", len(b.Integrations))
	}
	for _, o := range b.Integrations {
		if o.Err != "" {
			t.Errorf("step %s unexpectedly failed: %s", o.Step, o.Err)
		}
	}

	stored, err := svc.GetByCode(ctx, b.BookingCode)
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if stored.ID != b.ID {
		t.Errorf("stored id mismatch")
	}
}

func TestServiceCreateSlotTaken(t *testing.T) {
	svc, alloc, _ := newTestService(nil)
	ctx := context.Background()

	slot := pickSlot(t, alloc)
	if _, err := alloc.Book(slot.ID, "NL-G700"); err != nil {
		t.Fatalf("pre-book: %v", err)
	}

	if _, err := svc.Create(ctx, TopicSIP, slot, nil, ""); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("err = %v, want ErrSlotUnavailable", err)
	}
}

func TestServiceCreateLockRefused(t *testing.T) {
	alloc := newTestAllocator()
	repo := NewMemoryRepository()
	svc := NewService(repo, alloc, refusingLocker{}, &stubConnector{}, config.Config{BookingTTL: time.Hour})
	svc.now = testNow

	slot := pickSlot(t, alloc)
	if _, err := svc.Create(context.Background(), TopicKYC, slot, nil, ""); !errors.Is(err, ErrSlotBeingBooked) {
		t.Fatalf("err = %v, want ErrSlotBeingBooked", err)
	}

	got, _ := alloc.Get(slot.ID)
	if got.Status != SlotAvailable {
		t.Errorf("refused lock must leave the slot available, got %s", got.Status)
	}
}

func TestServiceCreateReleasesSlotOnPersistFailure(t *testing.T) {
	alloc := newTestAllocator()
	repo := failingRepo{NewMemoryRepository()}
	svc := NewService(repo, alloc, redisclient.NoopLocker{}, &stubConnector{}, config.Config{BookingTTL: time.Hour})
	svc.now = testNow

	slot := pickSlot(t, alloc)
	if _, err := svc.Create(context.Background(), TopicKYC, slot, nil, ""); err == nil {
		t.Fatal("expected persist failure")
	}

	got, _ := alloc.Get(slot.ID)
	if got.Status != SlotAvailable {
		t.Errorf("slot should be released after persist failure, got %s", got.Status)
	}
}

func TestServiceCreateBookByValueForExternalSlot(t *testing.T) {
	svc, alloc, _ := newTestService(nil)

	start := time.Date(2026, time.January, 8, 16, 0, 0, 0, testLoc)
	external := Slot{
		ID:        SlotID(start, testLoc),
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Status:    SlotAvailable,
	}

	b, err := svc.Create(context.Background(), TopicStatements, external, nil, "evening")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, ok := alloc.Get(external.ID)
	if !ok || got.Status != SlotBooked || got.BookingCode != b.BookingCode {
		t.Errorf("external slot not tracked as booked: %+v", got)
	}
}

func TestServiceSagaFailureDoesNotAbort(t *testing.T) {
	conn := &stubConnector{err: errors.New("mcp timeout")}
	svc, _, _ := newTestService(conn)
	alloc := svc.Allocator()

	slot := pickSlot(t, alloc)
	b, err := svc.Create(context.Background(), TopicWithdrawals, slot, nil, "")
	if err != nil {
		t.Fatalf("integration failure must not fail the booking: %v", err)
	}

	if len(b.Integrations) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(b.Integrations))
	}
	for _, o := range b.Integrations {
		if o.Err == "" {
			t.Errorf("step %s should carry the failure", o.Step)
		}
	}

	stored, err := svc.GetByCode(context.Background(), b.BookingCode)
	if err != nil {
		t.Fatalf("booking not persisted: %v", err)
	}
	if len(stored.Integrations) != 3 {
		t.Errorf("audit trail not persisted, outcomes = %d", len(stored.Integrations))
	}
}

func TestServiceReschedule(t *testing.T) {
	svc, alloc, _ := newTestService(&stubConnector{holdID: "evt_1", recordRef: "row_3"})
	ctx := context.Background()

	slots, err := alloc.ListAvailable(ctx, nil, "")
	if err != nil || len(slots) < 2 {
		t.Fatalf("need two slots: %v", err)
	}

	b, err := svc.Create(ctx, TopicAccount, slots[0], nil, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	code := b.BookingCode

	updated, err := svc.Reschedule(ctx, code, slots[1])
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	if updated.BookingCode != code {
		t.Errorf("reschedule changed the code: %s", updated.BookingCode)
	}
	if updated.SelectedSlot.ID != slots[1].ID {
		t.Errorf("slot = %s, want %s", updated.SelectedSlot.ID, slots[1].ID)
	}
	if updated.Status != StatusTentative {
		t.Errorf("status = %s, want %s", updated.Status, StatusTentative)
	}

	old, _ := alloc.Get(slots[0].ID)
	if old.Status != SlotAvailable {
		t.Errorf("old slot not released: %s", old.Status)
	}
	niu, _ := alloc.Get(slots[1].ID)
	if niu.Status != SlotBooked || niu.BookingCode != code {
		t.Errorf("new slot not booked: %+v", niu)
	}
}

func TestServiceRescheduleUnknownCode(t *testing.T) {
	svc, alloc, _ := newTestService(nil)

	slot := pickSlot(t, alloc)
	if _, err := svc.Reschedule(context.Background(), "NL-Q000", slot); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("err = %v, want ErrBookingNotFound", err)
	}
}

func TestServiceCancel(t *testing.T) {
	conn := &stubConnector{holdID: "evt_9", recordRef: "row_7"}
	svc, alloc, _ := newTestService(conn)
	ctx := context.Background()

	slot := pickSlot(t, alloc)
	b, err := svc.Create(ctx, TopicKYC, slot, nil, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, b.BookingCode)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %s, want %s", cancelled.Status, StatusCancelled)
	}

	got, _ := alloc.Get(slot.ID)
	if got.Status != SlotAvailable {
		t.Errorf("slot not released on cancel: %s", got.Status)
	}

	// Record is kept for audit.
	if _, err := svc.GetByCode(ctx, b.BookingCode); err != nil {
		t.Errorf("cancelled booking should remain readable: %v", err)
	}

	if conn.deletedHold != "evt_9" {
		t.Errorf("calendar hold not deleted, got %q", conn.deletedHold)
	}
	if conn.cancelledRecord != "row_7" {
		t.Errorf("record not marked cancelled, got %q", conn.cancelledRecord)
	}
}

func TestServiceExpireTentative(t *testing.T) {
	svc, alloc, _ := newTestService(nil)
	ctx := context.Background()

	slot := pickSlot(t, alloc)
	b, err := svc.Create(ctx, TopicSIP, slot, nil, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Advance past the contact-collection window.
	svc.now = func() time.Time { return testNow().Add(25 * time.Hour) }

	if err := svc.ExpireTentative(ctx); err != nil {
		t.Fatalf("expire: %v", err)
	}

	expired, err := svc.GetByCode(ctx, b.BookingCode)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if expired.Status != StatusCancelled {
		t.Errorf("status = %s, want %s", expired.Status, StatusCancelled)
	}

	got, _ := alloc.Get(slot.ID)
	if got.Status != SlotAvailable {
		t.Errorf("expired slot not released: %s", got.Status)
	}
}
