package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/northlane/advisor-scheduling/internal/config"
	"github.com/northlane/advisor-scheduling/internal/redisclient"
)

var (
	ErrSlotUnavailable = errors.New("slot is no longer available")
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")
)

// Service performs the authoritative booking mutations. External
// integrations run strictly after the allocator and repository have
// succeeded and never fail the operation.
type Service struct {
	repo      Repository
	allocator *Allocator
	locker    redisclient.Locker
	connector Connector
	cfg       config.Config
	now       func() time.Time
}

func NewService(repo Repository, allocator *Allocator, locker redisclient.Locker, connector Connector, cfg config.Config) *Service {
	return &Service{
		repo:      repo,
		allocator: allocator,
		locker:    locker,
		connector: connector,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *Service) Allocator() *Allocator { return s.allocator }

func (s *Service) GetByCode(ctx context.Context, code string) (*Booking, error) {
	return s.repo.GetByCode(ctx, code)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

// Create books the slot and persists a tentative booking. The slot
// transition runs under the distributed slot lock so concurrent
// requests for the same slot yield exactly one success.
func (s *Service) Create(ctx context.Context, topic Topic, slot Slot, preferredDate *time.Time, preferredTime string) (*Booking, error) {
	code := generateUniqueCode(ctx, s.repo)

	var booked Slot
	err := s.locker.WithSlotLock(ctx, slot.ID, func(lockCtx context.Context) error {
		var err error
		booked, err = s.allocator.Book(slot.ID, code)
		if errors.Is(err, ErrSlotNotFound) {
			// Slot came from an external calendar query and is not in
			// the local index yet.
			booked = s.allocator.BookByValue(slot, code)
			return nil
		}
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrSlotNotAvailable) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("book slot: %w", err)
	}

	now := s.now()
	b := &Booking{
		ID:            uuid.New(),
		BookingCode:   code,
		Topic:         topic,
		PreferredDate: preferredDate,
		PreferredTime: preferredTime,
		SelectedSlot:  booked,
		Status:        StatusTentative,
		SecureURL:     fmt.Sprintf("/booking/%s", code),
		ExpiresAt:     now.Add(s.cfg.BookingTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, b); err != nil {
		s.allocator.Release(booked.ID)
		return nil, fmt.Errorf("persist booking: %w", err)
	}

	s.runSaga(ctx, b,
		sagaStep{"calendar_hold", func() (string, error) { return s.connector.CreateHold(ctx, b) }, &b.CalendarHoldID},
		sagaStep{"sheet_record", func() (string, error) { return s.connector.AppendRecord(ctx, b) }, &b.NotesDocID},
		sagaStep{"email_draft", func() (string, error) { return s.connector.DraftNotificationEmail(ctx, b) }, &b.EmailDraftID},
	)

	return b, nil
}

// Reschedule rebinds the booking to a new slot, preserving its code
// and resetting status to tentative.
func (s *Service) Reschedule(ctx context.Context, code string, newSlot Slot) (*Booking, error) {
	b, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	oldSlotID := b.SelectedSlot.ID

	var booked Slot
	err = s.locker.WithSlotLock(ctx, newSlot.ID, func(lockCtx context.Context) error {
		var err error
		booked, err = s.allocator.Book(newSlot.ID, code)
		if errors.Is(err, ErrSlotNotFound) {
			booked = s.allocator.BookByValue(newSlot, code)
			return nil
		}
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrSlotNotAvailable) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("book new slot: %w", err)
	}

	if oldSlotID != "" && oldSlotID != booked.ID {
		s.allocator.Release(oldSlotID)
	}

	b.SelectedSlot = booked
	b.Status = StatusTentative
	b.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("persist reschedule: %w", err)
	}

	s.runSaga(ctx, b,
		sagaStep{"calendar_hold_update", func() (string, error) {
			if b.CalendarHoldID == "" {
				return "", nil
			}
			return b.CalendarHoldID, s.connector.UpdateHold(ctx, b.CalendarHoldID, b)
		}, nil},
		sagaStep{"sheet_record_update", func() (string, error) {
			if b.NotesDocID == "" {
				return "", nil
			}
			return b.NotesDocID, s.connector.UpdateRecord(ctx, b.NotesDocID, b)
		}, nil},
	)

	return b, nil
}

// Cancel releases the slot and flips the booking to cancelled. The
// record is kept for audit.
func (s *Service) Cancel(ctx context.Context, code string) (*Booking, error) {
	b, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if b.SelectedSlot.ID != "" {
		s.allocator.Release(b.SelectedSlot.ID)
	}

	b.Status = StatusCancelled
	b.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("persist cancellation: %w", err)
	}

	s.runSaga(ctx, b,
		sagaStep{"calendar_hold_delete", func() (string, error) {
			if b.CalendarHoldID == "" {
				return "", nil
			}
			return b.CalendarHoldID, s.connector.DeleteHold(ctx, b.CalendarHoldID)
		}, nil},
		sagaStep{"sheet_record_cancel", func() (string, error) {
			if b.NotesDocID == "" {
				return "", nil
			}
			return b.NotesDocID, s.connector.MarkCancelled(ctx, b.NotesDocID)
		}, nil},
	)

	return b, nil
}

// ExpireTentative is called by the expiry worker. Tentative bookings
// past their contact-collection window are cancelled and their slots
// released.
func (s *Service) ExpireTentative(ctx context.Context) error {
	expired, err := s.repo.FindExpiredTentative(ctx, s.now())
	if err != nil {
		return fmt.Errorf("find expired tentative bookings: %w", err)
	}

	for i := range expired {
		b := expired[i]
		if b.SelectedSlot.ID != "" {
			s.allocator.Release(b.SelectedSlot.ID)
		}
		b.Status = StatusCancelled
		b.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, &b); err != nil {
			log.Printf("failed to expire booking %s: %v", b.BookingCode, err)
			continue
		}
		log.Printf("expired tentative booking code=%s slot=%s", b.BookingCode, b.SelectedSlot.ID)
	}

	return nil
}

type sagaStep struct {
	name string
	run  func() (string, error)
	ref  *string
}

// runSaga attempts each integration step, records the per-step outcome
// on the booking and persists the audit trail. A step failure never
// aborts the saga or the booking.
func (s *Service) runSaga(ctx context.Context, b *Booking, steps ...sagaStep) {
	for _, step := range steps {
		ref, err := step.run()

		outcome := IntegrationOutcome{Step: step.name, Ref: ref, At: s.now()}
		if err != nil {
			outcome.Err = err.Error()
			log.Printf("integration step %s failed for booking %s: %v", step.name, b.BookingCode, err)
		} else if step.ref != nil {
			*step.ref = ref
		}
		b.Integrations = append(b.Integrations, outcome)
	}

	b.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, b); err != nil {
		log.Printf("failed to persist integration outcomes for booking %s: %v", b.BookingCode, err)
	}
}
