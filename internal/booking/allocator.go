package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/northlane/advisor-scheduling/internal/dateparse"
)

const (
	businessHourStart = 9  // 09:00 local
	businessHourEnd   = 18 // last slot starts at 17:00
	queryWindowDays   = 7  // business days per availability query
	maxOffered        = 10
)

var (
	ErrSlotNotFound     = errors.New("slot not found")
	ErrSlotNotAvailable = errors.New("slot is not available")
)

// CalendarSource supplies slots from an external calendar. Errors are
// a recoverable degradation: the allocator falls back to generated
// slots.
type CalendarSource interface {
	Slots(ctx context.Context, from, to time.Time) ([]Slot, error)
}

// Allocator owns the slot index. Every status transition goes through
// its mutex, so within a process at most one booking can hold a slot.
type Allocator struct {
	mu     sync.Mutex
	slots  map[string]Slot
	loc    *time.Location
	source CalendarSource
	now    func() time.Time
}

type AllocatorOption func(*Allocator)

func WithCalendarSource(src CalendarSource) AllocatorOption {
	return func(a *Allocator) { a.source = src }
}

func WithClock(now func() time.Time) AllocatorOption {
	return func(a *Allocator) { a.now = now }
}

func NewAllocator(loc *time.Location, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		slots: make(map[string]Slot),
		loc:   loc,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SlotID derives the stable key for a slot from its local date and
// hour, so regenerating a window never forks identities.
func SlotID(start time.Time, loc *time.Location) string {
	local := start.In(loc)
	return fmt.Sprintf("slot-%s-%02d", local.Format("2006-01-02"), local.Hour())
}

// ListAvailable returns up to 10 available slots over the next 7
// business days, starting from datePreference or the next business
// day, optionally narrowed to a time-of-day bucket.
func (a *Allocator) ListAvailable(ctx context.Context, datePreference *time.Time, timePreference string) ([]Slot, error) {
	start := a.windowStart(datePreference)
	end := addBusinessDays(start, queryWindowDays, a.loc)

	var window []Slot
	if a.source != nil {
		external, err := a.source.Slots(ctx, start, end)
		if err != nil {
			log.Printf("calendar source failed, falling back to generated slots: %v", err)
			window = a.generateWindow(start)
		} else {
			window = a.trackExternal(external)
		}
	} else {
		window = a.generateWindow(start)
	}

	available := window[:0]
	for _, s := range window {
		if s.Status == SlotAvailable {
			available = append(available, s)
		}
	}

	if from, to, ok := bucketFor(timePreference); ok {
		filtered := available[:0]
		for _, s := range available {
			h := s.StartTime.In(a.loc).Hour()
			if h >= from && h < to {
				filtered = append(filtered, s)
			}
		}
		available = filtered
	}

	sort.Slice(available, func(i, j int) bool {
		return available[i].StartTime.Before(available[j].StartTime)
	})

	if len(available) > maxOffered {
		available = available[:maxOffered]
	}
	return available, nil
}

// Get returns a copy of the tracked slot.
func (a *Allocator) Get(slotID string) (Slot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.slots[slotID]
	return s, ok
}

// Book transitions exactly one slot from available to booked. A
// refusal means the caller raced another booking or holds a stale
// reference; it must be treated as a booking failure.
func (a *Allocator) Book(slotID, bookingCode string) (Slot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.slots[slotID]
	if !ok {
		return Slot{}, ErrSlotNotFound
	}
	if s.Status != SlotAvailable {
		return Slot{}, ErrSlotNotAvailable
	}

	s.Status = SlotBooked
	s.BookingCode = bookingCode
	a.slots[slotID] = s
	return s, nil
}

// BookByValue inserts and books a slot the allocator has not seen
// before, e.g. one sourced from an external calendar query. The
// caller-supplied slot is the source of truth.
func (a *Allocator) BookByValue(slot Slot, bookingCode string) Slot {
	a.mu.Lock()
	defer a.mu.Unlock()

	slot.Status = SlotBooked
	slot.BookingCode = bookingCode
	a.slots[slot.ID] = slot
	return slot
}

// Release puts a slot back to available. Idempotent; unknown ids are
// a no-op.
func (a *Allocator) Release(slotID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.slots[slotID]
	if !ok {
		return
	}
	s.Status = SlotAvailable
	s.BookingCode = ""
	a.slots[slotID] = s
}

func (a *Allocator) windowStart(datePreference *time.Time) time.Time {
	if datePreference != nil {
		d := datePreference.In(a.loc)
		d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, a.loc)
		if !isBusinessDay(d) {
			d = nextBusinessDay(d, a.loc)
		}
		return d
	}
	return nextBusinessDay(a.now().In(a.loc), a.loc)
}

// generateWindow lazily materializes the slot grid for the query
// window, preserving any status already tracked in the index.
func (a *Allocator) generateWindow(start time.Time) []Slot {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []Slot
	day := start
	for d := 0; d < queryWindowDays; d++ {
		for hour := businessHourStart; hour < businessHourEnd; hour++ {
			startTime := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, a.loc)
			id := SlotID(startTime, a.loc)

			if existing, ok := a.slots[id]; ok {
				out = append(out, existing)
				continue
			}

			s := Slot{
				ID:        id,
				StartTime: startTime,
				EndTime:   startTime.Add(time.Hour),
				Status:    SlotAvailable,
			}
			a.slots[id] = s
			out = append(out, s)
		}
		day = nextBusinessDay(day, a.loc)
	}
	return out
}

func (a *Allocator) trackExternal(external []Slot) []Slot {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Slot, 0, len(external))
	for _, s := range external {
		if existing, ok := a.slots[s.ID]; ok && existing.Status == SlotBooked {
			s.Status = SlotBooked
			s.BookingCode = existing.BookingCode
		}
		a.slots[s.ID] = s
		out = append(out, s)
	}
	return out
}

// bucketFor maps a time preference to a coarse local-hour range:
// morning 9-12, afternoon 12-15, evening 15-18. Explicit clock times
// land in the bucket containing them.
func bucketFor(timePreference string) (from, to int, ok bool) {
	if timePreference == "" {
		return 0, 0, false
	}

	if h := dateparse.Hour(timePreference); h >= 0 {
		switch {
		case h < 12:
			return 9, 12, true
		case h < 15:
			return 12, 15, true
		default:
			return 15, 18, true
		}
	}

	switch timePreference {
	case "morning":
		return 9, 12, true
	case "afternoon":
		return 12, 15, true
	case "evening":
		return 15, 18, true
	}
	return 0, 0, false
}

func isBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// nextBusinessDay rolls Friday, Saturday and Sunday to Monday.
func nextBusinessDay(t time.Time, loc *time.Location) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	for !isBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func addBusinessDays(start time.Time, days int, loc *time.Location) time.Time {
	d := start
	for i := 0; i < days; i++ {
		d = nextBusinessDay(d, loc)
	}
	return d
}
