package booking

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotHold      SlotStatus = "hold"
)

type BookingStatus string

const (
	StatusTentative  BookingStatus = "tentative"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusCancelled  BookingStatus = "cancelled"
	StatusWaitlisted BookingStatus = "waitlisted"
)

type Topic string

const (
	TopicKYC         Topic = "KYC/Onboarding"
	TopicSIP         Topic = "SIP/Mandates"
	TopicStatements  Topic = "Statements/Tax Docs"
	TopicWithdrawals Topic = "Withdrawals & Timelines"
	TopicAccount     Topic = "Account Changes/Nominee"
)

// Topics in menu order. Keyword ties are broken by this order.
var Topics = []Topic{
	TopicKYC,
	TopicSIP,
	TopicStatements,
	TopicWithdrawals,
	TopicAccount,
}

// Slot is a bookable one-hour interval in business hours.
type Slot struct {
	ID          string     `json:"id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	Status      SlotStatus `json:"status"`
	BookingCode string     `json:"-"`
}

// IntegrationOutcome records one step of the external side-effect saga.
// Failures are kept alongside successes so the display layer can report
// partial success.
type IntegrationOutcome struct {
	Step string
	Ref  string
	Err  string
	At   time.Time
}

type Booking struct {
	ID             uuid.UUID
	BookingCode    string
	Topic          Topic
	PreferredDate  *time.Time // raw user preference, kept for audit
	PreferredTime  string
	SelectedSlot   Slot // copy, slot state may diverge later
	Status         BookingStatus
	CalendarHoldID string
	NotesDocID     string
	EmailDraftID   string
	Integrations   []IntegrationOutcome
	SecureURL      string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
