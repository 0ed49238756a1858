package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/northlane/advisor-scheduling/internal/booking"
)

type StartConversationResponse struct {
	SessionID   string `json:"session_id"`
	Message     string `json:"message"`
	CurrentStep string `json:"current_step"`
}

type ConversationMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type IntegrationOutcomeResponse struct {
	Step string    `json:"step"`
	Ref  string    `json:"ref,omitempty"`
	Err  string    `json:"error,omitempty"`
	At   time.Time `json:"at"`
}

type BookingResponse struct {
	ID           uuid.UUID                    `json:"id"`
	BookingCode  string                       `json:"booking_code"`
	Topic        string                       `json:"topic"`
	Status       string                       `json:"status"`
	Slot         booking.Slot                 `json:"slot"`
	SecureURL    string                       `json:"secure_url"`
	ExpiresAt    time.Time                    `json:"expires_at"`
	Integrations []IntegrationOutcomeResponse `json:"integrations,omitempty"`
	CreatedAt    time.Time                    `json:"created_at"`
	UpdatedAt    time.Time                    `json:"updated_at"`
}

type SlotListResponse struct {
	Slots []booking.Slot `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	resp := BookingResponse{
		ID:          b.ID,
		BookingCode: b.BookingCode,
		Topic:       string(b.Topic),
		Status:      string(b.Status),
		Slot:        b.SelectedSlot,
		SecureURL:   b.SecureURL,
		ExpiresAt:   b.ExpiresAt,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
	for _, o := range b.Integrations {
		resp.Integrations = append(resp.Integrations, IntegrationOutcomeResponse{
			Step: o.Step,
			Ref:  o.Ref,
			Err:  o.Err,
			At:   o.At,
		})
	}
	return resp
}
