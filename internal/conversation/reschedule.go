package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/northlane/advisor-scheduling/internal/booking"
)

// confirmReschedule moves a validated booking to the newly selected
// slot. The booking keeps its code; only the slot changes.
func (f *Flow) confirmReschedule(ctx context.Context, state State) *partial {
	if len(state.Context.SelectedSlots) == 0 {
		return f.offerSlots(ctx, state, ContextUpdate{})
	}

	b, err := f.bookings.Reschedule(ctx, state.Context.BookingCode, state.Context.SelectedSlots[0])
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			return &partial{response: MsgInvalidCode, nextStep: StepGreet}
		}
		if errors.Is(err, booking.ErrSlotUnavailable) || errors.Is(err, booking.ErrSlotBeingBooked) {
			return &partial{
				response: MsgSlotTaken + " " + MsgTimePreference,
				nextStep: StepTimePreference,
			}
		}
		return &partial{response: "Sorry, something went wrong while rescheduling. Please try again."}
	}

	return &partial{
		response: fmt.Sprintf("Your booking %s has been rescheduled to %s.",
			b.BookingCode, f.formatDateTime(b.SelectedSlot.StartTime)),
		nextStep:       StepComplete,
		bookingCode:    b.BookingCode,
		displayMessage: fmt.Sprintf("Booking %s rescheduled to %s.%s", b.BookingCode, f.formatDateTime(b.SelectedSlot.StartTime), integrationStatus(b)),
	}
}

// integrationStatus renders the booking's integration audit trail for
// the display message. Empty trail means the connector is disabled.
func integrationStatus(b *booking.Booking) string {
	if len(b.Integrations) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n\nIntegrations:")
	for _, o := range b.Integrations {
		if o.Err != "" {
			fmt.Fprintf(&sb, "\n- %s: failed: %s", o.Step, o.Err)
			continue
		}
		if o.Ref != "" {
			fmt.Fprintf(&sb, "\n- %s: ok (%s)", o.Step, o.Ref)
			continue
		}
		fmt.Fprintf(&sb, "\n- %s: ok", o.Step)
	}
	return sb.String()
}
