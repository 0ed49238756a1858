package conversation

// Canned assistant messages.
const (
	MsgGreet          = "Welcome! I'm here to help you schedule an advisor consultation."
	MsgDisclaimer     = "Important: This service provides general information only and does not constitute investment advice. Please consult with a qualified financial advisor for personalized investment guidance."
	MsgTopicSelection = "What topic would you like to discuss with the advisor?"
	MsgTimePreference = "When would you prefer to have this consultation?"
	MsgSlotOffering   = "Here are available slots for you:"
	MsgBookingSuccess = "Your booking has been confirmed!"
	MsgBookingCode    = "Your booking code is:"
	MsgSecureURL      = "Please use this secure link to provide your contact details:"
	MsgReschedule     = "Please provide your booking code to reschedule:"
	MsgCancel         = "Please provide your booking code to cancel:"
	MsgInvalidCode    = "I couldn't find a booking with that code. Please check and try again."
	MsgNoSlots        = "I'm sorry, there are no available slots matching your preference. Would you like to be added to the waitlist?"
	MsgWaitlisted     = "You've been added to the waitlist. We'll contact you when slots become available."
	MsgMissingInfo    = "Missing information. Please start over."
	MsgSlotTaken      = "Sorry, that slot is no longer available. Please select another."
)

const slotSelectionHint = "\n\nPlease select a slot by number (1 or 2) or say \"book slot 1\" / \"book slot 2\"."
