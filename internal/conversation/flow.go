package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/northlane/advisor-scheduling/internal/booking"
	"github.com/northlane/advisor-scheduling/internal/dateparse"
	"github.com/northlane/advisor-scheduling/internal/nlu"
)

// FlowResult is what one processed message produces: the spoken
// response, the step to move to, and deltas to fold into the session.
// DisplayMessage carries the fuller chat-only text (secure URL,
// integration status) that is never spoken.
type FlowResult struct {
	Response         string
	NextStep         Step
	ContextUpdates   ContextUpdate
	Slots            []booking.Slot
	BookingCode      string
	EducationalLinks []string
	DisplayMessage   string
}

// partial is one pass's contribution. The first pass to produce
// response text wins and stops the pipeline; context updates
// accumulate from every pass that ran.
type partial struct {
	response         string
	nextStep         Step
	context          ContextUpdate
	slots            []booking.Slot
	bookingCode      string
	educationalLinks []string
	displayMessage   string
}

// Flow is the state machine driving the booking workflow. It is
// stateless itself: every call gets a fresh session snapshot and
// returns deltas for the store to apply.
type Flow struct {
	bookings *booking.Service
	loc      *time.Location
	now      func() time.Time
}

func NewFlow(bookings *booking.Service, loc *time.Location) *Flow {
	return &Flow{
		bookings: bookings,
		loc:      loc,
		now:      time.Now,
	}
}

// Process resolves one user message against the session state. Passes
// run in a fixed order: extracted function calls, detected intent,
// then the step switch. The first pass producing response text wins
// and later passes are skipped; context updates from earlier passes
// are visible to later ones so a code or preference extracted by a
// function call can drive the step handler in the same turn.
func (f *Flow) Process(ctx context.Context, state State, userMessage string, nluRes nlu.Result) FlowResult {
	working := state
	merged := &partial{}

	// apply folds one pass's contribution in; a true return means the
	// pass produced response text and resolution stops.
	apply := func(p *partial) bool {
		if p == nil {
			return false
		}
		merged.context.merge(p.context)
		working.Context.apply(p.context)
		if p.nextStep != "" {
			merged.nextStep = p.nextStep
		}
		if len(p.slots) > 0 {
			merged.slots = p.slots
		}
		if p.bookingCode != "" {
			merged.bookingCode = p.bookingCode
		}
		if len(p.educationalLinks) > 0 {
			merged.educationalLinks = p.educationalLinks
		}
		if p.displayMessage != "" {
			merged.displayMessage = p.displayMessage
		}
		if strings.TrimSpace(p.response) != "" {
			merged.response = p.response
			return true
		}
		return false
	}

	done := apply(f.functionCallPass(ctx, working, nluRes.FunctionCalls))
	if !done {
		done = apply(f.intentPass(ctx, working, userMessage, nluRes.Intent))
	}
	if !done {
		apply(f.stepPass(ctx, working, userMessage))
	}

	nextStep := state.CurrentStep
	if merged.nextStep != "" {
		nextStep = merged.nextStep
	}

	response := strings.TrimSpace(merged.response)
	if response == "" {
		response = fallbackPrompt(nextStep)
	}

	return FlowResult{
		Response:         response,
		NextStep:         nextStep,
		ContextUpdates:   merged.context,
		Slots:            merged.slots,
		BookingCode:      merged.bookingCode,
		EducationalLinks: merged.educationalLinks,
		DisplayMessage:   merged.displayMessage,
	}
}

func fallbackPrompt(step Step) string {
	switch step {
	case StepTimePreference:
		return MsgTimePreference + " Please provide your preferred date and time."
	case StepSlotOffering:
		return "Please select one of the available slots above."
	case StepConfirmation:
		return "Please confirm your selected slot to proceed with booking."
	default:
		return "Could you please rephrase? I want to make sure I understand correctly."
	}
}

// --- pass 1: function calls ---

func (f *Flow) functionCallPass(ctx context.Context, state State, calls []nlu.FunctionCall) *partial {
	if len(calls) == 0 {
		return nil
	}

	out := &partial{}
	var fragments []string
	for _, call := range calls {
		p := f.applyFunctionCall(state, call)
		if p == nil {
			continue
		}
		out.context.merge(p.context)
		if p.response != "" {
			fragments = append(fragments, p.response)
		}
		if p.nextStep != "" {
			out.nextStep = p.nextStep
		}
	}
	out.response = strings.Join(fragments, " ")

	if out.response == "" && out.nextStep == "" && out.context.isZero() {
		return nil
	}
	return out
}

func (f *Flow) applyFunctionCall(state State, call nlu.FunctionCall) *partial {
	switch call.Name {
	case nlu.FnSelectTopic:
		topic := booking.Topic(call.Arguments["topic"])
		if topic == "" {
			return nil
		}
		return &partial{
			context:  ContextUpdate{Topic: &topic},
			nextStep: StepTopicSelection,
			response: confirmTopicPrompt(topic),
		}

	case nlu.FnCollectTimePreference:
		upd := ContextUpdate{}
		if v := call.Arguments["datePreference"]; v != "" {
			upd.DatePreference = &v
		}
		if v := call.Arguments["timePreference"]; v != "" {
			upd.TimePreference = &v
		}
		if upd.isZero() {
			return nil
		}
		return &partial{context: upd, nextStep: StepTimePreference}

	case nlu.FnSelectSlot:
		slot, ok := f.bookings.Allocator().Get(call.Arguments["slotId"])
		if !ok || slot.Status != booking.SlotAvailable {
			return &partial{response: MsgSlotTaken}
		}
		slots := []booking.Slot{slot}
		return &partial{
			context:  ContextUpdate{SelectedSlots: &slots},
			nextStep: StepConfirmation,
			response: "Please confirm this slot: " + f.formatDateTime(slot.StartTime),
		}

	case nlu.FnProvideBookingCode:
		code := strings.ToUpper(strings.TrimSpace(call.Arguments["bookingCode"]))
		if code == "" {
			return nil
		}
		return &partial{
			context:  ContextUpdate{BookingCode: &code},
			nextStep: StepValidateCode,
		}

	case nlu.FnConfirmAction:
		switch call.Arguments["action"] {
		case nlu.ActionConfirmBooking:
			return &partial{nextStep: StepConfirmation}
		case nlu.ActionConfirmReschedule:
			return &partial{nextStep: StepTimePreference}
		case nlu.ActionConfirmCancel:
			return &partial{nextStep: StepCancellation}
		}
	}

	return nil
}

// --- pass 2: intent ---

func (f *Flow) intentPass(ctx context.Context, state State, userMessage string, intent nlu.Intent) *partial {
	// Topic mentions short-circuit the menu while choosing a topic.
	if state.CurrentStep == StepTopicSelection || state.CurrentStep == StepDisclaimer {
		if topic, ok := DetectTopic(userMessage); ok {
			return &partial{
				context:  ContextUpdate{Topic: &topic},
				response: confirmTopicPrompt(topic),
				nextStep: StepTopicSelection,
			}
		}
	}

	// Date/time extraction while collecting the preference.
	if state.CurrentStep == StepTimePreference {
		if upd, ok := f.extractTimePreference(userMessage); ok {
			return f.offerSlots(ctx, state, upd)
		}
	}

	switch intent {
	case nlu.IntentBookNew:
		if state.CurrentStep == StepInitial || state.CurrentStep == StepGreet {
			return &partial{
				response: MsgGreet + " " + MsgDisclaimer,
				nextStep: StepDisclaimer,
			}
		}

	case nlu.IntentReschedule:
		return &partial{response: MsgReschedule, nextStep: StepValidateCode}

	case nlu.IntentCancel:
		return &partial{response: MsgCancel, nextStep: StepValidateCode}

	case nlu.IntentWhatToPrepare:
		if state.Context.Topic == "" {
			return &partial{response: "Please first select a topic to see what you need to prepare."}
		}
		links := LinksForTopic(string(state.Context.Topic))
		var b strings.Builder
		fmt.Fprintf(&b, "Here's what you might need for %s:", state.Context.Topic)
		for _, l := range links {
			b.WriteString("\n- " + l)
		}
		// Stays in the current step.
		return &partial{response: b.String(), educationalLinks: links}

	case nlu.IntentAvailability:
		slots, err := f.listAvailable(ctx, state.Context.DatePreference, state.Context.TimePreference)
		if err != nil {
			return &partial{response: "Sorry, I couldn't check availability right now. Please try again."}
		}
		if len(slots) > 5 {
			slots = slots[:5]
		}
		var b strings.Builder
		b.WriteString("Here are available slots:")
		for _, s := range slots {
			b.WriteString("\n- " + f.formatDateTime(s.StartTime))
		}
		return &partial{response: b.String(), slots: slots, nextStep: StepAvailabilityList}
	}

	return nil
}

// --- pass 3: step switch ---

func (f *Flow) stepPass(ctx context.Context, state State, userMessage string) *partial {
	switch state.CurrentStep {
	case StepInitial, StepGreet:
		return &partial{
			response: MsgGreet + " " + MsgDisclaimer,
			nextStep: StepDisclaimer,
		}

	case StepDisclaimer:
		if topic, ok := DetectTopic(userMessage); ok {
			return &partial{
				context:  ContextUpdate{Topic: &topic},
				response: confirmTopicPrompt(topic),
				nextStep: StepTopicSelection,
			}
		}
		return &partial{response: topicMenu(), nextStep: StepTopicSelection}

	case StepTopicSelection:
		return f.handleTopicSelection(state, userMessage)

	case StepTimePreference:
		return f.handleTimePreference(ctx, state, userMessage)

	case StepSlotOffering:
		return f.handleSlotOffering(state, userMessage)

	case StepConfirmation:
		lower := strings.ToLower(userMessage)
		if isAffirmative(userMessage) || strings.Contains(lower, "book") {
			return f.handleConfirmation(ctx, state)
		}
		if len(state.Context.SelectedSlots) > 0 {
			return &partial{
				response: fmt.Sprintf("Please confirm your booking for %s. Reply with \"yes\" or \"confirm\" to proceed.",
					f.formatDateTime(state.Context.SelectedSlots[0].StartTime)),
				nextStep: StepConfirmation,
			}
		}
		return f.handleConfirmation(ctx, state)

	case StepCancellation:
		if isAffirmative(userMessage) {
			return f.handleCancellation(ctx, state)
		}
		if state.Context.BookingCode != "" {
			return &partial{
				response: fmt.Sprintf("Please confirm cancellation of booking %s. Reply with \"yes\" or \"confirm\" to proceed.",
					state.Context.BookingCode),
				nextStep: StepCancellation,
			}
		}
		return &partial{response: MsgInvalidCode}

	case StepValidateCode:
		return f.handleValidateCode(ctx, state, userMessage)
	}

	return nil
}

func (f *Flow) handleTopicSelection(state State, userMessage string) *partial {
	if state.Context.Topic != "" && isAffirmative(userMessage) {
		return &partial{
			response: fmt.Sprintf("Great! You've selected %s. %s", state.Context.Topic, MsgTimePreference),
			nextStep: StepTimePreference,
		}
	}

	if state.Context.Topic != "" {
		// A differing topic mention before confirmation overwrites the
		// tentative topic and re-asks.
		if topic, ok := DetectTopic(userMessage); ok && topic != state.Context.Topic {
			return &partial{
				context:  ContextUpdate{Topic: &topic},
				response: confirmTopicPrompt(topic),
				nextStep: StepTopicSelection,
			}
		}
		return &partial{
			response: fmt.Sprintf("You've selected %s. Is that correct? Please reply with 'yes' to continue.", state.Context.Topic),
			nextStep: StepTopicSelection,
		}
	}

	if topic, ok := DetectTopic(userMessage); ok {
		return &partial{
			context:  ContextUpdate{Topic: &topic},
			response: confirmTopicPrompt(topic),
			nextStep: StepTopicSelection,
		}
	}

	return &partial{response: topicMenu(), nextStep: StepTopicSelection}
}

func (f *Flow) handleTimePreference(ctx context.Context, state State, userMessage string) *partial {
	if state.Context.DatePreference == "" || state.Context.TimePreference == "" {
		if upd, ok := f.extractTimePreference(userMessage); ok {
			return f.offerSlots(ctx, state, upd)
		}
	}

	if state.Context.DatePreference != "" || state.Context.TimePreference != "" {
		return f.offerSlots(ctx, state, ContextUpdate{})
	}

	return &partial{
		response: MsgTimePreference + ` For example: "tomorrow afternoon" or "Dec 30, 2025 at 2pm"`,
		nextStep: StepTimePreference,
	}
}

func (f *Flow) handleSlotOffering(state State, userMessage string) *partial {
	if slot, ok := parseSlotSelection(userMessage, state.Context.SelectedSlots); ok {
		slots := []booking.Slot{slot}
		return &partial{
			context: ContextUpdate{SelectedSlots: &slots},
			response: fmt.Sprintf("You've selected: %s. Please confirm by saying \"yes\" or \"confirm\" to book this slot.",
				f.formatDateTime(slot.StartTime)),
			nextStep: StepConfirmation,
		}
	}

	lower := strings.ToLower(userMessage)
	if (strings.Contains(lower, "book") || strings.Contains(lower, "confirm")) && len(state.Context.SelectedSlots) > 0 {
		first := state.Context.SelectedSlots[0]
		slots := []booking.Slot{first}
		return &partial{
			context: ContextUpdate{SelectedSlots: &slots},
			response: fmt.Sprintf("You've selected: %s. Please confirm by saying \"yes\" or \"confirm\" to proceed.",
				f.formatDateTime(first.StartTime)),
			nextStep: StepConfirmation,
		}
	}

	if len(state.Context.SelectedSlots) > 0 {
		return &partial{
			response: f.slotOfferingMessage(state.Context.SelectedSlots),
			nextStep: StepSlotOffering,
		}
	}

	return nil
}

func (f *Flow) handleValidateCode(ctx context.Context, state State, userMessage string) *partial {
	code := state.Context.BookingCode
	var upd ContextUpdate
	if code == "" {
		// Without a structured provide_booking_code call the code is
		// pulled straight from the message.
		if found := booking.ExtractCode(userMessage); found != "" {
			code = found
			upd.BookingCode = &code
		}
	}
	if code == "" {
		return nil
	}

	b, err := f.bookings.GetByCode(ctx, code)
	if err != nil {
		return &partial{response: MsgInvalidCode, nextStep: StepGreet, context: upd}
	}

	switch state.Intent {
	case nlu.IntentReschedule:
		// Old preferences belong to the original booking; clear them so
		// a fresh one is collected.
		empty := ""
		upd.BookingID = strPtr(b.ID.String())
		upd.DatePreference = &empty
		upd.TimePreference = &empty
		return &partial{
			response: fmt.Sprintf("Found your booking for %s on %s. When would you like to reschedule?",
				b.Topic, f.formatDateTime(b.SelectedSlot.StartTime)),
			nextStep: StepTimePreference,
			context:  upd,
		}

	case nlu.IntentCancel:
		upd.BookingID = strPtr(b.ID.String())
		return &partial{
			response: fmt.Sprintf("Found your booking for %s on %s. Confirm cancellation?",
				b.Topic, f.formatDateTime(b.SelectedSlot.StartTime)),
			nextStep: StepCancellation,
			context:  upd,
		}
	}

	return nil
}

// --- booking actions ---

func (f *Flow) handleConfirmation(ctx context.Context, state State) *partial {
	if state.Intent == nlu.IntentReschedule && state.Context.BookingCode != "" && state.Context.BookingID != "" {
		return f.confirmReschedule(ctx, state)
	}

	if state.Context.Topic == "" || len(state.Context.SelectedSlots) == 0 {
		return &partial{response: MsgMissingInfo}
	}

	slot := state.Context.SelectedSlots[0]
	prefDate := f.parseISODate(state.Context.DatePreference)

	b, err := f.bookings.Create(ctx, state.Context.Topic, slot, prefDate, state.Context.TimePreference)
	if err != nil {
		if errors.Is(err, booking.ErrSlotUnavailable) || errors.Is(err, booking.ErrSlotBeingBooked) {
			return &partial{response: MsgSlotTaken}
		}
		return &partial{response: "Sorry, something went wrong while creating your booking. Please try again."}
	}

	// The spoken response stays terse; the full message with the secure
	// URL and integration status goes out as display metadata only.
	voice := fmt.Sprintf("Booking confirmed. Your booking code is %s. Scheduled for %s.",
		b.BookingCode, f.formatDateTime(b.SelectedSlot.StartTime))
	display := fmt.Sprintf("%s\n%s %s\n%s %s%s",
		MsgBookingSuccess, MsgBookingCode, b.BookingCode, MsgSecureURL, b.SecureURL, integrationStatus(b))

	return &partial{
		response:       voice,
		nextStep:       StepComplete,
		context:        ContextUpdate{BookingCode: &b.BookingCode},
		bookingCode:    b.BookingCode,
		displayMessage: display,
	}
}

func (f *Flow) handleCancellation(ctx context.Context, state State) *partial {
	if state.Context.BookingCode == "" {
		return &partial{response: MsgInvalidCode}
	}

	b, err := f.bookings.Cancel(ctx, state.Context.BookingCode)
	if err != nil {
		return &partial{response: MsgInvalidCode}
	}

	return &partial{
		response:       fmt.Sprintf("Your booking %s has been cancelled.", b.BookingCode),
		nextStep:       StepComplete,
		displayMessage: fmt.Sprintf("Booking %s cancelled.%s", b.BookingCode, integrationStatus(b)),
	}
}

// --- helpers ---

// offerSlots queries availability using the pending update over the
// session context, then either offers the first two slots or ends the
// flow with the waitlist message.
func (f *Flow) offerSlots(ctx context.Context, state State, upd ContextUpdate) *partial {
	datePref := state.Context.DatePreference
	if upd.DatePreference != nil {
		datePref = *upd.DatePreference
	}
	timePref := state.Context.TimePreference
	if upd.TimePreference != nil {
		timePref = *upd.TimePreference
	}

	slots, err := f.listAvailable(ctx, datePref, timePref)
	if err != nil {
		return &partial{response: "Sorry, I couldn't check availability right now. Please try again.", context: upd}
	}

	if len(slots) == 0 {
		return &partial{
			response: MsgNoSlots + " " + MsgWaitlisted,
			nextStep: StepComplete,
			context:  upd,
		}
	}

	offered := slots
	if len(offered) > 2 {
		offered = offered[:2]
	}

	merged := upd
	merged.merge(ContextUpdate{SelectedSlots: &offered})

	return &partial{
		response: f.slotOfferingMessage(offered),
		slots:    offered,
		context:  merged,
		nextStep: StepSlotOffering,
	}
}

func (f *Flow) listAvailable(ctx context.Context, datePref, timePref string) ([]booking.Slot, error) {
	return f.bookings.Allocator().ListAvailable(ctx, f.parseISODate(datePref), timePref)
}

func (f *Flow) slotOfferingMessage(slots []booking.Slot) string {
	var b strings.Builder
	b.WriteString(MsgSlotOffering)
	for i, s := range slots {
		fmt.Fprintf(&b, "\n%d. %s", i+1, f.formatDateTime(s.StartTime))
	}
	b.WriteString(slotSelectionHint)
	return b.String()
}

func (f *Flow) extractTimePreference(userMessage string) (ContextUpdate, bool) {
	parsed, ok := dateparse.Parse(userMessage, f.now(), f.loc)
	if !ok {
		return ContextUpdate{}, false
	}

	upd := ContextUpdate{}
	if parsed.Date != nil {
		iso := parsed.Date.Format("2006-01-02")
		upd.DatePreference = &iso
	}
	if parsed.Time != "" {
		upd.TimePreference = &parsed.Time
	}
	return upd, true
}

func (f *Flow) parseISODate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, f.loc)
	if err != nil {
		return nil
	}
	return &t
}

func (f *Flow) formatDateTime(t time.Time) string {
	return t.In(f.loc).Format("Monday, January 2, 2006 3:04 PM MST")
}

func parseSlotSelection(userMessage string, offered []booking.Slot) (booking.Slot, bool) {
	if len(offered) == 0 {
		return booking.Slot{}, false
	}

	lower := strings.ToLower(userMessage)
	switch {
	case strings.Contains(lower, "1") || strings.Contains(lower, "first"):
		return offered[0], true
	case strings.Contains(lower, "2") || strings.Contains(lower, "second"):
		if len(offered) > 1 {
			return offered[1], true
		}
		return offered[0], true
	}
	return booking.Slot{}, false
}

func isAffirmative(userMessage string) bool {
	lower := strings.ToLower(strings.TrimSpace(userMessage))
	if lower == "y" {
		return true
	}
	for _, w := range []string{"yes", "correct", "right", "confirm"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func confirmTopicPrompt(topic booking.Topic) string {
	return fmt.Sprintf("You've selected %s. Is that correct?", topic)
}

func strPtr(s string) *string { return &s }
