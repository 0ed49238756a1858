package conversation

import (
	"context"
	"errors"
	"log"

	"github.com/northlane/advisor-scheduling/internal/booking"
	"github.com/northlane/advisor-scheduling/internal/guardrails"
	"github.com/northlane/advisor-scheduling/internal/nlu"
)

var ErrSessionNotFound = errors.New("session not found")

// Response is what one processed message returns to the transport
// layer.
type Response struct {
	Message                  string             `json:"message"`
	SessionID                string             `json:"session_id"`
	CurrentStep              Step               `json:"current_step"`
	FunctionCalls            []nlu.FunctionCall `json:"function_calls,omitempty"`
	StateTransition          *StateTransition   `json:"state_transition,omitempty"`
	BookingCode              string             `json:"booking_code,omitempty"`
	Slots                    []booking.Slot     `json:"slots,omitempty"`
	EducationalLinks         []string           `json:"educational_links,omitempty"`
	DisplayMessage           string             `json:"display_message,omitempty"`
	PIIDetected              bool               `json:"pii_detected,omitempty"`
	InvestmentAdviceDetected bool               `json:"investment_advice_detected,omitempty"`
}

// Orchestrator wires the guardrails, language model and flow
// controller around the session store. One call per user message.
type Orchestrator struct {
	store *MemoryStore
	flow  *Flow
	nlu   nlu.Client
}

func NewOrchestrator(store *MemoryStore, flow *Flow, nluClient nlu.Client) *Orchestrator {
	return &Orchestrator{
		store: store,
		flow:  flow,
		nlu:   nluClient,
	}
}

// StartSession creates a fresh session and returns the opening
// greeting without consuming a user turn.
func (o *Orchestrator) StartSession() Response {
	state := o.store.Create()
	greeting := MsgGreet + " " + MsgDisclaimer

	o.store.AppendTurn(state.SessionID, Turn{Role: RoleAssistant, Content: greeting})
	o.store.TransitionStep(state.SessionID, StepDisclaimer)

	return Response{
		Message:     greeting,
		SessionID:   state.SessionID,
		CurrentStep: StepDisclaimer,
		StateTransition: &StateTransition{
			From: StepInitial,
			To:   StepDisclaimer,
		},
	}
}

// ProcessMessage runs one user message through the guardrails, the
// language model and the flow controller, then applies the resulting
// deltas to the session.
func (o *Orchestrator) ProcessMessage(ctx context.Context, sessionID, userMessage string) (Response, error) {
	var state State
	if sessionID == "" {
		state = o.store.Create()
	} else {
		var ok bool
		state, ok = o.store.Get(sessionID)
		if !ok {
			return Response{}, ErrSessionNotFound
		}
	}

	// PII gate runs before anything touches the model or the history.
	// The raw message is never stored.
	if pii := guardrails.DetectPII(userMessage); pii.Detected {
		log.Printf("pii detected session=%s types=%v", state.SessionID, pii.Types)
		o.store.AppendTurn(state.SessionID, Turn{Role: RoleUser, Content: guardrails.RedactionPlaceholder})
		o.store.AppendTurn(state.SessionID, Turn{Role: RoleAssistant, Content: pii.Message})
		return Response{
			Message:     pii.Message,
			SessionID:   state.SessionID,
			CurrentStep: state.CurrentStep,
			PIIDetected: true,
		}, nil
	}

	if advice := guardrails.DetectInvestmentAdvice(userMessage, string(state.Context.Topic), LinksForTopic); advice.Detected {
		o.store.AppendTurn(state.SessionID, Turn{Role: RoleUser, Content: userMessage})
		o.store.AppendTurn(state.SessionID, Turn{Role: RoleAssistant, Content: advice.Message})
		return Response{
			Message:                  advice.Message,
			SessionID:                state.SessionID,
			CurrentStep:              state.CurrentStep,
			EducationalLinks:         advice.EducationalLinks,
			InvestmentAdviceDetected: true,
		}, nil
	}

	o.store.AppendTurn(state.SessionID, Turn{Role: RoleUser, Content: userMessage})
	// Re-snapshot so the flow sees the turn it is answering.
	state, _ = o.store.Get(state.SessionID)

	nluRes, err := o.processNLU(ctx, userMessage, &state)
	if err != nil {
		msg := "I apologize, but I encountered an error: " + err.Error() + ". Please try again."
		o.store.AppendTurn(state.SessionID, Turn{Role: RoleAssistant, Content: msg})
		return Response{
			Message:     msg,
			SessionID:   state.SessionID,
			CurrentStep: state.CurrentStep,
		}, nil
	}

	if nluRes.Intent != nlu.IntentUnknown {
		o.store.Update(state.SessionID, func(s *State) { s.Intent = nluRes.Intent })
		state.Intent = nluRes.Intent
	}

	result := o.flow.Process(ctx, state, userMessage, nluRes)

	o.store.UpdateContext(state.SessionID, result.ContextUpdates)
	o.store.TransitionStep(state.SessionID, result.NextStep)

	turn := Turn{Role: RoleAssistant, Content: result.Response}
	if len(nluRes.FunctionCalls) > 0 {
		turn.Meta = &TurnMeta{FunctionCalls: nluRes.FunctionCalls}
	}
	o.store.AppendTurn(state.SessionID, turn)

	resp := Response{
		Message:          result.Response,
		SessionID:        state.SessionID,
		CurrentStep:      result.NextStep,
		FunctionCalls:    nluRes.FunctionCalls,
		BookingCode:      result.BookingCode,
		Slots:            result.Slots,
		EducationalLinks: result.EducationalLinks,
		DisplayMessage:   result.DisplayMessage,
	}
	if state.CurrentStep != result.NextStep {
		resp.StateTransition = &StateTransition{From: state.CurrentStep, To: result.NextStep}
	}
	return resp, nil
}

// processNLU asks the language model for function calls and falls back
// to keyword intent detection when the model is unavailable or silent.
func (o *Orchestrator) processNLU(ctx context.Context, userMessage string, state *State) (nlu.Result, error) {
	if o.nlu == nil {
		return nlu.Result{Intent: nlu.DetectIntent(userMessage)}, nil
	}

	res, err := o.nlu.Process(ctx, userMessage, state.NLUSnapshot())
	if err != nil {
		if errors.Is(err, nlu.ErrNotConfigured) {
			return nlu.Result{Intent: nlu.DetectIntent(userMessage)}, nil
		}
		return nlu.Result{}, err
	}

	if res.Intent == "" || res.Intent == nlu.IntentUnknown {
		res.Intent = nlu.DetectIntent(userMessage)
	}
	return res, nil
}
