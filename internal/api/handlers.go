package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/northlane/advisor-scheduling/internal/booking"
	"github.com/northlane/advisor-scheduling/internal/conversation"
)

func startConversationHandler(orch *conversation.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := orch.StartSession()
		writeJSON(w, http.StatusCreated, StartConversationResponse{
			SessionID:   resp.SessionID,
			Message:     resp.Message,
			CurrentStep: string(resp.CurrentStep),
		})
	}
}

func conversationMessageHandler(orch *conversation.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConversationMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if strings.TrimSpace(req.Message) == "" {
			writeError(w, http.StatusBadRequest, "empty_message", "message is required")
			return
		}

		resp, err := orch.ProcessMessage(r.Context(), req.SessionID, req.Message)
		if err != nil {
			if errors.Is(err, conversation.ErrSessionNotFound) {
				writeError(w, http.StatusNotFound, "session_not_found", "session expired or never existed, start a new conversation")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(chi.URLParam(r, "code"))
		if !booking.ValidateCode(code) {
			writeError(w, http.StatusBadRequest, "invalid_booking_code", "code must look like NL-A123")
			return
		}

		b, err := svc.GetByCode(r.Context(), code)
		if err != nil {
			if errors.Is(err, booking.ErrBookingNotFound) {
				writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func listSlotsHandler(svc *booking.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var datePref *time.Time
		if raw := r.URL.Query().Get("date"); raw != "" {
			d, err := time.ParseInLocation("2006-01-02", raw, loc)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			datePref = &d
		}

		slots, err := svc.Allocator().ListAvailable(r.Context(), datePref, r.URL.Query().Get("time"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, SlotListResponse{Slots: slots})
	}
}
