package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/northlane/advisor-scheduling/internal/booking"
	"github.com/northlane/advisor-scheduling/internal/conversation"
)

type RouterConfig struct {
	Orchestrator *conversation.Orchestrator
	Bookings     *booking.Service
	BusinessLoc  *time.Location
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Conversation endpoints
	r.Post("/conversation/start", startConversationHandler(cfg.Orchestrator))
	r.Post("/conversation/message", conversationMessageHandler(cfg.Orchestrator))

	// Booking lookup and availability
	r.Get("/bookings/{code}", getBookingHandler(cfg.Bookings))
	r.Get("/slots", listSlotsHandler(cfg.Bookings, cfg.BusinessLoc))

	return r
}
