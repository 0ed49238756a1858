package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/northlane/advisor-scheduling/internal/api"
	"github.com/northlane/advisor-scheduling/internal/booking"
	"github.com/northlane/advisor-scheduling/internal/config"
	"github.com/northlane/advisor-scheduling/internal/connector"
	"github.com/northlane/advisor-scheduling/internal/conversation"
	"github.com/northlane/advisor-scheduling/internal/db"
	"github.com/northlane/advisor-scheduling/internal/nlu"
	"github.com/northlane/advisor-scheduling/internal/redisclient"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s business_tz=%s", cfg.Env, cfg.HTTPPort, cfg.BusinessTZ)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.BusinessTZ)
	if err != nil {
		log.Fatalf("invalid BUSINESS_TZ %q: %v", cfg.BusinessTZ, err)
	}

	// Postgres is optional; without a DSN bookings live in memory.
	var pgPool *pgxpool.Pool
	var repo booking.Repository = booking.NewMemoryRepository()
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			log.Fatalf("postgres connection error: %v", err)
		}
		defer pgPool.Close()
		repo = booking.NewPgRepository(pgPool)
		log.Println("connected to Postgres")
	} else {
		log.Println("POSTGRES_DSN not set, using in-memory booking repository")
	}

	// Redis is optional; without it slot locking is in-process only.
	var rdb *redis.Client
	var locker redisclient.Locker = redisclient.NoopLocker{}
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("redis connection error: %v", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Printf("error closing redis: %v", err)
			}
		}()
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
		log.Println("connected to Redis")
	} else {
		log.Println("REDIS_ADDR not set, slot locking is in-process only")
	}

	var conn booking.Connector = connector.Noop{}
	if cfg.MCPEnabled {
		conn = connector.NewFake()
		log.Println("external integrations enabled (fake connector)")
	}

	alloc := booking.NewAllocator(loc)
	bookings := booking.NewService(repo, alloc, locker, conn, cfg)

	var nluClient nlu.Client
	if cfg.GroqAPIKey != "" {
		topics := make([]string, 0, len(booking.Topics))
		for _, t := range booking.Topics {
			topics = append(topics, string(t))
		}
		nluClient = nlu.NewGroqClient(cfg.GroqAPIKey, cfg.GroqModel, topics, conversation.MsgDisclaimer)
		log.Printf("groq nlu enabled model=%s", cfg.GroqModel)
	} else {
		log.Println("GROQ_API_KEY not set, using keyword intent detection only")
	}

	store := conversation.NewMemoryStore()
	go store.Run(rootCtx, cfg.SweepInterval, cfg.SessionTTL)

	flow := conversation.NewFlow(bookings, loc)
	orch := conversation.NewOrchestrator(store, flow, nluClient)

	router := api.NewRouter(api.RouterConfig{
		Orchestrator: orch,
		Bookings:     bookings,
		BusinessLoc:  loc,
		PgPool:       pgPool,
		Redis:        rdb,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()

	log.Println("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
