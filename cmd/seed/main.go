package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/northlane/advisor-scheduling/internal/booking"
	"github.com/northlane/advisor-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	count := 500
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		log.Fatalf("load location: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedBookings(context.Background(), pool, loc, count); err != nil {
		log.Fatalf("seed bookings: %v", err)
	}

	log.Println("seed complete")
}

func seedBookings(ctx context.Context, pool *pgxpool.Pool, loc *time.Location, count int) error {
	log.Printf("seeding %d bookings", count)

	statuses := []booking.BookingStatus{
		booking.StatusTentative,
		booking.StatusConfirmed,
		booking.StatusCancelled,
	}
	times := []string{"morning", "afternoon", "evening", "10 AM", "2 PM", ""}

	const batchSize = 100

	seeded := 0
	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			now := time.Now().In(loc)

			// Spread slots over the next few weeks of business hours.
			day := now.AddDate(0, 0, gofakeit.Number(1, 21))
			for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				day = day.AddDate(0, 0, 1)
			}
			start := time.Date(day.Year(), day.Month(), day.Day(), gofakeit.Number(9, 17), 0, 0, 0, loc)

			code := booking.GenerateCode()
			status := statuses[gofakeit.Number(0, len(statuses)-1)]
			topic := booking.Topics[gofakeit.Number(0, len(booking.Topics)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO bookings (
					id, booking_code, topic, preferred_date, preferred_time,
					slot_id, slot_start, slot_end, status,
					calendar_hold_id, notes_doc_id, email_draft_id,
					integrations, secure_url, expires_at, created_at, updated_at
				)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
				ON CONFLICT (booking_code) DO NOTHING
			`,
				uuid.New(), code, topic, start, times[gofakeit.Number(0, len(times)-1)],
				booking.SlotID(start, loc), start, start.Add(time.Hour), status,
				"evt_"+gofakeit.LetterN(12), "", "draft_"+uuid.NewString(),
				[]byte("[]"), "/booking/"+code, now.Add(24*time.Hour), now, now,
			)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
			seeded++
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("bookings seeded: %d/%d", end, count)
	}

	log.Printf("bookings seeded (%d attempted, code collisions skipped)", seeded)
	return nil
}
