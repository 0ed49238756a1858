package booking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const bookingColumns = `
	id, booking_code, topic, preferred_date, preferred_time,
	slot_id, slot_start, slot_end, status,
	calendar_hold_id, notes_doc_id, email_draft_id,
	integrations, secure_url, expires_at, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var preferredDate *time.Time
	var integrations []byte

	err := row.Scan(
		&b.ID,
		&b.BookingCode,
		&b.Topic,
		&preferredDate,
		&b.PreferredTime,
		&b.SelectedSlot.ID,
		&b.SelectedSlot.StartTime,
		&b.SelectedSlot.EndTime,
		&b.Status,
		&b.CalendarHoldID,
		&b.NotesDocID,
		&b.EmailDraftID,
		&integrations,
		&b.SecureURL,
		&b.ExpiresAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	b.PreferredDate = preferredDate
	b.SelectedSlot.Status = SlotBooked
	b.SelectedSlot.BookingCode = b.BookingCode
	if b.Status == StatusCancelled {
		b.SelectedSlot.Status = SlotAvailable
		b.SelectedSlot.BookingCode = ""
	}
	if len(integrations) > 0 {
		if err := json.Unmarshal(integrations, &b.Integrations); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

func marshalIntegrations(b *Booking) ([]byte, error) {
	if len(b.Integrations) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(b.Integrations)
}

func (r *PgRepository) Create(ctx context.Context, b *Booking) error {
	integrations, err := marshalIntegrations(b)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO bookings (
			id, booking_code, topic, preferred_date, preferred_time,
			slot_id, slot_start, slot_end, status,
			calendar_hold_id, notes_doc_id, email_draft_id,
			integrations, secure_url, expires_at, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`,
		b.ID, b.BookingCode, b.Topic, b.PreferredDate, b.PreferredTime,
		b.SelectedSlot.ID, b.SelectedSlot.StartTime, b.SelectedSlot.EndTime, b.Status,
		b.CalendarHoldID, b.NotesDocID, b.EmailDraftID,
		integrations, b.SecureURL, b.ExpiresAt, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (r *PgRepository) Update(ctx context.Context, b *Booking) error {
	integrations, err := marshalIntegrations(b)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings SET
			topic = $2, preferred_date = $3, preferred_time = $4,
			slot_id = $5, slot_start = $6, slot_end = $7, status = $8,
			calendar_hold_id = $9, notes_doc_id = $10, email_draft_id = $11,
			integrations = $12, secure_url = $13, expires_at = $14, updated_at = $15
		WHERE id = $1
	`,
		b.ID, b.Topic, b.PreferredDate, b.PreferredTime,
		b.SelectedSlot.ID, b.SelectedSlot.StartTime, b.SelectedSlot.EndTime, b.Status,
		b.CalendarHoldID, b.NotesDocID, b.EmailDraftID,
		integrations, b.SecureURL, b.ExpiresAt, b.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE id = $1`, id)
	return scanBooking(row)
}

func (r *PgRepository) GetByCode(ctx context.Context, code string) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE booking_code = $1`, code)
	return scanBooking(row)
}

func (r *PgRepository) FindExpiredTentative(ctx context.Context, now time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+bookingColumns+`
		FROM bookings
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at
		LIMIT 500
	`, StatusTentative, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *PgRepository) Remove(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}
