package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sadman-arif/consultpay/internal/model"
)

const selectBooking = `
	SELECT id, client_id, expert_id, date, start_time, end_time, duration_minutes,
		amount_cents, tax_cents, platform_fee_cents, expert_cents,
		status, payment_status,
		COALESCE(payment_intent_id, ''), COALESCE(payment_plan_id, ''), has_payment_plan,
		cancellation_deadline, cancellation_fee_cents, COALESCE(cancellation_reason, ''),
		COALESCE(cancelled_by, ''), cancelled_at,
		reschedule_count, created_at, updated_at
	FROM bookings`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	var durationMins int
	var cancelledAt *time.Time
	err := row.Scan(&b.ID, &b.ClientID, &b.ExpertID, &b.Date, &b.StartTime, &b.EndTime, &durationMins,
		&b.AmountCents, &b.TaxCents, &b.PlatformFeeCents, &b.ExpertCents,
		&b.Status, &b.PaymentStatus,
		&b.PaymentIntentID, &b.PaymentPlanID, &b.HasPaymentPlan,
		&b.CancellationDeadline, &b.CancellationFeeCents, &b.CancellationReason,
		&b.CancelledBy, &cancelledAt,
		&b.RescheduleCount, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Booking{}, mapBookingErr(err)
	}
	b.Duration = time.Duration(durationMins) * time.Minute
	b.CancelledAt = cancelledAt
	return b, nil
}

func (t *pgTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bookings
			(id, client_id, expert_id, date, start_time, end_time, duration_minutes,
			amount_cents, tax_cents, platform_fee_cents, expert_cents,
			status, payment_status, payment_intent_id,
			cancellation_deadline, cancellation_fee_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, b.ID, b.ClientID, b.ExpertID, b.Date, b.StartTime, b.EndTime, int(b.Duration.Minutes()),
		b.AmountCents, b.TaxCents, b.PlatformFeeCents, b.ExpertCents,
		b.Status, b.PaymentStatus, nullIfEmpty(b.PaymentIntentID),
		b.CancellationDeadline, b.CancellationFeeCents)
	return mapBookingErr(err)
}

func (t *pgTx) GetBookingForUpdate(ctx context.Context, id string) (model.Booking, error) {
	return scanBooking(t.tx.QueryRow(ctx, selectBooking+` WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) GetBookingByIntentForUpdate(ctx context.Context, intentID string) (model.Booking, error) {
	return scanBooking(t.tx.QueryRow(ctx, selectBooking+` WHERE payment_intent_id = $1 FOR UPDATE`, intentID))
}

func (t *pgTx) SaveBooking(ctx context.Context, b model.Booking) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET date = $2,
			start_time = $3,
			end_time = $4,
			status = $5,
			payment_status = $6,
			payment_intent_id = $7,
			payment_plan_id = $8,
			has_payment_plan = $9,
			cancellation_reason = $10,
			cancelled_by = $11,
			cancelled_at = $12,
			reschedule_count = $13,
			updated_at = now()
		WHERE id = $1
	`, b.ID, b.Date, b.StartTime, b.EndTime, b.Status, b.PaymentStatus,
		nullIfEmpty(b.PaymentIntentID), nullIfEmpty(b.PaymentPlanID), b.HasPaymentPlan,
		nullIfEmpty(b.CancellationReason), nullIfEmpty(b.CancelledBy), b.CancelledAt,
		b.RescheduleCount)
	return mapBookingErr(err)
}

func (t *pgTx) ListActiveBookings(ctx context.Context, expertID string, date time.Time, excludeID string) ([]model.Booking, error) {
	rows, err := t.tx.Query(ctx, selectBooking+`
		WHERE expert_id = $1
			AND date = $2::date
			AND status NOT IN ('cancelled')
			AND ($3 = '' OR id::text <> $3)
		ORDER BY start_time ASC
	`, expertID, date, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (t *pgTx) InsertHistory(ctx context.Context, h model.BookingHistory) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO booking_history
			(id, booking_id, action, prev_status, new_status,
			prev_date, new_date, prev_start, new_start, prev_end, new_end,
			actor_id, actor_role, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, h.ID, h.BookingID, h.Action, h.PrevStatus, h.NewStatus,
		h.PrevDate, h.NewDate, h.PrevStart, h.NewStart, h.PrevEnd, h.NewEnd,
		h.ActorID, h.ActorRole, nullIfEmpty(h.Reason))
	return err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
