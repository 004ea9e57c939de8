package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sadman-arif/consultpay/internal/availability"
	"github.com/sadman-arif/consultpay/internal/model"
	"github.com/sadman-arif/consultpay/internal/outbox"
	"github.com/sadman-arif/consultpay/libs/db"
)

// PG implements Store over a pgx pool.
type PG struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewPG(pool *db.Pool, outboxRepo *outbox.Repository) *PG {
	return &PG{pool: pool, outboxRepo: outboxRepo}
}

func (s *PG) ExecTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx, outboxRepo: s.outboxRepo}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PG) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	return scanBooking(s.pool.QueryRow(ctx, selectBooking+` WHERE id = $1`, id))
}

func (s *PG) GetExpert(ctx context.Context, id string) (model.Expert, error) {
	return scanExpert(s.pool.QueryRow(ctx, selectExpert+` WHERE id = $1`, id))
}

func (s *PG) GetWallet(ctx context.Context, expertID string) (model.Wallet, error) {
	return scanWallet(s.pool.QueryRow(ctx, selectWallet+` WHERE expert_id = $1`, expertID))
}

func (s *PG) ListWalletTransactions(ctx context.Context, expertID string, limit int) ([]model.WalletTransaction, error) {
	// limit <= 0 means the whole ledger; reconciliation replays every row
	// and must never see a truncated history. LIMIT NULL is unbounded.
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, expert_id, amount_cents, type, status, description, COALESCE(reference_id, ''), created_at, updated_at
		FROM wallet_transactions
		WHERE expert_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, expertID, limitArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.WalletTransaction
	for rows.Next() {
		var t model.WalletTransaction
		if err := rows.Scan(&t.ID, &t.ExpertID, &t.AmountCents, &t.Type, &t.Status, &t.Description, &t.ReferenceID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (s *PG) ListBookingHistory(ctx context.Context, bookingID string) ([]model.BookingHistory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, booking_id, action, prev_status, new_status,
			prev_date, new_date, prev_start, new_start, prev_end, new_end,
			actor_id, actor_role, COALESCE(reason, ''), created_at
		FROM booking_history
		WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hist []model.BookingHistory
	for rows.Next() {
		var h model.BookingHistory
		if err := rows.Scan(&h.ID, &h.BookingID, &h.Action, &h.PrevStatus, &h.NewStatus,
			&h.PrevDate, &h.NewDate, &h.PrevStart, &h.NewStart, &h.PrevEnd, &h.NewEnd,
			&h.ActorID, &h.ActorRole, &h.Reason, &h.CreatedAt); err != nil {
			return nil, err
		}
		hist = append(hist, h)
	}
	return hist, rows.Err()
}

func (s *PG) ListSlots(ctx context.Context, expertID string, weekday time.Weekday) ([]model.AvailabilitySlot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, expert_id, weekday, start_time, end_time, recurring, created_at
		FROM availability_slots
		WHERE expert_id = $1 AND weekday = $2
		ORDER BY start_time ASC
	`, expertID, int(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []model.AvailabilitySlot
	for rows.Next() {
		var sl model.AvailabilitySlot
		var weekdayInt int
		if err := rows.Scan(&sl.ID, &sl.ExpertID, &weekdayInt, &sl.Start, &sl.End, &sl.Recurring, &sl.CreatedAt); err != nil {
			return nil, err
		}
		sl.Weekday = time.Weekday(weekdayInt)
		slots = append(slots, sl)
	}
	return slots, rows.Err()
}

func (s *PG) GetUnavailableDate(ctx context.Context, expertID string, date time.Time) (*model.UnavailableDate, error) {
	var u model.UnavailableDate
	err := s.pool.QueryRow(ctx, `
		SELECT expert_id, date, COALESCE(reason, ''), created_at
		FROM unavailable_dates
		WHERE expert_id = $1 AND date = $2::date
	`, expertID, date).Scan(&u.ExpertID, &u.Date, &u.Reason, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PG) ListActiveIntervals(ctx context.Context, expertID string, date time.Time) ([]availability.Interval, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM bookings
		WHERE expert_id = $1
			AND date = $2::date
			AND status NOT IN ('cancelled')
		ORDER BY start_time ASC
	`, expertID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// pgTx implements Tx on a live pgx transaction.
type pgTx struct {
	tx         pgx.Tx
	outboxRepo *outbox.Repository
}

func (t *pgTx) InsertEvent(ctx context.Context, evt outbox.Event) error {
	return t.outboxRepo.Insert(ctx, t.tx, evt)
}

func (t *pgTx) InsertProviderEvent(ctx context.Context, provider, providerEventID, eventType string, payload []byte) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO provider_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`, provider, providerEventID, eventType, payload)
	if isPgCode(err, pgUniqueViolation) {
		return ErrDuplicateProviderEvent
	}
	return err
}

func (t *pgTx) GetExpert(ctx context.Context, id string) (model.Expert, error) {
	return scanExpert(t.tx.QueryRow(ctx, selectExpert+` WHERE id = $1`, id))
}

const selectExpert = `
	SELECT id, user_id, display_name, hourly_rate_cents, COALESCE(jurisdiction, '')
	FROM experts`

func scanExpert(row pgx.Row) (model.Expert, error) {
	var e model.Expert
	err := row.Scan(&e.ID, &e.UserID, &e.DisplayName, &e.HourlyRateCents, &e.Jurisdiction)
	if err != nil {
		return model.Expert{}, mapNotFound(err)
	}
	return e, nil
}
