// Package booking owns the booking lifecycle: creation against the expert's
// calendar, gateway-driven confirmation, expert completion, reschedule and
// cancellation. Every transition runs in one storage transaction, appends
// one history row, and emits one outbox event after commit.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sadman-arif/consultpay/internal/availability"
	"github.com/sadman-arif/consultpay/internal/model"
	"github.com/sadman-arif/consultpay/internal/outbox"
	"github.com/sadman-arif/consultpay/internal/payments"
	"github.com/sadman-arif/consultpay/internal/policy"
	"github.com/sadman-arif/consultpay/internal/pricing"
	"github.com/sadman-arif/consultpay/internal/storage"
	"github.com/sadman-arif/consultpay/internal/wallet"
)

type Service struct {
	store   storage.Store
	gateway payments.Gateway
	pricing pricing.Config
	logger  *slog.Logger

	currency string
	now      func() time.Time
	newID    func() string
}

func NewService(store storage.Store, gateway payments.Gateway, cfg pricing.Config, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		gateway:  gateway,
		pricing:  cfg,
		logger:   logger,
		currency: "usd",
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

type CreateInput struct {
	ExpertID string
	Start    time.Time
	Duration time.Duration
}

// Create prices the booking, opens a payment intent, and persists the
// booking in pending_payment. The payment intent is requested before the
// insert so a gateway failure leaves no orphan row; the idempotency key is
// derived from the booking id so gateway retries stay single-charge.
func (s *Service) Create(ctx context.Context, principal model.Principal, in CreateInput) (model.Booking, error) {
	if !principal.Authenticated() {
		return model.Booking{}, model.ErrUnauthenticated
	}
	if principal.Role != model.RoleClient {
		return model.Booking{}, model.ErrUnauthorized
	}
	if in.ExpertID == "" {
		return model.Booking{}, model.Validationf("expert_id", "is required")
	}
	if in.Start.IsZero() {
		return model.Booking{}, model.Validationf("start_time", "is required")
	}
	if in.Duration <= 0 {
		return model.Booking{}, model.Validationf("duration", "must be positive")
	}
	now := s.now()
	if in.Start.Before(now) {
		return model.Booking{}, model.Validationf("start_time", "is in the past")
	}

	expert, err := s.store.GetExpert(ctx, in.ExpertID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("load expert: %w", err)
	}

	start := in.Start.UTC()
	quote := pricing.ForBooking(expert.HourlyRateCents, in.Duration, expert.Jurisdiction, s.pricing)

	b := model.Booking{
		ID:                   s.newID(),
		ClientID:             principal.UserID,
		ExpertID:             expert.ID,
		Date:                 day(start),
		StartTime:            start,
		EndTime:              start.Add(in.Duration),
		Duration:             in.Duration,
		AmountCents:          quote.AmountCents,
		TaxCents:             quote.TaxCents,
		PlatformFeeCents:     quote.PlatformFeeCents,
		ExpertCents:          quote.ExpertCents,
		Status:               model.BookingPendingPayment,
		PaymentStatus:        model.PaymentPending,
		CancellationDeadline: start.Add(-s.pricing.CancellationWindow),
		CancellationFeeCents: pricing.CancellationFee(quote.AmountCents, s.pricing),
	}

	intent, err := s.gateway.CreateIntent(ctx, payments.CreateIntentParams{
		AmountCents:    b.AmountCents + b.TaxCents,
		Currency:       s.currency,
		IdempotencyKey: "booking:" + b.ID,
		Metadata: map[string]string{
			"booking_id": b.ID,
			"client_id":  b.ClientID,
			"expert_id":  b.ExpertID,
		},
	})
	if err != nil {
		return model.Booking{}, err
	}
	b.PaymentIntentID = intent.ID

	err = s.store.ExecTx(ctx, func(tx storage.Tx) error {
		// Friendly conflict path; the storage exclusion constraint is the
		// authority under concurrency.
		if err := s.checkConflicts(ctx, tx, b.ExpertID, b.Date, interval(b), ""); err != nil {
			return err
		}
		if err := tx.InsertBooking(ctx, &b); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, s.history(b, model.HistoryCreated, model.BookingPendingPayment, b, principal, "")); err != nil {
			return err
		}
		return s.emit(ctx, tx, outbox.TopicBookingCreated, b, nil)
	})
	if err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// Confirm is driven by the gateway. It verifies the intent succeeded, flips
// the booking to confirmed, and credits the expert's pending balance
// (creating the wallet lazily). Confirming an already confirmed booking is a
// no-op success.
func (s *Service) Confirm(ctx context.Context, intentID string) error {
	if err := s.verifyIntent(ctx, intentID); err != nil {
		return err
	}
	return s.store.ExecTx(ctx, func(tx storage.Tx) error {
		return s.confirmTx(ctx, tx, intentID)
	})
}

// ProviderEvent identifies one gateway webhook delivery.
type ProviderEvent struct {
	Provider string
	EventID  string
	Type     string
	Payload  []byte
}

// ConfirmFromEvent is the webhook path. The delivery record and the booking
// transition commit together, so a delivery is either fully processed or
// untouched; a replayed delivery is a no-op success either way.
func (s *Service) ConfirmFromEvent(ctx context.Context, intentID string, evt ProviderEvent) error {
	if err := s.verifyIntent(ctx, intentID); err != nil {
		return err
	}
	err := s.store.ExecTx(ctx, func(tx storage.Tx) error {
		if err := tx.InsertProviderEvent(ctx, evt.Provider, evt.EventID, evt.Type, evt.Payload); err != nil {
			return err
		}
		return s.confirmTx(ctx, tx, intentID)
	})
	if errors.Is(err, storage.ErrDuplicateProviderEvent) {
		s.logger.Info("duplicate provider event ignored", "provider", evt.Provider, "provider_event_id", evt.EventID)
		return nil
	}
	return err
}

func (s *Service) verifyIntent(ctx context.Context, intentID string) error {
	if intentID == "" {
		return model.Validationf("payment_intent_id", "is required")
	}
	intent, err := s.gateway.ConfirmIntent(ctx, intentID)
	if err != nil {
		return err
	}
	if intent.Status != payments.IntentSucceeded {
		return &model.GatewayError{Op: "confirm_intent", Err: fmt.Errorf("intent %s status %q", intentID, intent.Status)}
	}
	return nil
}

func (s *Service) confirmTx(ctx context.Context, tx storage.Tx, intentID string) error {
	b, err := tx.GetBookingByIntentForUpdate(ctx, intentID)
	if err != nil {
		return err
	}
	if b.Status == model.BookingConfirmed {
		return nil
	}
	if !b.Status.CanTransitionTo(model.BookingConfirmed) {
		return &model.StateTransitionError{From: b.Status, To: model.BookingConfirmed}
	}

	prev := b
	b.Status = model.BookingConfirmed
	if !b.HasPaymentPlan {
		b.PaymentStatus = model.PaymentPaid
	}
	if err := tx.SaveBooking(ctx, b); err != nil {
		return err
	}
	if err := wallet.Credit(ctx, tx, b.ExpertID, b.ExpertCents, b.ID); err != nil {
		return err
	}
	gateway := model.Principal{UserID: "payment-gateway", Role: model.RoleAdmin}
	if err := tx.InsertHistory(ctx, s.history(prev, model.HistoryConfirmed, b.Status, b, gateway, "")); err != nil {
		return err
	}
	return s.emit(ctx, tx, outbox.TopicBookingConfirmed, b, nil)
}

// Complete may only be called by the assigned expert on a confirmed
// booking. The status flip and the pending-to-available transfer commit
// atomically; neither is observable without the other.
func (s *Service) Complete(ctx context.Context, principal model.Principal, bookingID string) (model.Booking, error) {
	if !principal.Authenticated() {
		return model.Booking{}, model.ErrUnauthenticated
	}

	var out model.Booking
	err := s.store.ExecTx(ctx, func(tx storage.Tx) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if principal.UserID != b.ExpertID {
			return model.ErrUnauthorized
		}
		if !b.Status.CanTransitionTo(model.BookingCompleted) {
			return &model.StateTransitionError{From: b.Status, To: model.BookingCompleted}
		}

		prev := b
		b.Status = model.BookingCompleted
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		if err := wallet.Release(ctx, tx, b.ExpertID, b.ExpertCents, b.ID); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, s.history(prev, model.HistoryCompleted, b.Status, b, principal, "")); err != nil {
			return err
		}
		out = b
		return s.emit(ctx, tx, outbox.TopicBookingCompleted, b, nil)
	})
	if err != nil {
		return model.Booking{}, err
	}
	return out, nil
}

// Reschedule moves a confirmed booking to a new start, keeping its duration
// and status. The conflict check excludes the booking's own id, so a no-op
// move back onto its current slot succeeds.
func (s *Service) Reschedule(ctx context.Context, principal model.Principal, bookingID string, newStart time.Time) (model.Booking, error) {
	if !principal.Authenticated() {
		return model.Booking{}, model.ErrUnauthenticated
	}
	if newStart.IsZero() {
		return model.Booking{}, model.Validationf("start_time", "is required")
	}

	var out model.Booking
	err := s.store.ExecTx(ctx, func(tx storage.Tx) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !principal.Party(b) {
			return model.ErrUnauthorized
		}
		// A reschedule keeps the booking in its current state; the error
		// names that state on both sides.
		if b.Status != model.BookingConfirmed {
			return &model.StateTransitionError{From: b.Status, To: b.Status}
		}

		prev := b
		start := newStart.UTC()
		b.Date = day(start)
		b.StartTime = start
		b.EndTime = start.Add(b.Duration)
		b.RescheduleCount++

		if err := s.checkConflicts(ctx, tx, b.ExpertID, b.Date, interval(b), b.ID); err != nil {
			return err
		}
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, s.history(prev, model.HistoryRescheduled, b.Status, b, principal, "")); err != nil {
			return err
		}
		out = b
		return s.emit(ctx, tx, outbox.TopicBookingRescheduled, b, map[string]any{
			"prev_start": prev.StartTime.Format(time.RFC3339),
			"prev_end":   prev.EndTime.Format(time.RFC3339),
		})
	})
	if err != nil {
		return model.Booking{}, err
	}
	return out, nil
}

type CancelResult struct {
	Booking      model.Booking
	RefundCents  int64
	FeeCents     int64
	RefundID     string
	RefundFailed bool
}

// Cancel releases the slot and settles the money split per the cancellation
// policy. The cancellation is the durable fact: the refund is attempted only
// after the transition commits, and a refund failure is logged and surfaced
// for manual reconciliation rather than rolling anything back.
func (s *Service) Cancel(ctx context.Context, principal model.Principal, bookingID, reason string) (CancelResult, error) {
	if !principal.Authenticated() {
		return CancelResult{}, model.ErrUnauthenticated
	}

	var (
		res     CancelResult
		wasPaid bool
	)
	err := s.store.ExecTx(ctx, func(tx storage.Tx) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !principal.Party(b) && !principal.Admin() {
			return model.ErrUnauthorized
		}
		if !b.Status.CanTransitionTo(model.BookingCancelled) {
			return &model.StateTransitionError{From: b.Status, To: model.BookingCancelled}
		}

		// Only a cancellation by the booking's client carries a late fee;
		// an expert or an admin acting on someone's behalf does not.
		actorRole := principal.Role
		switch principal.UserID {
		case b.ExpertID:
			actorRole = model.RoleExpert
		case b.ClientID:
			actorRole = model.RoleClient
		}
		wasPaid = b.Status == model.BookingConfirmed

		// Nothing was captured for a pending_payment booking, so there is
		// nothing to refund and no fee to charge.
		var outcome policy.Outcome
		if wasPaid {
			outcome = policy.Evaluate(b, actorRole, s.now())
		}

		prev := b
		now := s.now()
		b.Status = model.BookingCancelled
		b.CancellationReason = reason
		b.CancelledBy = principal.UserID
		b.CancelledAt = &now
		if wasPaid {
			b.PaymentStatus = model.PaymentRefunded
		}
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}

		// A confirmed booking already credited the expert's pending
		// balance; reverse it now that the service will never happen.
		if wasPaid {
			if err := wallet.Void(ctx, tx, b.ExpertID, b.ExpertCents, b.ID); err != nil {
				return err
			}
		}

		if err := tx.InsertHistory(ctx, s.history(prev, model.HistoryCancelled, b.Status, b, principal, reason)); err != nil {
			return err
		}
		res = CancelResult{Booking: b, RefundCents: outcome.RefundCents, FeeCents: outcome.FeeCents}
		return s.emit(ctx, tx, outbox.TopicBookingCancelled, b, map[string]any{
			"refund_cents": outcome.RefundCents,
			"fee_cents":    outcome.FeeCents,
			"cancelled_by": string(actorRole),
			"reason":       reason,
		})
	})
	if err != nil {
		return CancelResult{}, err
	}

	// A partially-paid installment-plan booking may have captured less than
	// the computed refund; the gateway rejects over-refunds and that lands
	// in the failure path below for manual reconciliation.
	if wasPaid && res.RefundCents > 0 && res.Booking.PaymentIntentID != "" {
		refundID, err := s.gateway.Refund(ctx, res.Booking.PaymentIntentID, res.RefundCents, reason)
		if err != nil {
			res.RefundFailed = true
			s.logger.Error("refund failed after cancellation; needs manual reconciliation",
				"booking_id", res.Booking.ID,
				"payment_intent_id", res.Booking.PaymentIntentID,
				"refund_cents", res.RefundCents,
				"err", err,
			)
			s.recordRefundFailure(ctx, res.Booking, res.RefundCents, err)
		} else {
			res.RefundID = refundID
		}
	}
	return res, nil
}

// Get returns a booking to one of its parties (or an admin).
func (s *Service) Get(ctx context.Context, principal model.Principal, bookingID string) (model.Booking, error) {
	if !principal.Authenticated() {
		return model.Booking{}, model.ErrUnauthenticated
	}
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if !principal.Party(b) && !principal.Admin() {
		return model.Booking{}, model.ErrUnauthorized
	}
	return b, nil
}

// History returns the booking's audit trail.
func (s *Service) History(ctx context.Context, principal model.Principal, bookingID string) ([]model.BookingHistory, error) {
	if _, err := s.Get(ctx, principal, bookingID); err != nil {
		return nil, err
	}
	return s.store.ListBookingHistory(ctx, bookingID)
}

func (s *Service) checkConflicts(ctx context.Context, tx storage.Tx, expertID string, date time.Time, iv availability.Interval, excludeID string) error {
	existing, err := tx.ListActiveBookings(ctx, expertID, date, excludeID)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if availability.Overlaps(iv, interval(other)) {
			return model.ErrConflict
		}
	}
	return nil
}

func (s *Service) history(prev model.Booking, action string, newStatus model.BookingStatus, b model.Booking, actor model.Principal, reason string) model.BookingHistory {
	return model.BookingHistory{
		ID:         s.newID(),
		BookingID:  b.ID,
		Action:     action,
		PrevStatus: prev.Status,
		NewStatus:  newStatus,
		PrevDate:   prev.Date,
		NewDate:    b.Date,
		PrevStart:  prev.StartTime,
		NewStart:   b.StartTime,
		PrevEnd:    prev.EndTime,
		NewEnd:     b.EndTime,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		Reason:     reason,
	}
}

func (s *Service) emit(ctx context.Context, tx storage.Tx, topic string, b model.Booking, extra map[string]any) error {
	payload := map[string]any{
		"booking_id": b.ID,
		"client_id":  b.ClientID,
		"expert_id":  b.ExpertID,
		"status":     b.Status,
		"start_time": b.StartTime.Format(time.RFC3339),
		"end_time":   b.EndTime.Format(time.RFC3339),
	}
	for k, v := range extra {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.InsertEvent(ctx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     topic,
		Payload:       body,
	})
}

// recordRefundFailure writes a reconciliation event in its own transaction;
// the cancellation has already committed and must not be disturbed.
func (s *Service) recordRefundFailure(ctx context.Context, b model.Booking, refundCents int64, cause error) {
	err := s.store.ExecTx(ctx, func(tx storage.Tx) error {
		payload, err := json.Marshal(map[string]any{
			"booking_id":        b.ID,
			"payment_intent_id": b.PaymentIntentID,
			"refund_cents":      refundCents,
			"error":             cause.Error(),
		})
		if err != nil {
			return err
		}
		return tx.InsertEvent(ctx, outbox.Event{
			AggregateType: "booking",
			AggregateID:   b.ID,
			EventType:     outbox.TopicRefundFailed,
			Payload:       payload,
		})
	})
	if err != nil {
		s.logger.Error("failed to record refund failure event", "booking_id", b.ID, "err", err)
	}
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func interval(b model.Booking) availability.Interval {
	return availability.Interval{Start: b.StartTime, End: b.EndTime}
}
