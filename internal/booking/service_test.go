package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sadman-arif/consultpay/internal/model"
	"github.com/sadman-arif/consultpay/internal/outbox"
	"github.com/sadman-arif/consultpay/internal/payments"
	"github.com/sadman-arif/consultpay/internal/pricing"
	"github.com/sadman-arif/consultpay/internal/storage/storagetest"
)

type refundCall struct {
	intentID    string
	amountCents int64
}

type fakeGateway struct {
	createErr    error
	confirmState string
	refundErr    error

	created int
	refunds []refundCall
}

func (g *fakeGateway) CreateIntent(_ context.Context, p payments.CreateIntentParams) (payments.Intent, error) {
	if g.createErr != nil {
		return payments.Intent{}, g.createErr
	}
	g.created++
	return payments.Intent{ID: "pi_" + p.Metadata["booking_id"], Status: "requires_payment_method"}, nil
}

func (g *fakeGateway) ConfirmIntent(_ context.Context, intentID string) (payments.Intent, error) {
	status := g.confirmState
	if status == "" {
		status = payments.IntentSucceeded
	}
	return payments.Intent{ID: intentID, Status: status}, nil
}

func (g *fakeGateway) Refund(_ context.Context, intentID string, amountCents int64, _ string) (string, error) {
	if g.refundErr != nil {
		return "", g.refundErr
	}
	g.refunds = append(g.refunds, refundCall{intentID: intentID, amountCents: amountCents})
	return "re_1", nil
}

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *storagetest.Memory, *fakeGateway) {
	t.Helper()
	store := storagetest.NewMemory()
	store.SeedExpert(model.Expert{ID: "exp-1", UserID: "user-exp-1", DisplayName: "Dr. Rahman", HourlyRateCents: 10000})

	gw := &fakeGateway{}
	svc := NewService(store, gw, pricing.DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return testNow }

	seq := 0
	svc.newID = func() string {
		seq++
		return "id-" + string(rune('a'+seq-1))
	}
	return svc, store, gw
}

func client() model.Principal { return model.Principal{UserID: "cli-1", Role: model.RoleClient} }
func expert() model.Principal { return model.Principal{UserID: "exp-1", Role: model.RoleExpert} }

func createConfirmed(t *testing.T, svc *Service, store *storagetest.Memory) model.Booking {
	t.Helper()
	b, err := svc.Create(context.Background(), client(), CreateInput{
		ExpertID: "exp-1",
		Start:    testNow.Add(48 * time.Hour),
		Duration: 2 * time.Hour,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Confirm(context.Background(), b.PaymentIntentID))
	got, ok := store.Booking(b.ID)
	require.True(t, ok)
	return got
}

func TestCreate(t *testing.T) {
	svc, store, gw := newTestService(t)

	b, err := svc.Create(context.Background(), client(), CreateInput{
		ExpertID: "exp-1",
		Start:    testNow.Add(48 * time.Hour),
		Duration: 2 * time.Hour,
	})
	require.NoError(t, err)

	require.Equal(t, model.BookingPendingPayment, b.Status)
	require.Equal(t, model.PaymentPending, b.PaymentStatus)
	require.Equal(t, int64(20000), b.AmountCents)
	require.Equal(t, int64(3000), b.PlatformFeeCents)
	require.Equal(t, int64(17000), b.ExpertCents)
	require.Equal(t, int64(2000), b.CancellationFeeCents)
	require.Equal(t, b.StartTime.Add(-24*time.Hour), b.CancellationDeadline)
	require.Equal(t, b.StartTime.Add(2*time.Hour), b.EndTime)
	require.NotEmpty(t, b.PaymentIntentID)
	require.Equal(t, 1, gw.created)

	hist := store.History(b.ID)
	require.Len(t, hist, 1)
	require.Equal(t, model.HistoryCreated, hist[0].Action)

	events := store.Events()
	require.Len(t, events, 1)
	require.Equal(t, outbox.TopicBookingCreated, events[0].EventType)
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, model.Principal{}, CreateInput{ExpertID: "exp-1", Start: testNow.Add(time.Hour), Duration: time.Hour})
	require.ErrorIs(t, err, model.ErrUnauthenticated)

	_, err = svc.Create(ctx, expert(), CreateInput{ExpertID: "exp-1", Start: testNow.Add(time.Hour), Duration: time.Hour})
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = svc.Create(ctx, client(), CreateInput{ExpertID: "exp-1", Start: testNow.Add(time.Hour), Duration: -time.Hour})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "duration", verr.Field)

	_, err = svc.Create(ctx, client(), CreateInput{ExpertID: "exp-1", Start: testNow.Add(-time.Hour), Duration: time.Hour})
	require.ErrorAs(t, err, &verr)

	_, err = svc.Create(ctx, client(), CreateInput{ExpertID: "missing", Start: testNow.Add(time.Hour), Duration: time.Hour})
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestCreate_ConflictPersistsNothing(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	start := testNow.Add(48 * time.Hour)

	_, err := svc.Create(ctx, client(), CreateInput{ExpertID: "exp-1", Start: start, Duration: 90 * time.Minute})
	require.NoError(t, err)
	priorEvents := len(store.Events())

	// Overlaps [start, start+90m) by an hour.
	_, err = svc.Create(ctx, client(), CreateInput{ExpertID: "exp-1", Start: start.Add(time.Hour), Duration: time.Hour})
	require.ErrorIs(t, err, model.ErrConflict)

	require.Equal(t, 1, store.BookingCount())
	require.Len(t, store.Events(), priorEvents)
}

func TestCreate_BackToBackIsNotAConflict(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	start := testNow.Add(48 * time.Hour)

	_, err := svc.Create(ctx, client(), CreateInput{ExpertID: "exp-1", Start: start, Duration: time.Hour})
	require.NoError(t, err)

	_, err = svc.Create(ctx, client(), CreateInput{ExpertID: "exp-1", Start: start.Add(time.Hour), Duration: time.Hour})
	require.NoError(t, err)
}

func TestCreate_CompletedBookingStillBlocks(t *testing.T) {
	svc, store, _ := newTestService(t)
	b := createConfirmed(t, svc, store)
	_, err := svc.Complete(context.Background(), expert(), b.ID)
	require.NoError(t, err)

	// Only cancellation frees a window; a completed booking keeps blocking
	// it, matching the overlap rule the database enforces.
	_, err = svc.Create(context.Background(), client(), CreateInput{
		ExpertID: "exp-1", Start: b.StartTime.Add(30 * time.Minute), Duration: time.Hour,
	})
	require.ErrorIs(t, err, model.ErrConflict)
}

func TestCreate_GatewayFailurePersistsNothing(t *testing.T) {
	svc, store, gw := newTestService(t)
	gw.createErr = &model.GatewayError{Op: "create_intent", Err: errors.New("stripe down")}

	_, err := svc.Create(context.Background(), client(), CreateInput{
		ExpertID: "exp-1",
		Start:    testNow.Add(48 * time.Hour),
		Duration: time.Hour,
	})
	var gerr *model.GatewayError
	require.ErrorAs(t, err, &gerr)
	require.Zero(t, store.BookingCount())
}

func TestConfirm(t *testing.T) {
	svc, store, _ := newTestService(t)
	b := createConfirmed(t, svc, store)

	require.Equal(t, model.BookingConfirmed, b.Status)
	require.Equal(t, model.PaymentPaid, b.PaymentStatus)

	w, ok := store.Wallet("exp-1")
	require.True(t, ok)
	require.Equal(t, b.ExpertCents, w.PendingCents)
	require.Equal(t, b.ExpertCents, w.LifetimeCents)
	require.Zero(t, w.AvailableCents)

	txs := store.WalletTransactions("exp-1")
	require.Len(t, txs, 1)
	require.Equal(t, model.TxBooking, txs[0].Type)
	require.Equal(t, model.TxStatusPending, txs[0].Status)
	require.Equal(t, b.ID, txs[0].ReferenceID)
}

func TestConfirm_Idempotent(t *testing.T) {
	svc, store, _ := newTestService(t)
	b := createConfirmed(t, svc, store)

	require.NoError(t, svc.Confirm(context.Background(), b.PaymentIntentID))

	w, _ := store.Wallet("exp-1")
	require.Equal(t, b.ExpertCents, w.PendingCents)
	require.Len(t, store.WalletTransactions("exp-1"), 1)
}

func TestConfirmFromEvent_DuplicateDeliveryIgnored(t *testing.T) {
	svc, store, _ := newTestService(t)
	b, err := svc.Create(context.Background(), client(), CreateInput{
		ExpertID: "exp-1", Start: testNow.Add(48 * time.Hour), Duration: 2 * time.Hour,
	})
	require.NoError(t, err)

	evt := ProviderEvent{Provider: "stripe", EventID: "evt_1", Type: "payment_intent.succeeded"}
	require.NoError(t, svc.ConfirmFromEvent(context.Background(), b.PaymentIntentID, evt))
	require.NoError(t, svc.ConfirmFromEvent(context.Background(), b.PaymentIntentID, evt))

	got, _ := store.Booking(b.ID)
	require.Equal(t, model.BookingConfirmed, got.Status)
	require.Len(t, store.WalletTransactions("exp-1"), 1)
}

func TestConfirm_IntentNotSucceeded(t *testing.T) {
	svc, store, gw := newTestService(t)
	b, err := svc.Create(context.Background(), client(), CreateInput{
		ExpertID: "exp-1", Start: testNow.Add(48 * time.Hour), Duration: time.Hour,
	})
	require.NoError(t, err)

	gw.confirmState = "requires_payment_method"
	err = svc.Confirm(context.Background(), b.PaymentIntentID)
	var gerr *model.GatewayError
	require.ErrorAs(t, err, &gerr)

	got, _ := store.Booking(b.ID)
	require.Equal(t, model.BookingPendingPayment, got.Status)
}

func TestConfirm_CancelledBookingRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	b, err := svc.Create(context.Background(), client(), CreateInput{
		ExpertID: "exp-1", Start: testNow.Add(48 * time.Hour), Duration: time.Hour,
	})
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), client(), b.ID, "changed my mind")
	require.NoError(t, err)

	err = svc.Confirm(context.Background(), b.PaymentIntentID)
	var terr *model.StateTransitionError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, model.BookingCancelled, terr.From)
}

func TestComplete(t *testing.T) {
	svc, store, _ := newTestService(t)
	b := createConfirmed(t, svc, store)

	before, _ := store.Wallet("exp-1")
	got, err := svc.Complete(context.Background(), expert(), b.ID)
	require.NoError(t, err)
	require.Equal(t, model.BookingCompleted, got.Status)

	after, _ := store.Wallet("exp-1")
	require.Equal(t, before.PendingCents-b.ExpertCents, after.PendingCents)
	require.Equal(t, before.AvailableCents+b.ExpertCents, after.AvailableCents)
	// Lifetime was credited at confirmation and must not move again.
	require.Equal(t, before.LifetimeCents, after.LifetimeCents)

	txs := store.WalletTransactions("exp-1")
	require.Len(t, txs, 1)
	require.Equal(t, model.TxStatusCompleted, txs[0].Status)
}

func TestComplete_OnlyAssignedExpert(t *testing.T) {
	svc, store, _ := newTestService(t)
	b := createConfirmed(t, svc, store)

	_, err := svc.Complete(context.Background(), client(), b.ID)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	other := model.Principal{UserID: "exp-2", Role: model.RoleExpert}
	_, err = svc.Complete(context.Background(), other, b.ID)
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestComplete_RequiresConfirmed(t *testing.T) {
	svc, _, _ := newTestService(t)
	b, err := svc.Create(context.Background(), client(), CreateInput{
		ExpertID: "exp-1", Start: testNow.Add(48 * time.Hour), Duration: time.Hour,
	})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), expert(), b.ID)
	var terr *model.StateTransitionError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, model.BookingPendingPayment, terr.From)
	require.Equal(t, model.BookingCompleted, terr.To)
}

func TestReschedule(t *testing.T) {
	svc, store, _ := newTestService(t)
	b := createConfirmed(t, svc, store)

	newStart := b.StartTime.Add(24 * time.Hour)
	got, err := svc.Reschedule(context.Background(), client(), b.ID, newStart)
	require.NoError(t, err)
	require.Equal(t, newStart, got.StartTime)
	require.Equal(t, newStart.Add(b.Duration), got.EndTime)
	require.Equal(t, 1, got.RescheduleCount)
	require.Equal(t, model.BookingConfirmed, got.Status)

	hist := store.History(b.ID)
	last := hist[len(hist)-1]
	require.Equal(t, model.HistoryRescheduled, last.Action)
	require.Equal(t, b.StartTime, last.PrevStart)
	require.Equal(t, newStart, last.NewStart)
}

func TestReschedule_OntoOwnSlot(t *testing.T) {
	svc, store, _ := newTestService(t)
	b := createConfirmed(t, svc, store)

	// Shifting within its own current window only "conflicts" with itself,
	// which the check must exclude.
	got, err := svc.Reschedule(context.Background(), client(), b.ID, b.StartTime.Add(30*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, got.RescheduleCount)
}

func TestReschedule_Conflict(t *testing.T) {
	svc, store, _ := newTestService(t)
	b := createConfirmed(t, svc, store)

	other, err := svc.Create(context.Background(), client(), CreateInput{
		ExpertID: "exp-1", Start: b.EndTime.Add(time.Hour), Duration: time.Hour,
	})
	require.NoError(t, err)

	_, err = svc.Reschedule(context.Background(), client(), b.ID, other.StartTime)
	require.ErrorIs(t, err, model.ErrConflict)

	got, _ := store.Booking(b.ID)
	require.Equal(t, b.StartTime, got.StartTime)
	require.Zero(t, got.RescheduleCount)
}

func TestReschedule_RequiresConfirmed(t *testing.T) {
	svc, _, _ := newTestService(t)
	b, err := svc.Create(context.Background(), client(), CreateInput{
		ExpertID: "exp-1", Start: testNow.Add(48 * time.Hour), Duration: time.Hour,
	})
	require.NoError(t, err)

	_, err = svc.Reschedule(context.Background(), client(), b.ID, testNow.Add(72*time.Hour))
	var terr *model.StateTransitionError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, model.BookingPendingPayment, terr.From)
	require.Equal(t, model.BookingPendingPayment, terr.To)
}

func TestCancel_BeforeDeadline(t *testing.T) {
	svc, store, gw := newTestService(t)
	b := createConfirmed(t, svc, store)

	res, err := svc.Cancel(context.Background(), client(), b.ID, "schedule change")
	require.NoError(t, err)
	require.Equal(t, b.AmountCents+b.TaxCents, res.RefundCents)
	require.Zero(t, res.FeeCents)
	require.False(t, res.RefundFailed)
	require.Equal(t, "re_1", res.RefundID)
	require.Len(t, gw.refunds, 1)
	require.Equal(t, res.RefundCents, gw.refunds[0].amountCents)

	got, _ := store.Booking(b.ID)
	require.Equal(t, model.BookingCancelled, got.Status)
	require.Equal(t, model.PaymentRefunded, got.PaymentStatus)
	require.Equal(t, "cli-1", got.CancelledBy)
	require.NotNil(t, got.CancelledAt)

	// Confirmed earnings are voided; lifetime keeps the gross figure.
	w, _ := store.Wallet("exp-1")
	require.Zero(t, w.PendingCents)
	require.Zero(t, w.AvailableCents)
	require.Equal(t, b.ExpertCents, w.LifetimeCents)

	txs := store.WalletTransactions("exp-1")
	require.Len(t, txs, 1)
	require.Equal(t, model.TxStatusReversed, txs[0].Status)
}

func TestCancel_ClientAfterDeadlinePaysFee(t *testing.T) {
	svc, store, _ := newTestService(t)
	b := createConfirmed(t, svc, store)

	svc.now = func() time.Time { return b.CancellationDeadline.Add(2 * time.Hour) }
	res, err := svc.Cancel(context.Background(), client(), b.ID, "late cancel")
	require.NoError(t, err)
	require.Equal(t, b.CancellationFeeCents, res.FeeCents)
	require.Equal(t, b.AmountCents+b.TaxCents-b.CancellationFeeCents, res.RefundCents)
}

func TestCancel_ExpertAfterDeadlineIsFeeFree(t *testing.T) {
	svc, store, _ := newTestService(t)
	b := createConfirmed(t, svc, store)

	svc.now = func() time.Time { return b.CancellationDeadline.Add(2 * time.Hour) }
	res, err := svc.Cancel(context.Background(), expert(), b.ID, "emergency")
	require.NoError(t, err)
	require.Zero(t, res.FeeCents)
	require.Equal(t, b.AmountCents+b.TaxCents, res.RefundCents)
}

func TestCancel_AdminAfterDeadlineIsFeeFree(t *testing.T) {
	svc, store, _ := newTestService(t)
	b := createConfirmed(t, svc, store)

	// An admin cancelling on the client's behalf is not the client; the
	// late fee never applies.
	admin := model.Principal{UserID: "adm-1", Role: model.RoleAdmin}
	svc.now = func() time.Time { return b.CancellationDeadline.Add(2 * time.Hour) }
	res, err := svc.Cancel(context.Background(), admin, b.ID, "support intervention")
	require.NoError(t, err)
	require.Zero(t, res.FeeCents)
	require.Equal(t, b.AmountCents+b.TaxCents, res.RefundCents)
}

func TestCancel_UnpaidReportsNoRefund(t *testing.T) {
	svc, store, gw := newTestService(t)
	b, err := svc.Create(context.Background(), client(), CreateInput{
		ExpertID: "exp-1",
		Start:    testNow.Add(48 * time.Hour),
		Duration: 2 * time.Hour,
	})
	require.NoError(t, err)

	res, err := svc.Cancel(context.Background(), client(), b.ID, "changed my mind")
	require.NoError(t, err)
	require.Zero(t, res.RefundCents)
	require.Zero(t, res.FeeCents)
	require.Empty(t, gw.refunds)

	got, _ := store.Booking(b.ID)
	require.Equal(t, model.BookingCancelled, got.Status)
	require.Equal(t, model.PaymentPending, got.PaymentStatus)
}

func TestCancel_RefundFailureDoesNotBlock(t *testing.T) {
	svc, store, gw := newTestService(t)
	b := createConfirmed(t, svc, store)
	gw.refundErr = errors.New("stripe timeout")

	res, err := svc.Cancel(context.Background(), client(), b.ID, "schedule change")
	require.NoError(t, err)
	require.True(t, res.RefundFailed)

	got, _ := store.Booking(b.ID)
	require.Equal(t, model.BookingCancelled, got.Status)

	events := store.Events()
	require.Equal(t, outbox.TopicRefundFailed, events[len(events)-1].EventType)
}

func TestCancel_NonPartyRejected(t *testing.T) {
	svc, store, _ := newTestService(t)
	b := createConfirmed(t, svc, store)

	stranger := model.Principal{UserID: "cli-9", Role: model.RoleClient}
	_, err := svc.Cancel(context.Background(), stranger, b.ID, "nope")
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestCancel_CompletedIsTerminal(t *testing.T) {
	svc, store, _ := newTestService(t)
	b := createConfirmed(t, svc, store)
	_, err := svc.Complete(context.Background(), expert(), b.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), client(), b.ID, "too late")
	var terr *model.StateTransitionError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, model.BookingCompleted, terr.From)
}

func TestGet_PartyOnly(t *testing.T) {
	svc, store, _ := newTestService(t)
	b := createConfirmed(t, svc, store)
	ctx := context.Background()

	_, err := svc.Get(ctx, client(), b.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, expert(), b.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, model.Principal{UserID: "admin-1", Role: model.RoleAdmin}, b.ID)
	require.NoError(t, err)

	_, err = svc.Get(ctx, model.Principal{UserID: "cli-9", Role: model.RoleClient}, b.ID)
	require.ErrorIs(t, err, model.ErrUnauthorized)
}
