package wallet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sadman-arif/consultpay/internal/model"
	"github.com/sadman-arif/consultpay/internal/outbox"
	"github.com/sadman-arif/consultpay/internal/storage/storagetest"
)

// newWithdrawalFixture seeds a wallet whose balances are backed by a single
// completed booking row, so Reconcile holds before any withdrawals run.
func newWithdrawalFixture(t *testing.T, available int64) (*Service, *storagetest.Memory) {
	t.Helper()
	store := storagetest.NewMemory()
	store.SeedWallet(model.Wallet{ExpertID: "exp-1", AvailableCents: available, LifetimeCents: available})
	store.SeedWalletTransaction(model.WalletTransaction{
		ID:          "seed-1",
		ExpertID:    "exp-1",
		AmountCents: available,
		Type:        model.TxBooking,
		Status:      model.TxStatusCompleted,
		ReferenceID: "seed-booking",
	})
	return NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func expertPrincipal() model.Principal { return model.Principal{UserID: "exp-1", Role: model.RoleExpert} }
func adminPrincipal() model.Principal  { return model.Principal{UserID: "adm-1", Role: model.RoleAdmin} }

func TestRequestWithdrawal(t *testing.T) {
	svc, store := newWithdrawalFixture(t, 10000)

	req, err := svc.RequestWithdrawal(context.Background(), expertPrincipal(), 4000, "bank_transfer")
	require.NoError(t, err)
	require.Equal(t, model.WithdrawalPending, req.Status)

	w, _ := store.Wallet("exp-1")
	require.Equal(t, int64(6000), w.AvailableCents)
	require.Equal(t, int64(4000), w.PendingWithdrawalCents)

	txs := store.WalletTransactions("exp-1")
	require.Len(t, txs, 2)
	last := txs[len(txs)-1]
	require.Equal(t, model.TxWithdrawalRequest, last.Type)
	require.Equal(t, int64(-4000), last.AmountCents)
	require.Equal(t, req.ID, last.ReferenceID)
}

func TestRequestWithdrawal_InsufficientFunds(t *testing.T) {
	svc, store := newWithdrawalFixture(t, 1000)

	_, err := svc.RequestWithdrawal(context.Background(), expertPrincipal(), 4000, "bank_transfer")
	require.ErrorIs(t, err, model.ErrInsufficientFunds)

	// Rolled back: no reservation, no ledger row, no request.
	w, _ := store.Wallet("exp-1")
	require.Equal(t, int64(1000), w.AvailableCents)
	require.Zero(t, w.PendingWithdrawalCents)
	require.Len(t, store.WalletTransactions("exp-1"), 1)
}

func TestRequestWithdrawal_ExpertOnly(t *testing.T) {
	svc, _ := newWithdrawalFixture(t, 10000)

	cli := model.Principal{UserID: "cli-1", Role: model.RoleClient}
	_, err := svc.RequestWithdrawal(context.Background(), cli, 4000, "bank_transfer")
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = svc.RequestWithdrawal(context.Background(), model.Principal{}, 4000, "bank_transfer")
	require.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestDecideWithdrawal_Approve(t *testing.T) {
	svc, store := newWithdrawalFixture(t, 10000)
	ctx := context.Background()

	req, err := svc.RequestWithdrawal(ctx, expertPrincipal(), 4000, "bank_transfer")
	require.NoError(t, err)

	decided, err := svc.DecideWithdrawal(ctx, adminPrincipal(), req.ID, true, "payout-77")
	require.NoError(t, err)
	require.Equal(t, model.WithdrawalApproved, decided.Status)
	require.Equal(t, "payout-77", decided.PaymentRef)
	require.NotNil(t, decided.DecidedAt)

	w, _ := store.Wallet("exp-1")
	require.Equal(t, int64(6000), w.AvailableCents)
	require.Zero(t, w.PendingWithdrawalCents)
	// Lifetime earnings are untouched by payouts.
	require.Equal(t, int64(10000), w.LifetimeCents)

	events := store.Events()
	require.Len(t, events, 1)
	require.Equal(t, outbox.TopicWithdrawalDecided, events[0].EventType)

	// The ledger stays in balance through the whole flow.
	require.NoError(t, svc.Reconcile(ctx, "exp-1"))
}

func TestDecideWithdrawal_Reject(t *testing.T) {
	svc, store := newWithdrawalFixture(t, 10000)
	ctx := context.Background()

	req, err := svc.RequestWithdrawal(ctx, expertPrincipal(), 4000, "bank_transfer")
	require.NoError(t, err)

	decided, err := svc.DecideWithdrawal(ctx, adminPrincipal(), req.ID, false, "")
	require.NoError(t, err)
	require.Equal(t, model.WithdrawalRejected, decided.Status)

	w, _ := store.Wallet("exp-1")
	require.Equal(t, int64(10000), w.AvailableCents)
	require.Zero(t, w.PendingWithdrawalCents)

	require.NoError(t, svc.Reconcile(ctx, "exp-1"))
}

func TestDecideWithdrawal_AdminOnly(t *testing.T) {
	svc, _ := newWithdrawalFixture(t, 10000)
	ctx := context.Background()

	req, err := svc.RequestWithdrawal(ctx, expertPrincipal(), 4000, "bank_transfer")
	require.NoError(t, err)

	_, err = svc.DecideWithdrawal(ctx, expertPrincipal(), req.ID, true, "")
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestDecideWithdrawal_AlreadyDecided(t *testing.T) {
	svc, _ := newWithdrawalFixture(t, 10000)
	ctx := context.Background()

	req, err := svc.RequestWithdrawal(ctx, expertPrincipal(), 4000, "bank_transfer")
	require.NoError(t, err)
	_, err = svc.DecideWithdrawal(ctx, adminPrincipal(), req.ID, true, "payout-1")
	require.NoError(t, err)

	_, err = svc.DecideWithdrawal(ctx, adminPrincipal(), req.ID, false, "")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestReconcile_ReplaysFullLedger(t *testing.T) {
	store := storagetest.NewMemory()
	svc := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// A ledger far past any listing page size. Reconcile must replay every
	// row; a truncated read would compute wrong balances for a wallet that
	// is perfectly consistent.
	const rows, each = 150, int64(100)
	for i := 0; i < rows; i++ {
		store.SeedWalletTransaction(model.WalletTransaction{
			ID:          fmt.Sprintf("tx-%03d", i),
			ExpertID:    "exp-1",
			AmountCents: each,
			Type:        model.TxBooking,
			Status:      model.TxStatusCompleted,
			ReferenceID: fmt.Sprintf("bk-%03d", i),
		})
	}
	store.SeedWallet(model.Wallet{
		ExpertID:       "exp-1",
		AvailableCents: rows * each,
		LifetimeCents:  rows * each,
	})

	require.NoError(t, svc.Reconcile(context.Background(), "exp-1"))
	require.ErrorIs(t, svc.ReconcileOwn(context.Background(), model.Principal{}), model.ErrUnauthenticated)
	require.NoError(t, svc.ReconcileOwn(context.Background(), expertPrincipal()))
}

func TestReconcile_DetectsDrift(t *testing.T) {
	svc, store := newWithdrawalFixture(t, 10000)
	require.NoError(t, svc.Reconcile(context.Background(), "exp-1"))

	// A balance change with no ledger row behind it is exactly what
	// reconciliation exists to catch.
	store.SeedWallet(model.Wallet{ExpertID: "exp-1", AvailableCents: 99999, LifetimeCents: 10000})
	require.Error(t, svc.Reconcile(context.Background(), "exp-1"))
}
