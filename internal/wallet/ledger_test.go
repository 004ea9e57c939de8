package wallet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sadman-arif/consultpay/internal/model"
)

func TestCreditPending(t *testing.T) {
	w := model.Wallet{ExpertID: "exp-1"}

	require.NoError(t, CreditPending(&w, 17000))
	require.Equal(t, int64(17000), w.PendingCents)
	require.Equal(t, int64(17000), w.LifetimeCents)
	require.Zero(t, w.AvailableCents)

	require.NoError(t, CreditPending(&w, 500))
	require.Equal(t, int64(17500), w.PendingCents)
	require.Equal(t, int64(17500), w.LifetimeCents)

	var verr *model.ValidationError
	require.ErrorAs(t, CreditPending(&w, 0), &verr)
	require.ErrorAs(t, CreditPending(&w, -100), &verr)
}

func TestReleasePendingToAvailable(t *testing.T) {
	w := model.Wallet{PendingCents: 17000, LifetimeCents: 17000}

	require.NoError(t, ReleasePendingToAvailable(&w, 17000))
	require.Zero(t, w.PendingCents)
	require.Equal(t, int64(17000), w.AvailableCents)
	// Lifetime is credited once, at the pending credit.
	require.Equal(t, int64(17000), w.LifetimeCents)

	err := ReleasePendingToAvailable(&w, 1)
	require.ErrorIs(t, err, model.ErrInsufficientFunds)
	require.Zero(t, w.PendingCents)
	require.Equal(t, int64(17000), w.AvailableCents)
}

func TestVoidPending(t *testing.T) {
	w := model.Wallet{PendingCents: 17000, LifetimeCents: 17000}

	require.NoError(t, VoidPending(&w, 17000))
	require.Zero(t, w.PendingCents)
	require.Equal(t, int64(17000), w.LifetimeCents)

	require.ErrorIs(t, VoidPending(&w, 1), model.ErrInsufficientFunds)
}

func TestReserveForWithdrawal(t *testing.T) {
	w := model.Wallet{AvailableCents: 10000}

	require.NoError(t, ReserveForWithdrawal(&w, 4000))
	require.Equal(t, int64(6000), w.AvailableCents)
	require.Equal(t, int64(4000), w.PendingWithdrawalCents)

	// Over-withdrawal must not mutate anything.
	err := ReserveForWithdrawal(&w, 6001)
	require.ErrorIs(t, err, model.ErrInsufficientFunds)
	require.Equal(t, int64(6000), w.AvailableCents)
	require.Equal(t, int64(4000), w.PendingWithdrawalCents)
}

func TestFinalizeWithdrawal(t *testing.T) {
	t.Run("approved funds leave the wallet", func(t *testing.T) {
		w := model.Wallet{PendingWithdrawalCents: 4000}
		require.NoError(t, FinalizeWithdrawal(&w, 4000, true))
		require.Zero(t, w.PendingWithdrawalCents)
		require.Zero(t, w.AvailableCents)
	})

	t.Run("rejected funds return to available", func(t *testing.T) {
		w := model.Wallet{PendingWithdrawalCents: 4000}
		require.NoError(t, FinalizeWithdrawal(&w, 4000, false))
		require.Zero(t, w.PendingWithdrawalCents)
		require.Equal(t, int64(4000), w.AvailableCents)
	})

	t.Run("cannot settle more than reserved", func(t *testing.T) {
		w := model.Wallet{PendingWithdrawalCents: 100}
		require.ErrorIs(t, FinalizeWithdrawal(&w, 200, true), model.ErrInsufficientFunds)
	})
}

// Every balance change writes exactly one ledger row (or one status flip),
// so replaying the rows must land on the same balances the operations left.
func TestReplayReproducesBalances(t *testing.T) {
	w := model.Wallet{ExpertID: "exp-1"}
	var txs []model.WalletTransaction

	row := func(typ model.TransactionType, status model.TransactionStatus, amount int64) {
		txs = append(txs, model.WalletTransaction{ExpertID: "exp-1", Type: typ, Status: status, AmountCents: amount})
	}

	// Booking A: confirmed then completed.
	require.NoError(t, CreditPending(&w, 17000))
	require.NoError(t, ReleasePendingToAvailable(&w, 17000))
	row(model.TxBooking, model.TxStatusCompleted, 17000)

	// Booking B: confirmed then cancelled.
	require.NoError(t, CreditPending(&w, 8500))
	require.NoError(t, VoidPending(&w, 8500))
	row(model.TxBooking, model.TxStatusReversed, 8500)

	// Booking C: confirmed, still pending.
	require.NoError(t, CreditPending(&w, 4000))
	row(model.TxBooking, model.TxStatusPending, 4000)

	// Withdrawal of 5000 requested and approved.
	require.NoError(t, ReserveForWithdrawal(&w, 5000))
	row(model.TxWithdrawalRequest, model.TxStatusCompleted, -5000)
	require.NoError(t, FinalizeWithdrawal(&w, 5000, true))
	row(model.TxWithdrawal, model.TxStatusCompleted, -5000)

	// Withdrawal of 2000 requested and rejected.
	require.NoError(t, ReserveForWithdrawal(&w, 2000))
	row(model.TxWithdrawalRequest, model.TxStatusCompleted, -2000)
	require.NoError(t, FinalizeWithdrawal(&w, 2000, false))
	row(model.TxWithdrawalRejected, model.TxStatusCompleted, 2000)

	replayed := Replay(txs)
	require.Equal(t, w.PendingCents, replayed.PendingCents)
	require.Equal(t, w.AvailableCents, replayed.AvailableCents)
	require.Equal(t, w.PendingWithdrawalCents, replayed.PendingWithdrawalCents)
	require.Equal(t, w.LifetimeCents, replayed.LifetimeCents)

	require.Equal(t, int64(4000), replayed.PendingCents)
	require.Equal(t, int64(12000), replayed.AvailableCents)
	require.Zero(t, replayed.PendingWithdrawalCents)
	require.Equal(t, int64(29500), replayed.LifetimeCents)
}
