// Package wallet is the ledger manager. Balance arithmetic lives in pure
// functions so the invariants (non-negative balances, monotonic lifetime
// earnings, one ledger row per mutation) are testable without a database;
// Service and the helpers in ops.go bind them to a storage transaction.
package wallet

import (
	"fmt"

	"github.com/sadman-arif/consultpay/internal/model"
)

// CreditPending adds earned-but-locked funds at booking confirmation.
// Lifetime earnings are credited here, not at completion.
func CreditPending(w *model.Wallet, amountCents int64) error {
	if amountCents <= 0 {
		return model.Validationf("amount", "must be positive, got %d", amountCents)
	}
	w.PendingCents += amountCents
	w.LifetimeCents += amountCents
	return nil
}

// ReleasePendingToAvailable moves funds from pending to available at booking
// completion. Lifetime earnings are untouched.
func ReleasePendingToAvailable(w *model.Wallet, amountCents int64) error {
	if amountCents <= 0 {
		return model.Validationf("amount", "must be positive, got %d", amountCents)
	}
	if w.PendingCents < amountCents {
		return fmt.Errorf("release %d exceeds pending balance %d: %w", amountCents, w.PendingCents, model.ErrInsufficientFunds)
	}
	w.PendingCents -= amountCents
	w.AvailableCents += amountCents
	return nil
}

// VoidPending reverses a pending credit when a confirmed booking is
// cancelled before completion. Lifetime earnings stay as credited; they are
// monotonically non-decreasing by contract.
func VoidPending(w *model.Wallet, amountCents int64) error {
	if amountCents <= 0 {
		return model.Validationf("amount", "must be positive, got %d", amountCents)
	}
	if w.PendingCents < amountCents {
		return fmt.Errorf("void %d exceeds pending balance %d: %w", amountCents, w.PendingCents, model.ErrInsufficientFunds)
	}
	w.PendingCents -= amountCents
	return nil
}

// ReserveForWithdrawal locks available funds behind a withdrawal request.
func ReserveForWithdrawal(w *model.Wallet, amountCents int64) error {
	if amountCents <= 0 {
		return model.Validationf("amount", "must be positive, got %d", amountCents)
	}
	if amountCents > w.AvailableCents {
		return fmt.Errorf("withdrawal %d exceeds available balance %d: %w", amountCents, w.AvailableCents, model.ErrInsufficientFunds)
	}
	w.AvailableCents -= amountCents
	w.PendingWithdrawalCents += amountCents
	return nil
}

// FinalizeWithdrawal settles a reservation. Approved funds leave the wallet;
// rejected funds return to available.
func FinalizeWithdrawal(w *model.Wallet, amountCents int64, approved bool) error {
	if amountCents <= 0 {
		return model.Validationf("amount", "must be positive, got %d", amountCents)
	}
	if w.PendingWithdrawalCents < amountCents {
		return fmt.Errorf("finalize %d exceeds reserved balance %d: %w", amountCents, w.PendingWithdrawalCents, model.ErrInsufficientFunds)
	}
	w.PendingWithdrawalCents -= amountCents
	if !approved {
		w.AvailableCents += amountCents
	}
	return nil
}

// Replay rebuilds wallet balances from the ledger alone. The transaction log
// must be a complete audit of every balance change, so Replay over an
// expert's rows has to reproduce the stored wallet exactly; the tests and
// the reconciliation endpoint both lean on this.
//
// Row protocol: a booking credit is inserted `pending` at confirmation and
// its status flips to `completed` on completion or `reversed` on
// cancellation; that is the only status transition in the ledger. Withdrawal rows
// are inserted final: `withdrawal_request` (-X) when funds are reserved,
// `withdrawal` (-X) when a request is approved and the money leaves the
// wallet, `withdrawal_rejected` (+X) when the reservation is returned.
func Replay(txs []model.WalletTransaction) model.Wallet {
	var w model.Wallet
	for _, t := range txs {
		w.ExpertID = t.ExpertID
		switch t.Type {
		case model.TxBooking:
			switch t.Status {
			case model.TxStatusPending:
				w.PendingCents += t.AmountCents
				w.LifetimeCents += t.AmountCents
			case model.TxStatusCompleted:
				w.AvailableCents += t.AmountCents
				w.LifetimeCents += t.AmountCents
			case model.TxStatusReversed:
				// Credited then voided: lifetime keeps the gross figure.
				w.LifetimeCents += t.AmountCents
			}
		case model.TxWithdrawalRequest, model.TxWithdrawalRejected:
			// Reserve (-X) and its return (+X) move funds between the
			// available and reserved buckets in opposite directions.
			w.AvailableCents += t.AmountCents
			w.PendingWithdrawalCents -= t.AmountCents
		case model.TxWithdrawal:
			// Approved payout: money leaves the wallet entirely.
			w.PendingWithdrawalCents += t.AmountCents
		}
	}
	return w
}
