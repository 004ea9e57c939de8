package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sadman-arif/consultpay/internal/model"
	"github.com/sadman-arif/consultpay/internal/storage"
)

// Credit records earned funds against a booking inside the caller's
// transaction, creating the wallet lazily on the expert's first earnings.
func Credit(ctx context.Context, tx storage.Tx, expertID string, amountCents int64, bookingID string) error {
	w, err := tx.GetWalletForUpdate(ctx, expertID)
	created := false
	if errors.Is(err, model.ErrNotFound) {
		w = model.Wallet{ExpertID: expertID}
		created = true
	} else if err != nil {
		return err
	}

	if err := CreditPending(&w, amountCents); err != nil {
		return err
	}

	if created {
		if err := tx.InsertWallet(ctx, w); err != nil {
			return err
		}
	} else if err := tx.SaveWallet(ctx, w); err != nil {
		return err
	}

	return tx.InsertWalletTransaction(ctx, model.WalletTransaction{
		ID:          uuid.NewString(),
		ExpertID:    expertID,
		AmountCents: amountCents,
		Type:        model.TxBooking,
		Status:      model.TxStatusPending,
		Description: "booking earnings (pending until completion)",
		ReferenceID: bookingID,
	})
}

// Release moves a booking's earnings from pending to available and completes
// the matching ledger row, all inside the caller's transaction.
func Release(ctx context.Context, tx storage.Tx, expertID string, amountCents int64, bookingID string) error {
	w, err := tx.GetWalletForUpdate(ctx, expertID)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	if err := ReleasePendingToAvailable(&w, amountCents); err != nil {
		return err
	}
	if err := tx.SaveWallet(ctx, w); err != nil {
		return err
	}
	return tx.UpdateWalletTransactionStatus(ctx, expertID, model.TxBooking, bookingID, model.TxStatusCompleted)
}

// Void reverses a pending booking credit when a confirmed booking is
// cancelled; the ledger row is marked reversed, never deleted.
func Void(ctx context.Context, tx storage.Tx, expertID string, amountCents int64, bookingID string) error {
	w, err := tx.GetWalletForUpdate(ctx, expertID)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	if err := VoidPending(&w, amountCents); err != nil {
		return err
	}
	if err := tx.SaveWallet(ctx, w); err != nil {
		return err
	}
	return tx.UpdateWalletTransactionStatus(ctx, expertID, model.TxBooking, bookingID, model.TxStatusReversed)
}
