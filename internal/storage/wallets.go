package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sadman-arif/consultpay/internal/model"
)

const selectWallet = `
	SELECT expert_id, pending_cents, available_cents, pending_withdrawal_cents, lifetime_cents, created_at, updated_at
	FROM wallets`

func scanWallet(row pgx.Row) (model.Wallet, error) {
	var w model.Wallet
	err := row.Scan(&w.ExpertID, &w.PendingCents, &w.AvailableCents, &w.PendingWithdrawalCents, &w.LifetimeCents, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return model.Wallet{}, mapNotFound(err)
	}
	return w, nil
}

func (t *pgTx) GetWalletForUpdate(ctx context.Context, expertID string) (model.Wallet, error) {
	return scanWallet(t.tx.QueryRow(ctx, selectWallet+` WHERE expert_id = $1 FOR UPDATE`, expertID))
}

func (t *pgTx) InsertWallet(ctx context.Context, w model.Wallet) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO wallets (expert_id, pending_cents, available_cents, pending_withdrawal_cents, lifetime_cents)
		VALUES ($1, $2, $3, $4, $5)
	`, w.ExpertID, w.PendingCents, w.AvailableCents, w.PendingWithdrawalCents, w.LifetimeCents)
	return err
}

func (t *pgTx) SaveWallet(ctx context.Context, w model.Wallet) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE wallets
		SET pending_cents = $2,
			available_cents = $3,
			pending_withdrawal_cents = $4,
			lifetime_cents = $5,
			updated_at = now()
		WHERE expert_id = $1
	`, w.ExpertID, w.PendingCents, w.AvailableCents, w.PendingWithdrawalCents, w.LifetimeCents)
	return err
}

func (t *pgTx) InsertWalletTransaction(ctx context.Context, tr model.WalletTransaction) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, expert_id, amount_cents, type, status, description, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, tr.ID, tr.ExpertID, tr.AmountCents, tr.Type, tr.Status, tr.Description, nullIfEmpty(tr.ReferenceID))
	return err
}

// UpdateWalletTransactionStatus flips the status of the ledger row matching
// (expert, type, reference). Status is the only mutable column; rows are
// otherwise append-only.
func (t *pgTx) UpdateWalletTransactionStatus(ctx context.Context, expertID string, typ model.TransactionType, referenceID string, status model.TransactionStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE wallet_transactions
		SET status = $4, updated_at = now()
		WHERE expert_id = $1 AND type = $2 AND reference_id = $3
	`, expertID, typ, referenceID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertWithdrawalRequest(ctx context.Context, r model.WithdrawalRequest) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO withdrawal_requests (id, expert_id, amount_cents, status, payment_method, payment_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, r.ExpertID, r.AmountCents, r.Status, r.PaymentMethod, nullIfEmpty(r.PaymentRef))
	return err
}

func (t *pgTx) GetWithdrawalRequestForUpdate(ctx context.Context, id string) (model.WithdrawalRequest, error) {
	var r model.WithdrawalRequest
	var decidedAt *time.Time
	err := t.tx.QueryRow(ctx, `
		SELECT id, expert_id, amount_cents, status, payment_method, COALESCE(payment_ref, ''), created_at, decided_at
		FROM withdrawal_requests
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&r.ID, &r.ExpertID, &r.AmountCents, &r.Status, &r.PaymentMethod, &r.PaymentRef, &r.CreatedAt, &decidedAt)
	if err != nil {
		return model.WithdrawalRequest{}, mapNotFound(err)
	}
	r.DecidedAt = decidedAt
	return r, nil
}

func (t *pgTx) SaveWithdrawalRequest(ctx context.Context, r model.WithdrawalRequest) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE withdrawal_requests
		SET status = $2, payment_ref = $3, decided_at = $4
		WHERE id = $1
	`, r.ID, r.Status, nullIfEmpty(r.PaymentRef), r.DecidedAt)
	return err
}
