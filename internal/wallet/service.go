package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sadman-arif/consultpay/internal/model"
	"github.com/sadman-arif/consultpay/internal/outbox"
	"github.com/sadman-arif/consultpay/internal/storage"
)

// Service owns the withdrawal flow and wallet reads.
type Service struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store storage.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Wallet(ctx context.Context, principal model.Principal) (model.Wallet, error) {
	if !principal.Authenticated() {
		return model.Wallet{}, model.ErrUnauthenticated
	}
	return s.store.GetWallet(ctx, principal.UserID)
}

func (s *Service) Transactions(ctx context.Context, principal model.Principal, limit int) ([]model.WalletTransaction, error) {
	if !principal.Authenticated() {
		return nil, model.ErrUnauthenticated
	}
	return s.store.ListWalletTransactions(ctx, principal.UserID, limit)
}

// RequestWithdrawal reserves available funds behind a pending request. The
// reservation and its ledger row commit together or not at all.
func (s *Service) RequestWithdrawal(ctx context.Context, principal model.Principal, amountCents int64, method string) (model.WithdrawalRequest, error) {
	if !principal.Authenticated() {
		return model.WithdrawalRequest{}, model.ErrUnauthenticated
	}
	if principal.Role != model.RoleExpert {
		return model.WithdrawalRequest{}, model.ErrUnauthorized
	}
	if amountCents <= 0 {
		return model.WithdrawalRequest{}, model.Validationf("amount", "must be positive")
	}
	if method == "" {
		return model.WithdrawalRequest{}, model.Validationf("payment_method", "is required")
	}

	req := model.WithdrawalRequest{
		ID:            uuid.NewString(),
		ExpertID:      principal.UserID,
		AmountCents:   amountCents,
		Status:        model.WithdrawalPending,
		PaymentMethod: method,
	}

	err := s.store.ExecTx(ctx, func(tx storage.Tx) error {
		w, err := tx.GetWalletForUpdate(ctx, req.ExpertID)
		if err != nil {
			return fmt.Errorf("load wallet: %w", err)
		}
		if err := ReserveForWithdrawal(&w, amountCents); err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		if err := tx.InsertWithdrawalRequest(ctx, req); err != nil {
			return err
		}
		return tx.InsertWalletTransaction(ctx, model.WalletTransaction{
			ID:          uuid.NewString(),
			ExpertID:    req.ExpertID,
			AmountCents: -amountCents,
			Type:        model.TxWithdrawalRequest,
			Status:      model.TxStatusCompleted,
			Description: "withdrawal requested (funds reserved)",
			ReferenceID: req.ID,
		})
	})
	if err != nil {
		return model.WithdrawalRequest{}, err
	}
	return req, nil
}

// DecideWithdrawal settles a pending request. Approval pays the reservation
// out; rejection returns it to the available balance. Admin only.
func (s *Service) DecideWithdrawal(ctx context.Context, principal model.Principal, requestID string, approve bool, paymentRef string) (model.WithdrawalRequest, error) {
	if !principal.Authenticated() {
		return model.WithdrawalRequest{}, model.ErrUnauthenticated
	}
	if !principal.Admin() {
		return model.WithdrawalRequest{}, model.ErrUnauthorized
	}

	var out model.WithdrawalRequest
	err := s.store.ExecTx(ctx, func(tx storage.Tx) error {
		req, err := tx.GetWithdrawalRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != model.WithdrawalPending {
			return model.Validationf("status", "request already %s", req.Status)
		}

		w, err := tx.GetWalletForUpdate(ctx, req.ExpertID)
		if err != nil {
			return fmt.Errorf("load wallet: %w", err)
		}
		if err := FinalizeWithdrawal(&w, req.AmountCents, approve); err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}

		ledgerRow := model.WalletTransaction{
			ID:          uuid.NewString(),
			ExpertID:    req.ExpertID,
			Status:      model.TxStatusCompleted,
			ReferenceID: req.ID,
		}
		now := s.now()
		if approve {
			req.Status = model.WithdrawalApproved
			req.PaymentRef = paymentRef
			ledgerRow.Type = model.TxWithdrawal
			ledgerRow.AmountCents = -req.AmountCents
			ledgerRow.Description = "withdrawal approved"
		} else {
			req.Status = model.WithdrawalRejected
			ledgerRow.Type = model.TxWithdrawalRejected
			ledgerRow.AmountCents = req.AmountCents
			ledgerRow.Description = "withdrawal rejected (funds returned)"
		}
		req.DecidedAt = &now

		if err := tx.InsertWalletTransaction(ctx, ledgerRow); err != nil {
			return err
		}
		if err := tx.SaveWithdrawalRequest(ctx, req); err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]any{
			"request_id":   req.ID,
			"expert_id":    req.ExpertID,
			"amount_cents": req.AmountCents,
			"status":       req.Status,
			"decided_at":   now.Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, outbox.Event{
			AggregateType: "withdrawal_request",
			AggregateID:   req.ID,
			EventType:     outbox.TopicWithdrawalDecided,
			Payload:       payload,
		}); err != nil {
			return err
		}

		out = req
		return nil
	})
	if err != nil {
		return model.WithdrawalRequest{}, err
	}
	return out, nil
}

// ReconcileOwn runs Reconcile for the caller's wallet.
func (s *Service) ReconcileOwn(ctx context.Context, principal model.Principal) error {
	if !principal.Authenticated() {
		return model.ErrUnauthenticated
	}
	return s.Reconcile(ctx, principal.UserID)
}

// Reconcile replays the expert's full ledger and compares it against the
// stored wallet. A mismatch means a balance change escaped the transaction
// log.
func (s *Service) Reconcile(ctx context.Context, expertID string) error {
	w, err := s.store.GetWallet(ctx, expertID)
	if err != nil {
		return err
	}
	txs, err := s.store.ListWalletTransactions(ctx, expertID, 0)
	if err != nil {
		return err
	}
	replayed := Replay(txs)
	if replayed.PendingCents != w.PendingCents ||
		replayed.AvailableCents != w.AvailableCents ||
		replayed.PendingWithdrawalCents != w.PendingWithdrawalCents ||
		replayed.LifetimeCents != w.LifetimeCents {
		return fmt.Errorf("wallet %s out of balance: stored %+v, ledger %+v", expertID, w, replayed)
	}
	return nil
}
