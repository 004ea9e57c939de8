package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sadman-arif/consultpay/internal/model"
	"github.com/sadman-arif/consultpay/internal/wallet"
)

type WalletHandler struct {
	svc       *wallet.Service
	logger    *slog.Logger
	jwtSecret string
}

func NewWalletHandler(svc *wallet.Service, logger *slog.Logger, jwtSecret string) *WalletHandler {
	return &WalletHandler{svc: svc, logger: logger, jwtSecret: jwtSecret}
}

type walletResponse struct {
	ExpertID               string `json:"expert_id"`
	PendingCents           int64  `json:"pending_cents"`
	AvailableCents         int64  `json:"available_cents"`
	PendingWithdrawalCents int64  `json:"pending_withdrawal_cents"`
	LifetimeCents          int64  `json:"lifetime_cents"`
}

func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	wal, err := h.svc.Wallet(r.Context(), principalFrom(r, h.jwtSecret))
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, walletResponse{
		ExpertID:               wal.ExpertID,
		PendingCents:           wal.PendingCents,
		AvailableCents:         wal.AvailableCents,
		PendingWithdrawalCents: wal.PendingWithdrawalCents,
		LifetimeCents:          wal.LifetimeCents,
	})
}

type transactionItem struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amount_cents"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	ReferenceID string `json:"reference_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	txs, err := h.svc.Transactions(r.Context(), principalFrom(r, h.jwtSecret), limit)
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}

	items := make([]transactionItem, 0, len(txs))
	for _, t := range txs {
		items = append(items, transactionItem{
			ID:          t.ID,
			AmountCents: t.AmountCents,
			Type:        string(t.Type),
			Status:      string(t.Status),
			Description: t.Description,
			ReferenceID: t.ReferenceID,
			CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": items})
}

// Reconcile replays the caller's ledger against the stored balances. A
// mismatch is an internal inconsistency and surfaces as a 500.
func (h *WalletHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ReconcileOwn(r.Context(), principalFrom(r, h.jwtSecret)); err != nil {
		writeErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "consistent"})
}

type withdrawalRequestBody struct {
	AmountCents   int64  `json:"amount_cents"`
	PaymentMethod string `json:"payment_method"`
}

type withdrawalResponse struct {
	ID            string `json:"id"`
	ExpertID      string `json:"expert_id"`
	AmountCents   int64  `json:"amount_cents"`
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method,omitempty"`
	PaymentRef    string `json:"payment_ref,omitempty"`
	DecidedAt     string `json:"decided_at,omitempty"`
}

func toWithdrawalResponse(req model.WithdrawalRequest) withdrawalResponse {
	resp := withdrawalResponse{
		ID:            req.ID,
		ExpertID:      req.ExpertID,
		AmountCents:   req.AmountCents,
		Status:        string(req.Status),
		PaymentMethod: req.PaymentMethod,
		PaymentRef:    req.PaymentRef,
	}
	if req.DecidedAt != nil {
		resp.DecidedAt = req.DecidedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *WalletHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var body withdrawalRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req, err := h.svc.RequestWithdrawal(r.Context(), principalFrom(r, h.jwtSecret), body.AmountCents, strings.TrimSpace(body.PaymentMethod))
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWithdrawalResponse(req))
}

type withdrawalDecisionBody struct {
	Approve    bool   `json:"approve"`
	PaymentRef string `json:"payment_ref"`
}

func (h *WalletHandler) DecideWithdrawal(w http.ResponseWriter, r *http.Request) {
	var body withdrawalDecisionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req, err := h.svc.DecideWithdrawal(r.Context(), principalFrom(r, h.jwtSecret), r.PathValue("id"), body.Approve, strings.TrimSpace(body.PaymentRef))
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalResponse(req))
}
