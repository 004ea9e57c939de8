package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sadman-arif/consultpay/internal/installments"
	"github.com/sadman-arif/consultpay/internal/model"
)

type InstallmentHandler struct {
	svc       *installments.Service
	logger    *slog.Logger
	jwtSecret string
}

func NewInstallmentHandler(svc *installments.Service, logger *slog.Logger, jwtSecret string) *InstallmentHandler {
	return &InstallmentHandler{svc: svc, logger: logger, jwtSecret: jwtSecret}
}

type createPlanRequest struct {
	Installments int `json:"installments"`
}

type installmentItem struct {
	ID          string `json:"id"`
	Sequence    int    `json:"sequence"`
	AmountCents int64  `json:"amount_cents"`
	DueAt       string `json:"due_at"`
	Status      string `json:"status"`
	PaymentRef  string `json:"payment_ref,omitempty"`
	PaidAt      string `json:"paid_at,omitempty"`
}

func toInstallmentItem(ins model.Installment) installmentItem {
	item := installmentItem{
		ID:          ins.ID,
		Sequence:    ins.Sequence,
		AmountCents: ins.AmountCents,
		DueAt:       ins.DueAt.Format(time.RFC3339),
		Status:      string(ins.Status),
		PaymentRef:  ins.PaymentRef,
	}
	if ins.PaidAt != nil {
		item.PaidAt = ins.PaidAt.Format(time.RFC3339)
	}
	return item
}

func (h *InstallmentHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	plan, rows, err := h.svc.CreatePlan(r.Context(), principalFrom(r, h.jwtSecret), r.PathValue("id"), req.Installments)
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}

	items := make([]installmentItem, 0, len(rows))
	for _, ins := range rows {
		items = append(items, toInstallmentItem(ins))
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"plan_id":           plan.ID,
		"booking_id":        plan.BookingID,
		"total_cents":       plan.TotalCents,
		"installment_count": plan.InstallmentCount,
		"status":            string(plan.Status),
		"installments":      items,
	})
}

type payInstallmentRequest struct {
	PaymentRef string `json:"payment_ref"`
}

func (h *InstallmentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req payInstallmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	ins, err := h.svc.PayInstallment(r.Context(), principalFrom(r, h.jwtSecret), r.PathValue("id"), strings.TrimSpace(req.PaymentRef))
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toInstallmentItem(ins))
}
