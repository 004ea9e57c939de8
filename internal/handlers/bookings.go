package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sadman-arif/consultpay/internal/booking"
	"github.com/sadman-arif/consultpay/internal/model"
)

type BookingHandler struct {
	svc       *booking.Service
	logger    *slog.Logger
	jwtSecret string
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger, jwtSecret string) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger, jwtSecret: jwtSecret}
}

type createBookingRequest struct {
	ExpertID        string `json:"expert_id"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type bookingResponse struct {
	ID              string `json:"id"`
	ClientID        string `json:"client_id"`
	ExpertID        string `json:"expert_id"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`

	AmountCents      int64 `json:"amount_cents"`
	TaxCents         int64 `json:"tax_cents"`
	PlatformFeeCents int64 `json:"platform_fee_cents"`
	ExpertCents      int64 `json:"expert_amount_cents"`

	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`

	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	PaymentPlanID   string `json:"payment_plan_id,omitempty"`

	CancellationDeadline string `json:"cancellation_deadline"`
	CancellationFeeCents int64  `json:"cancellation_fee_cents"`
	CancelledAt          string `json:"cancelled_at,omitempty"`
	CancellationReason   string `json:"cancellation_reason,omitempty"`

	RescheduleCount int `json:"reschedule_count"`
}

func toBookingResponse(b model.Booking) bookingResponse {
	resp := bookingResponse{
		ID:                   b.ID,
		ClientID:             b.ClientID,
		ExpertID:             b.ExpertID,
		StartTime:            b.StartTime.Format(time.RFC3339),
		EndTime:              b.EndTime.Format(time.RFC3339),
		DurationMinutes:      int(b.Duration / time.Minute),
		AmountCents:          b.AmountCents,
		TaxCents:             b.TaxCents,
		PlatformFeeCents:     b.PlatformFeeCents,
		ExpertCents:          b.ExpertCents,
		Status:               string(b.Status),
		PaymentStatus:        string(b.PaymentStatus),
		PaymentIntentID:      b.PaymentIntentID,
		PaymentPlanID:        b.PaymentPlanID,
		CancellationDeadline: b.CancellationDeadline.Format(time.RFC3339),
		CancellationFeeCents: b.CancellationFeeCents,
		CancellationReason:   b.CancellationReason,
		RescheduleCount:      b.RescheduleCount,
	}
	if b.CancelledAt != nil {
		resp.CancelledAt = b.CancelledAt.Format(time.RFC3339)
	}
	return resp
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ExpertID = strings.TrimSpace(req.ExpertID)

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	b, err := h.svc.Create(r.Context(), principalFrom(r, h.jwtSecret), booking.CreateInput{
		ExpertID: req.ExpertID,
		Start:    start,
		Duration: time.Duration(req.DurationMinutes) * time.Minute,
	})
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Get(r.Context(), principalFrom(r, h.jwtSecret), r.PathValue("id"))
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Complete(r.Context(), principalFrom(r, h.jwtSecret), r.PathValue("id"))
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

type rescheduleRequest struct {
	StartTime string `json:"start_time"`
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	b, err := h.svc.Reschedule(r.Context(), principalFrom(r, h.jwtSecret), r.PathValue("id"), start)
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type cancelResponse struct {
	Booking      bookingResponse `json:"booking"`
	RefundCents  int64           `json:"refund_cents"`
	FeeCents     int64           `json:"fee_cents"`
	RefundID     string          `json:"refund_id,omitempty"`
	RefundStatus string          `json:"refund_status"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Cancel(r.Context(), principalFrom(r, h.jwtSecret), r.PathValue("id"), strings.TrimSpace(req.Reason))
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}

	resp := cancelResponse{
		Booking:     toBookingResponse(res.Booking),
		RefundCents: res.RefundCents,
		FeeCents:    res.FeeCents,
		RefundID:    res.RefundID,
	}
	switch {
	case res.RefundFailed:
		resp.RefundStatus = "failed_pending_retry"
	case res.RefundCents > 0 && res.RefundID != "":
		resp.RefundStatus = "initiated"
	default:
		resp.RefundStatus = "not_applicable"
	}
	writeJSON(w, http.StatusOK, resp)
}

type historyItem struct {
	Action     string `json:"action"`
	PrevStatus string `json:"prev_status"`
	NewStatus  string `json:"new_status"`
	PrevStart  string `json:"prev_start,omitempty"`
	NewStart   string `json:"new_start,omitempty"`
	ActorID    string `json:"actor_id"`
	ActorRole  string `json:"actor_role"`
	Reason     string `json:"reason,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func (h *BookingHandler) History(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.History(r.Context(), principalFrom(r, h.jwtSecret), r.PathValue("id"))
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}

	items := make([]historyItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, historyItem{
			Action:     row.Action,
			PrevStatus: string(row.PrevStatus),
			NewStatus:  string(row.NewStatus),
			PrevStart:  row.PrevStart.Format(time.RFC3339),
			NewStart:   row.NewStart.Format(time.RFC3339),
			ActorID:    row.ActorID,
			ActorRole:  string(row.ActorRole),
			Reason:     row.Reason,
			CreatedAt:  row.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": items})
}
