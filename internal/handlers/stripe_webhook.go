package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/sadman-arif/consultpay/internal/booking"
)

// WebhookHandler handles Stripe webhooks (no JWT auth; signature
// verification is the auth). The gateway should expose this path publicly.
type WebhookHandler struct {
	bookings  *booking.Service
	logger    *slog.Logger
	secret    string
	tolerance time.Duration
}

func NewWebhookHandler(bookings *booking.Service, logger *slog.Logger, secret string, toleranceSeconds int) *WebhookHandler {
	if toleranceSeconds <= 0 {
		toleranceSeconds = 300
	}
	return &WebhookHandler{
		bookings:  bookings,
		logger:    logger,
		secret:    strings.TrimSpace(secret),
		tolerance: time.Duration(toleranceSeconds) * time.Second,
	}
}

func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.secret, h.tolerance)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	evtType := string(evt.Type)
	h.logger.Info("payment provider event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evtType,
	)

	switch evtType {
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &intent); err != nil {
			h.logger.Error("stripe: invalid payment intent payload", "err", err)
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		err := h.bookings.ConfirmFromEvent(r.Context(), intent.ID, booking.ProviderEvent{
			Provider: "stripe",
			EventID:  evt.ID,
			Type:     evtType,
			Payload:  body,
		})
		if err != nil {
			// A non-2xx makes Stripe redeliver; nothing was committed.
			writeErr(w, h.logger, err)
			return
		}

	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &intent); err != nil {
			h.logger.Error("stripe: invalid payment intent payload", "err", err)
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		// The booking stays pending_payment; the client can retry the
		// intent or cancel. Logged for support visibility.
		h.logger.Warn("payment intent failed", "payment_intent_id", intent.ID)

	default:
		h.logger.Info("unhandled stripe event type ignored", "event_type", evtType)
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
