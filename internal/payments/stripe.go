package payments

import (
	"context"
	"strings"

	"github.com/sadman-arif/consultpay/internal/model"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/refund"
)

// StripeGateway implements Gateway on Stripe PaymentIntents.
type StripeGateway struct{}

func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = strings.TrimSpace(secretKey)
	return &StripeGateway{}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, p CreateIntentParams) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx, IdempotencyKey: stripe.String(p.IdempotencyKey)},
		Amount:   stripe.Int64(p.AmountCents),
		Currency: stripe.String(p.Currency),
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return Intent{}, &model.GatewayError{Op: "create_intent", Err: err}
	}
	return Intent{ID: pi.ID, Status: string(pi.Status)}, nil
}

func (g *StripeGateway) ConfirmIntent(ctx context.Context, intentID string) (Intent, error) {
	pi, err := paymentintent.Get(intentID, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return Intent{}, &model.GatewayError{Op: "confirm_intent", Err: err}
	}
	return Intent{ID: pi.ID, Status: string(pi.Status)}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string, amountCents int64, reason string) (string, error) {
	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(amountCents),
	}
	if reason != "" {
		params.AddMetadata("reason", reason)
	}

	r, err := refund.New(params)
	if err != nil {
		return "", &model.GatewayError{Op: "refund", Err: err}
	}
	return r.ID, nil
}
