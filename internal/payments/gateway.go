// Package payments defines the contract this engine expects from the
// external payment gateway plus its Stripe implementation.
package payments

import "context"

const IntentSucceeded = "succeeded"

type Intent struct {
	ID     string
	Status string
}

type CreateIntentParams struct {
	AmountCents int64
	Currency    string
	// IdempotencyKey must be unique per booking so gateway retries never
	// double-charge; idempotency itself is the gateway's responsibility.
	IdempotencyKey string
	Metadata       map[string]string
}

// Gateway is consumed, never implemented, by the engine. Confirm results
// other than "succeeded" are failures; refunds are never assumed to settle
// synchronously.
type Gateway interface {
	CreateIntent(ctx context.Context, p CreateIntentParams) (Intent, error)
	ConfirmIntent(ctx context.Context, intentID string) (Intent, error)
	Refund(ctx context.Context, intentID string, amountCents int64, reason string) (string, error)
}
