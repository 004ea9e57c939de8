// Package policy evaluates the refund/fee split for a cancellation.
package policy

import (
	"time"

	"github.com/sadman-arif/consultpay/internal/model"
)

type Outcome struct {
	RefundCents int64
	FeeCents    int64
}

// Evaluate applies the cancellation policy. The default is a full refund of
// amount + tax with no fee. A client cancelling after the booking's deadline
// pays the fee agreed at creation. Expert-initiated cancellations never incur
// a fee; experts bear reputational, not financial, cost. Both outputs are
// clamped at zero.
func Evaluate(b model.Booking, role model.Role, now time.Time) Outcome {
	gross := b.AmountCents + b.TaxCents

	fee := int64(0)
	if role == model.RoleClient && now.After(b.CancellationDeadline) {
		fee = b.CancellationFeeCents
	}
	if fee > gross {
		fee = gross
	}
	if fee < 0 {
		fee = 0
	}

	return Outcome{RefundCents: gross - fee, FeeCents: fee}
}
