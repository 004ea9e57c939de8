// Package installments splits a booking total into a scheduled payment plan.
package installments

import (
	"fmt"
	"time"

	"github.com/sadman-arif/consultpay/internal/model"
	"github.com/shopspring/decimal"
)

// Split divides totalCents into n cent-exact parts. Each part is the total
// divided by n rounded to the cent; the final part absorbs the rounding
// remainder so the parts always sum to the total exactly.
func Split(totalCents int64, n int) ([]int64, error) {
	if n < model.MinInstallments || n > model.MaxInstallments {
		return nil, fmt.Errorf("installment count %d outside [%d,%d]: %w",
			n, model.MinInstallments, model.MaxInstallments, model.ErrInvalidRange)
	}
	if totalCents <= 0 {
		return nil, model.Validationf("total", "must be positive, got %d", totalCents)
	}

	per := decimal.NewFromInt(totalCents).
		DivRound(decimal.NewFromInt(int64(n)), 0).
		IntPart()

	parts := make([]int64, n)
	for i := 0; i < n-1; i++ {
		parts[i] = per
	}
	parts[n-1] = totalCents - per*int64(n-1)
	return parts, nil
}

// Schedule builds the installment rows for a plan. Installment 0 is due
// immediately and marked paid, since the first payment is captured
// synchronously at plan creation; installment i is due i months out.
func Schedule(planID string, parts []int64, now time.Time, firstPaymentRef string, newID func() string) []model.Installment {
	out := make([]model.Installment, len(parts))
	for i, amount := range parts {
		ins := model.Installment{
			ID:          newID(),
			PlanID:      planID,
			Sequence:    i,
			AmountCents: amount,
			DueAt:       now.AddDate(0, i, 0),
			Status:      model.InstallmentPending,
		}
		if i == 0 {
			paidAt := now
			ins.Status = model.InstallmentPaid
			ins.PaymentRef = firstPaymentRef
			ins.PaidAt = &paidAt
		}
		out[i] = ins
	}
	return out
}
