package policy

import (
	"testing"
	"time"

	"github.com/sadman-arif/consultpay/internal/model"
)

func booking(amount, tax, fee int64, deadline time.Time) model.Booking {
	return model.Booking{
		AmountCents:          amount,
		TaxCents:             tax,
		CancellationFeeCents: fee,
		CancellationDeadline: deadline,
	}
}

func TestEvaluate(t *testing.T) {
	deadline := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		b          model.Booking
		role       model.Role
		now        time.Time
		wantRefund int64
		wantFee    int64
	}{
		{
			name:       "client before deadline, full refund",
			b:          booking(20000, 0, 2000, deadline),
			role:       model.RoleClient,
			now:        deadline.Add(-time.Hour),
			wantRefund: 20000,
			wantFee:    0,
		},
		{
			name:       "client after deadline pays the agreed fee",
			b:          booking(20000, 0, 2000, deadline),
			role:       model.RoleClient,
			now:        deadline.Add(2 * time.Hour),
			wantRefund: 18000,
			wantFee:    2000,
		},
		{
			name:       "expert cancellation is always fee-free",
			b:          booking(20000, 0, 2000, deadline),
			role:       model.RoleExpert,
			now:        deadline.Add(48 * time.Hour),
			wantRefund: 20000,
			wantFee:    0,
		},
		{
			name:       "tax is refunded too",
			b:          booking(20000, 1500, 2000, deadline),
			role:       model.RoleClient,
			now:        deadline.Add(time.Hour),
			wantRefund: 19500,
			wantFee:    2000,
		},
		{
			name:       "fee larger than gross clamps instead of going negative",
			b:          booking(1000, 0, 5000, deadline),
			role:       model.RoleClient,
			now:        deadline.Add(time.Hour),
			wantRefund: 0,
			wantFee:    1000,
		},
		{
			name:       "exactly at the deadline is still fee-free",
			b:          booking(20000, 0, 2000, deadline),
			role:       model.RoleClient,
			now:        deadline,
			wantRefund: 20000,
			wantFee:    0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.b, tc.role, tc.now)
			if got.RefundCents != tc.wantRefund || got.FeeCents != tc.wantFee {
				t.Fatalf("Evaluate = refund %d fee %d, want refund %d fee %d",
					got.RefundCents, got.FeeCents, tc.wantRefund, tc.wantFee)
			}
		})
	}
}
