package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestForBooking_TwoHourSession(t *testing.T) {
	// $100/hr, 2 hours, 0% tax, 15% platform fee.
	q := ForBooking(10000, 2*time.Hour, "", DefaultConfig())

	if q.AmountCents != 20000 {
		t.Fatalf("amount = %d, want 20000", q.AmountCents)
	}
	if q.PlatformFeeCents != 3000 {
		t.Fatalf("platform fee = %d, want 3000", q.PlatformFeeCents)
	}
	if q.ExpertCents != 17000 {
		t.Fatalf("expert amount = %d, want 17000", q.ExpertCents)
	}
	if q.TaxCents != 0 {
		t.Fatalf("tax = %d, want 0", q.TaxCents)
	}
}

func TestForBooking_SplitIsExact(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		rate     int64
		duration time.Duration
	}{
		{10000, 90 * time.Minute},
		{7333, time.Hour},
		{9999, 45 * time.Minute},
		{12501, 2*time.Hour + 30*time.Minute},
	}
	for _, tc := range cases {
		q := ForBooking(tc.rate, tc.duration, "", cfg)
		if q.ExpertCents+q.PlatformFeeCents != q.AmountCents {
			t.Fatalf("rate %d duration %s: expert %d + fee %d != amount %d",
				tc.rate, tc.duration, q.ExpertCents, q.PlatformFeeCents, q.AmountCents)
		}
	}
}

func TestForBooking_TaxLookup(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TaxRates = map[string]decimal.Decimal{"bd": decimal.NewFromFloat(0.05)}

	q := ForBooking(10000, time.Hour, "BD", cfg)
	if q.TaxCents != 500 {
		t.Fatalf("tax = %d, want 500", q.TaxCents)
	}

	q = ForBooking(10000, time.Hour, "unknown", cfg)
	if q.TaxCents != 0 {
		t.Fatalf("unknown jurisdiction tax = %d, want 0", q.TaxCents)
	}
}

func TestCancellationFee(t *testing.T) {
	if fee := CancellationFee(20000, DefaultConfig()); fee != 2000 {
		t.Fatalf("fee = %d, want 2000", fee)
	}
}
