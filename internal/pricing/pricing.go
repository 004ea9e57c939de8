// Package pricing computes the monetary breakdown of a booking. All amounts
// are integer cents; intermediate math uses decimals so that rate-by-duration
// and percentage fees never pick up float drift.
package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Quote struct {
	AmountCents      int64
	TaxCents         int64
	PlatformFeeCents int64
	ExpertCents      int64
}

type Config struct {
	// PlatformFeeRate is the marketplace cut, e.g. 0.15.
	PlatformFeeRate decimal.Decimal
	// CancellationFeeRate sets the per-booking late-cancellation fee as a
	// fraction of the base amount, agreed at creation time.
	CancellationFeeRate decimal.Decimal
	// CancellationWindow is how long before the start time a client can
	// still cancel fee-free.
	CancellationWindow time.Duration
	// TaxRates maps lowercase jurisdiction codes to tax fractions. Unknown
	// jurisdictions are taxed at zero.
	TaxRates map[string]decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		PlatformFeeRate:     decimal.NewFromFloat(0.15),
		CancellationFeeRate: decimal.NewFromFloat(0.10),
		CancellationWindow:  24 * time.Hour,
		TaxRates:            map[string]decimal.Decimal{},
	}
}

// TaxRate looks up the jurisdiction's tax fraction, defaulting to zero.
func (c Config) TaxRate(jurisdiction string) decimal.Decimal {
	if r, ok := c.TaxRates[strings.ToLower(strings.TrimSpace(jurisdiction))]; ok {
		return r
	}
	return decimal.Zero
}

// ForBooking prices a booking: amount = hourly rate x duration, fee = amount
// x platform rate (rounded to the cent, half away from zero), expert share is
// the exact remainder so that expert + fee == amount always holds.
func ForBooking(hourlyRateCents int64, duration time.Duration, jurisdiction string, cfg Config) Quote {
	hours := decimal.NewFromFloat(duration.Hours())
	amount := decimal.NewFromInt(hourlyRateCents).Mul(hours).Round(0)

	fee := amount.Mul(cfg.PlatformFeeRate).Round(0)
	tax := amount.Mul(cfg.TaxRate(jurisdiction)).Round(0)

	amountCents := amount.IntPart()
	feeCents := fee.IntPart()

	return Quote{
		AmountCents:      amountCents,
		TaxCents:         tax.IntPart(),
		PlatformFeeCents: feeCents,
		ExpertCents:      amountCents - feeCents,
	}
}

// CancellationFee computes the fee fixed on the booking at creation time.
func CancellationFee(amountCents int64, cfg Config) int64 {
	return decimal.NewFromInt(amountCents).Mul(cfg.CancellationFeeRate).Round(0).IntPart()
}
