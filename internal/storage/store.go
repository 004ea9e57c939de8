// Package storage defines the persistence surface of the engine and its
// Postgres implementation. The interfaces speak only in model types so the
// services can be exercised against in-memory fakes; the one concurrency
// primitive the engine relies on (exclusion constraint on overlapping
// bookings, FOR UPDATE row locks on wallets) lives behind them.
package storage

import (
	"context"
	"time"

	"github.com/sadman-arif/consultpay/internal/availability"
	"github.com/sadman-arif/consultpay/internal/model"
	"github.com/sadman-arif/consultpay/internal/outbox"
)

// Store is the read surface plus the transactional entry point. ExecTx runs
// fn inside a single database transaction; returning an error rolls back.
type Store interface {
	ExecTx(ctx context.Context, fn func(Tx) error) error

	GetBooking(ctx context.Context, id string) (model.Booking, error)
	ListBookingHistory(ctx context.Context, bookingID string) ([]model.BookingHistory, error)
	GetExpert(ctx context.Context, id string) (model.Expert, error)
	GetWallet(ctx context.Context, expertID string) (model.Wallet, error)
	// ListWalletTransactions returns the expert's ledger rows oldest
	// first. A limit <= 0 returns every row.
	ListWalletTransactions(ctx context.Context, expertID string, limit int) ([]model.WalletTransaction, error)

	ListSlots(ctx context.Context, expertID string, weekday time.Weekday) ([]model.AvailabilitySlot, error)
	// GetUnavailableDate returns the blackout covering the date, or nil
	// when the expert is bookable that day.
	GetUnavailableDate(ctx context.Context, expertID string, date time.Time) (*model.UnavailableDate, error)
	ListActiveIntervals(ctx context.Context, expertID string, date time.Time) ([]availability.Interval, error)
}

// Tx is one unit of work. Every method call sees the same transaction.
type Tx interface {
	// Bookings. Insert and Save convert the overlap exclusion constraint
	// into model.ErrConflict; that constraint is the source of truth for
	// double-booking, the in-code overlap check is only the friendly path.
	InsertBooking(ctx context.Context, b *model.Booking) error
	GetBookingForUpdate(ctx context.Context, id string) (model.Booking, error)
	GetBookingByIntentForUpdate(ctx context.Context, intentID string) (model.Booking, error)
	SaveBooking(ctx context.Context, b model.Booking) error
	ListActiveBookings(ctx context.Context, expertID string, date time.Time, excludeID string) ([]model.Booking, error)
	InsertHistory(ctx context.Context, h model.BookingHistory) error
	GetExpert(ctx context.Context, id string) (model.Expert, error)

	// Wallets. GetWalletForUpdate takes the row lock that makes each
	// balance mutation a single atomic read-modify-write.
	GetWalletForUpdate(ctx context.Context, expertID string) (model.Wallet, error)
	InsertWallet(ctx context.Context, w model.Wallet) error
	SaveWallet(ctx context.Context, w model.Wallet) error
	InsertWalletTransaction(ctx context.Context, t model.WalletTransaction) error
	UpdateWalletTransactionStatus(ctx context.Context, expertID string, typ model.TransactionType, referenceID string, status model.TransactionStatus) error
	InsertWithdrawalRequest(ctx context.Context, r model.WithdrawalRequest) error
	GetWithdrawalRequestForUpdate(ctx context.Context, id string) (model.WithdrawalRequest, error)
	SaveWithdrawalRequest(ctx context.Context, r model.WithdrawalRequest) error

	// Payment plans. InsertPlan writes the plan and all installments in one
	// shot; installments are never added or removed afterwards.
	InsertPlan(ctx context.Context, p model.PaymentPlan, installments []model.Installment) error
	GetPlanForUpdate(ctx context.Context, id string) (model.PaymentPlan, error)
	SavePlan(ctx context.Context, p model.PaymentPlan) error
	GetInstallmentForUpdate(ctx context.Context, id string) (model.Installment, error)
	ListInstallments(ctx context.Context, planID string) ([]model.Installment, error)
	SaveInstallment(ctx context.Context, i model.Installment) error

	// Events.
	InsertEvent(ctx context.Context, evt outbox.Event) error
	InsertProviderEvent(ctx context.Context, provider, providerEventID, eventType string, payload []byte) error
}
