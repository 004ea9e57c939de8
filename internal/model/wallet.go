package model

import "time"

// Wallet tracks an expert's earnings. All four balances are non-negative and
// LifetimeCents never decreases. AvailableCents only moves through withdrawal
// operations, never directly through a booking event.
type Wallet struct {
	ExpertID               string
	PendingCents           int64
	AvailableCents         int64
	PendingWithdrawalCents int64
	LifetimeCents          int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

type TransactionType string

const (
	TxBooking            TransactionType = "booking"
	TxWithdrawalRequest  TransactionType = "withdrawal_request"
	TxWithdrawal         TransactionType = "withdrawal"
	TxWithdrawalRejected TransactionType = "withdrawal_rejected"
)

type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "pending"
	TxStatusCompleted TransactionStatus = "completed"
	TxStatusReversed  TransactionStatus = "reversed"
	TxStatusRejected  TransactionStatus = "rejected"
)

// WalletTransaction is an append-only ledger row. Amounts are signed: credits
// positive, debits negative. Only the status field ever changes after insert.
type WalletTransaction struct {
	ID          string
	ExpertID    string
	AmountCents int64
	Type        TransactionType
	Status      TransactionStatus
	Description string
	ReferenceID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

type WithdrawalRequest struct {
	ID            string
	ExpertID      string
	AmountCents   int64
	Status        WithdrawalStatus
	PaymentMethod string
	PaymentRef    string
	CreatedAt     time.Time
	DecidedAt     *time.Time
}
