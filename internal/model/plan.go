package model

import "time"

type PlanStatus string

const (
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
	PlanDefaulted PlanStatus = "defaulted"
)

const (
	MinInstallments = 2
	MaxInstallments = 6
)

type PaymentPlan struct {
	ID               string
	BookingID        string
	ClientID         string
	ExpertID         string
	TotalCents       int64
	InstallmentCount int
	PerInstallment   int64
	Status           PlanStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
)

// Installment rows are created atomically with their parent plan and never
// added or removed afterwards. "Overdue" is derived from DueAt, not stored.
type Installment struct {
	ID          string
	PlanID      string
	Sequence    int
	AmountCents int64
	DueAt       time.Time
	Status      InstallmentStatus
	PaymentRef  string
	PaidAt      *time.Time
	CreatedAt   time.Time
}

func (i Installment) Overdue(now time.Time) bool {
	return i.Status == InstallmentPending && now.After(i.DueAt)
}
