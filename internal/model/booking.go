package model

import "time"

type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "pending_payment"
	BookingConfirmed      BookingStatus = "confirmed"
	BookingCompleted      BookingStatus = "completed"
	BookingCancelled      BookingStatus = "cancelled"
)

// bookingTransitions is the closed transition table. Terminal states have no entry.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPendingPayment: {BookingConfirmed, BookingCancelled},
	BookingConfirmed:      {BookingCompleted, BookingCancelled},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type Booking struct {
	ID       string
	ClientID string
	ExpertID string

	Date      time.Time // midnight UTC of the booking day
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	AmountCents      int64
	TaxCents         int64
	PlatformFeeCents int64
	ExpertCents      int64

	Status        BookingStatus
	PaymentStatus PaymentStatus

	PaymentIntentID string
	PaymentPlanID   string
	HasPaymentPlan  bool

	CancellationDeadline time.Time
	CancellationFeeCents int64
	CancellationReason   string
	CancelledBy          string
	CancelledAt          *time.Time

	RescheduleCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BookingHistory is the append-only audit trail of a booking. Rows are never
// updated or deleted.
type BookingHistory struct {
	ID        string
	BookingID string
	Action    string

	PrevStatus BookingStatus
	NewStatus  BookingStatus
	PrevDate   time.Time
	NewDate    time.Time
	PrevStart  time.Time
	NewStart   time.Time
	PrevEnd    time.Time
	NewEnd     time.Time

	ActorID   string
	ActorRole Role
	Reason    string

	CreatedAt time.Time
}

const (
	HistoryCreated     = "created"
	HistoryConfirmed   = "confirmed"
	HistoryCompleted   = "completed"
	HistoryRescheduled = "rescheduled"
	HistoryCancelled   = "cancelled"
)
