package outbox

// Event is the domain event envelope written to the outbox table inside the
// same transaction as the state change it announces. The Kafka topic name
// equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Booking lifecycle topics. Notification and reminder delivery consume these
// asynchronously; nothing in the engine blocks on them.
const (
	TopicBookingCreated     = "booking.created.v1"
	TopicBookingConfirmed   = "booking.confirmed.v1"
	TopicBookingCompleted   = "booking.completed.v1"
	TopicBookingRescheduled = "booking.rescheduled.v1"
	TopicBookingCancelled   = "booking.cancelled.v1"
	TopicRefundFailed       = "booking.refund_failed.v1"
	TopicWithdrawalDecided  = "wallet.withdrawal_decided.v1"
)
