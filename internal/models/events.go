package models

import "time"

// NATS Event Types
const (
	EventTicketRedeemed = "ticket.redeemed"
	EventPaymentUpdated = "payment.updated"
)

// PaymentUpdatedSubject returns the per-intent subject used by the push
// channel. Reconciler sessions subscribe to exactly one intent.
func PaymentUpdatedSubject(intentID string) string {
	return EventPaymentUpdated + "." + intentID
}

// TicketRedeemedEvent represents a successful one-time redemption
type TicketRedeemedEvent struct {
	TicketID    string    `json:"ticket_id"`
	EventID     string    `json:"event_id"`
	BatchID     string    `json:"batch_id"`
	CheckedInBy string    `json:"checked_in_by"`
	CheckInTime time.Time `json:"check_in_time"`
	Timestamp   time.Time `json:"timestamp"`
}

// PaymentUpdatedEvent represents a status change observed for an intent.
// Delivery is at-least-once; consumers must deduplicate on Status.
type PaymentUpdatedEvent struct {
	IntentID  string        `json:"intent_id"`
	OrderID   string        `json:"order_id"`
	Status    PaymentStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}
