package models

import "time"

// Ticket is the persisted admission record. A ticket is mutated exactly
// once in its life: the redemption flips used from false to true and stamps
// check_in_time/checked_in_by together.
type Ticket struct {
	ID          string     `json:"id"`
	QRCode      string     `json:"qr_code"`
	EventID     string     `json:"event_id"`
	BatchID     string     `json:"batch_id"`
	Used        bool       `json:"used"`
	CheckInTime *time.Time `json:"check_in_time"`
	CheckedInBy *string    `json:"checked_in_by"`
	EventTitle  string     `json:"event_title,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PaymentIntent correlates one checkout session with the external gateway.
type PaymentIntent struct {
	ID        string        `json:"id"`
	OrderID   string        `json:"order_id"`
	Status    PaymentStatus `json:"status"`
	Method    string        `json:"method"`
	QRPayload *string       `json:"qr_payload,omitempty"`
	Amount    int64         `json:"amount"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Redemption outcomes and rejection reasons.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"

	ReasonNotFound    = "not_found"
	ReasonAlreadyUsed = "already_used"
)

// RedemptionResult is the engine's decision for a single scan. It is never
// persisted. Snapshot carries the ticket's fields at decision time so the
// gate UI can show who redeemed it and when, even on rejection.
type RedemptionResult struct {
	Outcome  string  `json:"outcome"`
	Reason   string  `json:"reason,omitempty"`
	Snapshot *Ticket `json:"snapshot,omitempty"`
}

func (r RedemptionResult) Accepted() bool {
	return r.Outcome == OutcomeAccepted
}
