package models

// PaymentStatus is the closed set of states a payment intent moves through.
// The only legal transitions are pending -> approved and pending -> rejected.
type PaymentStatus string

const (
	StatusPending  PaymentStatus = "pending"
	StatusApproved PaymentStatus = "approved"
	StatusRejected PaymentStatus = "rejected"
)

// IsTerminal reports whether no further transition can occur from s.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Label returns the user-facing label for s.
func (s PaymentStatus) Label() string {
	switch s {
	case StatusPending:
		return "Aguardando pagamento"
	case StatusApproved:
		return "Pagamento aprovado"
	case StatusRejected:
		return "Pagamento recusado"
	}
	return "Desconhecido"
}

// StatusFromGateway maps the payment gateway's status strings onto the
// internal enum. Unknown strings map to "", which callers must treat as
// not applicable.
func StatusFromGateway(s string) PaymentStatus {
	switch s {
	case "CONFIRMED", "AUTHORIZED", "completed", "approved":
		return StatusApproved
	case "REJECTED", "CANCELLED", "EXPIRED", "failed", "rejected":
		return StatusRejected
	case "NEW", "PENDING", "FORM_SHOWED", "pending":
		return StatusPending
	}
	return ""
}
