package models

import "time"

// ValidateTicketRequest - запрос на погашение билета со сканера
type ValidateTicketRequest struct {
	QRCode          string `json:"qr_code" binding:"required"`
	ValidatorUserID string `json:"validator_user_id" binding:"required"`
}

// TicketSnapshot mirrors the ticket row plus denormalized display fields.
type TicketSnapshot struct {
	ID          string     `json:"id"`
	QRCode      string     `json:"qr_code"`
	EventID     string     `json:"event_id"`
	EventTitle  string     `json:"event_title,omitempty"`
	BatchID     string     `json:"batch_id"`
	Used        bool       `json:"used"`
	CheckInTime *time.Time `json:"check_in_time"`
	CheckedInBy *string    `json:"checked_in_by"`
}

// ValidateTicketResponse - модель ответа для сканера.
// Business rejections come back as 200 with success=false; callers branch
// on the payload, not on the HTTP status.
type ValidateTicketResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Ticket  *TicketSnapshot `json:"ticket,omitempty"`
}

// CreateCheckoutRequest - запрос на создание платежной сессии
type CreateCheckoutRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Method string `json:"method" binding:"required"`
}

// CreateCheckoutResponse returns the new intent and its method-specific
// rendering payload (e.g. the QR string for a QR-based method).
type CreateCheckoutResponse struct {
	IntentID  string  `json:"intent_id"`
	OrderID   string  `json:"order_id"`
	Status    string  `json:"status"`
	QRPayload *string `json:"qr_payload,omitempty"`
}

// GetPaymentResponse - модель ответа при чтении платежа
type GetPaymentResponse struct {
	IntentID    string  `json:"intent_id"`
	Status      string  `json:"status"`
	StatusLabel string  `json:"status_label"`
	Method      string  `json:"method"`
	QRPayload   *string `json:"qr_payload,omitempty"`
	Amount      int64   `json:"amount"`
}

// GatewayNotificationPayload - webhook уведомление от платежного шлюза
type GatewayNotificationPayload struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	TeamSlug  string `json:"teamSlug"`
	Token     string `json:"token"`
	Amount    int64  `json:"amount"`
	Timestamp string `json:"timestamp"`
}

// CheckinStatsResponse - агрегированная статистика чек-ина для события
type CheckinStatsResponse struct {
	EventID        string           `json:"event_id"`
	Total          int              `json:"total"`
	CheckedIn      int              `json:"checked_in"`
	Pending        int              `json:"pending"`
	AttendanceRate int              `json:"attendance_rate"`
	ByHour         []HourBucket     `json:"by_hour"`
	ByBatch        []BatchBreakdown `json:"by_batch"`
}

// HourBucket counts redemptions in one hour-of-day bucket.
type HourBucket struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// BatchBreakdown is per-batch attendance.
type BatchBreakdown struct {
	BatchID    string `json:"batch_id"`
	Total      int    `json:"total"`
	CheckedIn  int    `json:"checked_in"`
	Percentage int    `json:"percentage"`
}
