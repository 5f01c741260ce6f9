package consumers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/stan.go"

	"passaro/internal/cache"
	"passaro/internal/external"
	"passaro/internal/models"
	"passaro/internal/search"
)

type Handlers struct {
	valkey   *cache.ValkeyClient
	audit    *search.AuditIndexer
	notifier *external.NotifyClient
}

func NewHandlers(valkey *cache.ValkeyClient, audit *search.AuditIndexer, notifier *external.NotifyClient) *Handlers {
	return &Handlers{
		valkey:   valkey,
		audit:    audit,
		notifier: notifier,
	}
}

// HandleTicketRedeemed invalidates the event's cached stats and indexes an
// audit document. Both sides are best-effort; redelivery makes them
// idempotent enough (re-invalidating a cache and re-indexing an audit doc
// are harmless).
func (h *Handlers) HandleTicketRedeemed(msg *stan.Msg) {
	ctx := context.Background()

	var event models.TicketRedeemedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		slog.Error("Failed to unmarshal ticket redeemed event", "error", err)
		return
	}

	slog.Info("Processing ticket redeemed event",
		"ticket_id", event.TicketID, "event_id", event.EventID)

	if h.valkey != nil {
		if err := h.valkey.InvalidateCheckinStats(ctx, event.EventID); err != nil {
			slog.Error("Failed to invalidate check-in stats cache",
				"error", err, "event_id", event.EventID)
		}
	}

	if h.audit != nil {
		doc := search.AuditDocument{
			Kind:        "redemption",
			TicketID:    event.TicketID,
			EventID:     event.EventID,
			BatchID:     event.BatchID,
			Outcome:     models.OutcomeAccepted,
			OperatorID:  event.CheckedInBy,
			RecordedAt:  event.CheckInTime,
		}
		if err := h.audit.Index(ctx, doc); err != nil {
			slog.Error("Failed to index redemption audit document",
				"error", err, "ticket_id", event.TicketID)
		}
	}
}

// HandlePaymentUpdated forwards terminal outcomes to the notification glue
// (email/WhatsApp). The glue's contract is fire-and-forget.
func (h *Handlers) HandlePaymentUpdated(msg *stan.Msg) {
	var event models.PaymentUpdatedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		slog.Error("Failed to unmarshal payment updated event", "error", err)
		return
	}

	if !event.Status.IsTerminal() {
		return
	}

	slog.Info("Processing payment settled event",
		"intent_id", event.IntentID, "status", event.Status)

	if h.notifier == nil {
		return
	}

	notification := external.PaymentOutcomeNotification{
		IntentID: event.IntentID,
		OrderID:  event.OrderID,
		Status:   string(event.Status),
	}
	if err := h.notifier.SendPaymentOutcome(notification); err != nil {
		slog.Error("Failed to send payment outcome notification",
			"error", err, "intent_id", event.IntentID)
	}
}
