package service

import (
	"context"
	"fmt"
	"time"

	"passaro/internal/logger"
	"passaro/internal/models"
	"passaro/internal/monitoring"
)

// TicketStore is what the engine needs from the status store. Redeem must
// be a single atomic conditional update, not a read-then-write pair: gates
// are separate processes, so no amount of in-process locking would help.
type TicketStore interface {
	GetByQRCode(ctx context.Context, qrCode string) (*models.Ticket, error)
	Redeem(ctx context.Context, qrCode, operatorID string, at time.Time) (*models.Ticket, bool, error)
}

// Publisher is the best-effort event channel.
type Publisher interface {
	Publish(subject string, data interface{}) error
}

// RedemptionEngine converts a scanned QR code into an at-most-once
// checked-in transition.
type RedemptionEngine struct {
	tickets     TicketStore
	events      Publisher
	retryWindow time.Duration
	now         func() time.Time
}

func NewRedemptionEngine(tickets TicketStore, events Publisher, retryWindow time.Duration) *RedemptionEngine {
	return &RedemptionEngine{
		tickets:     tickets,
		events:      events,
		retryWindow: retryWindow,
		now:         time.Now,
	}
}

// Validate decides a single scan. Business rejections (unknown code,
// already used) are results, not errors; an error means the store was
// unavailable and the caller may retry the whole call safely.
func (e *RedemptionEngine) Validate(ctx context.Context, qrCode, operatorID string) (models.RedemptionResult, error) {
	ticket, err := e.tickets.GetByQRCode(ctx, qrCode)
	if err != nil {
		return models.RedemptionResult{}, fmt.Errorf("failed to look up ticket: %w", err)
	}
	if ticket == nil {
		monitoring.TrackRedemption(models.OutcomeRejected, models.ReasonNotFound)
		return models.RedemptionResult{
			Outcome: models.OutcomeRejected,
			Reason:  models.ReasonNotFound,
		}, nil
	}

	now := e.now()
	redeemed, won, err := e.tickets.Redeem(ctx, qrCode, operatorID, now)
	if err != nil {
		return models.RedemptionResult{}, fmt.Errorf("failed to redeem ticket: %w", err)
	}

	if won {
		e.publishRedeemed(ctx, redeemed)
		monitoring.TrackRedemption(models.OutcomeAccepted, "")
		return models.RedemptionResult{
			Outcome:  models.OutcomeAccepted,
			Snapshot: redeemed,
		}, nil
	}

	// Lost the race or scanned twice: re-read for the authoritative
	// snapshot so the gate can show who redeemed the ticket and when.
	current, err := e.tickets.GetByQRCode(ctx, qrCode)
	if err != nil {
		return models.RedemptionResult{}, fmt.Errorf("failed to read redeemed ticket: %w", err)
	}
	if current == nil {
		monitoring.TrackRedemption(models.OutcomeRejected, models.ReasonNotFound)
		return models.RedemptionResult{
			Outcome: models.OutcomeRejected,
			Reason:  models.ReasonNotFound,
		}, nil
	}

	// A repeated scan by the same operator shortly after acceptance is a
	// client retry of a call that already succeeded (e.g. timeout on the
	// response). Report the original acceptance instead of a denial.
	if e.isOwnRetry(current, operatorID, now) {
		monitoring.TrackRedemption(models.OutcomeAccepted, "retry")
		return models.RedemptionResult{
			Outcome:  models.OutcomeAccepted,
			Snapshot: current,
		}, nil
	}

	monitoring.TrackRedemption(models.OutcomeRejected, models.ReasonAlreadyUsed)
	return models.RedemptionResult{
		Outcome:  models.OutcomeRejected,
		Reason:   models.ReasonAlreadyUsed,
		Snapshot: current,
	}, nil
}

func (e *RedemptionEngine) isOwnRetry(ticket *models.Ticket, operatorID string, now time.Time) bool {
	if ticket.CheckedInBy == nil || ticket.CheckInTime == nil {
		return false
	}
	return *ticket.CheckedInBy == operatorID && now.Sub(*ticket.CheckInTime) <= e.retryWindow
}

func (e *RedemptionEngine) publishRedeemed(ctx context.Context, ticket *models.Ticket) {
	event := models.TicketRedeemedEvent{
		TicketID:    ticket.ID,
		EventID:     ticket.EventID,
		BatchID:     ticket.BatchID,
		CheckedInBy: derefString(ticket.CheckedInBy),
		CheckInTime: derefTime(ticket.CheckInTime),
		Timestamp:   time.Now(),
	}

	if err := e.events.Publish(models.EventTicketRedeemed, event); err != nil {
		// Best effort: the scan already succeeded, never fail it here.
		logger.WithContext(ctx).Error("Failed to publish ticket redeemed event",
			"error", err,
			"ticket_id", ticket.ID,
			"event_type", models.EventTicketRedeemed)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
