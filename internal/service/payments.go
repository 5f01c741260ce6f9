package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "passaro/internal/errors"
	"passaro/internal/external"
	"passaro/internal/logger"
	"passaro/internal/models"
	"passaro/internal/reconcile"
)

// PaymentStore is what the payment flow needs from the status store.
type PaymentStore interface {
	Create(ctx context.Context, intent *models.PaymentIntent) error
	GetByID(ctx context.Context, id string) (*models.PaymentIntent, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.PaymentIntent, error)
	SetTerminalStatus(ctx context.Context, id string, status models.PaymentStatus) (bool, error)
}

// Gateway is the external payment provider.
type Gateway interface {
	InitPayment(amount int64, orderID, method, description string) (*external.GatewayInitResponse, error)
	CheckPayment(orderID string) (*external.GatewayCheckResponse, error)
	VerifyNotificationToken(orderID, status string, amount int64, token string) bool
}

type PaymentService struct {
	payments   PaymentStore
	gateway    Gateway
	events     Publisher
	reconciler *reconcile.Reconciler
}

func NewPaymentService(payments PaymentStore, gateway Gateway, events Publisher, reconciler *reconcile.Reconciler) *PaymentService {
	return &PaymentService{
		payments:   payments,
		gateway:    gateway,
		events:     events,
		reconciler: reconciler,
	}
}

// Checkout creates a payment intent with the gateway and persists the row.
func (s *PaymentService) Checkout(ctx context.Context, req *models.CreateCheckoutRequest) (*models.CreateCheckoutResponse, error) {
	orderID := uuid.New().String()

	gatewayResp, err := s.gateway.InitPayment(req.Amount, orderID, req.Method, "Ingressos Passaro")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize payment: %w", err)
	}

	intent := &models.PaymentIntent{
		OrderID: orderID,
		Status:  models.StatusPending,
		Method:  req.Method,
		Amount:  req.Amount,
	}
	if gatewayResp.QRPayload != "" {
		payload := gatewayResp.QRPayload
		intent.QRPayload = &payload
	}

	if err := s.payments.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &models.CreateCheckoutResponse{
		IntentID:  intent.ID,
		OrderID:   intent.OrderID,
		Status:    string(intent.Status),
		QRPayload: intent.QRPayload,
	}, nil
}

// Get returns the intent row plus its display fields.
func (s *PaymentService) Get(ctx context.Context, intentID string) (*models.GetPaymentResponse, error) {
	intent, err := s.payments.GetByID(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	if intent == nil {
		return nil, apperrors.ErrIntentNotFound
	}

	return paymentResponse(intent), nil
}

func paymentResponse(intent *models.PaymentIntent) *models.GetPaymentResponse {
	return &models.GetPaymentResponse{
		IntentID:    intent.ID,
		Status:      string(intent.Status),
		StatusLabel: intent.Status.Label(),
		Method:      intent.Method,
		QRPayload:   intent.QRPayload,
		Amount:      intent.Amount,
	}
}

// SyncWithGateway queries the gateway directly for an intent whose webhook
// may have been lost and settles the row if the gateway already reached a
// terminal state. Open reconciliation sessions converge through their poll
// once the row changes.
func (s *PaymentService) SyncWithGateway(ctx context.Context, intentID string) (*models.GetPaymentResponse, error) {
	intent, err := s.payments.GetByID(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	if intent == nil {
		return nil, apperrors.ErrIntentNotFound
	}

	if !intent.Status.IsTerminal() {
		check, err := s.gateway.CheckPayment(intent.OrderID)
		if err != nil {
			return nil, fmt.Errorf("failed to check payment with gateway: %w", err)
		}

		status := models.StatusFromGateway(check.Status)
		if status.IsTerminal() {
			if err := s.settle(ctx, intent, status); err != nil {
				return nil, err
			}
			intent.Status = status
		}
	}

	return paymentResponse(intent), nil
}

// Watch opens a reconciliation session for one intent. The caller owns the
// session and must Close it.
func (s *PaymentService) Watch(ctx context.Context, intentID string, onTerminal func(models.PaymentStatus)) (*reconcile.Session, error) {
	return s.reconciler.Open(ctx, intentID, onTerminal)
}

// ApplyGatewayNotification handles the gateway webhook: it verifies the
// signature, applies pending -> terminal via a conditional update and, if
// this call performed the transition, publishes the push event. Duplicate
// webhooks and regressions never reach the row; regressions are logged as
// protocol violations.
func (s *PaymentService) ApplyGatewayNotification(ctx context.Context, payload *models.GatewayNotificationPayload) error {
	if !s.gateway.VerifyNotificationToken(payload.OrderID, payload.Status, payload.Amount, payload.Token) {
		return fmt.Errorf("invalid notification token for order %s", payload.OrderID)
	}

	intent, err := s.payments.GetByOrderID(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("failed to get payment intent: %w", err)
	}
	if intent == nil {
		return apperrors.ErrIntentNotFound
	}

	status := models.StatusFromGateway(payload.Status)
	if status == "" {
		logger.WithIntent(intent.ID).Warn("Ignoring unknown gateway status",
			"gateway_status", payload.Status)
		return nil
	}
	if !status.IsTerminal() {
		// Intermediate gateway states carry nothing the row doesn't
		// already say.
		return nil
	}

	return s.settle(ctx, intent, status)
}

// settle applies pending -> status via the conditional update and, when
// this call performed the transition, publishes the push event. Duplicate
// reports of the same terminal state are silently dropped by the update's
// predicate.
func (s *PaymentService) settle(ctx context.Context, intent *models.PaymentIntent, status models.PaymentStatus) error {
	applied, err := s.payments.SetTerminalStatus(ctx, intent.ID, status)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	if !applied {
		if intent.Status.IsTerminal() && intent.Status != status {
			logger.WithIntent(intent.ID).Error("Gateway report conflicts with settled status",
				"current", intent.Status, "observed", status)
		}
		return nil
	}

	event := models.PaymentUpdatedEvent{
		IntentID:  intent.ID,
		OrderID:   intent.OrderID,
		Status:    status,
		Timestamp: time.Now(),
	}
	// Published twice: on the per-intent subject for open reconciliation
	// sessions, and on the shared subject for the consumers binary.
	// NATS Streaming has no subject wildcards.
	for _, subject := range []string{models.PaymentUpdatedSubject(intent.ID), models.EventPaymentUpdated} {
		if err := s.events.Publish(subject, event); err != nil {
			// The poll will still converge; push is a latency optimization.
			logger.WithIntent(intent.ID).Error("Failed to publish payment updated event",
				"error", err,
				"subject", subject)
		}
	}

	return nil
}
