package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "passaro/internal/errors"
	"passaro/internal/external"
	"passaro/internal/models"
)

type fakePaymentStore struct {
	mu      sync.Mutex
	intents map[string]*models.PaymentIntent
}

func newFakePaymentStore(intents ...*models.PaymentIntent) *fakePaymentStore {
	store := &fakePaymentStore{intents: make(map[string]*models.PaymentIntent)}
	for _, intent := range intents {
		store.intents[intent.ID] = intent
	}
	return store
}

func (s *fakePaymentStore) Create(_ context.Context, intent *models.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if intent.ID == "" {
		intent.ID = "intent-1"
	}
	copied := *intent
	s.intents[intent.ID] = &copied
	return nil
}

func (s *fakePaymentStore) GetByID(_ context.Context, id string) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return nil, nil
	}
	copied := *intent
	return &copied, nil
}

func (s *fakePaymentStore) GetByOrderID(_ context.Context, orderID string) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, intent := range s.intents {
		if intent.OrderID == orderID {
			copied := *intent
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakePaymentStore) SetTerminalStatus(_ context.Context, id string, status models.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok || intent.Status != models.StatusPending {
		return false, nil
	}
	intent.Status = status
	return true, nil
}

type fakeGateway struct {
	checkStatus string
	checkErr    error
	tokenValid  bool
}

func (g *fakeGateway) InitPayment(amount int64, orderID, method, _ string) (*external.GatewayInitResponse, error) {
	return &external.GatewayInitResponse{
		Success:   true,
		PaymentID: "pay-1",
		OrderID:   orderID,
		Status:    "NEW",
	}, nil
}

func (g *fakeGateway) CheckPayment(orderID string) (*external.GatewayCheckResponse, error) {
	if g.checkErr != nil {
		return nil, g.checkErr
	}
	return &external.GatewayCheckResponse{
		Success: true,
		OrderID: orderID,
		Status:  g.checkStatus,
	}, nil
}

func (g *fakeGateway) VerifyNotificationToken(_, _ string, _ int64, _ string) bool {
	return g.tokenValid
}

func pendingIntent() *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:      "intent-1",
		OrderID: "order-1",
		Status:  models.StatusPending,
		Method:  "pix",
		Amount:  15000,
	}
}

func TestApplyGatewayNotificationSettlesOnce(t *testing.T) {
	store := newFakePaymentStore(pendingIntent())
	events := &fakePublisher{}
	svc := NewPaymentService(store, &fakeGateway{tokenValid: true}, events, nil)

	payload := &models.GatewayNotificationPayload{
		OrderID: "order-1",
		Status:  "CONFIRMED",
		Amount:  15000,
		Token:   "token",
	}

	require.NoError(t, svc.ApplyGatewayNotification(context.Background(), payload))

	intent, err := store.GetByID(context.Background(), "intent-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, intent.Status)
	// One per-intent subject plus the shared subject for consumers.
	assert.Equal(t, []string{
		models.PaymentUpdatedSubject("intent-1"),
		models.EventPaymentUpdated,
	}, events.subjects)

	// A redelivered webhook settles nothing and publishes nothing.
	require.NoError(t, svc.ApplyGatewayNotification(context.Background(), payload))
	assert.Len(t, events.subjects, 2)
}

func TestApplyGatewayNotificationInvalidToken(t *testing.T) {
	store := newFakePaymentStore(pendingIntent())
	svc := NewPaymentService(store, &fakeGateway{tokenValid: false}, &fakePublisher{}, nil)

	err := svc.ApplyGatewayNotification(context.Background(), &models.GatewayNotificationPayload{
		OrderID: "order-1",
		Status:  "CONFIRMED",
	})
	assert.Error(t, err)
}

func TestApplyGatewayNotificationUnknownOrder(t *testing.T) {
	store := newFakePaymentStore()
	svc := NewPaymentService(store, &fakeGateway{tokenValid: true}, &fakePublisher{}, nil)

	err := svc.ApplyGatewayNotification(context.Background(), &models.GatewayNotificationPayload{
		OrderID: "missing",
		Status:  "CONFIRMED",
	})
	assert.ErrorIs(t, err, apperrors.ErrIntentNotFound)
}

func TestSyncWithGatewaySettlesLaggingWebhook(t *testing.T) {
	store := newFakePaymentStore(pendingIntent())
	events := &fakePublisher{}
	svc := NewPaymentService(store, &fakeGateway{checkStatus: "CONFIRMED"}, events, nil)

	resp, err := svc.SyncWithGateway(context.Background(), "intent-1")
	require.NoError(t, err)
	assert.Equal(t, "approved", resp.Status)

	intent, err := store.GetByID(context.Background(), "intent-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, intent.Status)
	assert.Len(t, events.subjects, 2)
}

func TestSyncWithGatewayStillPending(t *testing.T) {
	store := newFakePaymentStore(pendingIntent())
	events := &fakePublisher{}
	svc := NewPaymentService(store, &fakeGateway{checkStatus: "PENDING"}, events, nil)

	resp, err := svc.SyncWithGateway(context.Background(), "intent-1")
	require.NoError(t, err)
	assert.Equal(t, "pending", resp.Status)
	assert.Empty(t, events.subjects)
}

func TestSyncWithGatewaySettledIntentSkipsGateway(t *testing.T) {
	intent := pendingIntent()
	intent.Status = models.StatusApproved
	store := newFakePaymentStore(intent)
	// A gateway error would surface if the check were issued.
	svc := NewPaymentService(store, &fakeGateway{checkErr: errors.New("gateway down")}, &fakePublisher{}, nil)

	resp, err := svc.SyncWithGateway(context.Background(), "intent-1")
	require.NoError(t, err)
	assert.Equal(t, "approved", resp.Status)
}

func TestSyncWithGatewayUnknownIntent(t *testing.T) {
	svc := NewPaymentService(newFakePaymentStore(), &fakeGateway{}, &fakePublisher{}, nil)

	_, err := svc.SyncWithGateway(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrIntentNotFound)
}
