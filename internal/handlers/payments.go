package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "passaro/internal/errors"
	"passaro/internal/models"
)

// CreateCheckout - POST /api/checkout
// Создать платежную сессию через внешний шлюз
func (h *Handlers) CreateCheckout(c *gin.Context) {
	var req models.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.payments.Checkout(c.Request.Context(), &req)
	if err != nil {
		slog.Error("Failed to create checkout", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout"})
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetPayment - GET /api/payments/:id
// Прочитать платеж по id
func (h *Handlers) GetPayment(c *gin.Context) {
	intentID := c.Param("id")

	response, err := h.payments.Get(c.Request.Context(), intentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrIntentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			return
		}
		slog.Error("Failed to get payment", "error", err, "intent_id", intentID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get payment"})
		return
	}

	c.JSON(http.StatusOK, response)
}

// WatchPayment - GET /api/payments/:id/watch
// SSE поток изменений статуса платежа. The stream is backed by one
// reconciliation session; disconnecting closes the session, which stops
// the poll and unsubscribes the push channel.
func (h *Handlers) WatchPayment(c *gin.Context) {
	intentID := c.Param("id")

	session, err := h.payments.Watch(c.Request.Context(), intentID, func(status models.PaymentStatus) {
		slog.Info("Payment settled", "intent_id", intentID, "status", status)
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrIntentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			return
		}
		slog.Error("Failed to open reconciliation session", "error", err, "intent_id", intentID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to watch payment"})
		return
	}
	defer session.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case status := <-session.Updates():
			c.SSEvent("status", gin.H{
				"status": status,
				"label":  status.Label(),
			})
			// Keep streaming until a terminal status goes out.
			return !status.IsTerminal()
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// SyncPayment - POST /api/payments/:id/sync
// Принудительная сверка статуса со шлюзом, когда webhook задерживается
func (h *Handlers) SyncPayment(c *gin.Context) {
	intentID := c.Param("id")

	response, err := h.payments.SyncWithGateway(c.Request.Context(), intentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrIntentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			return
		}
		slog.Error("Failed to sync payment with gateway", "error", err, "intent_id", intentID)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to sync payment with gateway"})
		return
	}

	c.JSON(http.StatusOK, response)
}

// OnGatewayNotification - POST /api/payments/notifications
// Принимать уведомления от платежного шлюза
func (h *Handlers) OnGatewayNotification(c *gin.Context) {
	var payload models.GatewayNotificationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.payments.ApplyGatewayNotification(c.Request.Context(), &payload)
	if err != nil {
		if errors.Is(err, apperrors.ErrIntentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			return
		}
		slog.Error("Failed to handle gateway notification", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to handle notification"})
		return
	}

	// Согласно контракту шлюза - возвращаем 200 без тела ответа
	c.Status(http.StatusOK)
}
