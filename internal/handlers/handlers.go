package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"passaro/internal/cache"
	"passaro/internal/models"
	"passaro/internal/reconcile"
)

// Service interfaces are narrow so tests can inject fakes.

type RedemptionService interface {
	Validate(ctx context.Context, qrCode, operatorID string) (models.RedemptionResult, error)
}

type PaymentsService interface {
	Checkout(ctx context.Context, req *models.CreateCheckoutRequest) (*models.CreateCheckoutResponse, error)
	Get(ctx context.Context, intentID string) (*models.GetPaymentResponse, error)
	Watch(ctx context.Context, intentID string, onTerminal func(models.PaymentStatus)) (*reconcile.Session, error)
	SyncWithGateway(ctx context.Context, intentID string) (*models.GetPaymentResponse, error)
	ApplyGatewayNotification(ctx context.Context, payload *models.GatewayNotificationPayload) error
}

type StatsService interface {
	CheckinStats(ctx context.Context, eventID string) (*models.CheckinStatsResponse, error)
}

type Handlers struct {
	redemption   RedemptionService
	payments     PaymentsService
	stats        StatsService
	valkeyClient *cache.ValkeyClient
}

func NewHandlers(redemption RedemptionService, payments PaymentsService, stats StatsService, valkeyClient *cache.ValkeyClient) *Handlers {
	return &Handlers{
		redemption:   redemption,
		payments:     payments,
		stats:        stats,
		valkeyClient: valkeyClient,
	}
}

// ValidateTicket - POST /api/tickets/validate
// Погасить билет по QR-коду. Business rejections are 200 with
// success=false; only storage unavailability is an HTTP error.
func (h *Handlers) ValidateTicket(c *gin.Context) {
	var req models.ValidateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.redemption.Validate(c.Request.Context(), req.QRCode, req.ValidatorUserID)
	if err != nil {
		slog.Error("Failed to validate ticket", "error", err)
		c.JSON(http.StatusServiceUnavailable, models.ValidateTicketResponse{
			Success: false,
			Error:   "Não foi possível validar o ingresso, tente novamente",
		})
		return
	}

	c.JSON(http.StatusOK, validateResponse(result))
}

func validateResponse(result models.RedemptionResult) models.ValidateTicketResponse {
	if result.Accepted() {
		return models.ValidateTicketResponse{
			Success: true,
			Message: "Check-in realizado com sucesso!",
			Ticket:  snapshotOf(result.Snapshot),
		}
	}

	switch result.Reason {
	case models.ReasonNotFound:
		return models.ValidateTicketResponse{
			Success: false,
			Error:   "QR Code inválido",
		}
	default:
		return models.ValidateTicketResponse{
			Success: false,
			Error:   "Ingresso já utilizado",
			Ticket:  snapshotOf(result.Snapshot),
		}
	}
}

func snapshotOf(ticket *models.Ticket) *models.TicketSnapshot {
	if ticket == nil {
		return nil
	}
	return &models.TicketSnapshot{
		ID:          ticket.ID,
		QRCode:      ticket.QRCode,
		EventID:     ticket.EventID,
		EventTitle:  ticket.EventTitle,
		BatchID:     ticket.BatchID,
		Used:        ticket.Used,
		CheckInTime: ticket.CheckInTime,
		CheckedInBy: ticket.CheckedInBy,
	}
}

// GetCheckinStats - GET /api/events/:id/checkin-stats
// Получить статистику чек-ина для события
func (h *Handlers) GetCheckinStats(c *gin.Context) {
	eventID := c.Param("id")
	if eventID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event id is required"})
		return
	}

	// Use raw JSON to avoid unmarshaling/marshaling overhead
	if h.valkeyClient != nil {
		rawJSON, err := h.valkeyClient.GetCheckinStatsRaw(c.Request.Context(), eventID)
		if err == nil {
			slog.Info("Cache hit for check-in stats", "event_id", eventID)
			c.Data(http.StatusOK, "application/json", rawJSON)
			return
		}
	}

	response, err := h.stats.CheckinStats(c.Request.Context(), eventID)
	if err != nil {
		slog.Error("Failed to aggregate check-in stats", "error", err, "event_id", eventID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate check-in stats"})
		return
	}

	if h.valkeyClient != nil {
		if err := h.valkeyClient.SetCheckinStats(c.Request.Context(), eventID, response); err != nil {
			slog.Warn("Failed to cache check-in stats", "error", err, "event_id", eventID)
		}
	}

	c.JSON(http.StatusOK, response)
}
