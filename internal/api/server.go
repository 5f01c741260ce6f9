package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"passaro/internal/cache"
	"passaro/internal/config"
	"passaro/internal/database"
	"passaro/internal/external"
	"passaro/internal/handlers"
	"passaro/internal/logger"
	"passaro/internal/messaging"
	"passaro/internal/middleware"
	"passaro/internal/models"
	"passaro/internal/reconcile"
	"passaro/internal/repository"
	"passaro/internal/search"
	"passaro/internal/service"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	services *service.Services
}

// NewServer создает новый экземпляр сервера
func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}

	// Кеш не обязателен - без него статистика читается из базы
	valkeyClient, err := cache.NewValkeyClient(cfg.Valkey)
	if err != nil {
		slog.Warn("Valkey unavailable, check-in stats caching disabled", "error", err)
		valkeyClient = nil
	}

	gatewayClient := external.NewPaymentClient(cfg.Gateway)

	repos := repository.NewRepositories(db)

	reconciler := reconcile.New(repos.Payments, natsClient, cfg.PollInterval)

	// Аудит не обязателен - нарушения протокола всегда попадают в логи
	auditIndexer, err := search.NewAuditIndexer(cfg.Elasticsearch)
	if err != nil {
		slog.Warn("Elasticsearch unavailable, protocol violation audit disabled", "error", err)
	} else {
		reconciler.OnViolation = func(intentID, source string, current, observed models.PaymentStatus) {
			go func() {
				doc := search.AuditDocument{
					Kind:       "protocol_violation",
					IntentID:   intentID,
					Source:     source,
					FromStatus: string(current),
					ToStatus:   string(observed),
				}
				if err := auditIndexer.Index(context.Background(), doc); err != nil {
					slog.Error("Failed to index protocol violation", "error", err, "intent_id", intentID)
				}
			}()
		}
	}

	services := service.NewServices(repos, natsClient, gatewayClient, reconciler, cfg.RedemptionRetryWindow)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())

	server := &Server{
		router:   router,
		config:   cfg,
		db:       db,
		nats:     natsClient,
		valkey:   valkeyClient,
		services: services,
	}

	server.setupRoutes()

	return server
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services.Redemption, s.services.Payments, s.services.Stats, s.valkey)

	api := s.router.Group("/api")
	{
		tickets := api.Group("/tickets")
		{
			tickets.POST("/validate", h.ValidateTicket)
		}

		events := api.Group("/events")
		{
			events.GET("/:id/checkin-stats", h.GetCheckinStats)
		}

		api.POST("/checkout", h.CreateCheckout)

		payments := api.Group("/payments")
		{
			payments.GET("/:id", h.GetPayment)
			payments.GET("/:id/watch", h.WatchPayment)
			payments.POST("/:id/sync", h.SyncPayment)
			payments.POST("/notifications", h.OnGatewayNotification)
		}
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	dbHealth := s.db.HealthCheck(c.Request.Context())

	status := http.StatusOK
	if dbHealth.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   dbHealth.Status,
		"service":  "passaro-api",
		"database": dbHealth,
	})
}

// Run запускает HTTP сервер
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
