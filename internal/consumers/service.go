package consumers

import (
	"context"
	"log/slog"

	"passaro/internal/cache"
	"passaro/internal/config"
	"passaro/internal/external"
	"passaro/internal/messaging"
	"passaro/internal/models"
	"passaro/internal/search"
)

type ConsumerService struct {
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	handlers *Handlers
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		return nil, err
	}

	valkeyClient, err := cache.NewValkeyClient(cfg.Valkey)
	if err != nil {
		slog.Warn("Valkey unavailable, stats cache invalidation disabled", "error", err)
		valkeyClient = nil
	}

	auditIndexer, err := search.NewAuditIndexer(cfg.Elasticsearch)
	if err != nil {
		slog.Warn("Elasticsearch unavailable, redemption audit disabled", "error", err)
		auditIndexer = nil
	}

	notifyClient := external.NewNotifyClient(cfg.Notifier)

	return &ConsumerService{
		nats:     natsClient,
		valkey:   valkeyClient,
		handlers: NewHandlers(valkeyClient, auditIndexer, notifyClient),
	}, nil
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	_, err := cs.nats.SubscribeQueue(models.EventTicketRedeemed, "consumers", cs.handlers.HandleTicketRedeemed)
	if err != nil {
		return err
	}

	_, err = cs.nats.SubscribeQueue(models.EventPaymentUpdated, "consumers", cs.handlers.HandlePaymentUpdated)
	if err != nil {
		return err
	}

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.valkey != nil {
		if err := cs.valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}

	return nil
}
