package service

import (
	"time"

	"passaro/internal/external"
	"passaro/internal/messaging"
	"passaro/internal/reconcile"
	"passaro/internal/repository"
)

type Services struct {
	Redemption *RedemptionEngine
	Payments   *PaymentService
	Stats      *StatsService
}

func NewServices(repos *repository.Repositories, natsClient *messaging.NATSClient, gateway *external.PaymentClient, reconciler *reconcile.Reconciler, retryWindow time.Duration) *Services {
	return &Services{
		Redemption: NewRedemptionEngine(repos.Tickets, natsClient, retryWindow),
		Payments:   NewPaymentService(repos.Payments, gateway, natsClient, reconciler),
		Stats:      NewStatsService(repos.Tickets),
	}
}
