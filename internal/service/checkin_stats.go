package service

import (
	"context"
	"fmt"

	"passaro/internal/models"
	"passaro/internal/stats"
)

// TicketLister provides the ticket snapshot the aggregation runs over.
type TicketLister interface {
	ListByEvent(ctx context.Context, eventID string) ([]models.Ticket, error)
}

type StatsService struct {
	tickets TicketLister
}

func NewStatsService(tickets TicketLister) *StatsService {
	return &StatsService{tickets: tickets}
}

func (s *StatsService) CheckinStats(ctx context.Context, eventID string) (*models.CheckinStatsResponse, error) {
	tickets, err := s.tickets.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	summary := stats.Aggregate(tickets)

	return &models.CheckinStatsResponse{
		EventID:        eventID,
		Total:          summary.Stats.Total,
		CheckedIn:      summary.Stats.CheckedIn,
		Pending:        summary.Stats.Pending,
		AttendanceRate: summary.Stats.AttendanceRate,
		ByHour:         summary.ByHour,
		ByBatch:        summary.ByBatch,
	}, nil
}
