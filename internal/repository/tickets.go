package repository

import (
	"context"
	"database/sql"
	"time"

	"passaro/internal/database"
	"passaro/internal/models"
)

type TicketRepository struct {
	db *database.DB
}

func NewTicketRepository(db *database.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `
	t.id, t.qr_code, t.event_id, t.batch_id, t.used,
	t.check_in_time, t.checked_in_by, e.title, t.created_at, t.updated_at`

func scanTicket(row interface{ Scan(...any) error }) (*models.Ticket, error) {
	ticket := &models.Ticket{}
	err := row.Scan(
		&ticket.ID,
		&ticket.QRCode,
		&ticket.EventID,
		&ticket.BatchID,
		&ticket.Used,
		&ticket.CheckInTime,
		&ticket.CheckedInBy,
		&ticket.EventTitle,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *TicketRepository) GetByQRCode(ctx context.Context, qrCode string) (*models.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets t
		JOIN events e ON e.id = t.event_id
		WHERE t.qr_code = $1`

	ticket, err := scanTicket(r.db.QueryRowContext(ctx, query, qrCode))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ticket, err
}

// Redeem performs the one-time state transition as a single conditional
// UPDATE. Two operators scanning the same ticket at different gates race on
// this statement alone; the database guarantees exactly one of them matches
// the used = FALSE predicate. A read-then-write pair would not be safe here.
//
// Returns (ticket, true, nil) when this call won the transition. Returns
// (nil, false, nil) when the ticket was already used or does not exist; the
// caller disambiguates with GetByQRCode.
func (r *TicketRepository) Redeem(ctx context.Context, qrCode, operatorID string, at time.Time) (*models.Ticket, bool, error) {
	query := `
		WITH redeemed AS (
			UPDATE tickets
			SET used = TRUE, check_in_time = $3, checked_in_by = $2, updated_at = NOW()
			WHERE qr_code = $1 AND used = FALSE
			RETURNING *
		)
		SELECT ` + ticketColumns + `
		FROM redeemed t
		JOIN events e ON e.id = t.event_id`

	ticket, err := scanTicket(r.db.QueryRowContext(ctx, query, qrCode, operatorID, at))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ticket, true, nil
}

func (r *TicketRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets t
		JOIN events e ON e.id = t.event_id
		WHERE t.event_id = $1
		ORDER BY t.created_at`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}

	return tickets, rows.Err()
}
