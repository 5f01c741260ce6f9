package repository

import (
	"context"
	"database/sql"

	"passaro/internal/database"
	"passaro/internal/models"
)

type PaymentIntentRepository struct {
	db *database.DB
}

func NewPaymentIntentRepository(db *database.DB) *PaymentIntentRepository {
	return &PaymentIntentRepository{db: db}
}

func (r *PaymentIntentRepository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (order_id, status, method, qr_payload, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		intent.OrderID,
		intent.Status,
		intent.Method,
		intent.QRPayload,
		intent.Amount,
	).Scan(&intent.ID, &intent.CreatedAt, &intent.UpdatedAt)
}

func (r *PaymentIntentRepository) GetByID(ctx context.Context, id string) (*models.PaymentIntent, error) {
	intent := &models.PaymentIntent{}
	query := `
		SELECT id, order_id, status, method, qr_payload, amount, created_at, updated_at
		FROM payment_intents
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&intent.ID,
		&intent.OrderID,
		&intent.Status,
		&intent.Method,
		&intent.QRPayload,
		&intent.Amount,
		&intent.CreatedAt,
		&intent.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return intent, err
}

func (r *PaymentIntentRepository) GetByOrderID(ctx context.Context, orderID string) (*models.PaymentIntent, error) {
	intent := &models.PaymentIntent{}
	query := `
		SELECT id, order_id, status, method, qr_payload, amount, created_at, updated_at
		FROM payment_intents
		WHERE order_id = $1`

	err := r.db.QueryRowContext(ctx, query, orderID).Scan(
		&intent.ID,
		&intent.OrderID,
		&intent.Status,
		&intent.Method,
		&intent.QRPayload,
		&intent.Amount,
		&intent.CreatedAt,
		&intent.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return intent, err
}

// GetStatus is the point read issued by the reconciler's poll timer.
func (r *PaymentIntentRepository) GetStatus(ctx context.Context, id string) (models.PaymentStatus, error) {
	var status models.PaymentStatus
	query := `SELECT status FROM payment_intents WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", nil
	}

	return status, err
}

// SetTerminalStatus applies pending -> terminal as a conditional update.
// A row that already reached a terminal state never matches, so a duplicate
// or late webhook cannot regress the status. Returns whether this call
// performed the transition.
func (r *PaymentIntentRepository) SetTerminalStatus(ctx context.Context, id string, status models.PaymentStatus) (bool, error) {
	query := `
		UPDATE payment_intents
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}
