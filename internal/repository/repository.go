package repository

import "passaro/internal/database"

type Repositories struct {
	Tickets  *TicketRepository
	Payments *PaymentIntentRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Tickets:  NewTicketRepository(db),
		Payments: NewPaymentIntentRepository(db),
	}
}
