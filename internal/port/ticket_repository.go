package port

import (
	"context"
	"database/sql"

	"github.com/raceday/race-order/internal/core/domain"
)

// TicketRepository is the inventory ledger. Reserve and Release mutate
// the sold counter with a conditional write so that 0 <= sold <= stock
// holds under concurrent callers.
type TicketRepository interface {
	FindByID(ctx context.Context, id string, tx *sql.Tx) (domain.Ticket, error)
	FindByIDForUpdate(ctx context.Context, id string, tx *sql.Tx) (domain.Ticket, error)

	// Reserve increments sold by qty, failing with
	// domain.ErrStockExhausted when the increment would exceed stock.
	Reserve(ctx context.Context, id string, qty int, tx *sql.Tx) error

	// Release decrements sold by qty, floored at zero.
	Release(ctx context.Context, id string, qty int, tx *sql.Tx) error
}
