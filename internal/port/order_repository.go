package port

import (
	"context"
	"database/sql"

	"github.com/raceday/race-order/internal/core/domain"
)

// OrderRepository is the authoritative order store. Methods that take a
// transaction run inside it; passing nil runs against the bare
// connection. ForUpdate variants lock the row for the lifetime of the
// transaction so that status transitions serialize per order.
type OrderRepository interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	Commit(ctx context.Context, tx *sql.Tx) error
	Rollback(ctx context.Context, tx *sql.Tx) error

	Insert(ctx context.Context, o domain.Order, tx *sql.Tx) error
	Update(ctx context.Context, o domain.Order, tx *sql.Tx) error
	FindByID(ctx context.Context, id string, tx *sql.Tx) (domain.Order, error)
	FindByIDForUpdate(ctx context.Context, id string, tx *sql.Tx) (domain.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string, tx *sql.Tx) (domain.Order, error)
	FindByOrderNumberForUpdate(ctx context.Context, orderNumber string, tx *sql.Tx) (domain.Order, error)

	OrderNumberExists(ctx context.Context, orderNumber string, tx *sql.Tx) (bool, error)
	BibNumberExists(ctx context.Context, bibNumber int, tx *sql.Tx) (bool, error)

	// ActiveIdentityExists reports whether any order that still counts
	// against stock carries the given identity value.
	ActiveIdentityExists(ctx context.Context, identityValue string, tx *sql.Tx) (bool, error)
}
