package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/raceday/race-order/internal/core/domain"
	"github.com/raceday/race-order/internal/port"
)

// sqlCommand is satisfied by both *sql.DB and *sql.Tx so every query
// can run inside or outside a transaction.
type sqlCommand interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

const ticketColumns = `id, name, unit_price, stock, sold, is_active, sale_start, sale_end, created_at, updated_at`

// ticketRepository is the inventory ledger over MySQL. Stock
// arithmetic uses conditional updates with rows-affected checks so
// concurrent purchasers cannot oversell.
type ticketRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewTicketRepository(logger *logrus.Logger, db *sql.DB) port.TicketRepository {
	return &ticketRepository{logger: logger, db: db}
}

func (r *ticketRepository) cmd(tx *sql.Tx) sqlCommand {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ticketRepository) FindByID(ctx context.Context, id string, tx *sql.Tx) (domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	return r.scan(r.cmd(tx).QueryRowContext(ctx, query, id))
}

func (r *ticketRepository) FindByIDForUpdate(ctx context.Context, id string, tx *sql.Tx) (domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ? FOR UPDATE`
	return r.scan(r.cmd(tx).QueryRowContext(ctx, query, id))
}

func (r *ticketRepository) scan(row *sql.Row) (domain.Ticket, error) {
	var t domain.Ticket
	var saleStart, saleEnd sql.NullTime

	err := row.Scan(&t.ID, &t.Name, &t.UnitPrice, &t.Stock, &t.Sold,
		&t.IsActive, &saleStart, &saleEnd, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Ticket{}, domain.ErrTicketNotFound
	}
	if err != nil {
		r.logger.WithError(err).Error("scan ticket")
		return domain.Ticket{}, fmt.Errorf("query ticket: %w", err)
	}

	if saleStart.Valid {
		t.SaleStart = &saleStart.Time
	}
	if saleEnd.Valid {
		t.SaleEnd = &saleEnd.Time
	}
	return t, nil
}

func (r *ticketRepository) Reserve(ctx context.Context, id string, qty int, tx *sql.Tx) error {
	result, err := r.cmd(tx).ExecContext(ctx, `
		UPDATE tickets
		SET sold = sold + ?, updated_at = NOW()
		WHERE id = ? AND sold + ? <= stock`,
		qty, id, qty,
	)
	if err != nil {
		r.logger.WithError(err).Error("reserve stock")
		return fmt.Errorf("reserve stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrStockExhausted
	}
	return nil
}

func (r *ticketRepository) Release(ctx context.Context, id string, qty int, tx *sql.Tx) error {
	_, err := r.cmd(tx).ExecContext(ctx, `
		UPDATE tickets
		SET sold = GREATEST(sold - ?, 0), updated_at = NOW()
		WHERE id = ?`,
		qty, id,
	)
	if err != nil {
		r.logger.WithError(err).Error("release stock")
		return fmt.Errorf("release stock: %w", err)
	}
	return nil
}
