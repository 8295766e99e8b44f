package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/raceday/race-order/internal/core/domain"
	"github.com/raceday/race-order/internal/port"
)

const orderColumns = `id, order_number, bib_number, ticket_id, quantity, unit_price, total_price,
	status, payment_method, payment_reference, paid_at, notes,
	race_pack_collected, race_pack_collected_at, race_pack_collected_by,
	identity_value, form_data, created_at, updated_at`

// orderRepository is the authoritative order store over MySQL.
// ForUpdate reads take a row lock so that status transitions for one
// order serialize against each other.
type orderRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewOrderRepository(logger *logrus.Logger, db *sql.DB) port.OrderRepository {
	return &orderRepository{logger: logger, db: db}
}

func (r *orderRepository) cmd(tx *sql.Tx) sqlCommand {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *orderRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.WithError(err).Error("begin transaction")
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (r *orderRepository) Commit(ctx context.Context, tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		r.logger.WithError(err).Error("commit transaction")
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *orderRepository) Rollback(ctx context.Context, tx *sql.Tx) error {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		r.logger.WithError(err).Error("rollback transaction")
		return fmt.Errorf("rollback tx: %w", err)
	}
	return nil
}

func (r *orderRepository) Insert(ctx context.Context, o domain.Order, tx *sql.Tx) error {
	formData, err := json.Marshal(o.FormData)
	if err != nil {
		return fmt.Errorf("marshal form data: %w", err)
	}

	_, err = r.cmd(tx).ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.OrderNumber, o.BibNumber, o.TicketID, o.Quantity, o.UnitPrice, o.TotalPrice,
		o.Status, o.PaymentMethod, o.PaymentReference, o.PaidAt, o.Notes,
		o.RacePackCollected, o.RacePackCollectedAt, o.RacePackCollectedBy,
		o.IdentityValue, formData, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		r.logger.WithError(err).Error("insert order")
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *orderRepository) Update(ctx context.Context, o domain.Order, tx *sql.Tx) error {
	formData, err := json.Marshal(o.FormData)
	if err != nil {
		return fmt.Errorf("marshal form data: %w", err)
	}

	_, err = r.cmd(tx).ExecContext(ctx, `
		UPDATE orders SET
			bib_number = ?, status = ?, payment_method = ?, payment_reference = ?,
			paid_at = ?, notes = ?, race_pack_collected = ?, race_pack_collected_at = ?,
			race_pack_collected_by = ?, form_data = ?, updated_at = ?
		WHERE id = ?`,
		o.BibNumber, o.Status, o.PaymentMethod, o.PaymentReference,
		o.PaidAt, o.Notes, o.RacePackCollected, o.RacePackCollectedAt,
		o.RacePackCollectedBy, formData, o.UpdatedAt,
		o.ID,
	)
	if err != nil {
		r.logger.WithError(err).Error("update order")
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id string, tx *sql.Tx) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`
	return r.scan(r.cmd(tx).QueryRowContext(ctx, query, id))
}

func (r *orderRepository) FindByIDForUpdate(ctx context.Context, id string, tx *sql.Tx) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ? FOR UPDATE`
	return r.scan(r.cmd(tx).QueryRowContext(ctx, query, id))
}

func (r *orderRepository) FindByOrderNumber(ctx context.Context, orderNumber string, tx *sql.Tx) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = ?`
	return r.scan(r.cmd(tx).QueryRowContext(ctx, query, orderNumber))
}

func (r *orderRepository) FindByOrderNumberForUpdate(ctx context.Context, orderNumber string, tx *sql.Tx) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = ? FOR UPDATE`
	return r.scan(r.cmd(tx).QueryRowContext(ctx, query, orderNumber))
}

func (r *orderRepository) scan(row *sql.Row) (domain.Order, error) {
	var o domain.Order
	var bibNumber sql.NullInt64
	var paidAt, racePackAt sql.NullTime
	var formData []byte

	err := row.Scan(
		&o.ID, &o.OrderNumber, &bibNumber, &o.TicketID, &o.Quantity, &o.UnitPrice, &o.TotalPrice,
		&o.Status, &o.PaymentMethod, &o.PaymentReference, &paidAt, &o.Notes,
		&o.RacePackCollected, &racePackAt, &o.RacePackCollectedBy,
		&o.IdentityValue, &formData, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		r.logger.WithError(err).Error("scan order")
		return domain.Order{}, fmt.Errorf("query order: %w", err)
	}

	if bibNumber.Valid {
		bib := int(bibNumber.Int64)
		o.BibNumber = &bib
	}
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	if racePackAt.Valid {
		o.RacePackCollectedAt = &racePackAt.Time
	}
	if len(formData) > 0 {
		if err := json.Unmarshal(formData, &o.FormData); err != nil {
			return domain.Order{}, fmt.Errorf("unmarshal form data: %w", err)
		}
	}
	return o, nil
}

func (r *orderRepository) OrderNumberExists(ctx context.Context, orderNumber string, tx *sql.Tx) (bool, error) {
	return r.exists(ctx, tx, `SELECT 1 FROM orders WHERE order_number = ? LIMIT 1`, orderNumber)
}

func (r *orderRepository) BibNumberExists(ctx context.Context, bibNumber int, tx *sql.Tx) (bool, error) {
	return r.exists(ctx, tx, `SELECT 1 FROM orders WHERE bib_number = ? LIMIT 1`, bibNumber)
}

func (r *orderRepository) ActiveIdentityExists(ctx context.Context, identityValue string, tx *sql.Tx) (bool, error) {
	query := `
		SELECT 1 FROM orders
		WHERE identity_value = ? AND status NOT IN (?, ?, ?)
		LIMIT 1`
	return r.exists(ctx, tx, query, identityValue,
		domain.OrderStatusCancelled, domain.OrderStatusExpired, domain.OrderStatusDenied)
}

func (r *orderRepository) exists(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (bool, error) {
	var one int
	err := r.cmd(tx).QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		r.logger.WithError(err).Error("existence check")
		return false, fmt.Errorf("existence check: %w", err)
	}
	return true, nil
}
