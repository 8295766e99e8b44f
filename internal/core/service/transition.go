package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/raceday/race-order/internal/core/domain"
	"github.com/raceday/race-order/internal/port"
)

// transitioner is the single call site through which every status
// change flows. It executes the plan computed by the state machine,
// the inventory adjustment, and the row update inside the caller's
// transaction.
type transitioner struct {
	orders  port.OrderRepository
	tickets port.TicketRepository
	idgen   *IdentifierGenerator
	policy  domain.ReservationPolicy
}

// apply moves o to target and persists it. It returns false without
// touching anything when the transition plans to a no-op.
func (t *transitioner) apply(ctx context.Context, tx *sql.Tx, o *domain.Order, target domain.OrderStatus, paymentMethod, paymentReference string, now time.Time) (bool, error) {
	plan, err := domain.PlanTransition(o.Status, target, t.policy)
	if err != nil {
		return false, err
	}
	if plan.NoOp {
		return false, nil
	}

	if plan.ReserveStock {
		if err := t.tickets.Reserve(ctx, o.TicketID, o.Quantity, tx); err != nil {
			return false, fmt.Errorf("reserve stock: %w", err)
		}
	}
	if plan.ReleaseStock {
		if err := t.tickets.Release(ctx, o.TicketID, o.Quantity, tx); err != nil {
			return false, fmt.Errorf("release stock: %w", err)
		}
	}

	if plan.AssignBib && o.BibNumber == nil {
		bib, err := t.idgen.BibNumber(ctx, tx)
		if err != nil {
			return false, err
		}
		o.BibNumber = &bib
	}
	if plan.ClearBib {
		o.BibNumber = nil
	}
	if plan.SetPaidAt {
		paidAt := now
		o.PaidAt = &paidAt
	}
	if plan.ClearPaidAt {
		o.PaidAt = nil
	}

	if paymentMethod != "" {
		o.PaymentMethod = paymentMethod
	}
	if paymentReference != "" {
		o.PaymentReference = paymentReference
	}

	o.Status = target
	o.UpdatedAt = now

	if err := t.orders.Update(ctx, *o, tx); err != nil {
		return false, fmt.Errorf("update order: %w", err)
	}
	return true, nil
}
