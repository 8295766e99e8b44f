package domain

import "fmt"

// ReservationPolicy controls when a purchase counts against ticket
// stock. ReserveAtCreation is the canonical policy: stock is taken when
// the order is created and given back only when the order reaches a
// terminal failure state. ReserveAtPayment defers the take to the paid
// transition, which tolerates oversubscription of unpaid intents.
type ReservationPolicy string

const (
	ReserveAtCreation ReservationPolicy = "reserve_at_creation"
	ReserveAtPayment  ReservationPolicy = "reserve_at_payment"
)

func (p ReservationPolicy) Valid() bool {
	return p == ReserveAtCreation || p == ReserveAtPayment
}

// TransitionPlan lists the side effects a status change requires. The
// caller executes every listed effect and the status write in one
// transaction; a NoOp plan must change nothing.
type TransitionPlan struct {
	NoOp         bool
	AssignBib    bool
	ClearBib     bool
	SetPaidAt    bool
	ClearPaidAt  bool
	ReserveStock bool
	ReleaseStock bool
}

// PlanTransition computes the effects of moving an order from current
// to target under the given reservation policy. A transition into the
// same state plans to a no-op, which is what makes duplicate gateway
// notifications harmless.
func PlanTransition(current, target OrderStatus, policy ReservationPolicy) (TransitionPlan, error) {
	if !target.Valid() {
		return TransitionPlan{}, fmt.Errorf("%w: unknown target status %q", ErrInvalidStateForOperation, target)
	}
	if current == target {
		return TransitionPlan{NoOp: true}, nil
	}

	var plan TransitionPlan

	if target == OrderStatusPaid {
		plan.AssignBib = true
		plan.SetPaidAt = true
	}
	if current == OrderStatusPaid {
		plan.ClearBib = true
		plan.ClearPaidAt = true
	}

	switch policy {
	case ReserveAtPayment:
		plan.ReserveStock = target == OrderStatusPaid
		plan.ReleaseStock = current == OrderStatusPaid
	default: // ReserveAtCreation
		plan.ReserveStock = !current.CountsAgainstStock() && target.CountsAgainstStock()
		plan.ReleaseStock = current.CountsAgainstStock() && !target.CountsAgainstStock()
	}

	return plan, nil
}
