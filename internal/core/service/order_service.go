package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/raceday/race-order/internal/core/domain"
	"github.com/raceday/race-order/internal/core/schema"
	"github.com/raceday/race-order/internal/port"
)

// OrderService owns the purchase path and the operator actions. All
// mutation funnels through one transaction per call; validation happens
// before anything is written.
type OrderService struct {
	logger        *logrus.Logger
	orders        port.OrderRepository
	tickets       port.TicketRepository
	cache         port.CacheRepository
	gateway       port.PaymentGateway
	idgen         *IdentifierGenerator
	formSpecs     []schema.FieldSpec
	identityField string
	policy        domain.ReservationPolicy
	now           func() time.Time
	tr            transitioner
}

type OrderServiceProperty struct {
	Logger        *logrus.Logger
	OrderRepo     port.OrderRepository
	TicketRepo    port.TicketRepository
	Cache         port.CacheRepository
	Gateway       port.PaymentGateway
	IDGenerator   *IdentifierGenerator
	FormSpecs     []schema.FieldSpec
	IdentityField string
	Policy        domain.ReservationPolicy
	Now           func() time.Time
}

func NewOrderService(props OrderServiceProperty) *OrderService {
	if props.Now == nil {
		props.Now = time.Now
	}
	if !props.Policy.Valid() {
		props.Policy = domain.ReserveAtCreation
	}
	return &OrderService{
		logger:        props.Logger,
		orders:        props.OrderRepo,
		tickets:       props.TicketRepo,
		cache:         props.Cache,
		gateway:       props.Gateway,
		idgen:         props.IDGenerator,
		formSpecs:     props.FormSpecs,
		identityField: props.IdentityField,
		policy:        props.Policy,
		now:           props.Now,
		tr: transitioner{
			orders:  props.OrderRepo,
			tickets: props.TicketRepo,
			idgen:   props.IDGenerator,
			policy:  props.Policy,
		},
	}
}

type CreatePurchaseInput struct {
	TicketID  string
	RequestID string
	FormData  map[string]string
}

type CreatePurchaseOutput struct {
	Order   domain.Order
	Session *port.PaymentSession
}

// CreatePurchase converts a purchase intent into a persisted,
// inventory-backed order. Free tickets are created directly as paid
// with a bib assigned; priced tickets open a gateway session and start
// in awaiting_payment.
func (s *OrderService) CreatePurchase(ctx context.Context, in CreatePurchaseInput) (CreatePurchaseOutput, error) {
	formData, err := schema.Validate(s.formSpecs, in.FormData)
	if err != nil {
		return CreatePurchaseOutput{}, err
	}

	if in.RequestID != "" {
		ok, err := s.cache.SetIdempotency(ctx, "purchase:"+in.RequestID)
		if err != nil {
			return CreatePurchaseOutput{}, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return CreatePurchaseOutput{}, domain.ErrDuplicateRequest
		}
	}

	now := s.now()

	tx, err := s.orders.BeginTx(ctx)
	if err != nil {
		return CreatePurchaseOutput{}, err
	}

	ticket, err := s.tickets.FindByIDForUpdate(ctx, in.TicketID, tx)
	if err != nil {
		s.orders.Rollback(ctx, tx)
		return CreatePurchaseOutput{}, err
	}

	if err := ticket.CheckAvailability(1, now); err != nil {
		s.orders.Rollback(ctx, tx)
		return CreatePurchaseOutput{}, err
	}

	var identityValue string
	if s.identityField != "" {
		identityValue, _ = formData.Get(s.identityField)
	}
	if identityValue != "" {
		exists, err := s.orders.ActiveIdentityExists(ctx, identityValue, tx)
		if err != nil {
			s.orders.Rollback(ctx, tx)
			return CreatePurchaseOutput{}, err
		}
		if exists {
			s.orders.Rollback(ctx, tx)
			return CreatePurchaseOutput{}, domain.ErrDuplicateIdentity
		}
	}

	orderNumber, err := s.idgen.OrderNumber(ctx, now, tx)
	if err != nil {
		s.orders.Rollback(ctx, tx)
		return CreatePurchaseOutput{}, err
	}

	if s.policy == domain.ReserveAtCreation {
		if err := s.tickets.Reserve(ctx, ticket.ID, 1, tx); err != nil {
			s.orders.Rollback(ctx, tx)
			return CreatePurchaseOutput{}, err
		}
	}

	order := domain.Order{
		ID:            uuid.NewString(),
		OrderNumber:   orderNumber,
		TicketID:      ticket.ID,
		Quantity:      1,
		UnitPrice:     ticket.UnitPrice,
		TotalPrice:    ticket.UnitPrice,
		Status:        domain.OrderStatusAwaitingPayment,
		IdentityValue: identityValue,
		FormData:      formData,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var session *port.PaymentSession

	if order.TotalPrice == 0 {
		// A free order enters paid immediately, so the deferred policy
		// takes its unit here rather than on a gateway transition.
		if s.policy == domain.ReserveAtPayment {
			if err := s.tickets.Reserve(ctx, ticket.ID, 1, tx); err != nil {
				s.orders.Rollback(ctx, tx)
				return CreatePurchaseOutput{}, err
			}
		}
		bib, err := s.idgen.BibNumber(ctx, tx)
		if err != nil {
			s.orders.Rollback(ctx, tx)
			return CreatePurchaseOutput{}, err
		}
		paidAt := now
		order.Status = domain.OrderStatusPaid
		order.PaymentMethod = domain.PaymentMethodFree
		order.PaidAt = &paidAt
		order.BibNumber = &bib
	} else {
		ps, err := s.gateway.CreateSession(ctx, order)
		if err != nil {
			s.orders.Rollback(ctx, tx)
			return CreatePurchaseOutput{}, err
		}
		order.PaymentReference = ps.TransactionID
		session = &ps
	}

	if err := s.orders.Insert(ctx, order, tx); err != nil {
		s.orders.Rollback(ctx, tx)
		return CreatePurchaseOutput{}, err
	}

	if err := s.orders.Commit(ctx, tx); err != nil {
		return CreatePurchaseOutput{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"ticket_id":    order.TicketID,
		"status":       order.Status,
		"total_price":  order.TotalPrice,
	}).Info("order created")

	return CreatePurchaseOutput{Order: order, Session: session}, nil
}

// QueryOrder returns a read-only snapshot by order number.
func (s *OrderService) QueryOrder(ctx context.Context, orderNumber string) (domain.Order, error) {
	return s.orders.FindByOrderNumber(ctx, orderNumber, nil)
}

// SetRacePackCollected marks the race pack of a paid order as handed
// out. Any other status fails with ErrInvalidStateForOperation.
func (s *OrderService) SetRacePackCollected(ctx context.Context, orderID, collectedBy string) (domain.Order, error) {
	return s.toggleRacePack(ctx, orderID, true, collectedBy)
}

// ClearRacePackCollected reverts the collection flag, gated on paid
// status the same way as setting it.
func (s *OrderService) ClearRacePackCollected(ctx context.Context, orderID string) (domain.Order, error) {
	return s.toggleRacePack(ctx, orderID, false, "")
}

func (s *OrderService) toggleRacePack(ctx context.Context, orderID string, collected bool, collectedBy string) (domain.Order, error) {
	tx, err := s.orders.BeginTx(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	order, err := s.orders.FindByIDForUpdate(ctx, orderID, tx)
	if err != nil {
		s.orders.Rollback(ctx, tx)
		return domain.Order{}, err
	}

	if order.Status != domain.OrderStatusPaid {
		s.orders.Rollback(ctx, tx)
		return domain.Order{}, fmt.Errorf("%w: race pack requires paid status, order is %s", domain.ErrInvalidStateForOperation, order.Status)
	}

	now := s.now()
	if collected {
		order.RacePackCollected = true
		order.RacePackCollectedAt = &now
		order.RacePackCollectedBy = collectedBy
	} else {
		order.RacePackCollected = false
		order.RacePackCollectedAt = nil
		order.RacePackCollectedBy = ""
	}
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order, tx); err != nil {
		s.orders.Rollback(ctx, tx)
		return domain.Order{}, err
	}
	if err := s.orders.Commit(ctx, tx); err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

type OverrideStatusInput struct {
	OrderID          string
	Status           domain.OrderStatus
	PaymentMethod    string
	PaymentReference string
	Notes            string
}

// OverrideStatus is the operator escape hatch. It still goes through
// the state machine, so bib assignment, paid_at bookkeeping and
// inventory adjustments stay consistent.
func (s *OrderService) OverrideStatus(ctx context.Context, in OverrideStatusInput) (domain.Order, error) {
	if !in.Status.Valid() {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidStateForOperation, in.Status)
	}

	tx, err := s.orders.BeginTx(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	order, err := s.orders.FindByIDForUpdate(ctx, in.OrderID, tx)
	if err != nil {
		s.orders.Rollback(ctx, tx)
		return domain.Order{}, err
	}

	notesChanged := in.Notes != "" && in.Notes != order.Notes
	if notesChanged {
		order.Notes = in.Notes
	}

	now := s.now()
	applied, err := s.tr.apply(ctx, tx, &order, in.Status, in.PaymentMethod, in.PaymentReference, now)
	if err != nil {
		s.orders.Rollback(ctx, tx)
		return domain.Order{}, err
	}
	if !applied {
		// A same-state override still persists an operator note.
		if !notesChanged {
			s.orders.Rollback(ctx, tx)
			return order, nil
		}
		order.UpdatedAt = now
		if err := s.orders.Update(ctx, order, tx); err != nil {
			s.orders.Rollback(ctx, tx)
			return domain.Order{}, err
		}
	}

	if err := s.orders.Commit(ctx, tx); err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"status":       order.Status,
	}).Info("order status overridden")

	return order, nil
}
