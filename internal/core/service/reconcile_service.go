package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/raceday/race-order/internal/core/domain"
	"github.com/raceday/race-order/internal/port"
)

// ReconcileOutcome classifies what a notification did to local state.
// Only Applied changed anything; the rest are acknowledged no-ops.
type ReconcileOutcome string

const (
	OutcomeApplied   ReconcileOutcome = "applied"
	OutcomeDuplicate ReconcileOutcome = "duplicate"
	OutcomeIgnored   ReconcileOutcome = "ignored"
	OutcomeUnmapped  ReconcileOutcome = "unmapped"
)

type ReconcileResult struct {
	Outcome     ReconcileOutcome
	OrderNumber string
	From        domain.OrderStatus
	To          domain.OrderStatus
}

// ReconciliationService applies gateway-reported statuses to local
// orders idempotently. The gateway delivers at-least-once with no
// ordering guarantee, so duplicates and stale reports must land as
// observable no-ops, never as state corruption.
type ReconciliationService struct {
	logger  *logrus.Logger
	orders  port.OrderRepository
	cache   port.CacheRepository
	gateway port.PaymentGateway
	now     func() time.Time
	tr      transitioner
}

type ReconciliationServiceProperty struct {
	Logger      *logrus.Logger
	OrderRepo   port.OrderRepository
	TicketRepo  port.TicketRepository
	Cache       port.CacheRepository
	Gateway     port.PaymentGateway
	IDGenerator *IdentifierGenerator
	Policy      domain.ReservationPolicy
	Now         func() time.Time
}

func NewReconciliationService(props ReconciliationServiceProperty) *ReconciliationService {
	if props.Now == nil {
		props.Now = time.Now
	}
	if !props.Policy.Valid() {
		props.Policy = domain.ReserveAtCreation
	}
	return &ReconciliationService{
		logger:  props.Logger,
		orders:  props.OrderRepo,
		cache:   props.Cache,
		gateway: props.Gateway,
		now:     props.Now,
		tr: transitioner{
			orders:  props.OrderRepo,
			tickets: props.TicketRepo,
			idgen:   props.IDGenerator,
			policy:  props.Policy,
		},
	}
}

// HandleNotification authenticates and applies one webhook payload.
func (s *ReconciliationService) HandleNotification(ctx context.Context, n domain.Notification) (ReconcileResult, error) {
	if err := s.gateway.VerifyNotification(n); err != nil {
		return ReconcileResult{}, err
	}
	return s.reconcile(ctx, n)
}

// Refresh re-queries the gateway for one order and applies the answer
// through the same path as a notification. Used by manual
// status-refresh flows; the server-side query needs no signature check.
func (s *ReconciliationService) Refresh(ctx context.Context, orderNumber string) (ReconcileResult, error) {
	n, err := s.gateway.QueryStatus(ctx, orderNumber)
	if err != nil {
		return ReconcileResult{}, err
	}
	return s.reconcile(ctx, n)
}

func (s *ReconciliationService) reconcile(ctx context.Context, n domain.Notification) (ReconcileResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"order_number":       n.OrderNumber,
		"transaction_status": n.TransactionStatus,
		"transaction_id":     n.TransactionID,
	})

	target, ok := domain.MapGatewayStatus(n.TransactionStatus, n.FraudStatus)
	if !ok {
		log.Warn("unmapped gateway status, ignoring notification")
		s.count(ctx, "notifications:unmapped")
		return ReconcileResult{Outcome: OutcomeUnmapped, OrderNumber: n.OrderNumber}, nil
	}

	tx, err := s.orders.BeginTx(ctx)
	if err != nil {
		return ReconcileResult{}, err
	}

	order, err := s.orders.FindByOrderNumberForUpdate(ctx, n.OrderNumber, tx)
	if err != nil {
		s.orders.Rollback(ctx, tx)
		return ReconcileResult{}, err
	}

	result := ReconcileResult{OrderNumber: order.OrderNumber, From: order.Status, To: target}

	if order.Status == target {
		s.orders.Rollback(ctx, tx)
		s.recordDuplicate(ctx, n, target)
		log.Info("duplicate notification, state unchanged")
		result.Outcome = OutcomeDuplicate
		return result, nil
	}

	// A soft-state report cannot regress an order the gateway already
	// settled or terminated; out-of-order delivery is expected.
	if softStatus(target) && (order.Status == domain.OrderStatusPaid || order.Status.Terminal()) {
		s.orders.Rollback(ctx, tx)
		s.count(ctx, "notifications:stale")
		log.WithField("local_status", order.Status).Info("stale notification ignored")
		result.Outcome = OutcomeIgnored
		return result, nil
	}

	applied, err := s.tr.apply(ctx, tx, &order, target, n.PaymentType, n.TransactionID, s.now())
	if err != nil {
		s.orders.Rollback(ctx, tx)
		return ReconcileResult{}, err
	}
	if !applied {
		s.orders.Rollback(ctx, tx)
		result.Outcome = OutcomeDuplicate
		return result, nil
	}

	if err := s.orders.Commit(ctx, tx); err != nil {
		return ReconcileResult{}, err
	}

	log.WithFields(logrus.Fields{"from": result.From, "to": target}).Info("notification applied")
	result.Outcome = OutcomeApplied
	return result, nil
}

func softStatus(s domain.OrderStatus) bool {
	return s == domain.OrderStatusPending || s == domain.OrderStatusAwaitingPayment
}

// recordDuplicate keeps duplicate-delivery observable without failing
// the acknowledgement; cache errors are logged and swallowed.
func (s *ReconciliationService) recordDuplicate(ctx context.Context, n domain.Notification, target domain.OrderStatus) {
	key := fmt.Sprintf("notif:%s:%s:%s", n.OrderNumber, target, n.TransactionID)
	first, err := s.cache.SetIdempotency(ctx, key)
	if err != nil {
		s.logger.WithError(err).Warn("failed to record notification delivery")
		return
	}
	if !first {
		s.count(ctx, "notifications:duplicate")
	}
}

func (s *ReconciliationService) count(ctx context.Context, key string) {
	if _, err := s.cache.IncrementCounter(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("failed to bump counter")
	}
}
