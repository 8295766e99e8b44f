package port

import (
	"context"
	"time"

	"github.com/raceday/race-order/internal/core/domain"
)

// PaymentSession is the gateway's handle for collecting payment on one
// order.
type PaymentSession struct {
	TransactionID  string
	Token          string
	VirtualAccount string
	ExpiresAt      *time.Time
}

// PaymentGateway is the boundary to the external payment processor. It
// performs no local mutation; every transport or protocol failure
// surfaces as domain.ErrGatewayUnavailable.
type PaymentGateway interface {
	// CreateSession opens a payment session. Called only for orders
	// with a positive total price.
	CreateSession(ctx context.Context, o domain.Order) (PaymentSession, error)

	// QueryStatus fetches the gateway's current view of one order, in
	// the same shape as an asynchronous notification.
	QueryStatus(ctx context.Context, orderNumber string) (domain.Notification, error)

	// VerifyNotification authenticates a webhook payload, returning
	// domain.ErrInvalidSignature when the signature does not match.
	VerifyNotification(n domain.Notification) error
}
