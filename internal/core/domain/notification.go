package domain

// Notification is one asynchronous status report from the payment
// gateway. Delivery is at-least-once and unordered; the reconciliation
// engine must stay correct under duplication and reordering.
type Notification struct {
	OrderNumber       string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`
	SignatureKey      string `json:"signature_key"`
	FraudStatus       string `json:"fraud_status"`
}

// MapGatewayStatus translates the gateway's transaction status
// vocabulary into a local target status. A capture held by fraud
// screening lands in challenge rather than paid. Unknown statuses
// return ok=false and must be ignored, not applied.
func MapGatewayStatus(transactionStatus, fraudStatus string) (OrderStatus, bool) {
	switch transactionStatus {
	case "settlement":
		return OrderStatusPaid, true
	case "capture":
		if fraudStatus == "challenge" {
			return OrderStatusChallenge, true
		}
		if fraudStatus == "" || fraudStatus == "accept" {
			return OrderStatusPaid, true
		}
		return "", false
	case "pending":
		return OrderStatusPending, true
	case "deny":
		return OrderStatusDenied, true
	case "cancel":
		return OrderStatusCancelled, true
	case "expire":
		return OrderStatusExpired, true
	case "challenge":
		return OrderStatusChallenge, true
	}
	return "", false
}
