package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusExpired         OrderStatus = "expired"
	OrderStatusDenied          OrderStatus = "denied"
	OrderStatusChallenge       OrderStatus = "challenge"
)

// PaymentMethodFree marks orders for zero-priced tickets, which never
// touch the gateway.
const PaymentMethodFree = "free"

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusAwaitingPayment, OrderStatusPending, OrderStatusPaid,
		OrderStatusCancelled, OrderStatusExpired, OrderStatusDenied,
		OrderStatusChallenge:
		return true
	}
	return false
}

// Terminal reports whether no further gateway-driven transitions are
// expected. Operator overrides may still move an order out of these.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusExpired, OrderStatusDenied:
		return true
	}
	return false
}

// CountsAgainstStock reports whether an order in this state holds a
// reserved unit under the reserve-at-creation policy.
func (s OrderStatus) CountsAgainstStock() bool {
	return !s.Terminal()
}

// Order is the authoritative record of one purchase. Quantity is fixed
// at 1 per policy; TotalPrice is captured at creation and never
// recomputed.
type Order struct {
	ID                  string
	OrderNumber         string
	BibNumber           *int
	TicketID            string
	Quantity            int
	UnitPrice           int64
	TotalPrice          int64
	Status              OrderStatus
	PaymentMethod       string
	PaymentReference    string
	PaidAt              *time.Time
	Notes               string
	RacePackCollected   bool
	RacePackCollectedAt *time.Time
	RacePackCollectedBy string
	IdentityValue       string
	FormData            FormData
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// FormValue is one submitted registration field.
type FormValue struct {
	Name  string
	Value string
}

// FormData holds validated registration fields in schema order. It
// serializes to a JSON object whose key order follows the slice, and
// decodes back preserving the document order.
type FormData []FormValue

func (f FormData) Get(name string) (string, bool) {
	for _, v := range f {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

func (f FormData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(v.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(v.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *FormData) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("form data: expected object, got %v", tok)
	}

	out := FormData{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("form data: non-string key %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("form data: field %q: %w", key, err)
		}
		out = append(out, FormValue{Name: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = out
	return nil
}
