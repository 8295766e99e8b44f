package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTicketNotFound           = errors.New("ticket not found")
	ErrTicketInactive           = errors.New("ticket is not active")
	ErrOutsideSaleWindow        = errors.New("outside sale window")
	ErrStockExhausted           = errors.New("stock exhausted")
	ErrOrderNotFound            = errors.New("order not found")
	ErrDuplicateIdentity        = errors.New("identity already holds an active order")
	ErrDuplicateRequest         = errors.New("duplicate request")
	ErrIdentifierExhausted      = errors.New("identifier space exhausted")
	ErrInvalidStateForOperation = errors.New("operation not allowed in current order state")
	ErrGatewayUnavailable       = errors.New("payment gateway unavailable")
	ErrInvalidSignature         = errors.New("invalid notification signature")
)

// FieldError describes a single rejected form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries per-field detail for a rejected payload.
// It is returned before any mutation happens.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, ", ")
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}
