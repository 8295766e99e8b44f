package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/raceday/race-order/internal/core/domain"
	"github.com/raceday/race-order/internal/port"
)

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    interface{}         `json:"data,omitempty"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type paymentSessionResponse struct {
	Token          string     `json:"token,omitempty"`
	TransactionID  string     `json:"transaction_id,omitempty"`
	VirtualAccount string     `json:"virtual_account,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

type orderResponse struct {
	OrderNumber         string             `json:"order_number"`
	BibNumber           *int               `json:"bib_number"`
	TicketID            string             `json:"ticket_id"`
	Quantity            int                `json:"quantity"`
	UnitPrice           int64              `json:"unit_price"`
	TotalPrice          int64              `json:"total_price"`
	Status              domain.OrderStatus `json:"status"`
	PaymentMethod       string             `json:"payment_method,omitempty"`
	PaymentReference    string             `json:"payment_reference,omitempty"`
	PaidAt              *time.Time         `json:"paid_at"`
	Notes               string             `json:"notes,omitempty"`
	RacePackCollected   bool               `json:"race_pack_collected"`
	RacePackCollectedAt *time.Time         `json:"race_pack_collected_at,omitempty"`
	RacePackCollectedBy string             `json:"race_pack_collected_by,omitempty"`
	FormData            domain.FormData    `json:"form_data"`
	CreatedAt           time.Time          `json:"created_at"`

	Payment *paymentSessionResponse `json:"payment,omitempty"`
}

func newOrderResponse(o domain.Order, session *port.PaymentSession) orderResponse {
	resp := orderResponse{
		OrderNumber:         o.OrderNumber,
		BibNumber:           o.BibNumber,
		TicketID:            o.TicketID,
		Quantity:            o.Quantity,
		UnitPrice:           o.UnitPrice,
		TotalPrice:          o.TotalPrice,
		Status:              o.Status,
		PaymentMethod:       o.PaymentMethod,
		PaymentReference:    o.PaymentReference,
		PaidAt:              o.PaidAt,
		Notes:               o.Notes,
		RacePackCollected:   o.RacePackCollected,
		RacePackCollectedAt: o.RacePackCollectedAt,
		RacePackCollectedBy: o.RacePackCollectedBy,
		FormData:            o.FormData,
		CreatedAt:           o.CreatedAt,
	}
	if session != nil {
		resp.Payment = &paymentSessionResponse{
			Token:          session.Token,
			TransactionID:  session.TransactionID,
			VirtualAccount: session.VirtualAccount,
			ExpiresAt:      session.ExpiresAt,
		}
	}
	return resp
}
