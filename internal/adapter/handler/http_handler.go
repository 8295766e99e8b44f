package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/raceday/race-order/internal/core/domain"
	"github.com/raceday/race-order/internal/core/service"
)

type HTTPHandler struct {
	logger     *logrus.Logger
	validate   *validator.Validate
	orders     *service.OrderService
	reconciler *service.ReconciliationService
}

func InitHTTPHandler(router *mux.Router, logger *logrus.Logger, validate *validator.Validate, orders *service.OrderService, reconciler *service.ReconciliationService) {
	h := &HTTPHandler{
		logger:     logger,
		validate:   validate,
		orders:     orders,
		reconciler: reconciler,
	}

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	router.HandleFunc("/v1/orders", h.CreatePurchase).Methods(http.MethodPost)
	router.HandleFunc("/v1/orders/{order_number}", h.QueryOrder).Methods(http.MethodGet)
	router.HandleFunc("/v1/orders/{order_number}/refresh", h.RefreshOrder).Methods(http.MethodPost)
	router.HandleFunc("/v1/payments/notification", h.PaymentNotification).Methods(http.MethodPost)

	router.HandleFunc("/v1/admin/orders/{id}/race-pack", h.SetRacePackCollected).Methods(http.MethodPut)
	router.HandleFunc("/v1/admin/orders/{id}/race-pack", h.ClearRacePackCollected).Methods(http.MethodDelete)
	router.HandleFunc("/v1/admin/orders/{id}/status", h.OverrideStatus).Methods(http.MethodPatch)
}

type createPurchaseRequest struct {
	RequestID string            `json:"request_id"`
	TicketID  string            `json:"ticket_id" validate:"required"`
	FormData  map[string]string `json:"form_data"`
}

type racePackRequest struct {
	CollectedBy string `json:"collected_by" validate:"required"`
}

type overrideStatusRequest struct {
	Status           string `json:"status" validate:"required"`
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
	Notes            string `json:"notes"`
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req createPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid request body"})
		return
	}
	if err := h.validateStruct(r, req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: err.Error()})
		return
	}

	out, err := h.orders.CreatePurchase(r.Context(), service.CreatePurchaseInput{
		TicketID:  req.TicketID,
		RequestID: req.RequestID,
		FormData:  req.FormData,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		Success: true,
		Message: "order placed successfully",
		Data:    newOrderResponse(out.Order, out.Session),
	})
}

func (h *HTTPHandler) QueryOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := mux.Vars(r)["order_number"]

	order, err := h.orders.QueryOrder(r.Context(), orderNumber)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "order detail",
		Data:    newOrderResponse(order, nil),
	})
}

func (h *HTTPHandler) RefreshOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := mux.Vars(r)["order_number"]

	result, err := h.reconciler.Refresh(r.Context(), orderNumber)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: fmt.Sprintf("refresh %s", result.Outcome),
		Data:    result,
	})
}

// PaymentNotification acknowledges every authenticated, well-formed
// delivery with a generic body. No-op outcomes still return 200 so the
// gateway does not redeliver.
func (h *HTTPHandler) PaymentNotification(w http.ResponseWriter, r *http.Request) {
	var n domain.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid notification payload"})
		return
	}

	result, err := h.reconciler.HandleNotification(r.Context(), n)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: fmt.Sprintf("notification %s", result.Outcome),
	})
}

func (h *HTTPHandler) SetRacePackCollected(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req racePackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid request body"})
		return
	}
	if err := h.validateStruct(r, req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: err.Error()})
		return
	}

	order, err := h.orders.SetRacePackCollected(r.Context(), id, req.CollectedBy)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "race pack marked collected",
		Data:    newOrderResponse(order, nil),
	})
}

func (h *HTTPHandler) ClearRacePackCollected(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	order, err := h.orders.ClearRacePackCollected(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "race pack collection cleared",
		Data:    newOrderResponse(order, nil),
	})
}

func (h *HTTPHandler) OverrideStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req overrideStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid request body"})
		return
	}
	if err := h.validateStruct(r, req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: err.Error()})
		return
	}

	order, err := h.orders.OverrideStatus(r.Context(), service.OverrideStatusInput{
		OrderID:          id,
		Status:           domain.OrderStatus(req.Status),
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		Notes:            req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "order status updated",
		Data:    newOrderResponse(order, nil),
	})
}

func (h *HTTPHandler) validateStruct(r *http.Request, payload interface{}) error {
	err := h.validate.StructCtx(r.Context(), payload)
	if err == nil {
		return nil
	}

	fields, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = fmt.Sprintf("invalid '%s'", f.Field())
	}
	return errors.New(strings.Join(msgs, ", "))
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, envelope{
			Message: "validation failed",
			Errors:  verr.Fields,
		})
		return
	}

	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrTicketNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrStockExhausted):
		status, message = http.StatusGone, "sold out"
	case errors.Is(err, domain.ErrTicketInactive), errors.Is(err, domain.ErrOutsideSaleWindow):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrDuplicateRequest), errors.Is(err, domain.ErrDuplicateIdentity),
		errors.Is(err, domain.ErrInvalidStateForOperation):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrInvalidSignature):
		status, message = http.StatusUnauthorized, "invalid signature"
	case errors.Is(err, domain.ErrGatewayUnavailable):
		status, message = http.StatusBadGateway, "payment gateway unavailable"
	case errors.Is(err, domain.ErrIdentifierExhausted):
		status, message = http.StatusServiceUnavailable, "identifier space exhausted"
	default:
		h.logger.WithError(err).Error("unhandled error")
	}

	writeJSON(w, status, envelope{Message: message})
}
