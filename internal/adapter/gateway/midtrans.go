// Package gateway talks to a midtrans-compatible payment processor. It
// never mutates local state; every transport or protocol failure maps
// to domain.ErrGatewayUnavailable so callers can keep their own records
// clean.
package gateway

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/raceday/race-order/internal/core/domain"
	"github.com/raceday/race-order/internal/port"
)

type transactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type chargeRequest struct {
	PaymentType        string             `json:"payment_type"`
	TransactionDetails transactionDetails `json:"transaction_details"`
}

type chargeResponse struct {
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	RedirectURL       string `json:"redirect_url"`
	Token             string `json:"token"`
	ExpiryTime        string `json:"expiry_time"`
}

const expiryLayout = "2006-01-02 15:04:05"

type MidtransGateway struct {
	baseURL      string
	serverKey    string
	basicAuthKey string
	logger       *logrus.Logger
	hc           *http.Client
}

func NewMidtransGateway(baseURL, serverKey, basicAuthKey string, logger *logrus.Logger, hc *http.Client) *MidtransGateway {
	return &MidtransGateway{
		baseURL:      baseURL,
		serverKey:    serverKey,
		basicAuthKey: basicAuthKey,
		logger:       logger,
		hc:           hc,
	}
}

// CreateSession implements port.PaymentGateway.
func (g *MidtransGateway) CreateSession(ctx context.Context, o domain.Order) (port.PaymentSession, error) {
	req := chargeRequest{
		PaymentType: "bank_transfer",
		TransactionDetails: transactionDetails{
			OrderID:     o.OrderNumber,
			GrossAmount: o.TotalPrice,
		},
	}

	var resp chargeResponse
	if err := g.post(ctx, "/v2/charge", req, &resp); err != nil {
		return port.PaymentSession{}, err
	}

	session := port.PaymentSession{
		TransactionID: resp.TransactionID,
		Token:         resp.Token,
	}
	if resp.ExpiryTime != "" {
		if expires, err := time.Parse(expiryLayout, resp.ExpiryTime); err == nil {
			session.ExpiresAt = &expires
		}
	}
	return session, nil
}

// QueryStatus implements port.PaymentGateway.
func (g *MidtransGateway) QueryStatus(ctx context.Context, orderNumber string) (domain.Notification, error) {
	url := fmt.Sprintf("%s/v2/%s/status", g.baseURL, orderNumber)

	hr, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		g.logger.WithError(err).Error("build status request")
		return domain.Notification{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	g.setHeaders(hr)

	var resp chargeResponse
	if err := g.do(hr, &resp); err != nil {
		return domain.Notification{}, err
	}

	return domain.Notification{
		OrderNumber:       resp.OrderID,
		TransactionStatus: resp.TransactionStatus,
		StatusCode:        resp.StatusCode,
		GrossAmount:       resp.GrossAmount,
		PaymentType:       resp.PaymentType,
		TransactionID:     resp.TransactionID,
		FraudStatus:       resp.FraudStatus,
	}, nil
}

// VerifyNotification implements port.PaymentGateway. The signature is
// SHA-512 over order_id + status_code + gross_amount + server key.
func (g *MidtransGateway) VerifyNotification(n domain.Notification) error {
	payload := n.OrderNumber + n.StatusCode + n.GrossAmount + g.serverKey
	sum := sha512.Sum512([]byte(payload))
	expected := hex.EncodeToString(sum[:])

	if n.SignatureKey != expected {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (g *MidtransGateway) post(ctx context.Context, path string, payload, out interface{}) error {
	body, _ := json.Marshal(payload)

	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		g.logger.WithError(err).Error("build gateway request")
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	g.setHeaders(hr)

	return g.do(hr, out)
}

func (g *MidtransGateway) setHeaders(hr *http.Request) {
	hr.Header.Add("Content-Type", "application/json")
	hr.Header.Add("Accept", "application/json")
	hr.Header.Add("Authorization", fmt.Sprintf("Basic %s", g.basicAuthKey))
}

func (g *MidtransGateway) do(hr *http.Request, out interface{}) error {
	hresp, err := g.hc.Do(hr)
	if err != nil {
		g.logger.WithError(err).Error("gateway request failed")
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer hresp.Body.Close()

	respBody, err := io.ReadAll(hresp.Body)
	if err != nil {
		g.logger.WithError(err).Error("read gateway response")
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	if hresp.StatusCode < 200 || hresp.StatusCode > 299 {
		g.logger.WithFields(logrus.Fields{
			"status": hresp.StatusCode,
			"body":   string(respBody),
		}).Error("gateway returned non-2xx")
		return fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, hresp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		g.logger.WithError(err).Error("decode gateway response")
		return fmt.Errorf("%w: malformed response", domain.ErrGatewayUnavailable)
	}
	return nil
}
