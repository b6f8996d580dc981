package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"medisaga/internal/pkg/httpclient"
	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/domain/port"
)

const (
	capturePath = "/api/payments/capture"
	refundPath  = "/api/payments/refund"
)

// PaymentHTTPAdapter 通过 HTTP 调用外部支付网关。
// baseURL 为空时通过注册中心按 serviceName 发现网关实例。
type PaymentHTTPAdapter struct {
	client      *httpclient.Client
	baseURL     string
	serviceName string
}

func NewPaymentHTTPAdapter(client *httpclient.Client, baseURL, serviceName string) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{
		client:      client,
		baseURL:     strings.TrimRight(baseURL, "/"),
		serviceName: serviceName,
	}
}

type captureRequest struct {
	CorrelationID string `json:"correlationId"`
	Amount        int64  `json:"amount"`
}

type captureResponse struct {
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"amount"`
}

type refundRequest struct {
	CorrelationID string `json:"correlationId"`
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"amount"`
}

type gatewayError struct {
	Reason string `json:"reason"`
}

func (a *PaymentHTTPAdapter) Capture(ctx context.Context, req port.PaymentRequest) (port.PaymentReceipt, error) {
	target, err := a.url(capturePath)
	if err != nil {
		return port.PaymentReceipt{}, err
	}

	var resp captureResponse
	err = a.client.PostJSON(ctx, target, captureRequest{CorrelationID: req.CorrelationID, Amount: req.Amount}, &resp)
	if err != nil {
		if decline := asDecline(err); decline != nil {
			return port.PaymentReceipt{}, decline
		}
		return port.PaymentReceipt{}, fmt.Errorf("capture payment for %s: %w", req.CorrelationID, err)
	}
	if resp.TransactionID == "" {
		return port.PaymentReceipt{}, fmt.Errorf("capture payment for %s: gateway returned no transaction id", req.CorrelationID)
	}
	if resp.Amount == 0 {
		resp.Amount = req.Amount
	}
	return port.PaymentReceipt{TransactionID: resp.TransactionID, Amount: resp.Amount}, nil
}

func (a *PaymentHTTPAdapter) Refund(ctx context.Context, txn *domain.PaymentTransaction) error {
	target, err := a.url(refundPath)
	if err != nil {
		return err
	}
	body := refundRequest{CorrelationID: txn.CorrelationID, TransactionID: txn.TransactionID, Amount: txn.Amount}
	if err := a.client.PostJSON(ctx, target, body, nil); err != nil {
		return fmt.Errorf("refund payment %s: %w", txn.TransactionID, err)
	}
	return nil
}

func (a *PaymentHTTPAdapter) url(path string) (string, error) {
	if a.baseURL != "" {
		return a.baseURL + path, nil
	}
	return a.client.ServiceURL(a.serviceName, path)
}

// asDecline 402/422 视为业务拒付，其余错误属于基础设施故障
func asDecline(err error) *port.DeclineError {
	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		return nil
	}
	if se.StatusCode != http.StatusPaymentRequired && se.StatusCode != http.StatusUnprocessableEntity {
		return nil
	}
	var body gatewayError
	if json.Unmarshal(se.Body, &body) != nil || body.Reason == "" {
		body.Reason = "Payment declined by gateway"
	}
	return &port.DeclineError{Reason: body.Reason}
}
