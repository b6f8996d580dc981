package port

import (
	"context"
	"errors"

	"medisaga/internal/service/booking/domain"
)

var ErrPaymentDeclined = errors.New("payment declined")

// DeclineError 携带面向用户的拒付原因
type DeclineError struct {
	Reason string
}

func (e *DeclineError) Error() string { return e.Reason }

func (e *DeclineError) Is(target error) bool { return target == ErrPaymentDeclined }

type PaymentRequest struct {
	CorrelationID string
	Amount        int64
}

type PaymentReceipt struct {
	TransactionID string
	Amount        int64
}

// PaymentGateway 是支付服务的出站端口
type PaymentGateway interface {
	// Capture 扣款。拒付返回 *DeclineError。
	Capture(ctx context.Context, req PaymentRequest) (PaymentReceipt, error)

	// Refund 是 Capture 的补偿操作
	Refund(ctx context.Context, txn *domain.PaymentTransaction) error
}
