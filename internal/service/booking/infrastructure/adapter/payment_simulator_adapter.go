package adapter

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/domain/port"
)

// SimulationMode 支付模拟模式
type SimulationMode string

const (
	SimulateSuccess SimulationMode = "success"
	SimulateFail    SimulationMode = "fail"
	SimulateRandom  SimulationMode = "random"
)

const (
	declinedReason = "Payment declined by issuing bank (simulated failure)"
	timeoutReason  = "Transaction timeout (simulated random failure)"

	randomFailureRate = 0.1
)

// ParseSimulationMode 无法识别的值按 success 处理
func ParseSimulationMode(s string) SimulationMode {
	switch SimulationMode(strings.ToLower(strings.TrimSpace(s))) {
	case SimulateFail:
		return SimulateFail
	case SimulateRandom:
		return SimulateRandom
	default:
		return SimulateSuccess
	}
}

// PaymentSimulatorAdapter 是 port.PaymentGateway 的模拟实现
type PaymentSimulatorAdapter struct {
	mode    SimulationMode
	latency time.Duration
	roll    func() float64
}

// NewPaymentSimulatorAdapter latency 用来模拟网关处理耗时，测试中传 0
func NewPaymentSimulatorAdapter(mode SimulationMode, latency time.Duration) *PaymentSimulatorAdapter {
	return &PaymentSimulatorAdapter{mode: mode, latency: latency, roll: rand.Float64}
}

func (a *PaymentSimulatorAdapter) Capture(ctx context.Context, req port.PaymentRequest) (port.PaymentReceipt, error) {
	if err := a.wait(ctx); err != nil {
		return port.PaymentReceipt{}, err
	}

	switch a.mode {
	case SimulateFail:
		return port.PaymentReceipt{}, &port.DeclineError{Reason: declinedReason}
	case SimulateRandom:
		if a.roll() < randomFailureRate {
			return port.PaymentReceipt{}, &port.DeclineError{Reason: timeoutReason}
		}
	}

	receipt := port.PaymentReceipt{TransactionID: newTransactionID(), Amount: req.Amount}
	logger.Ctx(ctx).Info().
		Str("transaction_id", receipt.TransactionID).
		Int64("amount", req.Amount).
		Msg("simulated payment captured")
	return receipt, nil
}

func (a *PaymentSimulatorAdapter) Refund(ctx context.Context, txn *domain.PaymentTransaction) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	logger.Ctx(ctx).Info().
		Str("transaction_id", txn.TransactionID).
		Int64("amount", txn.Amount).
		Msg("simulated payment refunded")
	return nil
}

func (a *PaymentSimulatorAdapter) wait(ctx context.Context) error {
	if a.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(a.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("payment simulator: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

func newTransactionID() string {
	return "TXN-" + strings.ToUpper(uuid.NewString()[:8])
}
