package saga

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/domain/port"
)

// PaymentReversedReason 冲正事件中的原因
const PaymentReversedReason = "Payment reversed due to booking failure"

// PaymentService 扣款，并在补偿时冲正
type PaymentService struct {
	bookings     domain.BookingRepository
	transactions domain.PaymentTransactionRepository
	gateway      port.PaymentGateway
	failer       BookingFailer
	publisher    port.EventPublisher
	tracer       trace.Tracer
}

func NewPaymentService(bookings domain.BookingRepository, transactions domain.PaymentTransactionRepository, gateway port.PaymentGateway, failer BookingFailer, publisher port.EventPublisher, tracer trace.Tracer) *PaymentService {
	return &PaymentService{bookings: bookings, transactions: transactions, gateway: gateway, failer: failer, publisher: publisher, tracer: tracer}
}

func (s *PaymentService) HandleDiscountQuotaReserved(ctx context.Context, evt domain.Event) error {
	ctx, span := startStep(ctx, s.tracer, "Payment", evt)
	defer span.End()

	b, err := s.bookings.FindByCorrelationID(ctx, evt.CorrelationID)
	if err != nil {
		return fail(span, err, "load booking failed")
	}
	if b.Status != domain.StatusQuotaReserved {
		span.AddEvent("Payment already handled, skipping.")
		return nil
	}

	receipt, err := s.capture(ctx, b)
	if err != nil {
		var decline *port.DeclineError
		reason := "Payment processing error: " + err.Error()
		if errors.As(err, &decline) {
			reason = decline.Reason
		}
		span.RecordError(err)
		return s.paymentFailed(ctx, b, reason)
	}

	if err := b.MarkPaymentCompleted(); err != nil {
		return fail(span, err, "mark payment completed failed")
	}
	if err := s.bookings.Save(ctx, b); err != nil {
		return fail(span, err, "save booking failed")
	}
	span.AddEvent("Payment captured.")

	out := domain.PaymentCompleted{Amount: receipt.Amount, TransactionID: receipt.TransactionID}
	return emit(ctx, s.publisher, evt.CorrelationID, domain.EventPaymentCompleted, out, PaymentServiceName)
}

// capture 已有 captured 交易时直接复用，重复投递不会重复扣款
func (s *PaymentService) capture(ctx context.Context, b *domain.Booking) (port.PaymentReceipt, error) {
	existing, err := s.transactions.FindByCorrelationID(ctx, b.CorrelationID)
	switch {
	case err == nil && existing.IsCaptured():
		return port.PaymentReceipt{TransactionID: existing.TransactionID, Amount: existing.Amount}, nil
	case err != nil && !errors.Is(err, domain.ErrTransactionNotFound):
		return port.PaymentReceipt{}, err
	}

	receipt, err := s.gateway.Capture(ctx, port.PaymentRequest{CorrelationID: b.CorrelationID, Amount: b.FinalPrice})
	if err != nil {
		return port.PaymentReceipt{}, err
	}
	txn := &domain.PaymentTransaction{
		CorrelationID: b.CorrelationID,
		TransactionID: receipt.TransactionID,
		Amount:        receipt.Amount,
		Status:        domain.TransactionCaptured,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.transactions.Create(ctx, txn); err != nil {
		return port.PaymentReceipt{}, err
	}
	return receipt, nil
}

func (s *PaymentService) paymentFailed(ctx context.Context, b *domain.Booking, reason string) error {
	logger.Ctx(ctx).Warn().Str("reason", reason).Msg("Payment failed")
	if err := b.MarkPaymentFailed(); err != nil {
		return err
	}
	if err := s.bookings.Save(ctx, b); err != nil {
		return err
	}

	requiresCompensation := b.DiscountApplied
	out := domain.PaymentFailed{Reason: reason, RequiresCompensation: requiresCompensation}
	if err := emit(ctx, s.publisher, b.CorrelationID, domain.EventPaymentFailed, out, PaymentServiceName); err != nil {
		return err
	}
	if requiresCompensation {
		comp := domain.CompensationTriggered{OriginalEvent: string(domain.EventPaymentFailed), Reason: reason}
		return emit(ctx, s.publisher, b.CorrelationID, domain.EventCompensationTriggered, comp, PaymentServiceName)
	}
	return s.failer.FailBooking(ctx, b.CorrelationID, reason, false)
}

// HandleCompensationTriggered 只冲正仍处于 captured 的交易
func (s *PaymentService) HandleCompensationTriggered(ctx context.Context, evt domain.Event) error {
	ctx, span := startStep(ctx, s.tracer, "PaymentCompensation", evt)
	defer span.End()

	txn, err := s.transactions.FindByCorrelationID(ctx, evt.CorrelationID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil
		}
		return fail(span, err, "load transaction failed")
	}
	if !txn.IsCaptured() {
		return nil
	}

	if err := s.gateway.Refund(ctx, txn); err != nil {
		return fail(span, err, "refund failed")
	}
	reversed, err := s.transactions.MarkReversed(ctx, evt.CorrelationID, time.Now())
	if err != nil {
		return fail(span, err, "mark reversed failed")
	}
	if !reversed {
		return nil
	}
	span.AddEvent("Payment reversed.")

	out := domain.PaymentReversed{TransactionID: txn.TransactionID, Reason: PaymentReversedReason}
	return emit(ctx, s.publisher, evt.CorrelationID, domain.EventPaymentReversed, out, PaymentServiceName)
}
