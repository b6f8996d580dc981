package saga

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/domain/port"
)

// 事件的 service 字段
const (
	BookingServiceName       = "BookingService"
	PricingServiceName       = "PricingService"
	DiscountQuotaServiceName = "DiscountQuotaService"
	PaymentServiceName       = "PaymentService"
	ConfirmationServiceName  = "ConfirmationService"
	AdminServiceName         = "AdminService"
)

// BookingFailer 由 BookingService 实现，其他步骤通过它把预约标记为失败
type BookingFailer interface {
	FailBooking(ctx context.Context, correlationID, reason string, compensationExecuted bool) error
}

// emit 构造事件并交给发布方
func emit(ctx context.Context, p port.EventPublisher, correlationID string, t domain.EventType, payload any, service string) error {
	evt, err := domain.NewEvent(correlationID, t, payload)
	if err != nil {
		return err
	}
	if err := p.Publish(ctx, evt, service, nil); err != nil {
		return fmt.Errorf("publish %s: %w", t, err)
	}
	return nil
}

// startStep 打开 saga.<Step> span，并记录 correlation id
func startStep(ctx context.Context, tracer trace.Tracer, step string, evt domain.Event) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "saga."+step, trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("correlation.id", evt.CorrelationID),
		attribute.String("event.type", string(evt.Type)),
	)
	return ctx, span
}

func fail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}
