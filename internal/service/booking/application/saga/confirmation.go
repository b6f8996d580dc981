package saga

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/domain/port"
)

const (
	// QuotaCheckCheckpoint 最终名额校验失败时作为 originalEvent
	QuotaCheckCheckpoint  = "QuotaCheckRequested"
	QuotaFinalCheckReason = "Quota exhausted during final check. Please try again tomorrow."
)

// ConfirmationService 做最终名额校验，生成预约编号并确认
type ConfirmationService struct {
	bookings   domain.BookingRepository
	store      port.DiscountQuotaStore
	references port.ReferenceGenerator
	publisher  port.EventPublisher
	tracer     trace.Tracer
}

func NewConfirmationService(bookings domain.BookingRepository, store port.DiscountQuotaStore, references port.ReferenceGenerator, publisher port.EventPublisher, tracer trace.Tracer) *ConfirmationService {
	return &ConfirmationService{bookings: bookings, store: store, references: references, publisher: publisher, tracer: tracer}
}

func (s *ConfirmationService) HandlePaymentCompleted(ctx context.Context, evt domain.Event) error {
	ctx, span := startStep(ctx, s.tracer, "Confirmation", evt)
	defer span.End()

	b, err := s.bookings.FindByCorrelationID(ctx, evt.CorrelationID)
	if err != nil {
		return fail(span, err, "load booking failed")
	}
	if b.Status != domain.StatusPaymentCompleted {
		span.AddEvent("Booking not awaiting confirmation, skipping.")
		return nil
	}

	if b.DiscountApplied {
		held, snap, err := s.store.Check(ctx, b.QuotaDateKey, b.CorrelationID)
		if err != nil {
			return fail(span, err, "final quota check failed")
		}
		if !held || snap.Used > snap.Limit {
			logger.Ctx(ctx).Warn().
				Bool("held", held).
				Int64("used", snap.Used).
				Int64("limit", snap.Limit).
				Msg("Final quota check failed, compensating")
			span.AddEvent("Final quota check failed.")
			comp := domain.CompensationTriggered{OriginalEvent: QuotaCheckCheckpoint, Reason: QuotaFinalCheckReason}
			return emit(ctx, s.publisher, evt.CorrelationID, domain.EventCompensationTriggered, comp, ConfirmationServiceName)
		}
	}

	ref := s.references.NewReference()
	if err := b.Confirm(ref); err != nil {
		return fail(span, err, "confirm failed")
	}
	if err := s.bookings.Save(ctx, b); err != nil {
		return fail(span, err, "save booking failed")
	}
	logger.Ctx(ctx).Info().Str("reference_id", ref).Int64("final_price", b.FinalPrice).Msg("✅ Booking confirmed")

	out := domain.BookingConfirmed{ReferenceID: ref, FinalPrice: b.FinalPrice, DiscountApplied: b.DiscountApplied}
	return emit(ctx, s.publisher, evt.CorrelationID, domain.EventBookingConfirmed, out, ConfirmationServiceName)
}
