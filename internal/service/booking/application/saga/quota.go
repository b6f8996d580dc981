package saga

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/pkg/metrics"
	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/domain/port"
)

// QuotaExhaustedReason 当天折扣名额用完时的拒绝原因
const QuotaExhaustedReason = "Daily discount quota reached. Please try again tomorrow."

// DiscountQuotaService 预留与释放每日折扣名额
type DiscountQuotaService struct {
	bookings  domain.BookingRepository
	store     port.DiscountQuotaStore
	days      port.DayKeyProvider
	failer    BookingFailer
	publisher port.EventPublisher
	tracer    trace.Tracer
}

func NewDiscountQuotaService(bookings domain.BookingRepository, store port.DiscountQuotaStore, days port.DayKeyProvider, failer BookingFailer, publisher port.EventPublisher, tracer trace.Tracer) *DiscountQuotaService {
	return &DiscountQuotaService{bookings: bookings, store: store, days: days, failer: failer, publisher: publisher, tracer: tracer}
}

func (s *DiscountQuotaService) HandlePricingCalculated(ctx context.Context, evt domain.Event) error {
	ctx, span := startStep(ctx, s.tracer, "DiscountQuota", evt)
	defer span.End()

	var payload domain.PricingCalculated
	if err := evt.Decode(&payload); err != nil {
		return fail(span, err, "decode failed")
	}
	b, err := s.bookings.FindByCorrelationID(ctx, evt.CorrelationID)
	if err != nil {
		return fail(span, err, "load booking failed")
	}
	if b.Status != domain.StatusPricingCalculated {
		span.AddEvent("Quota step already handled, skipping.")
		return nil
	}

	dateKey := s.days.Today()

	// 不符合折扣条件：不占用名额，直接按原价继续
	if !b.DiscountEligible {
		snap, err := s.store.Status(ctx, dateKey)
		if err != nil {
			return fail(span, err, "load quota status failed")
		}
		if err := b.ProceedWithoutDiscount(); err != nil {
			return fail(span, err, "proceed without discount failed")
		}
		if err := s.bookings.Save(ctx, b); err != nil {
			return fail(span, err, "save booking failed")
		}
		out := domain.DiscountQuotaReserved{DiscountApplied: false, QuotaUsed: snap.Used, QuotaLimit: snap.Limit}
		return emit(ctx, s.publisher, evt.CorrelationID, domain.EventDiscountQuotaReserved, out, DiscountQuotaServiceName)
	}

	reservation, err := s.store.Reserve(ctx, dateKey, evt.CorrelationID)
	if err != nil {
		return fail(span, err, "reserve quota failed")
	}
	metrics.QuotaReservations.WithLabelValues(reservation.Result.String()).Inc()

	if !reservation.Result.Succeeded() {
		span.AddEvent("Daily quota exhausted.")
		logger.Ctx(ctx).Warn().
			Int64("used", reservation.Used).
			Int64("limit", reservation.Limit).
			Msg("Discount quota exhausted, rejecting booking")
		if err := b.RejectQuota(); err != nil {
			return fail(span, err, "reject quota failed")
		}
		if err := s.bookings.Save(ctx, b); err != nil {
			return fail(span, err, "save booking failed")
		}
		out := domain.DiscountQuotaRejected{Reason: QuotaExhaustedReason}
		if err := emit(ctx, s.publisher, evt.CorrelationID, domain.EventDiscountQuotaRejected, out, DiscountQuotaServiceName); err != nil {
			return fail(span, err, "publish failed")
		}
		return s.failer.FailBooking(ctx, evt.CorrelationID, QuotaExhaustedReason, false)
	}

	if err := b.ApplyDiscount(payload.DiscountAmount, dateKey); err != nil {
		return fail(span, err, "apply discount failed")
	}
	if err := s.bookings.Save(ctx, b); err != nil {
		return fail(span, err, "save booking failed")
	}
	span.AddEvent(fmt.Sprintf("Quota %s (%d/%d).", reservation.Result, reservation.Used, reservation.Limit))

	out := domain.DiscountQuotaReserved{DiscountApplied: true, QuotaUsed: reservation.Used, QuotaLimit: reservation.Limit}
	return emit(ctx, s.publisher, evt.CorrelationID, domain.EventDiscountQuotaReserved, out, DiscountQuotaServiceName)
}

// HandleCompensationTriggered 释放预留的名额，然后把预约标记为失败
func (s *DiscountQuotaService) HandleCompensationTriggered(ctx context.Context, evt domain.Event) error {
	ctx, span := startStep(ctx, s.tracer, "DiscountQuotaCompensation", evt)
	defer span.End()

	var payload domain.CompensationTriggered
	if err := evt.Decode(&payload); err != nil {
		return fail(span, err, "decode failed")
	}
	b, err := s.bookings.FindByCorrelationID(ctx, evt.CorrelationID)
	if err != nil {
		return fail(span, err, "load booking failed")
	}

	dateKey := b.QuotaDateKey
	if dateKey == "" && b.DiscountEligible {
		dateKey = s.days.Today()
	}
	if dateKey != "" {
		released, err := s.store.Release(ctx, dateKey, evt.CorrelationID)
		if err != nil {
			return fail(span, err, "release quota failed")
		}
		if released {
			metrics.QuotaReleases.Inc()
			span.AddEvent("Quota released.")
			out := domain.DiscountQuotaReleased{
				Reason: fmt.Sprintf("Compensation for %s: %s", payload.OriginalEvent, payload.Reason),
			}
			if err := emit(ctx, s.publisher, evt.CorrelationID, domain.EventDiscountQuotaReleased, out, DiscountQuotaServiceName); err != nil {
				return fail(span, err, "publish failed")
			}
		}
	}

	return s.failer.FailBooking(ctx, evt.CorrelationID, payload.Reason, true)
}
