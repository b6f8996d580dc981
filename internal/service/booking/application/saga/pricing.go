package saga

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/domain/port"
)

// PricingService 计算基础价格与折扣资格
type PricingService struct {
	bookings  domain.BookingRepository
	rules     port.EligibilityRules
	config    port.DiscountConfig
	days      port.DayKeyProvider
	publisher port.EventPublisher
	tracer    trace.Tracer
}

func NewPricingService(bookings domain.BookingRepository, rules port.EligibilityRules, config port.DiscountConfig, days port.DayKeyProvider, publisher port.EventPublisher, tracer trace.Tracer) *PricingService {
	return &PricingService{bookings: bookings, rules: rules, config: config, days: days, publisher: publisher, tracer: tracer}
}

func (s *PricingService) HandleBookingRequested(ctx context.Context, evt domain.Event) error {
	ctx, span := startStep(ctx, s.tracer, "Pricing", evt)
	defer span.End()

	b, err := s.bookings.FindByCorrelationID(ctx, evt.CorrelationID)
	if err != nil {
		return fail(span, err, "load booking failed")
	}
	if b.Status != domain.StatusPending {
		span.AddEvent("Booking already priced, skipping.")
		return nil
	}

	dob, err := domain.ParseDateOfBirth(b.DateOfBirth)
	if err != nil {
		return fail(span, err, "invalid date of birth")
	}
	base := domain.SumPrices(b.Services)
	eligibility, err := s.rules.Evaluate(ctx, port.EligibilityFact{
		Gender:      b.Gender,
		DateOfBirth: dob,
		Today:       s.days.Now(),
		BasePrice:   base,
	})
	if err != nil {
		return fail(span, err, "evaluate eligibility failed")
	}

	var pct float64
	var amount int64
	if eligibility.Eligible {
		pct, err = s.config.DiscountPercentage(ctx)
		if err != nil {
			return fail(span, err, "load discount percentage failed")
		}
		amount = domain.CalculateDiscount(base, pct)
	}

	if err := b.ApplyPricing(base, eligibility.Eligible); err != nil {
		return fail(span, err, "apply pricing failed")
	}
	if err := s.bookings.Save(ctx, b); err != nil {
		return fail(span, err, "save booking failed")
	}
	span.AddEvent("Pricing calculated.")

	logger.Ctx(ctx).Info().
		Int64("base_price", base).
		Bool("eligible", eligibility.Eligible).
		Str("rule", eligibility.Rule).
		Msg("Pricing calculated")

	payload := domain.PricingCalculated{
		BasePrice:          base,
		DiscountEligible:   eligibility.Eligible,
		DiscountPercentage: pct,
		DiscountAmount:     amount,
		FinalPrice:         base - amount,
		Reason:             eligibility.Reason,
	}
	return emit(ctx, s.publisher, evt.CorrelationID, domain.EventPricingCalculated, payload, PricingServiceName)
}
