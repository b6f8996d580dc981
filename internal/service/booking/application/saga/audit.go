package saga

import (
	"context"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/pkg/metrics"
	"medisaga/internal/service/booking/domain"
)

// AuditTrail 订阅所有 saga 事件。持久化已经由总线完成，这里只负责日志和终态计数。
type AuditTrail struct{}

func NewAuditTrail() *AuditTrail { return &AuditTrail{} }

func (a *AuditTrail) HandleAnyEvent(ctx context.Context, evt domain.Event) error {
	l := logger.Ctx(ctx)
	switch evt.Type {
	case domain.EventCompensationTriggered, domain.EventDiscountQuotaReleased,
		domain.EventPaymentReversed, domain.EventBookingFailed:
		l.Warn().Str("event_type", string(evt.Type)).Msgf("[COMPENSATION] %s for correlation %s", evt.Type, evt.CorrelationID)
	default:
		l.Debug().Str("event_type", string(evt.Type)).Msg("Saga event observed")
	}

	switch evt.Type {
	case domain.EventBookingConfirmed:
		metrics.BookingsTerminal.WithLabelValues(string(domain.StatusConfirmed)).Inc()
	case domain.EventBookingFailed:
		metrics.BookingsTerminal.WithLabelValues(string(domain.StatusFailed)).Inc()
	}
	return nil
}
