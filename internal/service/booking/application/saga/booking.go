package saga

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/domain/port"
)

// BookingService 创建预约并负责把预约推进到失败终态
type BookingService struct {
	bookings  domain.BookingRepository
	publisher port.EventPublisher
	tracer    trace.Tracer
}

func NewBookingService(bookings domain.BookingRepository, publisher port.EventPublisher, tracer trace.Tracer) *BookingService {
	return &BookingService{bookings: bookings, publisher: publisher, tracer: tracer}
}

// InitiateBooking 分配 correlation id，以 pending 状态落库后发出 BookingRequested
func (s *BookingService) InitiateBooking(ctx context.Context, p domain.NewBookingParams) (*domain.Booking, error) {
	if p.CorrelationID == "" {
		p.CorrelationID = uuid.NewString()
	}
	ctx = logger.WithCorrelationID(ctx, p.CorrelationID)
	ctx, span := s.tracer.Start(ctx, "saga.InitiateBooking")
	defer span.End()

	b, err := domain.NewBooking(p)
	if err != nil {
		return nil, fail(span, err, "invalid booking")
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, fail(span, err, "create booking failed")
	}
	span.AddEvent("Booking saved with pending status.")

	payload := domain.BookingRequested{
		CustomerName: b.CustomerName,
		Gender:       b.Gender,
		DateOfBirth:  b.DateOfBirth,
		Services:     b.Services,
		UserID:       b.UserID,
	}
	if err := emit(ctx, s.publisher, b.CorrelationID, domain.EventBookingRequested, payload, BookingServiceName); err != nil {
		return nil, fail(span, err, "publish BookingRequested failed")
	}
	logger.Ctx(ctx).Info().Int64("base_price", b.BasePrice).Msg("Booking initiated")
	return b, nil
}

// FailBooking 已失败时为空操作，已确认时拒绝
func (s *BookingService) FailBooking(ctx context.Context, correlationID, reason string, compensationExecuted bool) error {
	b, err := s.bookings.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		return err
	}
	if b.Status == domain.StatusFailed {
		return nil
	}
	if err := b.Fail(reason); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Refusing to fail a terminal booking")
		return err
	}
	if err := s.bookings.Save(ctx, b); err != nil {
		return err
	}
	payload := domain.BookingFailed{Reason: b.ErrorMessage, CompensationExecuted: compensationExecuted}
	return emit(ctx, s.publisher, correlationID, domain.EventBookingFailed, payload, BookingServiceName)
}

// HandleBookingFailed 让其他进程发出的 BookingFailed 也能收敛到 failed 状态
func (s *BookingService) HandleBookingFailed(ctx context.Context, evt domain.Event) error {
	ctx, span := startStep(ctx, s.tracer, "BookingFailed", evt)
	defer span.End()

	var payload domain.BookingFailed
	if err := evt.Decode(&payload); err != nil {
		return fail(span, err, "decode failed")
	}
	b, err := s.bookings.FindByCorrelationID(ctx, evt.CorrelationID)
	if err != nil {
		if errors.Is(err, domain.ErrBookingNotFound) {
			logger.Ctx(ctx).Warn().Msg("BookingFailed for unknown booking ignored")
			return nil
		}
		return fail(span, err, "load booking failed")
	}
	if b.Status.IsTerminal() {
		return nil
	}
	if err := b.Fail(payload.Reason); err != nil {
		return fail(span, err, "fail booking")
	}
	return s.bookings.Save(ctx, b)
}
