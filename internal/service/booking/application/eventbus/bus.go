package eventbus

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/pkg/metrics"
	"medisaga/internal/service/booking/domain"
)

// Bus 先持久化再投递：saga 事件写入 saga 事件日志，所有事件写入审计日志，
// 两者都成功后才交给 Transport。
type Bus struct {
	sagaEvents domain.SagaEventRepository
	auditLogs  domain.AuditLogRepository
	transport  Transport
	tracer     trace.Tracer
}

func NewBus(sagaEvents domain.SagaEventRepository, auditLogs domain.AuditLogRepository, transport Transport, tracer trace.Tracer) *Bus {
	return &Bus{
		sagaEvents: sagaEvents,
		auditLogs:  auditLogs,
		transport:  transport,
		tracer:     tracer,
	}
}

func (b *Bus) Transport() string { return b.transport.Name() }

// Publish 持久化失败时返回错误且不会投递；处理器的失败不会返回给调用方
func (b *Bus) Publish(ctx context.Context, evt domain.Event, service string, actor *domain.Actor) error {
	if !evt.Type.Known() {
		return fmt.Errorf("%w: %s", domain.ErrUnknownEventType, evt.Type)
	}

	ctx, span := b.tracer.Start(ctx, "eventbus.Publish "+string(evt.Type))
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", evt.ID),
		attribute.String("event.type", string(evt.Type)),
		attribute.String("correlation.id", evt.CorrelationID),
		attribute.String("service", service),
	)
	ctx = logger.WithCorrelationID(ctx, evt.CorrelationID)

	if err := b.persist(ctx, evt, service, actor); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist event failed")
		return err
	}
	status := evt.Type.Status()
	metrics.EventsPublished.WithLabelValues(string(evt.Type), string(status)).Inc()
	logger.Ctx(ctx).Info().
		Str("event_type", string(evt.Type)).
		Str("status", string(status)).
		Str("source_service", service).
		Msg("Event published")

	if err := b.transport.Deliver(ctx, evt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deliver event failed")
		return fmt.Errorf("deliver %s via %s: %w", evt.Type, b.transport.Name(), err)
	}
	return nil
}

func (b *Bus) persist(ctx context.Context, evt domain.Event, service string, actor *domain.Actor) error {
	status := evt.Type.Status()
	if evt.Type.IsSaga() {
		record := domain.SagaEventRecord{
			EventID:       evt.ID,
			CorrelationID: evt.CorrelationID,
			EventType:     evt.Type,
			Service:       service,
			Status:        status,
			Data:          evt.Data,
			Timestamp:     evt.Timestamp,
		}
		if err := b.sagaEvents.Append(ctx, record); err != nil {
			return fmt.Errorf("persist saga event: %w", err)
		}
	}

	a := evt.Type.DefaultActor()
	if actor != nil {
		if actor.Type != "" {
			a.Type = actor.Type
		}
		if actor.Source != "" {
			a.Source = actor.Source
		}
		a.ID = actor.ID
	}
	entry := domain.AuditLogEntry{
		EventID:       evt.ID,
		CorrelationID: evt.CorrelationID,
		EventType:     evt.Type,
		Service:       service,
		Status:        status,
		Data:          evt.Data,
		ActorType:     a.Type,
		ActorID:       a.ID,
		ActionSource:  a.Source,
		Timestamp:     evt.Timestamp,
	}
	if err := b.auditLogs.Create(ctx, entry); err != nil {
		return fmt.Errorf("persist audit log: %w", err)
	}
	return nil
}
