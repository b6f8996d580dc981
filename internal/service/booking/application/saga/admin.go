package saga

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/domain/port"
)

// AdminService 管理操作也走事件总线，落审计日志后再由订阅方修改状态
type AdminService struct {
	store     port.DiscountQuotaStore
	days      port.DayKeyProvider
	publisher port.EventPublisher
	tracer    trace.Tracer
}

func NewAdminService(store port.DiscountQuotaStore, days port.DayKeyProvider, publisher port.EventPublisher, tracer trace.Tracer) *AdminService {
	return &AdminService{store: store, days: days, publisher: publisher, tracer: tracer}
}

func adminActor(adminID string, source domain.ActionSource) *domain.Actor {
	if source == "" {
		source = domain.SourceAdminPanel
	}
	return &domain.Actor{Type: domain.ActorAdmin, ID: adminID, Source: source}
}

// UpdateQuota 发出 DiscountQuotaUpdated，真正的修改在 HandleDiscountQuotaUpdated 中完成。
// 返回修改前的上限。
func (s *AdminService) UpdateQuota(ctx context.Context, adminID string, newLimit int64, reason string, source domain.ActionSource) (int64, error) {
	if newLimit < 0 {
		return 0, fmt.Errorf("%w: quota limit must not be negative", domain.ErrInvalidArgument)
	}
	current, err := s.store.Status(ctx, s.days.Today())
	if err != nil {
		return 0, err
	}
	// 已发出的名额不回收，上限不能低于当天已用数量。订阅方写入时还会再做一次原子校验。
	if newLimit < current.Used {
		return 0, fmt.Errorf("%w: new limit %d is below today's usage %d", domain.ErrInvalidArgument, newLimit, current.Used)
	}
	evt, err := domain.NewEvent(uuid.NewString(), domain.EventDiscountQuotaUpdated, domain.DiscountQuotaUpdated{
		AdminID:       adminID,
		PreviousLimit: current.Limit,
		NewLimit:      newLimit,
		Reason:        reason,
	})
	if err != nil {
		return 0, err
	}
	if err := s.publisher.Publish(ctx, evt, AdminServiceName, adminActor(adminID, source)); err != nil {
		return 0, err
	}
	return current.Limit, nil
}

// HandleDiscountQuotaUpdated 更新（或创建）当天的上限
func (s *AdminService) HandleDiscountQuotaUpdated(ctx context.Context, evt domain.Event) error {
	ctx, span := startStep(ctx, s.tracer, "AdminQuotaUpdate", evt)
	defer span.End()

	var payload domain.DiscountQuotaUpdated
	if err := evt.Decode(&payload); err != nil {
		return fail(span, err, "decode failed")
	}
	dateKey := s.days.Today()
	if err := s.store.SetLimit(ctx, dateKey, payload.NewLimit); err != nil {
		return fail(span, err, "set quota limit failed")
	}
	logger.Ctx(ctx).Info().
		Str("date", dateKey).
		Int64("previous_limit", payload.PreviousLimit).
		Int64("new_limit", payload.NewLimit).
		Str("admin_id", payload.AdminID).
		Msg("Discount quota updated")
	return nil
}

// LogAdminAction 只写审计日志，没有订阅方
func (s *AdminService) LogAdminAction(ctx context.Context, adminID, action, resource string, details map[string]any) error {
	evt, err := domain.NewEvent(uuid.NewString(), domain.EventAdminActionLogged, domain.AdminActionLogged{
		AdminID:  adminID,
		Action:   action,
		Resource: resource,
		Details:  details,
	})
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, evt, AdminServiceName, adminActor(adminID, domain.SourceAdminPanel))
}

// RecordAuthentication 记录管理员登录登出。认证本身由外部系统完成。
func (s *AdminService) RecordAuthentication(ctx context.Context, adminID, email, action string) error {
	evt, err := domain.NewEvent(uuid.NewString(), domain.EventAdminAuthenticated, domain.AdminAuthenticated{
		AdminID: adminID,
		Email:   email,
		Action:  action,
	})
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, evt, AdminServiceName, adminActor(adminID, domain.SourceAdminPanel))
}
