package application

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/service/booking/application/saga"
	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/domain/port"
)

const (
	statsHistoryDays    = 7
	maxUserBookingLimit = 200
)

// HealthChecker 检查存储是否可用
type HealthChecker func(ctx context.Context) error

// BookingApplicationService 面向 HTTP 接口的用例，saga 本身由事件驱动
type BookingApplicationService struct {
	catalog    domain.ServiceCatalogRepository
	bookings   domain.BookingRepository
	sagaEvents domain.SagaEventRepository
	auditLogs  domain.AuditLogRepository
	quota      port.DiscountQuotaStore
	discount   port.DiscountConfig
	days       port.DayKeyProvider

	bookingSaga *saga.BookingService
	adminSaga   *saga.AdminService

	dbHealth HealthChecker
	busName  string
	tracer   trace.Tracer
}

// Deps 构造 BookingApplicationService 所需的依赖
type Deps struct {
	Catalog     domain.ServiceCatalogRepository
	Bookings    domain.BookingRepository
	SagaEvents  domain.SagaEventRepository
	AuditLogs   domain.AuditLogRepository
	Quota       port.DiscountQuotaStore
	Discount    port.DiscountConfig
	Days        port.DayKeyProvider
	BookingSaga *saga.BookingService
	AdminSaga   *saga.AdminService
	DBHealth    HealthChecker
	BusName     string
	Tracer      trace.Tracer
}

func NewBookingApplicationService(d Deps) *BookingApplicationService {
	return &BookingApplicationService{
		catalog:     d.Catalog,
		bookings:    d.Bookings,
		sagaEvents:  d.SagaEvents,
		auditLogs:   d.AuditLogs,
		quota:       d.Quota,
		discount:    d.Discount,
		days:        d.Days,
		bookingSaga: d.BookingSaga,
		adminSaga:   d.AdminSaga,
		dbHealth:    d.DBHealth,
		busName:     d.BusName,
		tracer:      d.Tracer,
	}
}

// InitiateBooking 按目录解析服务价格，然后启动 saga
func (s *BookingApplicationService) InitiateBooking(ctx context.Context, req *CreateBookingRequest) (*CreateBookingResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.InitiateBooking")
	defer span.End()

	ids := uniqueIDs(req.ServiceIDs)
	services, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.MedicalService, len(services))
	for _, svc := range services {
		byID[svc.ID] = svc
	}
	items := make([]domain.ServiceItem, 0, len(ids))
	var missing []string
	for _, id := range ids {
		svc, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		items = append(items, svc.Item())
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: invalid service IDs: %s", domain.ErrServiceNotFound, strings.Join(missing, ", "))
	}

	b, err := s.bookingSaga.InitiateBooking(ctx, domain.NewBookingParams{
		UserID:       req.UserID,
		CustomerName: strings.TrimSpace(req.CustomerName),
		Gender:       domain.Gender(req.Gender),
		DateOfBirth:  req.DateOfBirth,
		Services:     items,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("correlation.id", b.CorrelationID))

	return &CreateBookingResponse{
		Success:       true,
		CorrelationID: b.CorrelationID,
		Message:       "Booking request submitted. Use the correlationId to track status.",
	}, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *BookingApplicationService) GetBookingStatus(ctx context.Context, correlationID string) (*BookingStatusResponse, error) {
	b, err := s.bookings.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	events, err := s.sagaEvents.ListByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	return &BookingStatusResponse{
		Booking:    ToBookingView(b),
		Events:     events,
		IsComplete: b.IsComplete(),
	}, nil
}

func (s *BookingApplicationService) UserBookings(ctx context.Context, userID string, limit int) ([]BookingView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidArgument)
	}
	if limit > maxUserBookingLimit {
		limit = maxUserBookingLimit
	}
	bookings, err := s.bookings.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]BookingView, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, ToBookingView(b))
	}
	return out, nil
}

func (s *BookingApplicationService) ListServices(ctx context.Context, gender string) ([]domain.MedicalService, error) {
	g := domain.ServiceGender(strings.ToLower(strings.TrimSpace(gender)))
	switch g {
	case "", domain.ServiceForMale, domain.ServiceForFemale, domain.ServiceForAll:
	default:
		return nil, fmt.Errorf("%w: unknown gender %q", domain.ErrInvalidArgument, gender)
	}
	return s.catalog.ListActive(ctx, g)
}

// SeedCatalog 目录为空时写入默认服务
func (s *BookingApplicationService) SeedCatalog(ctx context.Context) error {
	n, err := s.catalog.SeedIfEmpty(ctx, domain.DefaultMedicalServices())
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Ctx(ctx).Info().Int("count", n).Msg("✅ Medical service catalog seeded")
	}
	return nil
}

func (s *BookingApplicationService) QuotaStatus(ctx context.Context) (QuotaStatusResponse, error) {
	snap, err := s.quota.Status(ctx, s.days.Today())
	if err != nil {
		return QuotaStatusResponse{}, err
	}
	return ToQuotaStatus(snap), nil
}

// QuotaHistory 最近 days 天中存在记录的日期，按日期倒序
func (s *BookingApplicationService) QuotaHistory(ctx context.Context, days int) ([]QuotaStatusResponse, error) {
	snaps, err := s.quota.History(ctx, s.days.LastDays(days))
	if err != nil {
		return nil, err
	}
	out := make([]QuotaStatusResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, ToQuotaStatus(snap))
	}
	return out, nil
}

func (s *BookingApplicationService) DiscountConfig(ctx context.Context) (DiscountConfigResponse, error) {
	pct, err := s.discount.DiscountPercentage(ctx)
	if err != nil {
		return DiscountConfigResponse{}, err
	}
	return DiscountConfigResponse{DiscountPercentage: pct}, nil
}

// UpdateDiscountConfig 修改折扣百分比并记录管理操作
func (s *BookingApplicationService) UpdateDiscountConfig(ctx context.Context, adminID string, pct float64) (DiscountConfigResponse, error) {
	previous, err := s.discount.DiscountPercentage(ctx)
	if err != nil {
		return DiscountConfigResponse{}, err
	}
	if err := s.discount.SetDiscountPercentage(ctx, pct); err != nil {
		return DiscountConfigResponse{}, err
	}
	details := map[string]any{"previous": previous, "new": pct}
	if err := s.adminSaga.LogAdminAction(ctx, adminID, "update_discount_percentage", "discount_config", details); err != nil {
		// 配置已经生效，审计失败只记录
		logger.Ctx(ctx).Error().Err(err).Msg("🚨 Failed to log admin action")
	}
	return DiscountConfigResponse{DiscountPercentage: pct}, nil
}

func (s *BookingApplicationService) UpdateQuota(ctx context.Context, adminID string, req *UpdateQuotaRequest) (*UpdateQuotaResponse, error) {
	if req.NewLimit == nil {
		return nil, fmt.Errorf("%w: newLimit is required", domain.ErrInvalidArgument)
	}
	previous, err := s.adminSaga.UpdateQuota(ctx, adminID, *req.NewLimit, req.Reason, domain.SourceAdminPanel)
	if err != nil {
		return nil, err
	}
	return &UpdateQuotaResponse{
		Success:       true,
		PreviousLimit: previous,
		NewLimit:      *req.NewLimit,
		Message:       fmt.Sprintf("Quota update event emitted. Previous: %d, New: %d", previous, *req.NewLimit),
	}, nil
}

// RecordAdminAuthentication 只落审计日志，不做鉴权
func (s *BookingApplicationService) RecordAdminAuthentication(ctx context.Context, req *AdminAuthEventRequest) error {
	return s.adminSaga.RecordAuthentication(ctx, req.AdminID, req.Email, req.Action)
}

func (s *BookingApplicationService) AuditLogs(ctx context.Context, q AuditLogQuery) ([]domain.AuditLogEntry, error) {
	return s.auditLogs.Query(ctx, domain.AuditLogFilter{
		ActorType:    domain.ActorType(q.ActorType),
		ActionSource: domain.ActionSource(q.ActionSource),
		From:         q.From,
		Limit:        q.Limit,
	})
}

// Stats 各项统计互不依赖，并发查询
func (s *BookingApplicationService) Stats(ctx context.Context) (*StatsResponse, error) {
	var out StatsResponse
	var byStatus map[domain.Status]int64
	var history []QuotaStatusResponse
	var quota QuotaStatusResponse
	dayStart := s.days.StartOfToday()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		quota, err = s.QuotaStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		byStatus, err = s.bookings.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.TodayBookings, err = s.bookings.CountCreatedSince(gctx, dayStart)
		return err
	})
	g.Go(func() (err error) {
		out.TodayDiscounts, err = s.bookings.CountDiscountedConfirmedSince(gctx, dayStart)
		return err
	})
	g.Go(func() (err error) {
		history, err = s.QuotaHistory(gctx, statsHistoryDays)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.Quota = quota
	out.QuotaHistory = history
	out.ByStatus = make(map[string]int64, len(byStatus))
	for st, n := range byStatus {
		out.ByStatus[string(st)] = n
	}
	return &out, nil
}

func (s *BookingApplicationService) Health(ctx context.Context) HealthResponse {
	resp := HealthResponse{Status: "healthy", Database: "connected", Bus: s.busName}
	if s.dbHealth != nil {
		if err := s.dbHealth(ctx); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("Database health check failed")
			resp.Status = "unhealthy"
			resp.Database = "disconnected"
		}
	}
	return resp
}
