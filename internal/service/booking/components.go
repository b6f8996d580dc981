package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"medisaga/internal/pkg/bootstrap"
	"medisaga/internal/pkg/httpclient"
	"medisaga/internal/pkg/mq"
	"medisaga/internal/pkg/redis"
	"medisaga/internal/service/booking/application"
	"medisaga/internal/service/booking/application/eventbus"
	"medisaga/internal/service/booking/application/saga"
	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/domain/port"
	"medisaga/internal/service/booking/infrastructure"
	"medisaga/internal/service/booking/infrastructure/adapter"
)

// Options 组合根需要的外部资源。Redis 与 KafkaWriter 只在对应后端启用时需要。
type Options struct {
	Config      *bootstrap.Config
	DB          *gorm.DB
	Tracer      trace.Tracer
	Redis       *redis.Client
	KafkaWriter mq.MessageWriter
	// 支付网关按服务名发现时使用
	Resolver httpclient.Resolver
	// Now 为 nil 时使用 time.Now，测试中注入固定时钟
	Now func() time.Time
}

// Components 是装配好的预约服务
type Components struct {
	Router *eventbus.Router
	Bus    *eventbus.Bus
	Steps  saga.Steps
	App    *application.BookingApplicationService
	// Local 只在本地总线下非空，关停时需要等待后台链路结束
	Local *eventbus.LocalTransport
	// SagaEvents 推送中心用它给新连接补发历史事件
	SagaEvents domain.SagaEventRepository
}

// NewComponents 按配置选择传输、名额存储与支付网关，并装配各个 saga 步骤。
// 处理器不会自动注册，调用方决定本进程是否运行编排。
func NewComponents(opts Options) (*Components, error) {
	cfg := opts.Config
	db := opts.DB

	router := eventbus.NewRouter(infrastructure.NewGormInbox(db))

	var transport eventbus.Transport
	var local *eventbus.LocalTransport
	switch cfg.App.BusBackend {
	case "kafka":
		if opts.KafkaWriter == nil {
			return nil, fmt.Errorf("kafka bus backend requires a kafka writer")
		}
		transport = infrastructure.NewKafkaEventTransport(opts.KafkaWriter)
	default:
		local = eventbus.NewLocalTransport(router, cfg.App.AsyncDispatch)
		transport = local
	}

	bookings := infrastructure.NewGormBookingRepository(db)
	sagaEvents := infrastructure.NewGormSagaEventRepository(db)
	auditLogs := infrastructure.NewGormAuditLogRepository(db)
	bus := eventbus.NewBus(sagaEvents, auditLogs, transport, opts.Tracer)

	store, err := newQuotaStore(opts)
	if err != nil {
		return nil, err
	}

	rules, err := adapter.NewEligibilityCELAdapter(toEligibilityRules(cfg.App.EligibilityRules), cfg.App.OrderValueThreshold)
	if err != nil {
		return nil, fmt.Errorf("compile eligibility rules: %w", err)
	}

	days := adapter.NewFixedZoneDayKeyProvider(cfg.App.QuotaOffsetMinutes, opts.Now)
	discount := adapter.NewDiscountConfigAdapter(infrastructure.NewGormConfigRepository(db), cfg.App.DiscountPercentage)

	bookingSaga := saga.NewBookingService(bookings, bus, opts.Tracer)
	adminSaga := saga.NewAdminService(store, days, bus, opts.Tracer)
	steps := saga.Steps{
		Booking:      bookingSaga,
		Pricing:      saga.NewPricingService(bookings, rules, discount, days, bus, opts.Tracer),
		Quota:        saga.NewDiscountQuotaService(bookings, store, days, bookingSaga, bus, opts.Tracer),
		Payment:      saga.NewPaymentService(bookings, infrastructure.NewGormPaymentTransactionRepository(db), newPaymentGateway(opts), bookingSaga, bus, opts.Tracer),
		Confirmation: saga.NewConfirmationService(bookings, store, adapter.NewReferenceGenerator(nil), bus, opts.Tracer),
		Admin:        adminSaga,
		Audit:        saga.NewAuditTrail(),
	}

	app := application.NewBookingApplicationService(application.Deps{
		Catalog:     infrastructure.NewGormServiceCatalogRepository(db),
		Bookings:    bookings,
		SagaEvents:  sagaEvents,
		AuditLogs:   auditLogs,
		Quota:       store,
		Discount:    discount,
		Days:        days,
		BookingSaga: bookingSaga,
		AdminSaga:   adminSaga,
		DBHealth:    pingDB(db),
		BusName:     bus.Transport(),
		Tracer:      opts.Tracer,
	})

	return &Components{Router: router, Bus: bus, Steps: steps, App: app, Local: local, SagaEvents: sagaEvents}, nil
}

// RegisterChoreography 让本进程的路由运行 saga 处理器
func (c *Components) RegisterChoreography() {
	saga.RegisterChoreography(c.Router, c.Steps)
}

// SubscribeAll 把一个处理器订阅到所有 saga 事件上，推送中心用它转发状态
func SubscribeAll(r *eventbus.Router, name string, h eventbus.Handler) {
	for _, t := range domain.SagaEventTypes() {
		r.Subscribe(t, name, h)
	}
}

func newQuotaStore(opts Options) (port.DiscountQuotaStore, error) {
	limit := opts.Config.App.DailyDiscountQuota
	switch opts.Config.App.QuotaBackend {
	case "redis":
		if opts.Redis == nil {
			return nil, fmt.Errorf("redis quota backend requires a redis client")
		}
		return adapter.NewQuotaRedisAdapter(opts.Redis, limit)
	default:
		return adapter.NewQuotaGormAdapter(opts.DB, limit), nil
	}
}

func newPaymentGateway(opts Options) port.PaymentGateway {
	p := opts.Config.App.Payment
	if p.GatewayURL == "" && p.GatewayService == "" {
		return adapter.NewPaymentSimulatorAdapter(adapter.ParseSimulationMode(p.SimulationMode), p.Latency)
	}
	client := httpclient.NewClient(opts.Tracer)
	if opts.Resolver != nil {
		client.WithResolver(opts.Resolver)
	}
	return adapter.NewPaymentHTTPAdapter(client, p.GatewayURL, p.GatewayService)
}

func toEligibilityRules(in []bootstrap.RuleConfig) []adapter.EligibilityRule {
	out := make([]adapter.EligibilityRule, 0, len(in))
	for _, r := range in {
		if strings.TrimSpace(r.Condition) == "" {
			continue
		}
		out = append(out, adapter.EligibilityRule{Name: r.Name, Condition: r.Condition, Reason: r.Reason})
	}
	return out
}

func pingDB(db *gorm.DB) application.HealthChecker {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
