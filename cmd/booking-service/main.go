// cmd/booking-service/main.go
package main

import (
	"context"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"medisaga/internal/pkg/bootstrap"
	"medisaga/internal/pkg/database"
	"medisaga/internal/pkg/logger"
	"medisaga/internal/pkg/mq"
	"medisaga/internal/pkg/nacos"
	"medisaga/internal/pkg/redis"
	"medisaga/internal/service/booking"
	"medisaga/internal/service/booking/application/eventbus"
	"medisaga/internal/service/booking/infrastructure"
	"medisaga/internal/service/booking/interfaces"
)

const serviceName = "booking-service"

// main 是组装根。BUS_BACKEND=local 时整个 saga 在本进程内运行；
// kafka 时事件交给 saga-worker，本进程只消费事件用于实时推送。
func main() {
	cfg, err := bootstrap.Init()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Init(serviceName, cfg.App.LogLevel, nil)

	db, err := database.Open(cfg.Infra.Database)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to open database")
	}
	if err := infrastructure.AutoMigrate(db); err != nil {
		zlog.Fatal().Err(err).Msg("failed to migrate database")
	}

	opts := booking.Options{
		Config: cfg,
		DB:     db,
		Tracer: otel.Tracer(serviceName),
	}

	var closers []func() error
	if cfg.App.QuotaBackend == "redis" {
		rc, err := redis.NewClient(cfg.Infra.Redis.Addrs)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to initialize redis client")
		}
		opts.Redis = rc
		closers = append(closers, rc.Close)
	}
	if cfg.App.BusBackend == "kafka" {
		w := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.Topic)
		opts.KafkaWriter = w
		closers = append(closers, w.Close)
	}
	if cfg.Infra.Nacos.Enabled && cfg.App.Payment.GatewayService != "" {
		resolver, err := nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to initialize nacos resolver")
		}
		opts.Resolver = resolver
	}

	comps, err := booking.NewComponents(opts)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to assemble booking service")
	}
	if err := comps.App.SeedCatalog(context.Background()); err != nil {
		zlog.Fatal().Err(err).Msg("failed to seed service catalog")
	}

	hub := interfaces.NewPushHub().WithHistory(comps.SagaEvents)
	workers := []bootstrap.Worker{hub}

	switch cfg.App.BusBackend {
	case "kafka":
		// 每个实例独立的消费组，所有实例都能收到全部事件；只推送新事件
		pushRouter := eventbus.NewRouter(nil)
		booking.SubscribeAll(pushRouter, "push.hub", hub.HandleEvent)
		groupID := cfg.Infra.Kafka.GroupID + "-push-" + uuid.NewString()[:8]
		reader := mq.NewKafkaReaderFrom(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.Topic, groupID, kafka.LastOffset)
		workers = append(workers, interfaces.NewSagaEventConsumer("push", reader, pushRouter, nil))
	default:
		comps.RegisterChoreography()
		booking.SubscribeAll(comps.Router, "push.hub", hub.HandleEvent)
		// 逆序停止：先等后台 saga 跑完，再关闭推送中心
		workers = append(workers, comps.Local)
	}

	handler := interfaces.NewBookingHandler(comps.App, hub, opts.Tracer)

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.HTTPPort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		Workers: workers,
		OnShutdown: func(ctx context.Context) {
			for _, closeFn := range closers {
				if err := closeFn(); err != nil {
					zlog.Warn().Err(err).Msg("close resource failed")
				}
			}
		},
	})
	if err != nil {
		zlog.Fatal().Err(err).Msg("service exited with error")
	}
}
