// cmd/saga-worker/main.go
package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"medisaga/internal/pkg/bootstrap"
	"medisaga/internal/pkg/database"
	"medisaga/internal/pkg/logger"
	"medisaga/internal/pkg/mq"
	"medisaga/internal/pkg/nacos"
	"medisaga/internal/pkg/redis"
	"medisaga/internal/service/booking"
	"medisaga/internal/service/booking/infrastructure"
	"medisaga/internal/service/booking/interfaces"
)

const serviceName = "saga-worker"

// saga-worker 消费 saga 主题并运行整个编排，发布的后续事件写回同一主题。
// 无法解码的消息进入死信主题，由同进程的 DLT 消费者记录。
func main() {
	cfg, err := bootstrap.Init()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Init(serviceName, cfg.App.LogLevel, nil)
	cfg.App.BusBackend = "kafka"

	db, err := database.Open(cfg.Infra.Database)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to open database")
	}
	if err := infrastructure.AutoMigrate(db); err != nil {
		zlog.Fatal().Err(err).Msg("failed to migrate database")
	}

	brokers := cfg.Infra.Kafka.Brokers
	sagaWriter := mq.NewKafkaWriter(brokers, cfg.Infra.Kafka.Topic)
	dltWriter := mq.NewKafkaWriter(brokers, cfg.Infra.Kafka.DLTTopic)
	closers := []func() error{sagaWriter.Close, dltWriter.Close}

	opts := booking.Options{
		Config:      cfg,
		DB:          db,
		Tracer:      otel.Tracer(serviceName),
		KafkaWriter: sagaWriter,
	}
	if cfg.App.QuotaBackend == "redis" {
		rc, err := redis.NewClient(cfg.Infra.Redis.Addrs)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to initialize redis client")
		}
		opts.Redis = rc
		closers = append(closers, rc.Close)
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
		zlog.Fatal().Err(err).Msg("failed to assemble saga worker")
	}
	comps.RegisterChoreography()

	sagaConsumer := interfaces.NewSagaEventConsumer(
		"saga",
		mq.NewKafkaReader(brokers, cfg.Infra.Kafka.Topic, cfg.Infra.Kafka.GroupID),
		comps.Router,
		mq.NewFailureHandler(dltWriter),
	)
	dltConsumer := interfaces.NewDltConsumer(
		mq.NewKafkaReader(brokers, cfg.Infra.Kafka.DLTTopic, cfg.Infra.Kafka.GroupID+"-dlt"),
		cfg.Infra.Kafka.DLTTopic,
	)

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.HTTPPort + 1,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("GET /metrics", promhttp.Handler())
		},
		Workers: []bootstrap.Worker{dltConsumer, sagaConsumer},
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
