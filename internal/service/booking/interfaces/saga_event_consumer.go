package interfaces

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/pkg/mq"
	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/infrastructure"
)

// MessageReader 是 *kafka.Reader 的最小抽象
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventDispatcher 由 eventbus.Router 实现
type EventDispatcher interface {
	Dispatch(ctx context.Context, evt domain.Event) int
}

// DeadLetterSink 由 mq.FailureHandler 实现
type DeadLetterSink interface {
	Handle(ctx context.Context, msg kafka.Message, cause error)
}

// SagaEventConsumer 从 Kafka 拉取事件信封并交给本地路由分发。
// 无法解码的消息进入死信主题，处理器自身的失败由路由记录，offset 都会提交。
type SagaEventConsumer struct {
	name       string
	reader     MessageReader
	dispatcher EventDispatcher
	deadLetter DeadLetterSink
	retryDelay time.Duration

	wg      sync.WaitGroup
	stopped atomic.Bool
}

func NewSagaEventConsumer(name string, reader MessageReader, dispatcher EventDispatcher, deadLetter DeadLetterSink) *SagaEventConsumer {
	return &SagaEventConsumer{
		name:       name,
		reader:     reader,
		dispatcher: dispatcher,
		deadLetter: deadLetter,
		retryDelay: time.Second,
	}
}

// Start 启动后台消费循环，立即返回
func (c *SagaEventConsumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("✅ Saga event consumer started.")
		for !c.stopped.Load() {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || c.stopped.Load() {
					logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("🛑 Saga event consumer shutting down.")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Msg("could not fetch message, retrying")
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.retryDelay):
				}
				continue
			}

			c.process(ctx, msg)

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
			}
		}
	}()
	return nil
}

func (c *SagaEventConsumer) Stop(ctx context.Context) {
	c.stopped.Store(true)
	if err := c.reader.Close(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("consumer", c.name).Msg("close reader failed")
	}
	c.wg.Wait()
	logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("✅ Saga event consumer stopped.")
}

func (c *SagaEventConsumer) process(parent context.Context, msg kafka.Message) {
	carrier := mq.KafkaHeaderCarrier(msg.Headers)
	ctx := otel.GetTextMapPropagator().Extract(parent, &carrier)

	evt, err := infrastructure.DecodeEventMessage(msg)
	if err != nil {
		if c.deadLetter != nil {
			c.deadLetter.Handle(ctx, msg, err)
			return
		}
		logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("undecodable message skipped")
		return
	}

	ctx = logger.WithCorrelationID(ctx, evt.CorrelationID)
	n := c.dispatcher.Dispatch(ctx, evt)
	logger.Ctx(ctx).Debug().
		Str("event_type", string(evt.Type)).
		Int("handlers", n).
		Msg("event dispatched")
}
