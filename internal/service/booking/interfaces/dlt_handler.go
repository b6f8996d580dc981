package interfaces

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/segmentio/kafka-go"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/pkg/mq"
)

// DltConsumer 监听死信主题，只做结构化记录
type DltConsumer struct {
	reader  MessageReader
	topic   string
	wg      sync.WaitGroup
	stopped atomic.Bool
}

func NewDltConsumer(reader MessageReader, topic string) *DltConsumer {
	return &DltConsumer{reader: reader, topic: topic}
}

func (a *DltConsumer) Start(ctx context.Context) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("✅ DLT consumer started.")
		for !a.stopped.Load() {
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || a.stopped.Load() {
					logger.Ctx(ctx).Info().Msg("🛑 DLT consumer shutting down.")
					return
				}
				continue
			}

			logDeadLetter(ctx, msg)

			// 死信记录完即视为处理完成
			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("failed to commit dead letter")
			}
		}
	}()
	return nil
}

func (a *DltConsumer) Stop(ctx context.Context) {
	a.stopped.Store(true)
	_ = a.reader.Close()
	a.wg.Wait()
	logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("✅ DLT consumer stopped.")
}

func logDeadLetter(ctx context.Context, msg kafka.Message) {
	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", mq.HeaderValue(msg.Headers, mq.HeaderOriginalTopic)).
		Str("original_partition", mq.HeaderValue(msg.Headers, mq.HeaderOriginalPartition)).
		Str("original_offset", mq.HeaderValue(msg.Headers, mq.HeaderOriginalOffset)).
		Str("exception_fqcn", mq.HeaderValue(msg.Headers, mq.HeaderExceptionFqcn)).
		Str("exception_message", mq.HeaderValue(msg.Headers, mq.HeaderExceptionMessage)).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("🚨 CRITICAL: Dead letter message received")
}
