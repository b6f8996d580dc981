package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"medisaga/internal/pkg/mq"
	"medisaga/internal/service/booking/domain"
)

// HeaderEventType 消息头中的事件类型，消费端不必解码消息体就能路由
const HeaderEventType = "x-event-type"

// KafkaEventTransport 把事件信封写入 Kafka。key 为 correlation id，同一个预约的事件落在同一分区。
type KafkaEventTransport struct {
	writer mq.MessageWriter
}

func NewKafkaEventTransport(writer mq.MessageWriter) *KafkaEventTransport {
	return &KafkaEventTransport{writer: writer}
}

func (t *KafkaEventTransport) Deliver(ctx context.Context, evt domain.Event) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", evt.ID, err)
	}
	return mq.ProduceMessage(ctx, t.writer, []byte(evt.CorrelationID), value,
		kafka.Header{Key: HeaderEventType, Value: []byte(evt.Type)},
	)
}

func (t *KafkaEventTransport) Name() string { return "kafka" }

// DecodeEventMessage 从 Kafka 消息还原事件信封
func DecodeEventMessage(msg kafka.Message) (domain.Event, error) {
	var evt domain.Event
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return domain.Event{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if evt.ID == "" || evt.CorrelationID == "" {
		return domain.Event{}, fmt.Errorf("event envelope is missing id or correlation id")
	}
	if !evt.Type.Known() {
		return domain.Event{}, fmt.Errorf("%w: %s", domain.ErrUnknownEventType, evt.Type)
	}
	return evt, nil
}
