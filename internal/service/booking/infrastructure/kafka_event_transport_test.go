package infrastructure

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medisaga/internal/pkg/mq"
	"medisaga/internal/service/booking/domain"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaEventTransportDeliver(t *testing.T) {
	w := &captureWriter{}
	tr := NewKafkaEventTransport(w)
	assert.Equal(t, "kafka", tr.Name())

	evt, err := domain.NewEvent("cid-9", domain.EventPricingCalculated, domain.PricingCalculated{BasePrice: 1200, DiscountEligible: true})
	require.NoError(t, err)
	require.NoError(t, tr.Deliver(context.Background(), evt))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "cid-9", string(msg.Key), "keyed by correlation id for per-booking ordering")
	assert.Equal(t, string(domain.EventPricingCalculated), mq.HeaderValue(msg.Headers, HeaderEventType))

	decoded, err := DecodeEventMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, evt.ID, decoded.ID)
	assert.Equal(t, evt.Type, decoded.Type)

	var p domain.PricingCalculated
	require.NoError(t, decoded.Decode(&p))
	assert.Equal(t, int64(1200), p.BasePrice)
}

func TestDecodeEventMessageRejectsBadEnvelopes(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not json", `not-json`},
		{"missing id", `{"correlationId":"c","eventType":"BookingRequested"}`},
		{"missing correlation id", `{"id":"e","eventType":"BookingRequested"}`},
		{"unknown type", `{"id":"e","correlationId":"c","eventType":"OrderShipped"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEventMessage(kafka.Message{Value: []byte(tt.value)})
			assert.Error(t, err)
		})
	}

	_, err := DecodeEventMessage(kafka.Message{Value: []byte(`{"id":"e","correlationId":"c","eventType":"OrderShipped"}`)})
	assert.ErrorIs(t, err, domain.ErrUnknownEventType)
}
