package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medisaga/internal/service/booking/domain"
)

// chanReader 把 channel 包装成 MessageReader
type chanReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
	closed    chan struct{}
	once      sync.Once
}

func newChanReader() *chanReader {
	return &chanReader{msgs: make(chan kafka.Message, 16), closed: make(chan struct{})}
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-r.closed:
		return kafka.Message{}, errors.New("reader closed")
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *chanReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

func (r *chanReader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, evt domain.Event) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
	return 1
}

func (d *recordingDispatcher) Events() []domain.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Event(nil), d.events...)
}

type recordingSink struct {
	mu     sync.Mutex
	causes []error
}

func (s *recordingSink) Handle(_ context.Context, _ kafka.Message, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.causes = append(s.causes, cause)
}

func (s *recordingSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.causes)
}

func TestSagaEventConsumerDispatchesAndCommits(t *testing.T) {
	reader := newChanReader()
	dispatcher := &recordingDispatcher{}
	sink := &recordingSink{}
	consumer := NewSagaEventConsumer("test", reader, dispatcher, sink)

	evt, err := domain.NewEvent("cid-1", domain.EventPricingCalculated, domain.PricingCalculated{BasePrice: 500})
	require.NoError(t, err)
	value, err := json.Marshal(evt)
	require.NoError(t, err)

	reader.msgs <- kafka.Message{Offset: 1, Key: []byte("cid-1"), Value: value}
	reader.msgs <- kafka.Message{Offset: 2, Value: []byte("not json")}
	reader.msgs <- kafka.Message{Offset: 3, Value: []byte(`{"id":"e","correlationId":"c","eventType":"Mystery"}`)}

	require.NoError(t, consumer.Start(context.Background()))
	require.Eventually(t, func() bool { return len(reader.Committed()) == 3 }, 2*time.Second, 5*time.Millisecond)
	consumer.Stop(context.Background())

	got := dispatcher.Events()
	require.Len(t, got, 1)
	assert.Equal(t, evt.ID, got[0].ID)
	assert.Equal(t, domain.EventPricingCalculated, got[0].Type)
	assert.Equal(t, 2, sink.Count())
	assert.Equal(t, []int64{1, 2, 3}, reader.Committed())
}

func TestSagaEventConsumerStopsOnContextCancel(t *testing.T) {
	reader := newChanReader()
	consumer := NewSagaEventConsumer("test", reader, &recordingDispatcher{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, consumer.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		consumer.Stop(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
