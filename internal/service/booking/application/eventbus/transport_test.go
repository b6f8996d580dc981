package eventbus_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medisaga/internal/service/booking/application/eventbus"
	"medisaga/internal/service/booking/domain"
)

type traceKey struct{}

func TestLocalTransportDetachesFromCallerCancellation(t *testing.T) {
	router := eventbus.NewRouter(nil)
	transport := eventbus.NewLocalTransport(router, false)

	var (
		rootErr   error
		nestedErr error
		traceVal  any
		order     []domain.EventType
	)
	router.Subscribe(domain.EventPaymentCompleted, "confirm", func(ctx context.Context, evt domain.Event) error {
		rootErr = ctx.Err()
		traceVal = ctx.Value(traceKey{})
		order = append(order, evt.Type)
		next := mustEvent(t, evt.CorrelationID, domain.EventBookingConfirmed, domain.BookingConfirmed{})
		return transport.Deliver(ctx, next)
	})
	router.Subscribe(domain.EventBookingConfirmed, "audit", func(ctx context.Context, evt domain.Event) error {
		nestedErr = ctx.Err()
		order = append(order, evt.Type)
		return nil
	})

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), traceKey{}, "span-1"))
	cancel()

	require.NoError(t, transport.Deliver(ctx, mustEvent(t, "c-1", domain.EventPaymentCompleted, domain.PaymentCompleted{})))
	assert.NoError(t, rootErr)
	assert.NoError(t, nestedErr)
	assert.Equal(t, "span-1", traceVal)
	assert.Equal(t, []domain.EventType{domain.EventPaymentCompleted, domain.EventBookingConfirmed}, order)
}

func TestLocalTransportAsyncReturnsBeforeHandlersFinish(t *testing.T) {
	router := eventbus.NewRouter(nil)
	transport := eventbus.NewLocalTransport(router, true)

	release := make(chan struct{})
	var mu sync.Mutex
	var order []domain.EventType
	record := func(typ domain.EventType) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, typ)
	}
	router.Subscribe(domain.EventBookingRequested, "pricing", func(ctx context.Context, evt domain.Event) error {
		<-release
		record(evt.Type)
		return transport.Deliver(ctx, mustEvent(t, evt.CorrelationID, domain.EventPricingCalculated, domain.PricingCalculated{}))
	})
	router.Subscribe(domain.EventPricingCalculated, "quota", func(_ context.Context, evt domain.Event) error {
		record(evt.Type)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, transport.Deliver(ctx, mustEvent(t, "c-2", domain.EventBookingRequested, domain.BookingRequested{})))
	cancel()

	mu.Lock()
	assert.Empty(t, order, "handlers run after Deliver returns")
	mu.Unlock()

	close(release)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	transport.Stop(stopCtx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.EventType{domain.EventBookingRequested, domain.EventPricingCalculated}, order)
}

func TestLocalTransportDispatchesSynchronouslyAfterStop(t *testing.T) {
	router := eventbus.NewRouter(nil)
	transport := eventbus.NewLocalTransport(router, true)
	transport.Stop(context.Background())

	var calls atomic.Int32
	router.Subscribe(domain.EventPaymentReversed, "count", func(context.Context, domain.Event) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, transport.Deliver(context.Background(), mustEvent(t, "c-3", domain.EventPaymentReversed, domain.PaymentReversed{})))
	assert.Equal(t, int32(1), calls.Load())
}

func TestLocalTransportStopHonoursDeadline(t *testing.T) {
	router := eventbus.NewRouter(nil)
	transport := eventbus.NewLocalTransport(router, true)

	release := make(chan struct{})
	defer close(release)
	router.Subscribe(domain.EventPaymentFailed, "stuck", func(context.Context, domain.Event) error {
		<-release
		return nil
	})
	require.NoError(t, transport.Deliver(context.Background(), mustEvent(t, "c-4", domain.EventPaymentFailed, domain.PaymentFailed{})))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	transport.Stop(ctx)
	assert.Less(t, time.Since(start), time.Second)
}
