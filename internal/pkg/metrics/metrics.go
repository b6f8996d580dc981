// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medisaga",
		Name:      "events_published_total",
		Help:      "Events persisted and handed to the transport, by type and audit status.",
	}, []string{"event_type", "status"})

	HandlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medisaga",
		Name:      "handler_failures_total",
		Help:      "Event handler invocations that returned an error or panicked.",
	}, []string{"event_type", "handler"})

	QuotaReservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medisaga",
		Name:      "discount_quota_reservations_total",
		Help:      "Discount quota reservation attempts by result.",
	}, []string{"result"})

	QuotaReleases = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "medisaga",
		Name:      "discount_quota_releases_total",
		Help:      "Discount quota reservations released by compensation.",
	})

	BookingsTerminal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medisaga",
		Name:      "bookings_terminal_total",
		Help:      "Bookings that reached a terminal state.",
	}, []string{"outcome"})

	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "medisaga",
		Name:      "handler_duration_seconds",
		Help:      "Time spent in event handlers.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})
)
