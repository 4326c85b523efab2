package metrics

import (
	"strconv"
	"sync"

	"shareit/internal/events"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shareit",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	bookingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shareit",
			Name:      "booking_events_total",
			Help:      "Booking lifecycle events by type.",
		},
		[]string{"type"},
	)

	quotaRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shareit",
			Name:      "booking_quota_rejections_total",
			Help:      "Booking creations refused by the per-user quota.",
		},
	)

	backupRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shareit",
			Name:      "backup_runs_total",
			Help:      "Database backup attempts by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingEvents, quotaRejections, backupRuns)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string, code int) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}

func IncQuotaRejected() {
	quotaRejections.Inc()
}

func IncBackup(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	backupRuns.WithLabelValues(result).Inc()
}

// ObserveEvents counts every booking lifecycle event published on the bus.
func ObserveEvents(bus *events.EventBus) {
	for _, eventType := range events.BookingEventTypes {
		bus.Subscribe(eventType, func(e *events.Event) error {
			bookingEvents.WithLabelValues(e.Type).Inc()
			return nil
		})
	}
}
