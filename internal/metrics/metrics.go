package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "courtbook"

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_created_total",
			Help:      "Count of create attempts by outcome.",
		},
		[]string{"outcome"},
	)

	statusTransition = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transition_total",
			Help:      "Count of booking status transitions by target status and outcome.",
		},
		[]string{"status", "outcome"},
	)

	slotConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_conflict_total",
			Help:      "Count of rejected creates due to overlap, by detection stage.",
		},
		[]string{"stage"},
	)

	lockTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_timeout_total",
			Help:      "Count of serialization locks not acquired within the wait bound.",
		},
	)

	notifyFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_failure_total",
			Help:      "Count of lifecycle event deliveries that failed, by sink.",
		},
		[]string{"sink"},
	)

	createDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_create_duration_seconds",
			Help:      "Latency of booking creation.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	catalogReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reload_total",
			Help:      "Count of resource catalog reload attempts by outcome.",
		},
		[]string{"outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by route and status code.",
		},
		[]string{"route", "code"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated,
			statusTransition,
			slotConflicts,
			lockTimeouts,
			notifyFailures,
			createDuration,
			catalogReloads,
			httpRequests,
		)
	})
}

func IncBookingCreated(outcome string) {
	bookingCreated.WithLabelValues(outcome).Inc()
}

func IncStatusTransition(status, outcome string) {
	statusTransition.WithLabelValues(status, outcome).Inc()
}

// IncSlotConflict records an overlap found at "check" (advisory read) or
// "insert" (lost race at the store).
func IncSlotConflict(stage string) {
	slotConflicts.WithLabelValues(stage).Inc()
}

func IncLockTimeout() {
	lockTimeouts.Inc()
}

func IncNotifyFailure(sink string) {
	notifyFailures.WithLabelValues(sink).Inc()
}

func ObserveCreate(started time.Time) {
	createDuration.Observe(time.Since(started).Seconds())
}

func IncCatalogReload(outcome string) {
	catalogReloads.WithLabelValues(outcome).Inc()
}

func IncHTTPRequest(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}
