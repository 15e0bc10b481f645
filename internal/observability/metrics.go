package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tableside_redis_error_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tableside_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// SubscriptionChannels is the gauge of open upstream subscription channels.
	SubscriptionChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tableside_subscription_channels",
		Help: "Number of open upstream subscription channels",
	})

	// SubscriptionListeners is the gauge of attached local listeners per channel.
	SubscriptionListeners = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tableside_subscription_listeners",
		Help: "Number of local listeners attached per channel",
	}, []string{"channel"})

	// EventsDelivered counts change events fanned out to listeners.
	EventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tableside_events_delivered_total",
		Help: "Total change events delivered to listeners by table and kind",
	}, []string{"table", "kind"})

	// DegradedChannels is the gauge of channels running without live updates.
	DegradedChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tableside_degraded_channels",
		Help: "Number of subscription channels that failed to open upstream",
	})

	// PresenceHeartbeats counts heartbeat writes by result.
	PresenceHeartbeats = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tableside_presence_heartbeats_total",
		Help: "Total presence heartbeat writes by result",
	}, []string{"result"})
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	latency := time.Since(start).Seconds()
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(latency)
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}
