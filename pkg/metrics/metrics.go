package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all stock-count service metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka / outbox metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec
	OutboxPending        prometheus.Gauge

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Business metrics
	CountsRecorded       *prometheus.CounterVec
	ItemsSettled         *prometheus.CounterVec
	InventoryTransitions *prometheus.CounterVec
	SerialScans          *prometheus.CounterVec
	ERPMigrations        *prometheus.CounterVec
	AuditLogFailures     prometheus.Counter
	LockWaitDuration     *prometheus.HistogramVec

	// Idempotency metrics
	IdempotencyRequests *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

// New creates a new Metrics instance on its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ns := config.Namespace
	constLabels := prometheus.Labels{"service": config.ServiceName}

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: constLabels,
		},
	)

	m.KafkaEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "kafka_events_published_total",
			Help:        "Total number of Kafka events published",
			ConstLabels: constLabels,
		},
		[]string{"topic", "event_type", "status"},
	)

	m.KafkaPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "kafka_publish_duration_seconds",
			Help:        "Kafka publish duration in seconds",
			Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			ConstLabels: constLabels,
		},
		[]string{"topic"},
	)

	m.OutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "outbox_pending_events",
			Help:        "Number of outbox events waiting to be published",
			ConstLabels: constLabels,
		},
	)

	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "mongodb_operations_total",
			Help:        "Total number of MongoDB operations",
			ConstLabels: constLabels,
		},
		[]string{"collection", "operation", "status"},
	)

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "mongodb_operation_duration_seconds",
			Help:        "MongoDB operation duration in seconds",
			Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			ConstLabels: constLabels,
		},
		[]string{"collection", "operation"},
	)

	m.CountsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "counts_recorded_total",
			Help:        "Count ledger entries recorded by stage",
			ConstLabels: constLabels,
		},
		[]string{"stage"},
	)

	m.ItemsSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "items_settled_total",
			Help:        "Items that reached a final quantity, by classification",
			ConstLabels: constLabels,
		},
		[]string{"classification"},
	)

	m.InventoryTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "inventory_transitions_total",
			Help:        "Inventory lifecycle transitions",
			ConstLabels: constLabels,
		},
		[]string{"from", "to"},
	)

	m.SerialScans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "serial_scans_total",
			Help:        "Serial scans applied, by resulting discrepancy",
			ConstLabels: constLabels,
		},
		[]string{"discrepancy"},
	)

	m.ERPMigrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "erp_migrations_total",
			Help:        "ERP migration attempts by outcome",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)

	m.AuditLogFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "audit_log_failures_total",
			Help:        "Audit log entries that could not be recorded",
			ConstLabels: constLabels,
		},
	)

	m.LockWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "lock_wait_duration_seconds",
			Help:        "Time spent acquiring item and inventory locks",
			Buckets:     []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			ConstLabels: constLabels,
		},
		[]string{"scope", "status"},
	)

	m.IdempotencyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "idempotency_requests_total",
			Help:        "Requests carrying an Idempotency-Key, by outcome",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "outcome"},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "circuit_breaker_state",
			Help:        "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			ConstLabels: constLabels,
		},
		[]string{"name"},
	)

	m.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "circuit_breaker_trips_total",
			Help:        "Total number of circuit breaker trips",
			ConstLabels: constLabels,
		},
		[]string{"name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.KafkaEventsPublished,
		m.KafkaPublishDuration,
		m.OutboxPending,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.CountsRecorded,
		m.ItemsSettled,
		m.InventoryTransitions,
		m.SerialScans,
		m.ERPMigrations,
		m.AuditLogFailures,
		m.LockWaitDuration,
		m.IdempotencyRequests,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns the HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the underlying prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the in-flight gauge
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the in-flight gauge
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish attempt
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	m.KafkaEventsPublished.WithLabelValues(topic, eventType, statusLabel(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// SetOutboxPending sets the number of unpublished outbox events
func (m *Metrics) SetOutboxPending(count int64) {
	m.OutboxPending.Set(float64(count))
}

// RecordOutboxPublish records an outbox relay attempt
func (m *Metrics) RecordOutboxPublish(topic, eventType string, success bool, duration time.Duration) {
	m.RecordKafkaPublish(topic, eventType, success, duration)
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	m.MongoDBOperations.WithLabelValues(collection, operation, statusLabel(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(collection, operation).Observe(duration.Seconds())
}

// RecordCount records a count ledger write
func (m *Metrics) RecordCount(stage int) {
	m.CountsRecorded.WithLabelValues(strconv.Itoa(stage)).Inc()
}

// RecordItemSettled records an item reaching a final quantity
func (m *Metrics) RecordItemSettled(classification string) {
	m.ItemsSettled.WithLabelValues(classification).Inc()
}

// RecordTransition records an inventory lifecycle transition
func (m *Metrics) RecordTransition(from, to string) {
	m.InventoryTransitions.WithLabelValues(from, to).Inc()
}

// RecordSerialScan records a serial scan by resulting discrepancy
func (m *Metrics) RecordSerialScan(discrepancy string) {
	if discrepancy == "" {
		discrepancy = "none"
	}
	m.SerialScans.WithLabelValues(discrepancy).Inc()
}

// RecordERPMigration records an ERP migration outcome
func (m *Metrics) RecordERPMigration(status string) {
	m.ERPMigrations.WithLabelValues(status).Inc()
}

// RecordAuditLogFailure records an audit entry that could not be stored
func (m *Metrics) RecordAuditLogFailure() {
	m.AuditLogFailures.Inc()
}

// RecordLockWait records lock acquisition latency
func (m *Metrics) RecordLockWait(scope string, success bool, duration time.Duration) {
	m.LockWaitDuration.WithLabelValues(scope, statusLabel(success)).Observe(duration.Seconds())
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	m.CircuitBreakerTrips.WithLabelValues(name).Inc()
}

// RecordIdempotency records how a keyed request was handled
// (miss, hit, mismatch, concurrent, storage_error)
func (m *Metrics) RecordIdempotency(method, path, outcome string) {
	m.IdempotencyRequests.WithLabelValues(method, path, outcome).Inc()
}
