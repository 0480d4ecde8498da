package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderdesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orderdesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orderdesk_active_sessions",
			Help: "Number of live wizard sessions",
		},
	)

	// WizardEvents counts reducer events by type and outcome (ok, blocked, error)
	WizardEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderdesk_wizard_events_total",
			Help: "Wizard events applied to sessions",
		},
		[]string{"event", "result"},
	)

	// CatalogFetches counts candidate list fetches by list and outcome (ok, failed, stale)
	CatalogFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderdesk_catalog_fetches_total",
			Help: "Candidate list fetches",
		},
		[]string{"list", "result"},
	)

	OrdersSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderdesk_orders_submitted_total",
			Help: "Order submissions by outcome",
		},
		[]string{"result"},
	)

	OrderAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orderdesk_order_total_amount",
			Help:    "Order totals including tax",
			Buckets: []float64{10, 25, 50, 100, 250, 500},
		},
	)

	// CircuitBreakerState tracks circuit breaker state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orderdesk_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"circuit_name"},
	)

	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderdesk_circuit_breaker_failures_total",
			Help: "Total number of calls failed through a circuit breaker",
		},
		[]string{"circuit_name"},
	)
)

// PrometheusMiddleware records request count and latency per route.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}
