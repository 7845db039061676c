package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_http_requests_total",
			Help: "Total number of HTTP requests processed by the social service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "social_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	lockContentionTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "social_resource_lock_contention_total",
			Help: "Total number of resource-lock acquisitions that failed on contention.",
		},
	)
	txTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_tx_timeouts_total",
			Help: "Total number of transactions aborted on a timeout budget.",
		},
		[]string{"phase"},
	)
	rateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_rate_limit_decisions_total",
			Help: "Total number of rate-limiter admission decisions.",
		},
		[]string{"decision"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "social_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "social_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		lockContentionTotal,
		txTimeoutsTotal,
		rateLimitDecisionsTotal,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncLockContention() {
	lockContentionTotal.Inc()
}

func IncTxTimeout(phase string) {
	txTimeoutsTotal.WithLabelValues(phase).Inc()
}

func IncRateLimitDecision(admitted bool) {
	decision := "admitted"
	if !admitted {
		decision = "denied"
	}
	rateLimitDecisionsTotal.WithLabelValues(decision).Inc()
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
