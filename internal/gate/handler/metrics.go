package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	gateRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	gateRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gate_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	gateVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_verifications_total",
		Help: "Total credential verifications by outcome.",
	}, []string{"outcome"})

	gateTokensMintedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gate_tokens_minted_total",
		Help: "Total tokens minted.",
	})

	gateTokensBurnedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gate_tokens_burned_total",
		Help: "Total tokens burned.",
	})

	gateTransfersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gate_transfers_total",
		Help: "Total ownership transfers (excluding mints and burns).",
	})

	gateWebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_webhook_deliveries_total",
		Help: "Total webhook deliveries by success status.",
	}, []string{"status"})

	gateWebhookProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_webhook_probes_total",
		Help: "Total webhook endpoint health probes by success status.",
	}, []string{"status"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		gateRequestsTotal.WithLabelValues(method, path, status).Inc()
		gateRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordVerification records a credential verification outcome.
func RecordVerification(verified bool) {
	if verified {
		gateVerificationsTotal.WithLabelValues("accepted").Inc()
	} else {
		gateVerificationsTotal.WithLabelValues("rejected").Inc()
	}
}

// RecordMint records a minted token.
func RecordMint() { gateTokensMintedTotal.Inc() }

// RecordBurn records a burned token.
func RecordBurn() { gateTokensBurnedTotal.Inc() }

// RecordTransfer records an ownership transfer.
func RecordTransfer() { gateTransfersTotal.Inc() }

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(success bool) {
	if success {
		gateWebhookDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		gateWebhookDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}

// RecordWebhookProbe records a webhook endpoint health probe.
func RecordWebhookProbe(success bool) {
	if success {
		gateWebhookProbesTotal.WithLabelValues("success").Inc()
	} else {
		gateWebhookProbesTotal.WithLabelValues("failure").Inc()
	}
}
