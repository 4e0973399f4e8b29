// Package metrics records service metrics with Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// Collector owns every metric the service exposes.
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	cacheHitsTotal     prometheus.Counter
	cacheMissesTotal   prometheus.Counter
	cacheWaitsTotal    prometheus.Counter
	negativeHitsTotal  prometheus.Counter
	tieredPromotions   prometheus.Counter
	backendErrorsTotal *prometheus.CounterVec

	extractionsTotal   *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec

	logger      *zap.Logger
	httpHandler func(*fasthttp.RequestCtx)
}

// New registers on the default Prometheus registry.
func New(namespace string, logger *zap.Logger) *Collector {
	return NewWithRegistry(namespace, prometheus.NewRegistry(), logger)
}

// NewWithRegistry registers on a caller-supplied registry; tests use this
// to avoid duplicate registration.
func NewWithRegistry(namespace string, reg *prometheus.Registry, logger *zap.Logger) *Collector {
	c := &Collector{logger: logger}

	c.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Embed requests by response status",
	}, []string{"status"})

	c.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Embed request handling time",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	c.cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Singleflight cache hits",
	})
	c.cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Singleflight cache misses won by this request",
	})
	c.cacheWaitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_waits_total",
		Help:      "Requests that subscribed to an in-flight extraction",
	})
	c.negativeHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_negative_hits_total",
		Help:      "Requests answered from the negative cache",
	})
	c.tieredPromotions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_tier_promotions_total",
		Help:      "Values promoted to a higher cache tier on hit",
	})
	c.backendErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_backend_errors_total",
		Help:      "Best-effort backend failures by backend",
	}, []string{"backend", "op"})

	c.extractionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extractions_total",
		Help:      "Extractions by extractor and outcome",
	}, []string{"extractor", "outcome"})

	c.extractionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "extraction_duration_seconds",
		Help:      "Extraction time by extractor",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
	}, []string{"extractor"})

	reg.MustRegister(
		c.requestsTotal, c.requestDuration,
		c.cacheHitsTotal, c.cacheMissesTotal, c.cacheWaitsTotal,
		c.negativeHitsTotal, c.tieredPromotions, c.backendErrorsTotal,
		c.extractionsTotal, c.extractionDuration,
	)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	c.httpHandler = fasthttpadaptor.NewFastHTTPHandler(http.HandlerFunc(handler.ServeHTTP))

	return c
}

func (c *Collector) RecordRequest(status int, duration time.Duration) {
	label := strconv.Itoa(status)
	c.requestsTotal.WithLabelValues(label).Inc()
	c.requestDuration.WithLabelValues(label).Observe(duration.Seconds())
}

func (c *Collector) RecordCacheHit()     { c.cacheHitsTotal.Inc() }
func (c *Collector) RecordCacheMiss()    { c.cacheMissesTotal.Inc() }
func (c *Collector) RecordCacheWait()    { c.cacheWaitsTotal.Inc() }
func (c *Collector) RecordNegativeHit()  { c.negativeHitsTotal.Inc() }
func (c *Collector) RecordPromotion()    { c.tieredPromotions.Inc() }

func (c *Collector) RecordBackendError(backend, op string) {
	c.backendErrorsTotal.WithLabelValues(backend, op).Inc()
}

func (c *Collector) RecordExtraction(extractor, outcome string, duration time.Duration) {
	c.extractionsTotal.WithLabelValues(extractor, outcome).Inc()
	c.extractionDuration.WithLabelValues(extractor).Observe(duration.Seconds())
}

// ServeHTTP serves the Prometheus exposition endpoint.
func (c *Collector) ServeHTTP(ctx *fasthttp.RequestCtx) {
	c.httpHandler(ctx)
}
