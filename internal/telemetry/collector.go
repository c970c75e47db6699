// Package telemetry exposes Prometheus metrics for the fetch scheduler and
// the transports it drives.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rileyhilliard/statline/internal/errors"
	"github.com/rileyhilliard/statline/internal/stream"
)

const namespace = "statline"

// Collector implements stream.Observer on top of a private registry.
type Collector struct {
	registry *prometheus.Registry

	cyclesStarted     prometheus.Counter
	cycleDuration     prometheus.Histogram
	requestsPerCycle  prometheus.Histogram
	requestsTotal     prometheus.Counter
	streamsPerRequest prometheus.Histogram
	responsesTotal    prometheus.Counter
	pointsTotal       prometheus.Counter
	staleTotal        prometheus.Counter
	failuresTotal     *prometheus.CounterVec
	retriesTotal      prometheus.Counter
	inFlight          prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ stream.Observer = (*Collector)(nil)

// NewCollector creates a collector with its own registry. Go runtime and
// process collectors are registered alongside.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		cyclesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_cycles_total",
			Help:      "Fetch cycles started.",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_cycle_duration_seconds",
			Help:      "Time from cycle start until every request resolved.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2.5, 10), // 10ms to ~38s
		}),
		requestsPerCycle: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "requests_per_cycle",
			Help:      "Requests built per fetch cycle after merging.",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		}),
		requestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_dispatched_total",
			Help:      "Fetch requests handed to the transport.",
		}),
		streamsPerRequest: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "streams_per_request",
			Help:      "Streams carried by each dispatched request.",
			Buckets:   []float64{1, 2, 4, 8, 12, 16, 20, 32},
		}),
		responsesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_reconciled_total",
			Help:      "Responses matched to an in-flight request.",
		}),
		pointsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datapoints_reconciled_total",
			Help:      "Datapoints written into stream buffers.",
		}),
		staleTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Responses discarded because their request was no longer in flight.",
		}),
		failuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_failures_total",
			Help:      "Failed requests by error code.",
		}, []string{"code"}),
		retriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_scheduled_total",
			Help:      "Window retries scheduled after a failure.",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Requests awaiting a response.",
		}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "http_requests_total",
			Help:      "Stats HTTP requests by status code.",
		}, []string{"code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "http_request_duration_seconds",
			Help:      "Stats HTTP request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2.5, 10),
		}, []string{"code"}),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// InstrumentRoundTripper counts and times the poll transport's HTTP calls.
func (c *Collector) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	return promhttp.InstrumentRoundTripperCounter(c.httpRequests,
		promhttp.InstrumentRoundTripperDuration(c.httpDuration, next))
}

func (c *Collector) CycleStarted(requests, streams int) {
	c.cyclesStarted.Inc()
	c.requestsPerCycle.Observe(float64(requests))
	c.inFlight.Set(float64(requests))
}

func (c *Collector) RequestDispatched(req *stream.FetchRequest) {
	c.requestsTotal.Inc()
	c.streamsPerRequest.Observe(float64(len(req.Streams)))
}

func (c *Collector) ResponseReconciled(_ *stream.FetchRequest, points int) {
	c.responsesTotal.Inc()
	c.pointsTotal.Add(float64(points))
	c.inFlight.Dec()
}

func (c *Collector) StaleResponse(int64) {
	c.staleTotal.Inc()
}

func (c *Collector) RequestFailed(_ *stream.FetchRequest, err error) {
	c.failuresTotal.WithLabelValues(errorCode(err)).Inc()
	c.inFlight.Dec()
}

func (c *Collector) RetryScheduled(time.Duration) {
	c.retriesTotal.Inc()
}

func (c *Collector) CycleEnded(elapsed time.Duration) {
	c.cycleDuration.Observe(elapsed.Seconds())
	c.inFlight.Set(0)
}

func errorCode(err error) string {
	for _, code := range []string{errors.ErrTransport, errors.ErrResponse, errors.ErrConfig, errors.ErrScheduler} {
		if errors.IsCode(err, code) {
			return code
		}
	}
	return "UNKNOWN"
}
