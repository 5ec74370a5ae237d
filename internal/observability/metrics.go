// Package observability provides Prometheus metrics for the application.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tubedrop"

// Metrics holds all application metrics.
type Metrics struct {
	// Catalog metrics
	MetadataRequests *prometheus.CounterVec
	VideoOptions     prometheus.Histogram

	// Download metrics
	DownloadsTotal   *prometheus.CounterVec
	DownloadBytes    prometheus.Counter
	DownloadDuration *prometheus.HistogramVec

	// Storage metrics
	DeletesScheduled prometheus.Counter
	DeletesTotal     *prometheus.CounterVec
	DeletesPending   prometheus.Gauge
	SweptDirs        prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Proxy metrics
	ProxyRequestsTotal *prometheus.CounterVec
	ProxyFailures      *prometheus.CounterVec
	ProxiesAvailable   prometheus.Gauge

	// Extractor metrics
	ExtractorCalls    *prometheus.CounterVec
	ExtractorDuration *prometheus.HistogramVec
}

// New creates all application metrics and registers them on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	metrics := &Metrics{
		MetadataRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "requests_total",
			Help:      "Total number of metadata requests by outcome",
		}, []string{"status"}),
		VideoOptions: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "video_options",
			Help:      "Number of video options offered after deduplication",
			Buckets:   []float64{0, 1, 2, 4, 6, 8, 12, 16},
		}),

		DownloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "total",
			Help:      "Total number of downloads by mode and outcome",
		}, []string{"mode", "status"}),
		DownloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "bytes_total",
			Help:      "Total bytes of produced artifacts",
		}),
		DownloadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "duration_seconds",
			Help:      "Histogram of download duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"mode"}),

		DeletesScheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "deletes_scheduled_total",
			Help:      "Total number of scheduled artifact deletions",
		}),
		DeletesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "deletes_total",
			Help:      "Total number of executed artifact deletions by outcome",
		}, []string{"status"}),
		DeletesPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "deletes_pending",
			Help:      "Number of deletions waiting for their grace period",
		}),
		SweptDirs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "swept_dirs_total",
			Help:      "Total number of orphaned work directories removed by the sweeper",
		}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPResponseSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "Histogram of HTTP response sizes in bytes",
			Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000, 100000000},
		}, []string{"method", "path"}),

		ProxyRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Total number of extractor calls made through proxies",
		}, []string{"proxy"}),
		ProxyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "failures_total",
			Help:      "Total number of proxy failures",
		}, []string{"proxy"}),
		ProxiesAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "available",
			Help:      "Number of currently available proxies",
		}),

		ExtractorCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "calls_total",
			Help:      "Total number of extractor calls by operation and outcome",
		}, []string{"extractor", "operation", "status"}),
		ExtractorDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "duration_seconds",
			Help:      "Histogram of extractor call duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 300, 900},
		}, []string{"extractor", "operation"}),
	}

	return metrics
}

// Handler returns the Prometheus HTTP handler for the given gatherer.
// A nil gatherer uses prometheus.DefaultGatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}

	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Timer returns a function that reports the elapsed seconds since Timer was called.
func Timer() func() float64 {
	start := time.Now()

	return func() float64 {
		return time.Since(start).Seconds()
	}
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration, size int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(size))
}

// RecordMetadata records a metadata request outcome and the offered option count.
func (m *Metrics) RecordMetadata(status string, videoOptions int) {
	m.MetadataRequests.WithLabelValues(status).Inc()

	if status == StatusOK {
		m.VideoOptions.Observe(float64(videoOptions))
	}
}

// RecordDownload records a download outcome.
func (m *Metrics) RecordDownload(mode, status string, seconds float64, size int64) {
	m.DownloadsTotal.WithLabelValues(mode, status).Inc()
	m.DownloadDuration.WithLabelValues(mode).Observe(seconds)

	if size > 0 {
		m.DownloadBytes.Add(float64(size))
	}
}

// RecordExtractorCall records one extractor invocation.
func (m *Metrics) RecordExtractorCall(extractor, operation, status string, seconds float64) {
	m.ExtractorCalls.WithLabelValues(extractor, operation, status).Inc()
	m.ExtractorDuration.WithLabelValues(extractor, operation).Observe(seconds)
}

// RecordDeleteScheduled records a newly scheduled deletion.
func (m *Metrics) RecordDeleteScheduled() {
	m.DeletesScheduled.Inc()
	m.DeletesPending.Inc()
}

// RecordDeleteDone records the end of a scheduled deletion.
func (m *Metrics) RecordDeleteDone(status string) {
	m.DeletesPending.Dec()
	m.DeletesTotal.WithLabelValues(status).Inc()
}

// RecordSweep records removed orphan directories.
func (m *Metrics) RecordSweep(dirs int) {
	m.SweptDirs.Add(float64(dirs))
}

// RecordProxyRequest records a proxy request.
func (m *Metrics) RecordProxyRequest(proxy string) {
	m.ProxyRequestsTotal.WithLabelValues(proxy).Inc()
}

// RecordProxyFailure records a proxy failure.
func (m *Metrics) RecordProxyFailure(proxy string) {
	m.ProxyFailures.WithLabelValues(proxy).Inc()
}

// SetProxiesAvailable sets the number of available proxies.
func (m *Metrics) SetProxiesAvailable(count int) {
	m.ProxiesAvailable.Set(float64(count))
}

// Outcome labels.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusNotFound = "not_found"
	StatusInvalid  = "invalid"
	StatusAbsent   = "absent"
)
