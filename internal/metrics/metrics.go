// Package metrics owns the Prometheus registry for the server and the
// middleware and hooks that feed it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/httpfilters/internal/version"
)

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	inflight    prometheus.Gauge
	reqTotal    *prometheus.CounterVec
	reqDur      *prometheus.HistogramVec
	respBytes   *prometheus.HistogramVec
	errorsTotal *prometheus.CounterVec

	httpPanicTotal       prometheus.Counter
	ratelimitDeniedTotal prometheus.Counter
	ratelimitFirstTotal  prometheus.Counter
	basicAuthTotal       *prometheus.CounterVec

	blobBytesTotal  prometheus.Counter
	blobErrorsTotal *prometheus.CounterVec

	buildInfo       *prometheus.GaugeVec
	profilingActive prometheus.Gauge
}

// New returns a fresh registry with the Go and process collectors and the
// HTTP metrics. Labels stay low-cardinality: method, route, status.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Time spent inside the handler chain, as measured by the timing middleware",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response body size by method and route",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10),
		}, []string{"method", "route"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx responses by method and route",
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered handler panics",
		}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by the rate limiter",
		}),
		ratelimitFirstTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_rate_limited_clients_total",
			Help: "Total number of clients that hit the rate limit at least once",
		}),
		basicAuthTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_basic_auth_total",
			Help: "Basic auth middleware outcomes (challenged, decoded, undecodable)",
		}, []string{"outcome"}),
		blobBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blob_bytes_served_total",
			Help: "Bytes streamed to clients from object storage",
		}),
		blobErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blob_errors_total",
			Help: "Object storage failures by stage",
		}, []string{"stage"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "version", "commit", "build_date", "vcs_dirty", "go_version"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.errorsTotal,
		m.httpPanicTotal,
		m.ratelimitDeniedTotal,
		m.ratelimitFirstTotal,
		m.basicAuthTotal,
		m.blobBytesTotal,
		m.blobErrorsTotal,
		m.buildInfo,
		m.profilingActive,
	)

	// pre-create auth series so dashboards see zeros
	for _, o := range []string{"challenged", "decoded", "undecodable"} {
		m.basicAuthTotal.WithLabelValues(o)
	}

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler { return m.handler }

func (m *ServerMetrics) Registry() *prometheus.Registry { return m.reg }

func (m *ServerMetrics) IncHttpPanic() { m.httpPanicTotal.Inc() }

func (m *ServerMetrics) IncRateLimitDenied(string) { m.ratelimitDeniedTotal.Inc() }

func (m *ServerMetrics) IncRateLimitFirst(string) { m.ratelimitFirstTotal.Inc() }

// ObserveBasicAuth counts one basic auth outcome. It matches
// httpmw.WithAuthObserver.
func (m *ServerMetrics) ObserveBasicAuth(outcome string) {
	m.basicAuthTotal.WithLabelValues(outcome).Inc()
}

func (m *ServerMetrics) AddBlobBytes(n int64) {
	if n > 0 {
		m.blobBytesTotal.Add(float64(n))
	}
}

func (m *ServerMetrics) IncBlobError(stage string) {
	m.blobErrorsTotal.WithLabelValues(stage).Inc()
}

// SetBuildInfo is called once at startup.
func (m *ServerMetrics) SetBuildInfo(vi version.Info) {
	m.buildInfo.With(prometheus.Labels{
		"app":        vi.App,
		"version":    vi.Version,
		"commit":     vi.Commit,
		"build_date": vi.BuildDate,
		"vcs_dirty":  vi.Dirty,
		"go_version": vi.GoVersion,
	}).Set(1)
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}
