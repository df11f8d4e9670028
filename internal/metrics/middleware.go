package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/httpfilters/internal/capture"
)

// Middleware counts requests, 5xx responses and response sizes. It must sit
// outside the chi router: it seeds the chi route context so the matched
// pattern is readable here and in ObserveTiming once routing is done.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.RouteContext(r.Context()) == nil {
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, chi.NewRouteContext()))
		}

		m.inflight.Inc()
		defer m.inflight.Dec()

		cw := capture.New(w)
		next.ServeHTTP(cw, r)

		code := cw.StatusCode()
		if code == 0 {
			code = http.StatusOK
		}
		route := routeOf(r)

		m.reqTotal.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
		if code >= 500 {
			m.errorsTotal.WithLabelValues(r.Method, route).Inc()
		}
		m.respBytes.WithLabelValues(r.Method, route).Observe(float64(cw.BytesWritten()))
	})
}

// ObserveTiming records a handler duration. It matches the observe hook of
// httpmw.Timing.
func (m *ServerMetrics) ObserveTiming(r *http.Request, d time.Duration) {
	obs := m.reqDur.WithLabelValues(r.Method, routeOf(r))
	if ex := traceExemplar(r.Context()); ex != nil {
		if eo, ok := obs.(prometheus.ExemplarObserver); ok {
			eo.ObserveWithExemplar(d.Seconds(), ex)
			return
		}
	}
	obs.Observe(d.Seconds())
}

// routeOf prefers the chi pattern so ids in paths do not explode the label
// set. Unrouted requests share one label.
func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// if a sampled trace is present attach its trace_id as an exemplar
func traceExemplar(ctx context.Context) prometheus.Labels {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsSampled() {
		return nil
	}
	return prometheus.Labels{"trace_id": sc.TraceID().String()}
}
