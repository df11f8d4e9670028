package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

const DefaultTraceHeader = "X-Trace-Id"

// TraceHeader echoes the trace id of a sampled span so a client can quote
// it when reporting a failed request. It must sit inside otelhttp.
func TraceHeader(name string) Middleware {
	if name == "" {
		name = DefaultTraceHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() && sc.IsSampled() {
				w.Header().Set(name, sc.TraceID().String())
			}
			next.ServeHTTP(w, r)
		})
	}
}
