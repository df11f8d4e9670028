package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestTraceHeader(t *testing.T) {
	tid, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	sid, _ := trace.SpanIDFromHex("b7ad6b7169203331")

	tests := []struct {
		name  string
		flags trace.TraceFlags
		valid bool
		want  string
	}{
		{"sampled", trace.FlagsSampled, true, "0af7651916cd43dd8448eb211c80319c"},
		{"not sampled", 0, true, ""},
		{"no span", 0, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.valid {
				sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: tt.flags})
				req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
			}
			rec := httptest.NewRecorder()
			TraceHeader("")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, req)
			if got := rec.Header().Get(DefaultTraceHeader); got != tt.want {
				t.Fatalf("header = %q, want %q", got, tt.want)
			}
		})
	}
}
