package httpmw

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/httpfilters/internal/capture"
	"github.com/keithlinneman/httpfilters/internal/log"
)

const traceLogStamp = "2006-01-02 15:04:05"

// now is replaced in tests.
var now = time.Now

// TraceLog logs one line per request before the handler runs and one line
// per response after it returns, including every header on both sides. The
// response is observed through a capture.Writer so the line shows exactly
// what the handler set. The response line is also written when the handler
// panics; the panic itself continues up the chain.
//
// Request header values are logged verbatim, Authorization included. Only
// enable it where that is acceptable.
func TraceLog(L log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			lg := L
			if lg == nil {
				lg = log.FromContext(ctx)
			}

			lg.Info(ctx, requestLine(r),
				"http.request.method", r.Method,
				"url.path", r.URL.Path,
			)

			cw := capture.New(w)
			defer func() {
				status := cw.StatusCode()
				lg.Info(ctx, responseLine(cw),
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
					"http.response.status_code", status,
					"http.response.body.size", cw.BytesWritten(),
				)
				if span := trace.SpanFromContext(ctx); span.IsRecording() {
					span.SetAttributes(
						attribute.Int("http.response.status_code", status),
						attribute.Int64("http.response.body.size", cw.BytesWritten()),
						attribute.Int("http.response.header.count", len(cw.HeaderNames())),
					)
				}
			}()

			next.ServeHTTP(cw, r)
		})
	}
}

// requestLine renders "<date> <time> --> METHOD path query name=value...".
// net/http keeps headers in a map, so names are sorted for stable output.
func requestLine(r *http.Request) string {
	var b strings.Builder
	b.WriteString(now().Format(traceLogStamp))
	b.WriteString(" --> ")
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(r.URL.Path)
	b.WriteByte(' ')
	b.WriteString(r.URL.RawQuery)

	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range r.Header[name] {
			writePair(&b, name, v)
		}
	}
	return b.String()
}

// responseLine renders "<date> <time> <-- status message name=value...".
func responseLine(cw *capture.Writer) string {
	var b strings.Builder
	b.WriteString(now().Format(traceLogStamp))
	b.WriteString(" <-- ")
	b.WriteString(strconv.Itoa(cw.StatusCode()))
	b.WriteByte(' ')
	if msg, ok := cw.StatusMessage(); ok {
		b.WriteString(msg)
	}
	for _, name := range cw.HeaderNames() {
		for _, v := range cw.HeaderValues(name) {
			writePair(&b, name, v)
		}
	}
	return b.String()
}

func writePair(b *strings.Builder, name, value string) {
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(value)
}
