package httpserver

import (
	"net/http"
	"time"

	"github.com/keithlinneman/httpfilters/internal/httpmw"
	"github.com/keithlinneman/httpfilters/internal/log"
)

type Options struct {
	Logger log.Logger
	Port   int

	// MetricsMW instruments the whole site handler.
	MetricsMW httpmw.Middleware
	// ObserveTiming receives each handler duration measured by httpmw.Timing.
	ObserveTiming func(*http.Request, time.Duration)
	OnPanic       func()

	ClientIPOpts httpmw.ClientIPOptions
	RateLimitMW  httpmw.Middleware
	// MaxBody caps request bodies in bytes. 0 disables the cap.
	MaxBody int64

	// TraceLog enables the request/response header trace lines.
	TraceLog bool
	// TimingLog enables the per-request duration line. Timing is still
	// measured for ObserveTiming when it is off.
	TimingLog bool

	BasicAuth    bool
	Realm        string
	OnAuthResult func(outcome string)

	// Blobs serves /blobs/*. The route is absent when nil.
	Blobs http.Handler
}
