package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/httpfilters/internal/httpmw"
	"github.com/keithlinneman/httpfilters/internal/log"
	"github.com/keithlinneman/httpfilters/internal/xerrors"
)

const DefaultPort = 8080

// NewRouter registers the demo routes.
func NewRouter(opts Options) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Compress(5,
		"text/plain",
		"application/json",
	))

	r.Get("/whoami", whoami)
	r.Post("/echo", echo)
	if opts.Blobs != nil {
		r.Handle("/blobs/*", opts.Blobs)
	}
	return r
}

// Filters returns the filter chain, outermost first:
// Recover, RequestID, ClientIP, RequestLogger, Timing, TraceLog, RateLimit,
// MaxBody, BasicAuth. Disabled filters are nil and skipped by Chain.
func Filters(opts Options) []httpmw.Middleware {
	L := opts.Logger
	if L == nil {
		L = log.Nop()
	}

	var timing, trace, auth httpmw.Middleware
	if opts.TimingLog || opts.ObserveTiming != nil {
		var tl log.Logger
		if opts.TimingLog {
			tl = L
		}
		timing = httpmw.Timing(tl, opts.ObserveTiming)
	}
	if opts.TraceLog {
		// nil logger: log through the request-scoped logger
		trace = httpmw.TraceLog(nil)
	}
	if opts.BasicAuth {
		var aopts []httpmw.BasicAuthOption
		if opts.OnAuthResult != nil {
			aopts = append(aopts, httpmw.WithAuthObserver(opts.OnAuthResult))
		}
		auth = httpmw.BasicAuth(opts.Realm, aopts...)
	}

	return []httpmw.Middleware{
		httpmw.Recover(L, opts.OnPanic),
		httpmw.RequestID(httpmw.DefaultRequestIDHeader),
		httpmw.ClientIP(opts.ClientIPOpts),
		httpmw.RequestLogger(L),
		timing,
		trace,
		opts.RateLimitMW,
		httpmw.MaxBody(opts.MaxBody),
		auth,
	}
}

// NewHandler builds the site handler: otelhttp outermost, then metrics,
// the trace id header, span naming, the filter chain, and the router.
func NewHandler(opts Options) http.Handler {
	h := httpmw.Chain(NewRouter(opts), Filters(opts)...)
	h = httpmw.RouteSpan(h)
	h = httpmw.TraceHeader(httpmw.DefaultTraceHeader)(h)
	if opts.MetricsMW != nil {
		h = opts.MetricsMW(h)
	}
	return otelhttp.NewHandler(
		h,
		"http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/favicon.ico"
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			// RouteSpan renames it to the route pattern
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(*http.Request) bool { return true }),
	)
}

const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultReadTimeout       = 30 * time.Second
	// blobs stream for as long as the object takes
	DefaultWriteTimeout   = 5 * time.Minute
	DefaultIdleTimeout    = 60 * time.Second
	DefaultMaxHeaderBytes = 1 << 20
)

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
	}
}

// Start serves NewHandler on opts.Port and returns an idempotent stop func
// for graceful shutdown.
func Start(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	addr := fmt.Sprintf(":%d", port)
	srv := NewServer(addr, NewHandler(opts))

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "listen addr=%v", addr)
	}

	go func() {
		opts.Logger.Info(ctx, "http server listening", "addr", addr)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			opts.Logger.Error(ctx, err, "http server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			opts.Logger.Info(sctx, "http server shutting down")
			c, cancel := context.WithTimeout(sctx, 10*time.Second)
			defer cancel()
			retErr = srv.Shutdown(c)
		})
		return retErr
	}
	return stop, nil
}
