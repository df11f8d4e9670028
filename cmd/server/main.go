package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keithlinneman/httpfilters/internal/blobhttp"
	"github.com/keithlinneman/httpfilters/internal/cfg"
	"github.com/keithlinneman/httpfilters/internal/health"
	"github.com/keithlinneman/httpfilters/internal/httpmw"
	"github.com/keithlinneman/httpfilters/internal/httpserver"
	"github.com/keithlinneman/httpfilters/internal/log"
	"github.com/keithlinneman/httpfilters/internal/metrics"
	"github.com/keithlinneman/httpfilters/internal/opshttp"
	"github.com/keithlinneman/httpfilters/internal/otelx"
	"github.com/keithlinneman/httpfilters/internal/prof"
	"github.com/keithlinneman/httpfilters/internal/ratelimit"
	"github.com/keithlinneman/httpfilters/internal/realm"
	v "github.com/keithlinneman/httpfilters/internal/version"
)

// drainPeriod is how long readiness fails before the listeners stop.
const drainPeriod = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s %s (commit=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.App, vi.Version, vi.Commit, vi.BuildDate, vi.GoVersion, vi.Dirty)
		os.Exit(0)
	}

	cfg.FillFromEnv(flag.CommandLine, cfg.EnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Validate already parsed both levels
	lvl, _ := log.ParseLevel(conf.LogLevel)
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:             v.AppName,
		Version:         vi.Version,
		Level:           lvl,
		StacktraceLevel: stackLvl,
		JSON:            conf.LogJSON,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.Dirty,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"enable_basic_auth", conf.EnableBasicAuth,
		"enable_trace_log", conf.EnableTraceLog,
		"enable_timing_log", conf.EnableTimingLog,
		"realm_ssm_param", conf.RealmSSMParam,
		"blob_s3_bucket", conf.BlobBucket,
		"max_body_bytes", conf.MaxBodyBytes,
		"trusted_hops", conf.TrustedHops,
	)
	if conf.EnableTraceLog {
		L.Warn(ctx, "trace log enabled, request headers including Authorization are logged verbatim")
	}

	m := metrics.New()
	m.SetBuildInfo(vi)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":     v.AppName,
			"version": vi.Version,
			"commit":  vi.Commit,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	m.SetProfilingActive(conf.EnablePyroscope && err == nil)
	defer stopProf()

	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:  conf.EnableTracing,
		Endpoint: conf.OTLPEndpoint,
		Insecure: conf.OTLPInsecure,
		Sample:   conf.TraceSample,
		Service:  v.AppName,
		Version:  vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
		shutdownOTEL = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	authRealm := conf.Realm
	if conf.EnableBasicAuth && conf.RealmSSMParam != "" {
		ssmClient, err := realm.NewSSMClient(ctx, conf.AWSRegion)
		if err != nil {
			L.Error(ctx, err, "ssm client init failed, using configured realm")
		} else {
			authRealm = realm.Resolve(ctx, L, ssmClient, conf.RealmSSMParam, conf.Realm)
		}
	}

	var gate health.ShutdownGate
	readinessChecks := []health.Probe{gate.Probe()}

	var blobs *blobhttp.Handler
	if conf.BlobBucket != "" {
		s3Client, err := blobhttp.NewS3Client(ctx, conf.AWSRegion)
		if err != nil {
			L.Error(ctx, err, "failed to load AWS config")
			os.Exit(1)
		}
		blobs, err = blobhttp.New(s3Client, blobhttp.Options{
			Bucket:  conf.BlobBucket,
			Prefix:  conf.BlobPrefix,
			Metrics: m,
		})
		if err != nil {
			L.Error(ctx, err, "failed to create blob handler")
			os.Exit(1)
		}
		readinessChecks = append(readinessChecks, blobs.Probe())
	}
	readiness := health.All(readinessChecks...)

	var rateLimitMW httpmw.Middleware
	if conf.RateLimitRPS > 0 {
		limiter := ratelimit.New(ctx, ratelimit.Config{
			PerSecond: conf.RateLimitRPS,
			Burst:     conf.RateLimitBurst,
			MaxKeys:   100_000,
		}, ratelimit.Hooks{
			Denied: m.IncRateLimitDenied,
			// only log the first denial per client until its bucket is evicted
			FirstDenied: func(ip string) {
				m.IncRateLimitFirst(ip)
				L.Warn(ctx, "rate limit triggered", "client.address", ip)
			},
		})
		L.Info(ctx, "rate limiting enabled", "limit", limiter.String())
		rateLimitMW = limiter.Middleware()
	}

	siteOpts := httpserver.Options{
		Logger:        L,
		Port:          conf.HTTPPort,
		MetricsMW:     m.Middleware,
		ObserveTiming: m.ObserveTiming,
		OnPanic:       m.IncHttpPanic,
		ClientIPOpts:  httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
		RateLimitMW:   rateLimitMW,
		MaxBody:       conf.MaxBodyBytes,
		TraceLog:      conf.EnableTraceLog,
		TimingLog:     conf.EnableTimingLog,
		BasicAuth:     conf.EnableBasicAuth,
		Realm:         authRealm,
		OnAuthResult:  m.ObserveBasicAuth,
	}
	if blobs != nil {
		siteOpts.Blobs = blobs
	}
	siteHTTPStop, err := httpserver.Start(ctx, siteOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start site http listener")
		os.Exit(1)
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	if err := notifySystemd(); err != nil {
		L.Debug(ctx, "systemd notify skipped", "reason", err.Error())
	}

	<-ctx.Done()
	bg := context.Background()
	L.Info(bg, "shutdown signal received")

	gate.Close("draining")
	L.Info(bg, "readiness failing, draining", "period", drainPeriod.String())

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(drainPeriod):
		L.Info(bg, "drain period complete")
	case <-forceCh:
		L.Warn(bg, "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	shutdownCtx, cancel := context.WithTimeout(bg, 15*time.Second)
	defer cancel()

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(bg, err, "site http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(bg, err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(bg, err, "otel shutdown")
	}
	L.Info(bg, "shutdown complete")
}

// notifySystemd sends READY=1 when started by systemd with Type=notify.
func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify: dial: %w", err)
	}
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		conn.Close()
		return fmt.Errorf("systemd notify: write: %w", err)
	}
	return conn.Close()
}
