package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/keithlinneman/httpfilters/internal/capture"
	"github.com/keithlinneman/httpfilters/internal/httpmw"
)

type Config struct {
	// PerSecond is the refill rate, Burst the bucket size.
	PerSecond float64
	Burst     int
	// TTL is how long an idle key keeps its bucket.
	TTL time.Duration
	// MaxKeys caps tracked keys; new keys past the cap are denied. 0 means
	// no cap.
	MaxKeys int
}

// Hooks are optional callbacks run outside the limiter lock.
type Hooks struct {
	// FirstDenied runs once per key until the key is evicted.
	FirstDenied func(key string)
	// Denied runs on every rejected request.
	Denied func(key string)
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
	reported bool
}

// Limiter holds one token bucket per key.
type Limiter struct {
	cfg   Config
	hooks Hooks

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// New fills zero Config fields with 10 rps, burst 30 and a five minute TTL,
// and runs eviction until ctx is done.
func New(ctx context.Context, cfg Config, hooks Hooks) *Limiter {
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 30
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	l := &Limiter{cfg: cfg, hooks: hooks, buckets: make(map[string]*bucket), now: time.Now}
	go l.evictLoop(ctx)
	return l
}

// Allow takes one token for key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		if l.cfg.MaxKeys > 0 && len(l.buckets) >= l.cfg.MaxKeys {
			l.mu.Unlock()
			l.deny(key, false)
			return false
		}
		b = &bucket{lim: rate.NewLimiter(rate.Limit(l.cfg.PerSecond), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	if b.lim.AllowN(now, 1) {
		l.mu.Unlock()
		return true
	}
	first := !b.reported
	b.reported = true
	l.mu.Unlock()

	l.deny(key, first)
	return false
}

func (l *Limiter) deny(key string, first bool) {
	if first && l.hooks.FirstDenied != nil {
		l.hooks.FirstDenied(key)
	}
	if l.hooks.Denied != nil {
		l.hooks.Denied(key)
	}
}

// Len reports how many keys are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.cfg.TTL {
			delete(l.buckets, k)
		}
	}
}

func (l *Limiter) evictLoop(ctx context.Context) {
	t := time.NewTicker(l.cfg.TTL / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.evict(now)
		}
	}
}

// retryAfter is the whole seconds needed to refill one token.
func (l *Limiter) retryAfter() int {
	return int(math.Max(1, math.Ceil(1/l.cfg.PerSecond)))
}

// Middleware rejects requests over the limit with 429. The key is the
// address stored by httpmw.ClientIP.
func (l *Limiter) Middleware() httpmw.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := httpmw.ClientIPFromContext(r.Context())
			if !l.Allow(key) {
				sink := capture.HTTPSink{W: w}
				sink.SetIntHeader("Retry-After", l.retryAfter())
				_ = sink.SendError(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// String is used in startup logs.
func (l *Limiter) String() string {
	return strconv.FormatFloat(l.cfg.PerSecond, 'f', -1, 64) + "rps/burst " + strconv.Itoa(l.cfg.Burst)
}
