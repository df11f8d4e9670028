package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/keithlinneman/httpfilters/internal/version"
)

// gatherMetric collects metrics from the registry and finds one by name.
func gatherMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

// labeledCounter returns the counter whose labels include all of want.
func labeledCounter(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	f := gatherMetric(t, reg, name)
	if f == nil {
		t.Fatalf("metric %q not found", name)
	}
next:
	for _, m := range f.GetMetric() {
		got := map[string]string{}
		for _, lp := range m.GetLabel() {
			got[lp.GetName()] = lp.GetValue()
		}
		for k, v := range want {
			if got[k] != v {
				continue next
			}
		}
		return m.GetCounter().GetValue()
	}
	t.Fatalf("no %s sample with labels %v", name, want)
	return 0
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	return labeledCounter(t, reg, name, nil)
}

func TestNew_ScrapeIncludesCoreSeries(t *testing.T) {
	m := New()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := rec.Body.String()
	for _, name := range []string{
		"http_inflight_requests",
		"http_panic_total",
		"http_requests_rate_limited_total",
		"http_basic_auth_total",
		"profiling_active",
		"go_goroutines",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("%s missing from scrape", name)
		}
	}
}

func TestNew_IsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.IncHttpPanic()

	if counterValue(t, a.Registry(), "http_panic_total") != 1 {
		t.Fatal("a should have one panic")
	}
	if counterValue(t, b.Registry(), "http_panic_total") != 0 {
		t.Fatal("registries must not share state")
	}
}

func TestObserveBasicAuth(t *testing.T) {
	m := New()
	m.ObserveBasicAuth("challenged")
	m.ObserveBasicAuth("decoded")
	m.ObserveBasicAuth("decoded")

	reg := m.Registry()
	if v := labeledCounter(t, reg, "http_basic_auth_total", map[string]string{"outcome": "decoded"}); v != 2 {
		t.Fatalf("decoded = %v", v)
	}
	if v := labeledCounter(t, reg, "http_basic_auth_total", map[string]string{"outcome": "undecodable"}); v != 0 {
		t.Fatalf("undecodable = %v", v)
	}
}

func TestRateLimitHooks(t *testing.T) {
	m := New()
	m.IncRateLimitFirst("10.0.0.1")
	m.IncRateLimitDenied("10.0.0.1")
	m.IncRateLimitDenied("10.0.0.1")

	if counterValue(t, m.Registry(), "http_requests_rate_limited_total") != 2 {
		t.Fatal("denied counter")
	}
	if counterValue(t, m.Registry(), "http_rate_limited_clients_total") != 1 {
		t.Fatal("first-denied counter")
	}
}

func TestBlobCounters(t *testing.T) {
	m := New()
	m.AddBlobBytes(100)
	m.AddBlobBytes(0)
	m.AddBlobBytes(-5)
	m.IncBlobError("get")

	if counterValue(t, m.Registry(), "blob_bytes_served_total") != 100 {
		t.Fatal("blob bytes")
	}
	if labeledCounter(t, m.Registry(), "blob_errors_total", map[string]string{"stage": "get"}) != 1 {
		t.Fatal("blob errors")
	}
}

func TestSetBuildInfo(t *testing.T) {
	m := New()
	m.SetBuildInfo(version.Info{App: "httpfilters", Version: "v1", Commit: "abc", Dirty: "false", GoVersion: "go1.24"})

	f := gatherMetric(t, m.Registry(), "build_info")
	if f == nil || len(f.GetMetric()) != 1 {
		t.Fatal("build_info missing")
	}
	labels := map[string]string{}
	for _, lp := range f.GetMetric()[0].GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	if labels["version"] != "v1" || labels["commit"] != "abc" || labels["vcs_dirty"] != "false" {
		t.Fatalf("labels = %v", labels)
	}
}

func TestSetProfilingActive(t *testing.T) {
	m := New()
	m.SetProfilingActive(true)
	if gatherMetric(t, m.Registry(), "profiling_active").GetMetric()[0].GetGauge().GetValue() != 1 {
		t.Fatal("want 1")
	}
	m.SetProfilingActive(false)
	if gatherMetric(t, m.Registry(), "profiling_active").GetMetric()[0].GetGauge().GetValue() != 0 {
		t.Fatal("want 0")
	}
}
