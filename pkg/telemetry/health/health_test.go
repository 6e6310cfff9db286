package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/ingress/pkg/config"
	"mercator-hq/ingress/pkg/rewrite"
	"mercator-hq/ingress/pkg/telemetry/metrics"
)

func TestChecker_Liveness(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("failing", func(context.Context) error { return errors.New("down") })

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != StatusOK {
		t.Errorf("Status = %q, want %q", report.Status, StatusOK)
	}
}

func TestChecker_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantCode   int
		wantStatus string
	}{
		{
			name:       "no checks",
			wantCode:   http.StatusOK,
			wantStatus: StatusReady,
		},
		{
			name: "all passing",
			checks: map[string]CheckFunc{
				"a": func(context.Context) error { return nil },
				"b": func(context.Context) error { return nil },
			},
			wantCode:   http.StatusOK,
			wantStatus: StatusReady,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"a": func(context.Context) error { return nil },
				"b": func(context.Context) error { return errors.New("down") },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, fn := range tt.checks {
				c.RegisterCheck(name, fn)
			}

			rec := httptest.NewRecorder()
			c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var report Report
			if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if report.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", report.Status, tt.wantStatus)
			}
			if len(report.Checks) != len(tt.checks) {
				t.Errorf("len(Checks) = %d, want %d", len(report.Checks), len(tt.checks))
			}
		})
	}
}

func TestChecker_CheckTimeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	report := c.CheckReadiness(context.Background())
	got := report.Checks["slow"]
	if got.Status != StatusUnhealthy {
		t.Errorf("Status = %q, want %q", got.Status, StatusUnhealthy)
	}
	if got.Message != ErrCheckTimeout.Error() {
		t.Errorf("Message = %q, want %q", got.Message, ErrCheckTimeout.Error())
	}
}

func TestChecker_Checks(t *testing.T) {
	c := New(0)
	c.RegisterCheck("upstream", func(context.Context) error { return nil })
	c.RegisterCheck("certs", func(context.Context) error { return nil })

	got := c.Checks()
	if len(got) != 2 || got[0] != "certs" || got[1] != "upstream" {
		t.Errorf("Checks() = %v, want [certs upstream]", got)
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.3", "abc", "now")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Version != "1.2.3" || info.Commit != "abc" || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}
}

func newTestProber(t *testing.T, upstream *httptest.Server, schedule string, collector *metrics.Collector) *UpstreamProber {
	t.Helper()

	u, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatal(err)
	}
	creds, err := rewrite.NewCredentials("anon-key", "")
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewUpstreamProber(ProberConfig{
		UpstreamURL: u,
		Path:        "/auth/v1/health",
		Schedule:    schedule,
		Timeout:     time.Second,
		Credentials: creds,
		Metrics:     collector,
	})
	if err != nil {
		t.Fatalf("NewUpstreamProber() error = %v", err)
	}
	return p
}

func TestUpstreamProber_Probe(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/health" {
			t.Errorf("probe path = %q", r.URL.Path)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer anon-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.WriteHeader(int(status.Load()))
	}))
	defer upstream.Close()

	cfg := config.MetricsConfig{Enabled: true, Namespace: "test", Subsystem: "gw"}
	collector := metrics.NewCollector(cfg, prometheus.NewRegistry())
	p := newTestProber(t, upstream, "@every 1h", collector)

	if err := p.Check(context.Background()); !errors.Is(err, ErrNotProbed) {
		t.Errorf("Check() before probe error = %v, want ErrNotProbed", err)
	}

	if res := p.Probe(context.Background()); !res.Healthy {
		t.Fatalf("Probe() = %+v, want healthy", res)
	}
	if err := p.Check(context.Background()); err != nil {
		t.Errorf("Check() error = %v", err)
	}

	// A client error still means the upstream is answering.
	status.Store(http.StatusUnauthorized)
	if res := p.Probe(context.Background()); !res.Healthy {
		t.Errorf("Probe() on 401 = %+v, want healthy", res)
	}

	status.Store(http.StatusServiceUnavailable)
	res := p.Probe(context.Background())
	if res.Healthy || res.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Probe() on 503 = %+v, want unhealthy", res)
	}
	if err := p.Check(context.Background()); err == nil {
		t.Error("Check() after failed probe should error")
	}

	expected := `
# HELP test_gw_upstream_up Result of the last upstream readiness probe (1 = healthy, 0 = unhealthy)
# TYPE test_gw_upstream_up gauge
test_gw_upstream_up 0
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "test_gw_upstream_up"); err != nil {
		t.Errorf("upstream_up gauge: %v", err)
	}
}

func TestUpstreamProber_Unreachable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	p := newTestProber(t, upstream, "@every 1h", nil)
	upstream.Close()

	res := p.Probe(context.Background())
	if res.Healthy || res.Err == nil {
		t.Errorf("Probe() = %+v, want connection error", res)
	}
}

func TestUpstreamProber_NoSchedule(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer upstream.Close()

	p := newTestProber(t, upstream, "", nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if p.IsRunning() {
		t.Error("IsRunning() = true with no schedule")
	}
	if err := p.Check(context.Background()); err != nil {
		t.Errorf("Check() error = %v, want nil", err)
	}
	if hits.Load() != 0 {
		t.Errorf("upstream hits = %d, want 0", hits.Load())
	}
}

func TestUpstreamProber_StartStop(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer upstream.Close()

	p := newTestProber(t, upstream, "@every 1h", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !p.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}
	if next := p.NextRun(); next.Before(time.Now().Add(59 * time.Minute)) {
		t.Errorf("NextRun() = %v, want about an hour from now", next)
	}

	p.Stop()
	if p.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	if hits.Load() != 1 {
		t.Errorf("upstream hits after Stop = %d, want the initial probe only", hits.Load())
	}
	if !p.NextRun().IsZero() {
		t.Error("NextRun() should be zero after Stop")
	}
}

func TestUpstreamProber_StartDoesNotWaitForProbe(t *testing.T) {
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer upstream.Close()

	p := newTestProber(t, upstream, "@every 1h", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		close(release)
		t.Fatal("Start() blocked on the upstream")
	}

	if err := p.Check(context.Background()); !errors.Is(err, ErrNotProbed) {
		t.Errorf("Check() while first probe is pending = %v, want ErrNotProbed", err)
	}

	close(release)
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := p.Last(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first probe never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := p.Check(context.Background()); err != nil {
		t.Errorf("Check() after first probe = %v, want nil", err)
	}
	p.Stop()
}

func TestNewUpstreamProber_InvalidSchedule(t *testing.T) {
	u, _ := url.Parse("http://upstream.invalid")
	if _, err := NewUpstreamProber(ProberConfig{UpstreamURL: u, Schedule: "not a schedule"}); err == nil {
		t.Error("NewUpstreamProber() with bad schedule should error")
	}
	if _, err := NewUpstreamProber(ProberConfig{}); err == nil {
		t.Error("NewUpstreamProber() without url should error")
	}
}
