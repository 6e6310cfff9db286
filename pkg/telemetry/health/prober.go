package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/ingress/pkg/rewrite"
	"mercator-hq/ingress/pkg/telemetry/logging"
	"mercator-hq/ingress/pkg/telemetry/metrics"
)

// ErrNotProbed is reported by Check before the first probe completes.
var ErrNotProbed = errors.New("upstream not probed yet")

// ProberConfig configures an UpstreamProber.
type ProberConfig struct {
	// UpstreamURL is the upstream origin.
	UpstreamURL *url.URL

	// Path is requested with GET on every probe.
	Path string

	// Schedule is a standard cron expression or a descriptor such as
	// "@every 30s".
	Schedule string

	// Timeout bounds a single probe.
	Timeout time.Duration

	// Credentials are attached to probe requests.
	Credentials rewrite.Credentials

	// Client sends probe requests. Defaults to a client with Timeout.
	Client *http.Client

	Logger  *logging.Logger
	Metrics *metrics.Collector
}

// ProbeResult is the outcome of the latest upstream probe.
type ProbeResult struct {
	Healthy    bool
	StatusCode int
	Err        error
	CheckedAt  time.Time
	Latency    time.Duration
}

// UpstreamProber periodically checks that the upstream answers. Any HTTP
// response below 500 counts as healthy.
type UpstreamProber struct {
	cfg    ProberConfig
	target string
	client *http.Client
	logger *logging.Logger

	cron    *cron.Cron
	entry   cron.EntryID
	mu      sync.Mutex
	running bool
	initial sync.WaitGroup

	resultMu sync.RWMutex
	last     *ProbeResult
}

// NewUpstreamProber creates a prober. It does not send anything until Start
// or Probe is called.
func NewUpstreamProber(cfg ProberConfig) (*UpstreamProber, error) {
	if cfg.UpstreamURL == nil {
		return nil, errors.New("health: upstream url is required")
	}
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return nil, fmt.Errorf("health: invalid probe schedule %q: %w", cfg.Schedule, err)
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &UpstreamProber{
		cfg:    cfg,
		target: probeURL(cfg.UpstreamURL, cfg.Path),
		client: client,
		logger: logger.With("component", "health.prober"),
		cron:   cron.New(),
	}, nil
}

func probeURL(base *url.URL, path string) string {
	u := *base
	if path == "" {
		path = "/"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawPath = ""
	return u.String()
}

// Start schedules probes and sends the first one in the background, so
// Check reports ErrNotProbed until it completes. With an empty schedule
// Start does nothing and Check always passes.
func (p *UpstreamProber) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.Schedule == "" {
		p.logger.Info("probe schedule not configured, upstream assumed ready")
		return nil
	}
	if p.running {
		return nil
	}

	id, err := p.cron.AddFunc(p.cfg.Schedule, func() { p.Probe(ctx) })
	if err != nil {
		return fmt.Errorf("health: failed to schedule probe: %w", err)
	}
	p.entry = id
	p.cron.Start()
	p.running = true

	p.initial.Add(1)
	go func() {
		defer p.initial.Done()
		p.Probe(ctx)
	}()

	p.logger.Info("upstream prober started",
		"schedule", p.cfg.Schedule,
		"target", p.target,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop stops scheduling and waits for running probes to finish.
func (p *UpstreamProber) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.initial.Wait()
	p.running = false
	p.logger.Info("upstream prober stopped")
}

// IsRunning reports whether probes are scheduled.
func (p *UpstreamProber) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// NextRun returns the time of the next scheduled probe, or the zero time.
func (p *UpstreamProber) NextRun() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return time.Time{}
	}
	return p.cron.Entry(p.entry).Next
}

// Probe sends a single probe and records the result.
func (p *UpstreamProber) Probe(ctx context.Context) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	result := ProbeResult{CheckedAt: start}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.target, nil)
	if err == nil {
		p.cfg.Credentials.Apply(req.Header)
		var resp *http.Response
		resp, err = p.client.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			_ = resp.Body.Close()
			result.StatusCode = resp.StatusCode
			if resp.StatusCode >= http.StatusInternalServerError {
				err = fmt.Errorf("upstream answered %d", resp.StatusCode)
			}
		}
	}
	result.Latency = time.Since(start)
	result.Err = err
	result.Healthy = err == nil

	p.record(result)
	return result
}

func (p *UpstreamProber) record(result ProbeResult) {
	p.resultMu.Lock()
	prev := p.last
	p.last = &result
	p.resultMu.Unlock()

	p.cfg.Metrics.UpdateUpstreamHealth(result.Healthy)

	changed := prev == nil || prev.Healthy != result.Healthy
	switch {
	case !result.Healthy && changed:
		p.logger.Warn("upstream probe failed",
			"target", p.target,
			"status", result.StatusCode,
			"error", result.Err,
		)
	case result.Healthy && changed:
		p.logger.Info("upstream probe succeeded",
			"target", p.target,
			"status", result.StatusCode,
			"latency_ms", result.Latency.Milliseconds(),
		)
	default:
		p.logger.Debug("upstream probe", "healthy", result.Healthy, "status", result.StatusCode)
	}
}

// Last returns the latest probe result, if any.
func (p *UpstreamProber) Last() (ProbeResult, bool) {
	p.resultMu.RLock()
	defer p.resultMu.RUnlock()
	if p.last == nil {
		return ProbeResult{}, false
	}
	return *p.last, true
}

// Check reports the cached probe result. It is meant to be registered with
// a Checker.
func (p *UpstreamProber) Check(context.Context) error {
	if p.cfg.Schedule == "" {
		return nil
	}
	last, ok := p.Last()
	if !ok {
		return ErrNotProbed
	}
	return last.Err
}
