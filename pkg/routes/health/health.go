package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	probeTimeout = 2 * time.Second
)

// Pinger is a dependency the health endpoint can probe
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	ReportedAt time.Time               `json:"reported_at"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Checker serves liveness, readiness and dependency health.
// Dependencies register themselves as they start, so checks may be added while serving.
type Checker struct {
	version string
	started time.Time
	ready   atomic.Bool

	mu     sync.RWMutex
	checks map[string]Pinger
}

func NewChecker(version string) *Checker {
	return &Checker{
		version: version,
		started: time.Now(),
		checks:  make(map[string]Pinger),
	}
}

// AddCheck registers a probe under name, replacing any earlier probe with that name
func (c *Checker) AddCheck(name string, pinger Pinger) *Checker {
	c.mu.Lock()
	c.checks[name] = pinger
	c.mu.Unlock()
	return c
}

func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
}

// Health probes every registered dependency in parallel and answers 503 if any fail
func (c *Checker) Health(ctx echo.Context) error {
	results := c.probeAll(ctx.Request().Context())

	status := &HealthStatus{
		Status:     StatusHealthy,
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Checks:     results,
		ReportedAt: time.Now().UTC(),
	}
	code := http.StatusOK
	for _, result := range results {
		if result.Status != StatusHealthy {
			status.Status = StatusUnhealthy
			code = http.StatusServiceUnavailable
			break
		}
	}
	return ctx.JSON(code, status)
}

func (c *Checker) probeAll(ctx context.Context) map[string]*CheckResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]*CheckResult, len(c.checks))
	)
	for name, pinger := range c.checks {
		wg.Add(1)
		go func(name string, pinger Pinger) {
			defer wg.Done()
			result := probe(ctx, pinger)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, pinger)
	}
	wg.Wait()
	return results
}

func probe(ctx context.Context, pinger Pinger) *CheckResult {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	if err := pinger.Ping(ctx); err != nil {
		return &CheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}
	return &CheckResult{Status: StatusHealthy, Latency: time.Since(start).String()}
}

// Live answers 200 whenever the process can serve HTTP
func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready answers 200 only once every startup dependency is running
func (c *Checker) Ready(ctx echo.Context) error {
	if !c.ready.Load() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
