// Package health serves liveness, readiness and dependency checks plus the
// prometheus scrape endpoint.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	checkTimeout = 3 * time.Second
)

// Pinger is anything health can check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type Checker struct {
	checks  map[string]Pinger
	version string
	started time.Time
	ready   atomic.Bool
}

// NewChecker checks the database; other dependencies are added with AddCheck.
func NewChecker(db Pinger, version string) *Checker {
	return &Checker{
		checks:  map[string]Pinger{"database": db},
		version: version,
		started: time.Now(),
	}
}

func (c *Checker) AddCheck(name string, p Pinger) {
	c.checks[name] = p
}

// SetReady flips readiness once startup has finished.
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
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

// Health checks every dependency in parallel. Any failure turns the whole
// report unhealthy with a 503.
func (c *Checker) Health(ctx echo.Context) error {
	results := c.checkAll(ctx.Request().Context())

	status := &HealthStatus{
		Status:     StatusHealthy,
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Checks:     results,
		ReportedAt: time.Now().UTC(),
	}
	for _, r := range results {
		if r.Status != StatusHealthy {
			status.Status = StatusUnhealthy
		}
	}

	code := http.StatusOK
	if status.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, status)
}

func (c *Checker) checkAll(ctx context.Context) map[string]*CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		g       errgroup.Group
		results = make(map[string]*CheckResult, len(c.checks))
	)
	for name, p := range c.checks {
		g.Go(func() error {
			result := &CheckResult{Status: StatusUnhealthy, Message: name + " not configured"}
			if p != nil {
				start := time.Now()
				if err := p.PingContext(ctx); err != nil {
					result.Message = err.Error()
				} else {
					result = &CheckResult{Status: StatusHealthy, Latency: time.Since(start).String()}
				}
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready reports 503 until SetReady(true).
func (c *Checker) Ready(ctx echo.Context) error {
	if !c.ready.Load() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
