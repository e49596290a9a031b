// Package health provides liveness and readiness checking with
// per-check failure thresholds.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/daracheol/lingotutor/pkg/logger"
)

// Check represents a single health check that can succeed or fail.
type Check interface {
	// Name returns the human-readable name of this check.
	Name() string

	// Check performs the health check. Returns nil if healthy.
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function to the Check interface.
type CheckFunc struct {
	name string
	fn   func(context.Context) error
}

// NewCheckFunc creates a CheckFunc with the given name and function.
func NewCheckFunc(name string, fn func(context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

// Name returns the name of this check.
func (c *CheckFunc) Name() string { return c.name }

// Check executes the check function.
func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckResult is the outcome of a single health check execution.
type CheckResult struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// Status is the aggregate result of a liveness or readiness probe.
type Status struct {
	Healthy bool          `json:"healthy"`
	Checks  []CheckResult `json:"checks"`
}

// Checker manages and executes liveness and readiness checks.
type Checker struct {
	livenessChecks   []Check
	readinessChecks  []Check
	timeout          time.Duration
	failureCount     map[string]int
	failureThreshold int
	log              logger.Logger
	mu               sync.RWMutex
}

// Option is a functional option for configuring a Checker.
type Option func(*Checker)

// WithTimeout sets the timeout for individual health checks. Default 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) { c.timeout = d }
}

// WithLogger sets the logger for health check operations.
func WithLogger(l logger.Logger) Option {
	return func(c *Checker) { c.log = l }
}

// WithFailureThreshold sets the number of consecutive failures before a
// check is reported unhealthy. Default 3.
func WithFailureThreshold(threshold int) Option {
	return func(c *Checker) {
		if threshold > 0 {
			c.failureThreshold = threshold
		}
	}
}

// New creates a Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		timeout:          5 * time.Second,
		failureThreshold: 3,
		failureCount:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddLivenessCheck registers a liveness check. Liveness failures mean
// the process should be restarted.
func (c *Checker) AddLivenessCheck(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.livenessChecks = append(c.livenessChecks, check)
}

// AddReadinessCheck registers a readiness check. Readiness failures
// mean the service cannot currently handle requests.
func (c *Checker) AddReadinessCheck(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readinessChecks = append(c.readinessChecks, check)
}

// CheckLiveness executes all liveness checks.
func (c *Checker) CheckLiveness(ctx context.Context) (*Status, error) {
	c.mu.RLock()
	checks := c.livenessChecks
	c.mu.RUnlock()
	return c.execute(ctx, checks)
}

// CheckReadiness executes all readiness checks.
func (c *Checker) CheckReadiness(ctx context.Context) (*Status, error) {
	c.mu.RLock()
	checks := c.readinessChecks
	c.mu.RUnlock()
	return c.execute(ctx, checks)
}

func (c *Checker) execute(ctx context.Context, checks []Check) (*Status, error) {
	if len(checks) == 0 {
		return &Status{Healthy: true, Checks: []CheckResult{}}, nil
	}

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(idx int, chk Check) {
			defer wg.Done()
			results[idx] = c.executeOne(ctx, chk)
		}(i, check)
	}
	wg.Wait()

	status := &Status{Healthy: true, Checks: results}
	var failed []string
	for _, result := range results {
		if !result.Healthy {
			status.Healthy = false
			failed = append(failed, result.Name)
		}
	}

	if !status.Healthy {
		return status, fmt.Errorf("health checks failed: %v", failed)
	}
	return status, nil
}

func (c *Checker) executeOne(parentCtx context.Context, check Check) CheckResult {
	ctx, cancel := context.WithTimeout(parentCtx, c.timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(ctx)
	latency := time.Since(start)

	result := CheckResult{Name: check.Name(), Latency: latency}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.failureCount[check.Name()] = 0
		result.Healthy = true
		return result
	}

	c.failureCount[check.Name()]++
	if c.failureCount[check.Name()] < c.failureThreshold {
		// Below threshold, still reported healthy.
		result.Healthy = true
		return result
	}

	result.Healthy = false
	result.Error = err.Error()
	if c.log != nil {
		c.log.Warn("Health check failed",
			logger.StringField("check", check.Name()),
			logger.ErrorField(err),
			logger.IntField("failures", c.failureCount[check.Name()]),
			logger.DurationField("latency", latency),
		)
	}
	return result
}
