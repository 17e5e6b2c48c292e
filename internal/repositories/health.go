package repositories

import (
	"context"
	"errors"
	"sync"
	"time"
)

const defaultProbeTimeout = 1500 * time.Millisecond

// HealthStatus summarises a dependency probe.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusError    HealthStatus = "error"
)

// HealthCheckResult records one probe outcome.
type HealthCheckResult struct {
	Status    HealthStatus
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates probe results for the readiness endpoint.
type HealthReport struct {
	Status      HealthStatus
	Checks      map[string]HealthCheckResult
	GeneratedAt time.Time
}

// ReadinessProbe pings every backing store concurrently.
type ReadinessProbe struct {
	checkers []HealthChecker
	timeout  time.Duration
	now      func() time.Time
}

// NewReadinessProbe builds a probe over checkers. A zero timeout uses the default.
func NewReadinessProbe(timeout time.Duration, clock func() time.Time, checkers ...HealthChecker) (*ReadinessProbe, error) {
	if len(checkers) == 0 {
		return nil, errors.New("readiness probe: at least one checker is required")
	}
	for _, c := range checkers {
		if c == nil {
			return nil, errors.New("readiness probe: checker is nil")
		}
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	if clock == nil {
		clock = time.Now
	}
	return &ReadinessProbe{checkers: checkers, timeout: timeout, now: clock}, nil
}

// Collect runs every checker with its own timeout. A timeout or cancellation is an error, any other
// failure degrades the report.
func (p *ReadinessProbe) Collect(ctx context.Context) HealthReport {
	results := make(map[string]HealthCheckResult, len(p.checkers))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, checker := range p.checkers {
		wg.Add(1)
		go func(checker HealthChecker) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()

			start := p.now()
			err := checker.Ping(checkCtx)
			end := p.now()

			result := HealthCheckResult{Status: HealthStatusOK, Detail: "ok", Latency: end.Sub(start), CheckedAt: end}
			switch {
			case err == nil:
			case errors.Is(err, context.DeadlineExceeded):
				result.Status, result.Detail = HealthStatusError, "timeout"
			case errors.Is(err, context.Canceled):
				result.Status, result.Detail = HealthStatusError, "cancelled"
			default:
				result.Status, result.Detail = HealthStatusDegraded, err.Error()
			}

			mu.Lock()
			results[checker.Name()] = result
			mu.Unlock()
		}(checker)
	}
	wg.Wait()

	status := HealthStatusOK
	for _, r := range results {
		if r.Status == HealthStatusError {
			status = HealthStatusError
			break
		}
		if r.Status == HealthStatusDegraded {
			status = HealthStatusDegraded
		}
	}
	return HealthReport{Status: status, Checks: results, GeneratedAt: p.now()}
}
