package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/hanko-field/storefront/internal/platform/httpx"
	"github.com/hanko-field/storefront/internal/repositories"
)

// ReadinessReporter aggregates backing store probes.
type ReadinessReporter interface {
	Collect(ctx context.Context) repositories.HealthReport
}

// HealthHandlers serves /healthz and /readyz.
type HealthHandlers struct {
	probe   ReadinessReporter
	clock   func() time.Time
	started time.Time
}

// HealthOption customises health handlers.
type HealthOption func(*HealthHandlers)

// WithReadinessProbe attaches the store probe used by /readyz.
func WithReadinessProbe(probe ReadinessReporter) HealthOption {
	return func(h *HealthHandlers) {
		h.probe = probe
	}
}

// WithHealthClock overrides the time source.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers builds health handlers. Without a probe /readyz reports ok.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.started = h.clock()
	return h
}

// Healthz is the liveness endpoint. It never touches a backing store.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.started).String(),
		"timestamp": now.Format(time.RFC3339),
	})
}

// Readyz reports 503 unless every store probe is ok.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.probe == nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": repositories.HealthStatusOK})
		return
	}
	report := h.probe.Collect(r.Context())
	checks := make(map[string]any, len(report.Checks))
	for name, check := range report.Checks {
		entry := map[string]any{
			"status":    check.Status,
			"latencyMs": check.Latency.Milliseconds(),
		}
		if check.Detail != "" {
			entry["detail"] = check.Detail
		}
		checks[name] = entry
	}
	status := http.StatusOK
	if report.Status != repositories.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, map[string]any{
		"status":      report.Status,
		"checks":      checks,
		"generatedAt": report.GeneratedAt.UTC().Format(time.RFC3339),
	})
}
