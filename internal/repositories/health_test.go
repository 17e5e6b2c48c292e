package repositories

import (
	"context"
	"errors"
	"testing"
	"time"
)

type pingFunc struct {
	name string
	fn   func(context.Context) error
}

func (p pingFunc) Name() string                   { return p.name }
func (p pingFunc) Ping(ctx context.Context) error { return p.fn(ctx) }

func TestReadinessProbeAllHealthy(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	probe, err := NewReadinessProbe(0, func() time.Time { return now },
		pingFunc{"firestore", func(context.Context) error { return nil }},
		pingFunc{"redis", func(context.Context) error { return nil }},
	)
	if err != nil {
		t.Fatalf("NewReadinessProbe: %v", err)
	}

	report := probe.Collect(context.Background())
	if report.Status != HealthStatusOK {
		t.Fatalf("expected ok, got %s", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(report.Checks))
	}
	if report.Checks["redis"].CheckedAt != now {
		t.Fatalf("unexpected checkedAt %s", report.Checks["redis"].CheckedAt)
	}
}

func TestReadinessProbeDegradedAndTimeout(t *testing.T) {
	probe, err := NewReadinessProbe(20*time.Millisecond, nil,
		pingFunc{"redis", func(context.Context) error { return errors.New("connection refused") }},
	)
	if err != nil {
		t.Fatalf("NewReadinessProbe: %v", err)
	}
	report := probe.Collect(context.Background())
	if report.Status != HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Checks["redis"].Detail != "connection refused" {
		t.Fatalf("unexpected detail %q", report.Checks["redis"].Detail)
	}

	probe, _ = NewReadinessProbe(20*time.Millisecond, nil,
		pingFunc{"redis", func(context.Context) error { return nil }},
		pingFunc{"firestore", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)
	report = probe.Collect(context.Background())
	if report.Status != HealthStatusError {
		t.Fatalf("expected error, got %s", report.Status)
	}
	if report.Checks["firestore"].Detail != "timeout" {
		t.Fatalf("expected timeout detail, got %q", report.Checks["firestore"].Detail)
	}
}

func TestNewReadinessProbeRequiresCheckers(t *testing.T) {
	if _, err := NewReadinessProbe(0, nil); err == nil {
		t.Fatal("expected error without checkers")
	}
}
