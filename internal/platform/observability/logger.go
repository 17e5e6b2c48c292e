package observability

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hanko-field/storefront/internal/platform/requestctx"
)

const meterName = "github.com/hanko-field/storefront/internal/platform/observability"

// NewLogger builds a JSON zap logger with Cloud Logging field names at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	atomic := zap.NewAtomicLevel()
	if err := atomic.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return nil, fmt.Errorf("observability: invalid log level %q: %w", level, err)
	}

	cfg := zap.Config{
		Level:    atomic,
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:    "message",
			TimeKey:       "timestamp",
			LevelKey:      "severity",
			CallerKey:     "caller",
			StacktraceKey: "stacktrace",
			EncodeTime:    zapcore.RFC3339NanoTimeEncoder,
			EncodeCaller:  zapcore.ShortCallerEncoder,
			EncodeLevel: func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
				enc.AppendString(strings.ToUpper(l.String()))
			},
		},
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	return cfg.Build()
}

// ServiceLogFunc is the logging hook service dependencies accept.
type ServiceLogFunc func(ctx context.Context, event string, fields map[string]any)

// NewServiceLogger adapts zap to ServiceLogFunc. Each event is written through the request logger when
// one is on the context, and counted on the storefront.service.events counter.
func NewServiceLogger(base *zap.Logger, meter metric.Meter) (ServiceLogFunc, error) {
	if base == nil {
		base = zap.NewNop()
	}
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	events, err := meter.Int64Counter(
		"storefront.service.events",
		metric.WithDescription("Service events such as seller conflicts and partial bulk deletes"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: register event counter: %w", err)
	}

	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = base
		}
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		zfields := make([]zap.Field, 0, len(keys)+1)
		zfields = append(zfields, zap.String("event", event))
		for _, k := range keys {
			zfields = append(zfields, zap.Any(k, fields[k]))
		}
		if _, failed := fields["error"]; failed {
			logger.Warn(event, zfields...)
		} else {
			logger.Info(event, zfields...)
		}
		events.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
	}, nil
}
