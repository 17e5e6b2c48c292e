package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hanko-field/storefront/internal/platform/requestctx"
)

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger("verbose")
	assert.Error(t, err)

	logger, err := NewLogger("WARN")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestServiceLoggerPrefersRequestLogger(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.DebugLevel)
	reqCore, reqLogs := observer.New(zapcore.DebugLevel)

	log, err := NewServiceLogger(zap.New(baseCore), noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	log(context.Background(), "cart.seller_conflict", map[string]any{"customerId": "c1"})
	require.Equal(t, 1, baseLogs.Len())
	entry := baseLogs.All()[0]
	assert.Equal(t, "cart.seller_conflict", entry.Message)
	assert.Equal(t, "c1", entry.ContextMap()["customerId"])

	ctx := requestctx.WithLogger(context.Background(), zap.New(reqCore))
	log(ctx, "catalog.event_publish_failed", map[string]any{"error": "boom"})
	require.Equal(t, 1, reqLogs.Len())
	assert.Equal(t, zapcore.WarnLevel, reqLogs.All()[0].Level)
	assert.Equal(t, 1, baseLogs.Len())
}

func TestParseCloudTrace(t *testing.T) {
	sc, ok := parseCloudTrace("105445aa7843bc8bf206b12000100000/1;o=1")
	require.True(t, ok)
	assert.Equal(t, "105445aa7843bc8bf206b12000100000", sc.TraceID().String())
	assert.Equal(t, "0000000000000001", sc.SpanID().String())
	assert.True(t, sc.IsSampled())
	assert.True(t, sc.IsRemote())

	for _, header := range []string{"", "nope", "zz/1;o=1", "105445aa7843bc8bf206b12000100000/;o=1"} {
		_, ok := parseCloudTrace(header)
		assert.False(t, ok, header)
	}
}

func TestTraceMiddlewareStoresTraceInfo(t *testing.T) {
	var info requestctx.TraceInfo
	handler := Trace("sf-dev")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, _ = requestctx.Trace(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	req.Header.Set(cloudTraceHeader, "105445aa7843bc8bf206b12000100000/42;o=0")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "sf-dev", info.ProjectID)
	assert.Equal(t, "105445aa7843bc8bf206b12000100000", info.TraceID)
}

func TestRecoveryWritesJSONError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := chi.NewRouter()
	r.Use(InjectLogger(zap.New(core)), RequestLogger(), Recovery())
	r.Get("/boom/{id}", func(http.ResponseWriter, *http.Request) { panic("kaboom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom/1", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_server_error")

	completed := logs.FilterMessage("request completed").All()
	require.Len(t, completed, 1)
	assert.Equal(t, "/boom/{id}", completed[0].ContextMap()["route"])
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestCleanStripsControlCharacters(t *testing.T) {
	assert.Equal(t, "abc", clean("a\nb\x00c", 10))
	assert.Equal(t, strings.Repeat("x", 5), clean(strings.Repeat("x", 20), 5))
}
