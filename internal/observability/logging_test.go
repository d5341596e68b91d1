package observability

import (
	"context"
	"testing"

	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	return &Logger{Logger: zap.New(core)}, logs
}

func TestLoggerAttachesActiveSpanIDs(t *testing.T) {
	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	logger, logs := newObservedLogger()

	ctx, span := tp.Tracer("checkin").Start(context.Background(), "save_checkin_state")
	defer span.End()

	logger.Info(ctx, "checkin saved", map[string]interface{}{"user_id": 7})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "checkin saved", entries[0].Message)

	fields := entries[0].ContextMap()
	sc := span.SpanContext()
	assert.Equal(t, sc.TraceID().String(), fields["trace_id"])
	assert.Equal(t, sc.SpanID().String(), fields["span_id"])
	assert.EqualValues(t, 7, fields["user_id"])
}

func TestLoggerAttachesContextUserID(t *testing.T) {
	logger, logs := newObservedLogger()

	ctx := contextutils.WithUserID(context.Background(), 42)
	logger.Info(ctx, "plan generated", nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 42, entries[0].ContextMap()["user_id"])
}

func TestLoggerWithoutSpanOmitsTraceFields(t *testing.T) {
	logger, logs := newObservedLogger()

	logger.Info(context.Background(), "startup complete", nil)

	entries := logs.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.NotContains(t, fields, "trace_id")
	assert.NotContains(t, fields, "span_id")
}
