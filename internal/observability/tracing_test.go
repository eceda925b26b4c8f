package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNoopSpan(t *testing.T) {
	span := &noopSpan{}

	// All methods are no-ops and must not panic.
	span.End()
	span.SetStatus(SpanStatusOK, "ok")
	span.SetAttribute("key", "value")
	span.SetAttributes(map[string]any{"key": "value"})
	span.RecordError(errors.New("boom"))
	span.AddEvent("event", map[string]any{"key": "value"})

	ctx := span.SpanContext()
	assert.Empty(t, ctx.TraceID)
	assert.Empty(t, ctx.SpanID)
}

func TestNoopTracer(t *testing.T) {
	tracer := &noopTracer{}
	ctx := context.Background()

	newCtx, span := tracer.Start(ctx, "op")
	assert.Equal(t, ctx, newCtx, "noop tracer must not derive contexts")
	assert.IsType(t, &noopSpan{}, span)
	assert.NoError(t, tracer.Shutdown(ctx))
}

func TestLoggingTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewLoggingTracer(debugLogger(&buf), "sitesmith")

	_, span := tracer.Start(context.Background(), "provision.run")
	ls, ok := span.(*loggingSpan)
	require.True(t, ok)
	assert.Equal(t, "provision.run", ls.name)
	assert.Equal(t, SpanKindInternal, ls.kind)

	span.End()
	assert.Contains(t, buf.String(), "provision.run")
}

func TestLoggingTracer_SpanKindRecorded(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewLoggingTracer(debugLogger(&buf), "sitesmith")

	_, span := tracer.Start(context.Background(), "hosting.CreateSite",
		WithSpanKind(SpanKindClient),
		WithAttributes(map[string]any{AttrProviderName: "hosting"}),
	)
	ls, ok := span.(*loggingSpan)
	require.True(t, ok)
	assert.Equal(t, SpanKindClient, ls.kind)
	assert.Equal(t, "hosting", ls.attributes[AttrProviderName])

	span.End()
	assert.Contains(t, buf.String(), "kind=client")
}

func TestLoggingSpan_Attributes(t *testing.T) {
	var buf bytes.Buffer
	span := newLoggingSpan("test", SpanKindInternal, debugLogger(&buf), "trace123", "span456")

	span.SetAttribute("key1", "value1")
	span.SetAttributes(map[string]any{"key2": 42, "key3": true})

	assert.Equal(t, "value1", span.attributes["key1"])
	assert.Equal(t, 42, span.attributes["key2"])
	assert.Equal(t, true, span.attributes["key3"])
}

func TestLoggingSpan_RecordError(t *testing.T) {
	var buf bytes.Buffer
	span := newLoggingSpan("test", SpanKindInternal, debugLogger(&buf), "trace123", "span456")

	cause := errors.New("provider unavailable")
	span.RecordError(cause)
	assert.Equal(t, cause, span.err)
	assert.Equal(t, SpanStatusError, span.status)

	span.End()
	assert.Contains(t, buf.String(), "provider unavailable")
}

func TestLoggingSpan_AddEvent(t *testing.T) {
	var buf bytes.Buffer
	span := newLoggingSpan("test", SpanKindInternal, debugLogger(&buf), "trace123", "span456")

	span.AddEvent("state_changed", map[string]any{AttrRunState: "provisioning"})
	span.AddEvent("state_changed", nil)

	require.Len(t, span.events, 2)
	assert.Equal(t, "state_changed", span.events[0].name)
	assert.Equal(t, "provisioning", span.events[0].attrs[AttrRunState])
}

func TestLoggingSpan_SpanContext(t *testing.T) {
	var buf bytes.Buffer
	span := newLoggingSpan("test", SpanKindInternal, debugLogger(&buf), "trace123", "span456")

	ctx := span.SpanContext()
	assert.Equal(t, "trace123", ctx.TraceID)
	assert.Equal(t, "span456", ctx.SpanID)
}

func TestLoggingTracer_ChildSpanInheritsTraceID(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewLoggingTracer(debugLogger(&buf), "sitesmith")

	ctx, parent := tracer.Start(context.Background(), "parent")
	_, child := tracer.Start(ctx, "child")

	assert.Equal(t, parent.SpanContext().TraceID, child.SpanContext().TraceID)
	assert.NotEqual(t, parent.SpanContext().SpanID, child.SpanContext().SpanID)

	child.End()
	parent.End()
}

func TestSpanFromContext(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewLoggingTracer(debugLogger(&buf), "sitesmith")
	ctx, span := tracer.Start(context.Background(), "op")

	assert.Equal(t, span, SpanFromContext(ctx))
	assert.IsType(t, &noopSpan{}, SpanFromContext(context.Background()))
}

func TestSpanKind_String(t *testing.T) {
	assert.Equal(t, "internal", SpanKindInternal.String())
	assert.Equal(t, "server", SpanKindServer.String())
	assert.Equal(t, "client", SpanKindClient.String())
}

func TestGetSetTracer(t *testing.T) {
	original := GetTracer()
	defer SetTracer(original)

	replacement := &noopTracer{}
	SetTracer(replacement)
	assert.Equal(t, Tracer(replacement), GetTracer())

	_, span := StartSpan(context.Background(), "op")
	assert.IsType(t, &noopSpan{}, span)
	assert.NoError(t, ShutdownTracer(context.Background()))
}

func TestLoggingSpan_ConcurrentAccess(t *testing.T) {
	var buf bytes.Buffer
	span := newLoggingSpan("test", SpanKindInternal, debugLogger(&buf), "trace", "span")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			span.SetAttribute("key", idx)
			span.AddEvent("event", nil)
		}(i)
	}
	wg.Wait()
	span.End()
}

func TestLoggingTracer_NilLogger(t *testing.T) {
	tracer := NewLoggingTracer(nil, "sitesmith")
	require.NotNil(t, tracer)

	ctx, span := tracer.Start(context.Background(), "op")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End()
}
