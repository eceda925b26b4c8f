package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SpanKind classifies what a span measures.
type SpanKind int

const (
	// SpanKindInternal is an in-process operation.
	SpanKindInternal SpanKind = iota
	// SpanKindServer is the handling of an inbound request.
	SpanKindServer
	// SpanKindClient is an outbound call to a provider.
	SpanKindClient
)

func (k SpanKind) String() string {
	switch k {
	case SpanKindServer:
		return "server"
	case SpanKindClient:
		return "client"
	default:
		return "internal"
	}
}

// SpanStatus represents the status of a span.
type SpanStatus int

const (
	// SpanStatusUnset indicates the span status is not set.
	SpanStatusUnset SpanStatus = iota
	// SpanStatusOK indicates the operation completed successfully.
	SpanStatusOK
	// SpanStatusError indicates the operation failed.
	SpanStatusError
)

// Span represents a unit of work or operation.
type Span interface {
	// End completes the span.
	End()
	// SetStatus sets the span status.
	SetStatus(status SpanStatus, description string)
	// SetAttribute sets a span attribute.
	SetAttribute(key string, value any)
	// SetAttributes sets multiple span attributes.
	SetAttributes(attrs map[string]any)
	// RecordError records an error on the span.
	RecordError(err error)
	// AddEvent adds an event to the span.
	AddEvent(name string, attrs map[string]any)
	// SpanContext returns the span context for propagation.
	SpanContext() SpanContext
}

// SpanContext contains identifying trace information about a Span.
type SpanContext struct {
	TraceID string
	SpanID  string
}

// Tracer creates spans for tracing operations.
type Tracer interface {
	// Start creates a new span and returns it along with a new context.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	// Shutdown gracefully shuts down the tracer.
	Shutdown(ctx context.Context) error
}

// SpanOption configures a span.
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind       SpanKind
	attributes map[string]any
}

// WithSpanKind sets the span kind.
func WithSpanKind(kind SpanKind) SpanOption {
	return func(cfg *spanConfig) {
		cfg.kind = kind
	}
}

// WithAttributes sets initial span attributes.
func WithAttributes(attrs map[string]any) SpanOption {
	return func(cfg *spanConfig) {
		cfg.attributes = attrs
	}
}

// noopSpan is a span that does nothing.
type noopSpan struct{}

func (s *noopSpan) End()                                       {}
func (s *noopSpan) SetStatus(status SpanStatus, desc string)   {}
func (s *noopSpan) SetAttribute(key string, value any)         {}
func (s *noopSpan) SetAttributes(attrs map[string]any)         {}
func (s *noopSpan) RecordError(err error)                      {}
func (s *noopSpan) AddEvent(name string, attrs map[string]any) {}
func (s *noopSpan) SpanContext() SpanContext                   { return SpanContext{} }

// noopTracer is a tracer that does nothing.
type noopTracer struct{}

func (t *noopTracer) Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	return ctx, &noopSpan{}
}

func (t *noopTracer) Shutdown(ctx context.Context) error {
	return nil
}

// loggingSpan is a span that logs operations.
type loggingSpan struct {
	name       string
	kind       SpanKind
	startTime  time.Time
	logger     *slog.Logger
	attributes map[string]any
	events     []spanEvent
	status     SpanStatus
	statusDesc string
	err        error
	traceID    string
	spanID     string
	mu         sync.Mutex
}

type spanEvent struct {
	name  string
	time  time.Time
	attrs map[string]any
}

func newLoggingSpan(name string, kind SpanKind, logger *slog.Logger, traceID, spanID string) *loggingSpan {
	return &loggingSpan{
		name:       name,
		kind:       kind,
		startTime:  time.Now(),
		logger:     logger,
		attributes: make(map[string]any),
		traceID:    traceID,
		spanID:     spanID,
	}
}

func (s *loggingSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	duration := time.Since(s.startTime)

	attrs := []any{
		"span", s.name,
		"kind", s.kind.String(),
		"duration_ms", duration.Milliseconds(),
		"trace_id", s.traceID,
		"span_id", s.spanID,
	}

	for k, v := range s.attributes {
		attrs = append(attrs, k, v)
	}

	if s.err != nil {
		attrs = append(attrs, "error", s.err.Error())
		s.logger.Error("span completed with error", attrs...)
	} else if s.status == SpanStatusError {
		attrs = append(attrs, "status", "error", "status_description", s.statusDesc)
		s.logger.Warn("span completed with error status", attrs...)
	} else {
		s.logger.Debug("span completed", attrs...)
	}
}

func (s *loggingSpan) SetStatus(status SpanStatus, desc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.statusDesc = desc
}

func (s *loggingSpan) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes[key] = value
}

func (s *loggingSpan) SetAttributes(attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range attrs {
		s.attributes[k] = v
	}
}

func (s *loggingSpan) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.status = SpanStatusError
}

func (s *loggingSpan) AddEvent(name string, attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, spanEvent{
		name:  name,
		time:  time.Now(),
		attrs: attrs,
	})
	s.logger.Debug("span event", "span", s.name, "event", name, "trace_id", s.traceID)
}

func (s *loggingSpan) SpanContext() SpanContext {
	return SpanContext{
		TraceID: s.traceID,
		SpanID:  s.spanID,
	}
}

// loggingTracer logs span lifecycles. It is the tracer used when the server
// runs at debug log level; there is no trace export backend.
type loggingTracer struct {
	logger      *slog.Logger
	serviceName string
	spanCounter uint64
	mu          sync.Mutex
}

// NewLoggingTracer creates a new logging tracer for development/debugging.
func NewLoggingTracer(logger *slog.Logger, serviceName string) Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingTracer{
		logger:      logger,
		serviceName: serviceName,
	}
}

func (t *loggingTracer) Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	cfg := &spanConfig{
		kind:       SpanKindInternal,
		attributes: make(map[string]any),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	t.mu.Lock()
	t.spanCounter++
	spanID := fmt.Sprintf("%016x", t.spanCounter)
	t.mu.Unlock()

	// Child spans inherit the trace ID from the context.
	traceID := getTraceIDFromContext(ctx)
	if traceID == "" {
		traceID = fmt.Sprintf("%032x", time.Now().UnixNano())
	}

	span := newLoggingSpan(name, cfg.kind, t.logger, traceID, spanID)
	span.SetAttributes(cfg.attributes)

	t.logger.Debug("span started",
		"span", name,
		"kind", cfg.kind.String(),
		"trace_id", traceID,
		"span_id", spanID,
		"service", t.serviceName,
	)

	return contextWithSpan(ctx, span), span
}

func (t *loggingTracer) Shutdown(ctx context.Context) error {
	t.logger.Info("tracer shutdown", "service", t.serviceName)
	return nil
}

// Context keys for span propagation.
type spanContextKey struct{}
type traceIDContextKey struct{}

func contextWithSpan(ctx context.Context, span Span) context.Context {
	ctx = context.WithValue(ctx, spanContextKey{}, span)
	if ls, ok := span.(*loggingSpan); ok {
		ctx = context.WithValue(ctx, traceIDContextKey{}, ls.traceID)
	}
	return ctx
}

// SpanFromContext returns the current span from context, or a noop span.
func SpanFromContext(ctx context.Context) Span {
	if span, ok := ctx.Value(spanContextKey{}).(Span); ok {
		return span
	}
	return &noopSpan{}
}

func getTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDContextKey{}).(string); ok {
		return traceID
	}
	return ""
}

// Global tracer instance. Tracing is off (noop) unless a tracer is set.
var (
	globalTracer   Tracer = &noopTracer{}
	globalTracerMu sync.RWMutex
)

// GetTracer returns the global tracer instance.
func GetTracer() Tracer {
	globalTracerMu.RLock()
	defer globalTracerMu.RUnlock()
	return globalTracer
}

// SetTracer sets the global tracer instance.
func SetTracer(t Tracer) {
	globalTracerMu.Lock()
	defer globalTracerMu.Unlock()
	globalTracer = t
}

// ShutdownTracer gracefully shuts down the global tracer.
func ShutdownTracer(ctx context.Context) error {
	globalTracerMu.RLock()
	t := globalTracer
	globalTracerMu.RUnlock()
	return t.Shutdown(ctx)
}

// StartSpan starts a new span using the global tracer.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	return GetTracer().Start(ctx, name, opts...)
}

// Span attribute keys used across the orchestrator and provider adapters.
const (
	AttrRunID        = "run.id"
	AttrRunState     = "run.state"
	AttrClientID     = "client.id"
	AttrTemplateID   = "template.id"
	AttrSiteID       = "site.id"
	AttrDeployID     = "deploy.id"
	AttrEnvironment  = "deploy.environment"
	AttrProviderName = "provider.name"
	AttrDNSHostname  = "dns.hostname"
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)
