package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Span status values.
const (
	SpanOK    = "ok"
	SpanError = "error"
)

// Span represents a single timed operation within a request.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Status    string            `json:"status"`
	Tags      map[string]string `json:"tags,omitempty"`

	tracer *Tracer
}

// SetTag records a tag on the span. It is a no-op on a nil span.
func (s *Span) SetTag(key, value string) {
	if s == nil {
		return
	}
	if s.Tags == nil {
		s.Tags = map[string]string{}
	}
	s.Tags[key] = value
}

// Tracer creates spans and hands finished ones to its exporter. A nil
// *Tracer is valid and records nothing.
type Tracer struct {
	exporter SpanExporter
}

// SpanExporter receives completed spans.
type SpanExporter interface {
	ExportSpan(span Span)
}

// SpanExporterFunc is a function adapter for SpanExporter.
type SpanExporterFunc func(span Span)

// ExportSpan calls the function.
func (f SpanExporterFunc) ExportSpan(span Span) { f(span) }

// NewTracer creates a tracer. A nil exporter discards spans.
func NewTracer(exporter SpanExporter) *Tracer {
	return &Tracer{exporter: exporter}
}

// LogExporter writes each finished span as one debug entry.
func LogExporter(logger *zap.Logger) SpanExporter {
	return SpanExporterFunc(func(span Span) {
		logger.Debug("span",
			zap.String("trace_id", span.TraceID),
			zap.String("span_id", span.SpanID),
			zap.String("parent_id", span.ParentID),
			zap.String("operation", span.Operation),
			zap.String("status", span.Status),
			zap.Int64("duration_ms", span.Duration.Milliseconds()),
			zap.Any("tags", span.Tags),
		)
	})
}

type traceContextKey struct{}

// StartSpan opens a span and stores it in the returned context. The trace
// id is inherited from a parent span in ctx, else taken from the request's
// correlation id.
func (t *Tracer) StartSpan(ctx context.Context, operation string, tags map[string]string) (context.Context, *Span) {
	if t == nil {
		return ctx, nil
	}
	span := &Span{
		TraceID:   CorrelationID(ctx),
		SpanID:    NewCorrelationID(),
		Operation: operation,
		StartTime: time.Now(),
		Status:    SpanOK,
		Tags:      tags,
		tracer:    t,
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	}
	if span.TraceID == "" {
		span.TraceID = NewCorrelationID()
	}
	return context.WithValue(ctx, traceContextKey{}, span), span
}

// StartChildSpan opens a span under the span already in ctx, using that
// span's tracer. Without a parent it returns ctx and a nil span.
func StartChildSpan(ctx context.Context, operation string, tags map[string]string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return ctx, nil
	}
	return parent.tracer.StartSpan(ctx, operation, tags)
}

// SpanFromContext returns the innermost open span, or nil.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(traceContextKey{}).(*Span)
	return span
}

// End completes the span and exports it. An empty status keeps SpanOK.
func (s *Span) End(status string) {
	if s == nil {
		return
	}
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	if status != "" {
		s.Status = status
	}
	if s.tracer != nil && s.tracer.exporter != nil {
		s.tracer.exporter.ExportSpan(*s)
	}
}

// InvocationTags returns standard tags for an agent invocation span.
func InvocationTags(kind, userID string) map[string]string {
	return map[string]string{
		"agent":   kind,
		"user_id": userID,
	}
}

// LLMCallTags returns standard tags for a model call span.
func LLMCallTags(model string, inputTokens, outputTokens int) map[string]string {
	return map[string]string{
		"model":         model,
		"input_tokens":  strconv.Itoa(inputTokens),
		"output_tokens": strconv.Itoa(outputTokens),
	}
}
