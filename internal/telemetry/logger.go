package telemetry

import (
	"context"
	"io"
	"os"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/szaher/tutoragent/internal/secrets"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// RequestIDHeader carries the correlation id in both directions.
const RequestIDHeader = "X-Request-Id"

// NewLogger creates a structured JSON logger at the given level ("debug",
// "info", "warn", "error"; anything else means info). Values in redact are
// scrubbed from every entry.
func NewLogger(w io.Writer, level string, redact ...string) *zap.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := secrets.NewRedactCore(zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(w),
		lvl,
	))
	for _, s := range redact {
		core.AddSecret(s)
	}
	return zap.New(core, zap.AddCaller())
}

// NewCorrelationID returns a fresh, lexically sortable unique id.
func NewCorrelationID() string {
	return ulid.Make().String()
}

// WithCorrelationID adds a correlation ID to the context.
// If id is empty, a new one is generated.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewCorrelationID()
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID retrieves the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestLogger returns a logger with request-scoped fields.
func RequestLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if id := CorrelationID(ctx); id != "" {
		return logger.With(zap.String("request_id", id))
	}
	return logger
}
