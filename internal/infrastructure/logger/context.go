package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey         contextKey = "logger"
	requestIDKey      contextKey = "request_id"
	settleIndexKey    contextKey = "settle_index"
	paymentRequestKey contextKey = "payment_request"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID adds request ID to context and returns enriched logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	enriched := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, enriched), enriched
}

// WithSettlement scopes the context and logger to a single settlement event.
func WithSettlement(ctx context.Context, logger *zap.Logger, settleIndex uint64, paymentRequest string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, settleIndexKey, settleIndex)
	ctx = context.WithValue(ctx, paymentRequestKey, paymentRequest)
	enriched := logger.With(
		zap.Uint64("settle_index", settleIndex),
		zap.String("payment_request", Truncate(paymentRequest, 24)),
	)
	return WithContext(ctx, enriched), enriched
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetSettleIndex retrieves the settlement index from context.
func GetSettleIndex(ctx context.Context) (uint64, bool) {
	idx, ok := ctx.Value(settleIndexKey).(uint64)
	return idx, ok
}

// GetPaymentRequest retrieves the payment request from context.
func GetPaymentRequest(ctx context.Context) string {
	if pr, ok := ctx.Value(paymentRequestKey).(string); ok {
		return pr
	}
	return ""
}

// Truncate shortens long BOLT11 strings for log output.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// WithTraceContext adds trace_id and span_id from the context's span.
// If no valid span exists, returns the original logger unchanged.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}

// L returns the context logger enriched with trace correlation and the
// request ID when present.
//
// Usage: logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *zap.Logger {
	l := WithTraceContext(ctx, FromContext(ctx))
	if requestID := GetRequestID(ctx); requestID != "" {
		l = l.With(zap.String("request_id", requestID))
	}
	return l
}
