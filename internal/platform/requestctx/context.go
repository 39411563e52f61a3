// Package requestctx holds the values a breakdown request carries from the HTTP
// edge down to the calculation service.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	traceKey
	scopeKey
)

var noopLogger = zap.NewNop()

// TraceInfo is the Cloud Trace context parsed from the inbound request.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// BreakdownScope identifies the basket a calculation runs for. Identifiers are
// stored as given; callers sanitise them before they reach the context.
type BreakdownScope struct {
	OrganizerID   string
	BasketID      string
	BasketVersion int64
}

// Fields renders the scope as log fields, omitting empty identifiers.
func (s BreakdownScope) Fields() []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if s.BasketID != "" {
		fields = append(fields, zap.String("basketId", s.BasketID), zap.Int64("basketVersion", s.BasketVersion))
	}
	if s.OrganizerID != "" {
		fields = append(fields, zap.String("organizerId", s.OrganizerID))
	}
	return fields
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(orBackground(ctx), loggerKey, logger)
}

// Logger returns the request logger, or a no-op logger when none is attached.
func Logger(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok && logger != nil {
			return logger
		}
	}
	return noopLogger
}

// NoopLogger lets callers detect that no request logger was attached.
func NoopLogger() *zap.Logger { return noopLogger }

func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return context.WithValue(orBackground(ctx), traceKey, info)
}

func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceKey).(TraceInfo)
	return info, ok
}

func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithBreakdownScope attaches scope and scopes the request logger to it, so
// anything logging through Logger downstream names the basket.
func WithBreakdownScope(ctx context.Context, scope BreakdownScope) context.Context {
	ctx = context.WithValue(orBackground(ctx), scopeKey, scope)
	return WithLogger(ctx, Logger(ctx).With(scope.Fields()...))
}

func BreakdownScopeFrom(ctx context.Context) (BreakdownScope, bool) {
	if ctx == nil {
		return BreakdownScope{}, false
	}
	scope, ok := ctx.Value(scopeKey).(BreakdownScope)
	return scope, ok
}
