package log

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type TraceContextProvider interface {
	WithTrace(context.Context, string) context.Context
	FromContext(context.Context) string
	ContextCollector
}

var DefaultTrace TraceContextProvider = TraceContext{}

// WithNewTrace tags ctx with a random trace id, so every diagnostic line of
// one run can be correlated.
func WithNewTrace(ctx context.Context) context.Context {
	return DefaultTrace.WithTrace(ctx, uuid.New().String())
}

type TraceContext struct{}

type traceContextKey struct{}

func (TraceContext) WithTrace(ctx context.Context, value string) context.Context {
	return context.WithValue(ctx, traceContextKey{}, value)
}

func (TraceContext) FromContext(ctx context.Context) string {
	val, _ := ctx.Value(traceContextKey{}).(string)
	return val
}

func (tc TraceContext) LogFieldsFromContext(ctx context.Context) []slog.Attr {
	val := tc.FromContext(ctx)
	if val == "" {
		return []slog.Attr{}
	}
	return []slog.Attr{
		slog.String("trace", val),
	}
}
