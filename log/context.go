package log

import (
	"context"
	"log/slog"
	"sort"
)

type ContextCollector interface {
	LogFieldsFromContext(context.Context) []slog.Attr
}

var DefaultContext FieldContextProvider = AttrContext{}

type FieldContextProvider interface {
	WithAttrs(context.Context, []slog.Attr) context.Context
	ContextCollector
}

// WrappedContext is both a context and a logger, allowing either syntax
// log.WithField(ctx, "key", "val").Debug()
// or
// ctx = log.WithField(ctx, "key", "val")
type WrappedContext struct {
	context.Context
}

func (ctx WrappedContext) Debug(msg string) {
	Debug(ctx, msg)
}

func (ctx WrappedContext) Error(msg string) {
	Error(ctx, msg)
}

// WithFields accepts alternating keys and values, slog.Attr values, or
// map[string]any, in any mix.
func WithFields(ctx context.Context, args ...any) *WrappedContext {
	return &WrappedContext{
		Context: DefaultContext.WithAttrs(ctx, collectArgs(args...)),
	}
}

func WithField(ctx context.Context, args ...any) *WrappedContext {
	return WithFields(ctx, args...)
}

func WithError(ctx context.Context, err error) *WrappedContext {
	return WithField(ctx, "error", err.Error())
}

// AttrContext stores fields as an ordered attr list in the context.
type AttrContext struct{}

type attrContextKey struct{}

// WithAttrs merges attrs over the fields already in parent. A key which is
// already present is replaced where it stands, new keys are appended.
func (AttrContext) WithAttrs(parent context.Context, attrs []slog.Attr) context.Context {
	existing, ok := parent.Value(attrContextKey{}).([]slog.Attr)
	if !ok {
		return context.WithValue(parent, attrContextKey{}, attrs)
	}

	pending := make(map[string]slog.Attr, len(attrs))
	for _, attr := range attrs {
		pending[attr.Key] = attr
	}

	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	for _, attr := range existing {
		if replacement, ok := pending[attr.Key]; ok {
			merged = append(merged, replacement)
			delete(pending, attr.Key)
			continue
		}
		merged = append(merged, attr)
	}

	for _, attr := range attrs {
		if _, ok := pending[attr.Key]; ok {
			merged = append(merged, attr)
			delete(pending, attr.Key)
		}
	}

	return context.WithValue(parent, attrContextKey{}, merged)
}

func (AttrContext) LogFieldsFromContext(ctx context.Context) []slog.Attr {
	values, ok := ctx.Value(attrContextKey{}).([]slog.Attr)
	if !ok {
		return []slog.Attr{}
	}
	return values
}

func mapToAttrs(fields map[string]any) []slog.Attr {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return attrs
}

func collectArgs(args ...any) []slog.Attr {
	var attrs []slog.Attr
	var next []slog.Attr
	for len(args) > 0 {
		next, args = shiftNextArg(args)
		attrs = append(attrs, next...)
	}
	return attrs
}

const badKey = "!BADKEY"

func shiftNextArg(args []any) ([]slog.Attr, []any) {
	switch x := args[0].(type) {
	case string:
		if len(args) == 1 {
			return []slog.Attr{slog.String(badKey, x)}, nil
		}
		return []slog.Attr{slog.Any(x, args[1])}, args[2:]

	case slog.Attr:
		return []slog.Attr{x}, args[1:]

	case map[string]any:
		return mapToAttrs(x), args[1:]

	default:
		return []slog.Attr{slog.Any(badKey, x)}, args[1:]
	}
}
