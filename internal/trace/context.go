package trace

import "context"

type ctxKey struct{}

// carrier is what a context holds: the tracer of the command and the span
// new work should hang under.
type carrier struct {
	tracer Tracer
	span   uint64
}

func carrierOf(ctx context.Context) carrier {
	if ctx != nil {
		if c, ok := ctx.Value(ctxKey{}).(carrier); ok {
			return c
		}
	}
	return carrier{tracer: Nop}
}

// FromContext returns the tracer carried by ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	return carrierOf(ctx).tracer
}

// SpanFromContext returns the ID of the span started last with StartSpan
// on ctx, 0 at the root.
func SpanFromContext(ctx context.Context) uint64 {
	return carrierOf(ctx).span
}

// WithTracer attaches t to ctx. The current span is reset.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, ctxKey{}, carrier{tracer: t})
}

// StartSpan begins a span under the tracer and span carried by ctx and
// returns a context whose current span is the new one. When the scope is
// filtered out the span is a no-op and ctx is returned unchanged.
func StartSpan(ctx context.Context, scope Scope, name string) (*Span, context.Context) {
	c := carrierOf(ctx)
	s := Begin(c.tracer, scope, name, c.span)
	if s.ID() == 0 {
		return s, ctx
	}
	return s, context.WithValue(ctx, ctxKey{}, carrier{tracer: c.tracer, span: s.ID()})
}
