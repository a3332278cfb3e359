// Package trace provides the tracing subsystem of the ABI lowering driver.
//
// Tracing records where time goes while units are lowered and which
// decisions the ABI policy took for each declaration.
//
// # Usage
//
//	tabi lower --trace=- --trace-level=detail unit.toml
//
// # Tracers
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: circular buffer for crash dumps
//   - MultiTracer: combines multiple tracers
//
// # Levels and scopes
//
//   - LevelPhase: ScopeDriver and ScopeUnit
//   - LevelDetail: adds ScopeDecl (one span per lowered declaration)
//   - LevelDebug: adds ScopeValue (casts, assignments, null values)
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeUnit, "unit:"+name, parentID)
//	defer span.End("")
package trace
