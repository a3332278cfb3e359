// Package lower converts source values between their native forms: casts,
// repaints, assignments and null values. Every instruction is requested
// through an ir.Builder; nothing here emits IR text itself.
package lower

import (
	"fmt"

	"tabi/internal/classify"
	"tabi/internal/diag"
	"tabi/internal/ir"
	"tabi/internal/source"
	"tabi/internal/trace"
	"tabi/internal/types"
)

// Semantics selects how aggregates are copied on assignment.
type Semantics uint8

const (
	// Blit copies raw bytes.
	Blit Semantics = iota
	// Copy runs the element copy hook where one applies.
	Copy
)

func (s Semantics) String() string {
	if s == Copy {
		return "copy"
	}
	return "blit"
}

// Engine lowers values of one unit. It is not safe for concurrent use.
type Engine struct {
	Types *types.Interner
	Class *classify.Classifier
	B     ir.Builder

	Reporter diag.Reporter
	// Gagged suppresses invalid cast diagnostics and makes the failure
	// recoverable (speculative evaluation).
	Gagged bool
	// Strict turns a native type mismatch left after an assignment cast
	// into a panic instead of a bit cast.
	Strict bool

	Tracer trace.Tracer
	Parent uint64

	// ArrayAssign replaces the built-in array assignment when set.
	ArrayAssign func(span source.Span, dst *LVal, src Value, sem Semantics) error
	// CopyHook copies one element of type elem under Copy semantics. Nil
	// means elements are blitted.
	CopyHook func(elem types.TypeID, dst, src ir.Value)
}

func New(c *classify.Classifier, b ir.Builder, r diag.Reporter) *Engine {
	if r == nil {
		r = diag.NopReporter{}
	}
	return &Engine{Types: c.Types, Class: c, B: b, Reporter: r, Tracer: trace.Nop}
}

func (e *Engine) base(t types.TypeID) types.TypeID { return e.Types.Base(t) }

func (e *Engine) kind(t types.TypeID) types.Kind { return e.Types.BaseKind(t) }

func (e *Engine) typeName(t types.TypeID) string { return e.Types.TypeString(t) }

func (e *Engine) trace(name string, from, to types.TypeID) {
	if e.Tracer == nil || !e.Tracer.Enabled() {
		return
	}
	detail := e.typeName(from)
	if to != types.NoTypeID {
		detail += " -> " + e.typeName(to)
	}
	trace.Point(e.Tracer, trace.ScopeValue, name, detail, e.Parent)
}

// RVal returns v as a register value. Bools come back as i1.
func (e *Engine) RVal(v Value) ir.Value {
	switch x := v.(type) {
	case *Imm:
		return x.V
	case *Null:
		return x.V
	case *Slice:
		return e.B.Pair(e.Class.NativeType(x.T), x.Len, x.Ptr)
	case *LVal:
		r := e.B.Load(e.Class.MemType(x.T), x.Addr)
		if e.kind(x.T) == types.KindBool {
			r = e.B.Trunc(r, ir.IntType(1))
		}
		return r
	}
	panic(fmt.Sprintf("lower: unknown value form %T", v))
}

// Addr returns the address of v, spilling register values into a fresh
// stack slot.
func (e *Engine) Addr(v Value) ir.Value {
	if lv, ok := v.(*LVal); ok {
		return lv.Addr
	}
	t := v.Type()
	slot := e.B.Alloca(e.Class.MemType(t), e.Class.Align(t), "tmp")
	e.store(e.RVal(v), t, slot)
	return slot
}

// store writes rv, a register value of source type t, to addr.
func (e *Engine) store(rv ir.Value, t types.TypeID, addr ir.Value) {
	if e.kind(t) == types.KindBool && rv.Type().Kind == ir.Int && rv.Type().Bits == 1 {
		rv = e.B.ZExt(rv, ir.IntType(8))
	}
	e.B.Store(rv, addr)
}

// sliceParts returns the length and pointer of a dynamic array value.
func (e *Engine) sliceParts(v Value) (ln, ptr ir.Value) {
	if s, ok := v.(*Slice); ok {
		return s.Len, s.Ptr
	}
	rv := e.RVal(v)
	return e.B.Extract(rv, 0), e.B.Extract(rv, 1)
}

func (e *Engine) invalidCast(span source.Span, v Value, to types.TypeID) error {
	err := &Error{
		Kind: ErrInvalidCast,
		From: v.Type(),
		To:   to,
		Span: span,
		Msg:  fmt.Sprintf("invalid cast from `%s` to `%s`", e.typeName(v.Type()), e.typeName(to)),
	}
	if e.Gagged {
		return err
	}
	err.Fatal = true
	diag.ReportError(e.Reporter, diag.AbiInvalidCast, span, err.Msg).Emit()
	return err
}
