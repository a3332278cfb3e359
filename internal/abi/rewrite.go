package abi

import (
	"fmt"

	"tabi/internal/classify"
	"tabi/internal/ir"
	"tabi/internal/types"
)

// Rewrite changes the native form of an argument. Put runs at the call
// site, Get in the callee.
type Rewrite interface {
	Name() string
	// Put converts a value of the original native type into the rewritten form.
	Put(b ir.Builder, v ir.Value) ir.Value
	// Get converts the rewritten form back and returns the address of a
	// value of native type t.
	Get(b ir.Builder, v ir.Value, t *ir.Type) ir.Value
}

// IntegerRewrite passes an aggregate as an integer of the same size.
type IntegerRewrite struct {
	Bits int
}

func (r *IntegerRewrite) Name() string { return fmt.Sprintf("i%d", r.Bits) }

func (r *IntegerRewrite) Put(b ir.Builder, v ir.Value) ir.Value {
	slot := b.Alloca(v.Type(), 0, "int_rewrite")
	b.Store(v, slot)
	return b.Load(ir.IntType(r.Bits), slot)
}

func (r *IntegerRewrite) Get(b ir.Builder, v ir.Value, t *ir.Type) ir.Value {
	slot := b.Alloca(t, 0, "int_rewrite")
	b.Store(v, slot)
	return slot
}

// applyIntegerRewrite repacks a as an integer of the size of t. t is the
// arg's type, or for results the type after magic enum folding.
func applyIntegerRewrite(c *classify.Classifier, a *Arg, t types.TypeID) {
	r := &IntegerRewrite{Bits: 8 * c.Size(t)}
	a.Rewrite = r
	a.Native = ir.IntType(r.Bits)
}

// applyIntegerRewriteIfNotObsolete skips arguments whose native type is
// already the integer the rewrite would produce.
func applyIntegerRewriteIfNotObsolete(c *classify.Classifier, a *Arg, t types.TypeID) {
	bits := 8 * c.Size(t)
	if a.Native != nil && a.Native.Kind == ir.Int && a.Native.Bits == bits {
		return
	}
	applyIntegerRewrite(c, a, t)
}

// IndirectByvalRewrite passes the address of a caller-owned copy. The copy
// lives until the call returns.
type IndirectByvalRewrite struct {
	Align int
}

func (r *IndirectByvalRewrite) Name() string { return "indirect-byval" }

func (r *IndirectByvalRewrite) Put(b ir.Builder, v ir.Value) ir.Value {
	slot := b.Alloca(v.Type(), r.Align, "byval_copy")
	b.Store(v, slot)
	return slot
}

func (r *IndirectByvalRewrite) Get(_ ir.Builder, v ir.Value, _ *ir.Type) ir.Value {
	return v
}

func applyIndirectByval(c *classify.Classifier, a *Arg) {
	r := &IndirectByvalRewrite{Align: c.Align(a.Type)}
	a.Rewrite = r
	a.Mode = ByRefIndirectCopy
	a.Native = ir.PtrType()
	a.Attrs.Clear()
	a.Attrs.Add(AttrNoAlias)
	a.Attrs.AddAlignment(r.Align)
}

// PromoteRewrite applies the C default argument promotions to a value
// passed through a variadic slot.
type PromoteRewrite struct {
	To     *ir.Type
	Signed bool
}

func (r *PromoteRewrite) Name() string { return "promote " + r.To.String() }

func (r *PromoteRewrite) Put(b ir.Builder, v ir.Value) ir.Value {
	switch {
	case r.To.Kind == ir.Float:
		return b.FPExt(v, r.To)
	case r.Signed:
		return b.SExt(v, r.To)
	default:
		return b.ZExt(v, r.To)
	}
}

func (r *PromoteRewrite) Get(b ir.Builder, v ir.Value, t *ir.Type) ir.Value {
	var narrowed ir.Value
	if t.Kind == ir.Float {
		narrowed = b.FPTrunc(v, t)
	} else {
		narrowed = b.Trunc(v, t)
	}
	slot := b.Alloca(t, 0, "promoted")
	b.Store(narrowed, slot)
	return slot
}

// promoteVararg applies the default promotions: float to double, integers
// narrower than int to int. bool is passed as an int as well.
func promoteVararg(c *classify.Classifier, a *Arg) {
	if a.ByRef() || a.Rewrite != nil {
		return
	}
	n := a.Native
	switch {
	case n.Kind == ir.Float && n.Bits == 32:
		a.Rewrite = &PromoteRewrite{To: ir.FloatType(64)}
	case n.Kind == ir.Int && n.Bits < 32:
		a.Rewrite = &PromoteRewrite{To: ir.IntType(32), Signed: !c.IsUnsigned(a.Type)}
	default:
		return
	}
	a.Native = a.Rewrite.(*PromoteRewrite).To
}
