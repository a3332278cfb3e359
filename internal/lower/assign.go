package lower

import (
	"fmt"

	"tabi/internal/ir"
	"tabi/internal/source"
	"tabi/internal/types"
)

// Assign stores src into the storage of dst. The destination category
// picks the rule.
func (e *Engine) Assign(span source.Span, dst *LVal, src Value, sem Semantics) error {
	t := e.base(dst.T)
	e.trace("assign", src.Type(), dst.T)

	switch e.kind(t) {
	case types.KindVoid, types.KindNoreturn:
		panic(fmt.Sprintf("lower: assignment to %s", e.typeName(dst.T)))
	case types.KindBool:
		e.store(e.RVal(src), t, dst.Addr)
	case types.KindStruct:
		// empty structs carry no data
		if !e.Class.HasFields(t) {
			return nil
		}
		from := e.Addr(src)
		if sameStorage(from, dst.Addr) {
			return nil
		}
		e.B.MemCpy(dst.Addr, from, e.Class.Size(t))
	case types.KindArray, types.KindSlice:
		if e.ArrayAssign != nil {
			return e.ArrayAssign(span, dst, src, sem)
		}
		return e.assignArray(span, dst, src, sem)
	case types.KindDelegate, types.KindClass:
		e.B.Store(e.RVal(src), dst.Addr)
	case types.KindComplex:
		v, err := e.Cast(span, src, dst.T)
		if err != nil {
			return err
		}
		e.B.Store(e.RVal(v), dst.Addr)
	default:
		want := e.Class.MemType(t)
		r := e.RVal(src)
		if !r.Type().Equal(want) {
			v, err := e.Cast(span, src, dst.T)
			if err != nil {
				return err
			}
			r = e.RVal(v)
			if !r.Type().Equal(want) {
				if e.Strict {
					panic(fmt.Sprintf("lower: assigning %s to %s storage of %s", r.Type(), want, e.typeName(dst.T)))
				}
				r = e.B.BitCast(r, want)
			}
		}
		e.B.Store(r, dst.Addr)
	}
	return nil
}

// sameStorage reports whether two addresses are the same value, not merely
// equal bit patterns.
func sameStorage(a, b ir.Value) bool {
	return a == b
}

// assignArray is the built-in array assignment: element copies into static
// arrays, a rebind of the (length, pointer) pair for slices.
func (e *Engine) assignArray(span source.Span, dst *LVal, src Value, sem Semantics) error {
	t := e.base(dst.T)
	tt := e.Types.MustLookup(t)

	if tt.Kind == types.KindSlice {
		v, err := e.Cast(span, src, dst.T)
		if err != nil {
			return err
		}
		e.B.Store(e.RVal(v), dst.Addr)
		return nil
	}

	elem := tt.Elem
	n := int(tt.Count) //nolint:gosec // static array lengths fit int
	native := e.Class.MemType(t)

	var from ir.Value
	switch sk := e.kind(src.Type()); {
	case sk == types.KindArray:
		from = e.Addr(src)
	case sk == types.KindSlice:
		_, from = e.sliceParts(src)
	default:
		// element fill: arr[] = x
		v, err := e.Cast(span, src, elem)
		if err != nil {
			return err
		}
		rv := e.RVal(v)
		for i := range n {
			e.store(rv, elem, e.B.ElemAddr(native, dst.Addr, i))
		}
		return nil
	}

	if sameStorage(from, dst.Addr) {
		return nil
	}
	if sem == Copy && e.CopyHook != nil && !e.Class.IsPOD(elem, false) {
		for i := range n {
			e.CopyHook(elem, e.B.ElemAddr(native, dst.Addr, i), e.B.ElemAddr(native, from, i))
		}
		return nil
	}
	e.B.MemCpy(dst.Addr, from, e.Class.Size(t))
	return nil
}
