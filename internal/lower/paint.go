package lower

import (
	"fmt"

	"tabi/internal/types"
)

// Paint retypes v as to without converting it. Addressable values keep
// their storage: the result aliases it, so writes through either are seen
// by both. Painting across categories with different native types is a
// caller bug and panics.
func (e *Engine) Paint(v Value, to types.TypeID) Value {
	from := e.base(v.Type())
	tb := e.base(to)
	fk, tk := e.kind(from), e.kind(tb)
	e.trace("paint", v.Type(), to)

	switch fk {
	case types.KindSlice:
		e.mustPaint(tk == types.KindSlice, from, to)
		switch x := v.(type) {
		case *Slice:
			return &Slice{T: to, Len: x.Len, Ptr: x.Ptr}
		case *LVal:
			return &LVal{T: to, Addr: x.Addr}
		}
		ln, ptr := e.sliceParts(v)
		return &Imm{T: to, V: e.B.Pair(e.Class.NativeType(tb), ln, ptr)}
	case types.KindDelegate:
		e.mustPaint(tk == types.KindDelegate, from, to)
	case types.KindPointer, types.KindClass, types.KindAssocArray, types.KindFunction:
		e.mustPaint(tk == types.KindPointer || tk == types.KindClass || tk == types.KindAssocArray, from, to)
	case types.KindArray:
		e.mustPaint(tk == types.KindArray, from, to)
		return &LVal{T: to, Addr: e.Addr(v)}
	default:
		e.mustPaint(e.Class.NativeType(from).Equal(e.Class.NativeType(tb)), from, to)
	}

	if lv, ok := v.(*LVal); ok {
		return &LVal{T: to, Addr: lv.Addr}
	}
	return &Imm{T: to, V: e.RVal(v)}
}

func (e *Engine) mustPaint(ok bool, from, to types.TypeID) {
	if !ok {
		panic(fmt.Sprintf("lower: cannot repaint %s as %s", e.typeName(from), e.typeName(to)))
	}
}
