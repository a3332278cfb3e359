package lower

import (
	"fmt"

	"tabi/internal/diag"
	"tabi/internal/ir"
	"tabi/internal/source"
	"tabi/internal/types"
)

// NullValue returns the canonical zero of t: an all-zero pattern for
// scalars, data and function pointers, classes, delegates and associative
// arrays, an empty slice, or a zero complex pair.
func (e *Engine) NullValue(span source.Span, t types.TypeID) (Value, error) {
	tb := e.base(t)
	e.trace("null", t, types.NoTypeID)

	switch e.kind(tb) {
	case types.KindComplex:
		elem := e.Class.NativeType(e.complexElem(tb))
		return &Imm{T: t, V: e.B.Pair(e.Class.NativeType(tb), e.B.Zero(elem), e.B.Zero(elem))}, nil
	case types.KindBool, types.KindInt, types.KindUint, types.KindFloat, types.KindVector,
		types.KindPointer, types.KindFunction, types.KindNull, types.KindClass, types.KindDelegate, types.KindAssocArray:
		return &Null{T: t, V: e.B.Zero(e.Class.NativeType(tb))}, nil
	case types.KindSlice:
		return &Slice{T: t, Len: e.B.ConstInt(e.Class.SizeT(), 0), Ptr: e.B.Zero(ir.PtrType())}, nil
	}

	err := &Error{
		Kind:  ErrUnsupportedNullType,
		From:  t,
		To:    t,
		Span:  span,
		Msg:   fmt.Sprintf("`null` not known for type `%s`", e.typeName(t)),
		Fatal: true,
	}
	diag.ReportError(e.Reporter, diag.AbiNullUnsupported, span, err.Msg).Emit()
	return nil, err
}
