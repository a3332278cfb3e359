package lower

import (
	"tabi/internal/ir"
	"tabi/internal/source"
	"tabi/internal/types"
)

// Cast converts v to type to. The source category picks the rule.
func (e *Engine) Cast(span source.Span, v Value, to types.TypeID) (Value, error) {
	from := e.base(v.Type())
	tb := e.base(to)
	e.trace("cast", v.Type(), to)

	if e.kind(from) == types.KindAssocArray {
		switch e.kind(tb) {
		case types.KindAssocArray:
			// keeps lvalue-ness, native types match
			return retyped(v, to), nil
		case types.KindPointer:
			return &Imm{T: to, V: e.RVal(v)}, nil
		case types.KindBool:
			rv := e.RVal(v)
			return &Imm{T: to, V: e.B.ICmpNE(rv, e.B.Zero(rv.Type()))}, nil
		}
	}

	if from == tb {
		return retyped(v, to), nil
	}

	switch k := e.kind(from); {
	case k == types.KindVector:
		return e.castVector(span, v, to)
	case e.Class.IsIntegral(from):
		return e.castInt(span, v, to)
	case k == types.KindComplex:
		return e.castComplex(span, v, to)
	case k == types.KindFloat:
		return e.castFloat(span, v, to)
	case k == types.KindClass:
		return e.castClass(span, v, to)
	case k == types.KindSlice || k == types.KindArray:
		return e.castArray(span, v, to)
	case k == types.KindPointer || k == types.KindFunction:
		return e.castPtr(span, v, to)
	case k == types.KindDelegate:
		return e.castDelegate(span, v, to)
	case k == types.KindStruct:
		return e.castStruct(span, v, to)
	case k == types.KindNull || k == types.KindNoreturn:
		return e.NullValue(span, to)
	default:
		return nil, e.invalidCast(span, v, to)
	}
}

func (e *Engine) castInt(span source.Span, v Value, to types.TypeID) (Value, error) {
	from := e.base(v.Type())
	tb := e.base(to)
	toN := e.Class.NativeType(tb)
	rv := e.RVal(v)
	if rv.Type().Equal(toN) {
		return &Imm{T: to, V: rv}, nil
	}

	fromBool := e.kind(from) == types.KindBool
	switch {
	case e.kind(tb) == types.KindBool:
		return &Imm{T: to, V: e.B.ICmpNE(rv, e.B.ConstInt(rv.Type(), 0))}, nil
	case e.Class.IsIntegral(tb):
		fromsz, tosz := e.Class.Size(from), e.Class.Size(tb)
		switch {
		case fromsz < tosz || fromBool:
			if e.Class.IsUnsigned(from) {
				return &Imm{T: to, V: e.B.ZExt(rv, toN)}, nil
			}
			return &Imm{T: to, V: e.B.SExt(rv, toN)}, nil
		case fromsz > tosz:
			return &Imm{T: to, V: e.B.Trunc(rv, toN)}, nil
		default:
			return &Imm{T: to, V: e.B.BitCast(rv, toN)}, nil
		}
	case e.kind(tb) == types.KindComplex:
		return e.complexFromScalar(span, v, to)
	case e.kind(tb) == types.KindFloat:
		if e.Class.IsUnsigned(from) {
			return &Imm{T: to, V: e.B.UIToFP(rv, toN)}, nil
		}
		return &Imm{T: to, V: e.B.SIToFP(rv, toN)}, nil
	case e.kind(tb) == types.KindPointer:
		return &Imm{T: to, V: e.B.IntToPtr(rv, toN)}, nil
	}
	return nil, e.invalidCast(span, v, to)
}

func (e *Engine) castFloat(span source.Span, v Value, to types.TypeID) (Value, error) {
	from := e.base(v.Type())
	tb := e.base(to)
	toN := e.Class.NativeType(tb)

	switch {
	case e.kind(tb) == types.KindBool:
		rv := e.RVal(v)
		return &Imm{T: to, V: e.B.FCmpUNE(rv, e.B.Zero(rv.Type()))}, nil
	case e.kind(tb) == types.KindComplex:
		return e.complexFromScalar(span, v, to)
	case e.kind(tb) == types.KindFloat:
		fromsz, tosz := e.Class.Size(from), e.Class.Size(tb)
		rv := e.RVal(v)
		switch {
		case fromsz == tosz:
			return &Imm{T: to, V: rv}, nil
		case fromsz < tosz:
			return &Imm{T: to, V: e.B.FPExt(rv, toN)}, nil
		default:
			return &Imm{T: to, V: e.B.FPTrunc(rv, toN)}, nil
		}
	case e.Class.IsIntegral(tb):
		rv := e.RVal(v)
		if e.Class.IsUnsigned(tb) {
			return &Imm{T: to, V: e.B.FPToUI(rv, toN)}, nil
		}
		return &Imm{T: to, V: e.B.FPToSI(rv, toN)}, nil
	}
	return nil, e.invalidCast(span, v, to)
}

// complexElem is the component type of complex type t.
func (e *Engine) complexElem(t types.TypeID) types.TypeID {
	return e.Types.Intern(types.MakeFloat(e.Types.MustLookup(e.base(t)).Width))
}

// complexFromScalar builds re + 0i from a real or integral value.
func (e *Engine) complexFromScalar(span source.Span, v Value, to types.TypeID) (Value, error) {
	elem := e.complexElem(to)
	re, err := e.Cast(span, v, elem)
	if err != nil {
		return nil, err
	}
	elemN := e.Class.NativeType(elem)
	pair := e.B.Pair(e.Class.NativeType(to), e.RVal(re), e.B.Zero(elemN))
	return &Imm{T: to, V: pair}, nil
}

func (e *Engine) castComplex(span source.Span, v Value, to types.TypeID) (Value, error) {
	tb := e.base(to)
	elem := e.complexElem(v.Type())
	rv := e.RVal(v)
	re := &Imm{T: elem, V: e.B.Extract(rv, 0)}

	switch {
	case e.kind(tb) == types.KindComplex:
		toElem := e.complexElem(tb)
		im := &Imm{T: elem, V: e.B.Extract(rv, 1)}
		nre, err := e.castFloat(span, re, toElem)
		if err != nil {
			return nil, err
		}
		nim, err := e.castFloat(span, im, toElem)
		if err != nil {
			return nil, err
		}
		return &Imm{T: to, V: e.B.Pair(e.Class.NativeType(tb), e.RVal(nre), e.RVal(nim))}, nil
	case e.kind(tb) == types.KindBool:
		zero := e.B.Zero(re.V.Type())
		nz := e.B.Or(e.B.FCmpUNE(re.V, zero), e.B.FCmpUNE(e.B.Extract(rv, 1), zero))
		return &Imm{T: to, V: nz}, nil
	case e.kind(tb) == types.KindFloat || e.Class.IsIntegral(tb):
		// the imaginary part is dropped
		return e.castFloat(span, re, to)
	}
	return nil, e.invalidCast(span, v, to)
}

func (e *Engine) castPtr(span source.Span, v Value, to types.TypeID) (Value, error) {
	tb := e.base(to)
	switch k := e.kind(tb); {
	case k == types.KindPointer || k == types.KindClass || k == types.KindAssocArray:
		return e.Paint(v, to), nil
	case k == types.KindBool:
		rv := e.RVal(v)
		return &Imm{T: to, V: e.B.ICmpNE(rv, e.B.Zero(rv.Type()))}, nil
	case e.Class.IsIntegral(tb):
		return &Imm{T: to, V: e.B.PtrToInt(e.RVal(v), e.Class.NativeType(tb))}, nil
	}
	return nil, e.invalidCast(span, v, to)
}

// castClass handles static class casts. Dynamic down casts need runtime
// type information and are left to the runtime layer.
func (e *Engine) castClass(span source.Span, v Value, to types.TypeID) (Value, error) {
	switch e.kind(to) {
	case types.KindClass, types.KindPointer:
		return e.Paint(v, to), nil
	case types.KindBool:
		rv := e.RVal(v)
		return &Imm{T: to, V: e.B.ICmpNE(rv, e.B.Zero(rv.Type()))}, nil
	}
	return nil, e.invalidCast(span, v, to)
}

func (e *Engine) castArray(span source.Span, v Value, to types.TypeID) (Value, error) {
	from := e.base(v.Type())
	tb := e.base(to)
	ft := e.Types.MustLookup(from)
	tt := e.Types.MustLookup(tb)

	switch {
	case ft.Kind == types.KindSlice && tt.Kind == types.KindSlice:
		fsz, tsz := e.Class.Size(ft.Elem), e.Class.Size(tt.Elem)
		if fsz == tsz {
			return e.Paint(v, to), nil
		}
		ln, ptr := e.sliceParts(v)
		st := ln.Type()
		bytes := e.B.Mul(ln, e.B.ConstInt(st, uint64(fsz))) //nolint:gosec // layout sizes are non-negative
		return &Slice{T: to, Len: e.B.UDiv(bytes, e.B.ConstInt(st, uint64(max(tsz, 1)))), Ptr: ptr}, nil //nolint:gosec // as above
	case ft.Kind == types.KindSlice && tt.Kind == types.KindBool:
		ln, ptr := e.sliceParts(v)
		nz := e.B.Or(e.B.ICmpNE(ln, e.B.Zero(ln.Type())), e.B.ICmpNE(ptr, e.B.Zero(ptr.Type())))
		return &Imm{T: to, V: nz}, nil
	case ft.Kind == types.KindSlice && tt.Kind == types.KindPointer:
		_, ptr := e.sliceParts(v)
		return &Imm{T: to, V: ptr}, nil
	case ft.Kind == types.KindSlice && tt.Kind == types.KindArray:
		// the length is checked by the front end
		_, ptr := e.sliceParts(v)
		return &LVal{T: to, Addr: ptr}, nil
	case ft.Kind == types.KindArray && tt.Kind == types.KindSlice:
		ln := e.B.ConstInt(e.Class.SizeT(), uint64(ft.Count))
		if e.Class.Size(ft.Elem) != e.Class.Size(tt.Elem) {
			total := e.Class.Size(from) / max(e.Class.Size(tt.Elem), 1)
			ln = e.B.ConstInt(e.Class.SizeT(), uint64(total)) //nolint:gosec // layout sizes are non-negative
		}
		return &Slice{T: to, Len: ln, Ptr: e.Addr(v)}, nil
	case ft.Kind == types.KindArray && tt.Kind == types.KindArray:
		if e.Class.Size(from) != e.Class.Size(tb) {
			break
		}
		return e.Paint(v, to), nil
	case ft.Kind == types.KindArray && tt.Kind == types.KindPointer:
		return &Imm{T: to, V: e.Addr(v)}, nil
	}
	return nil, e.invalidCast(span, v, to)
}

func (e *Engine) castVector(span source.Span, v Value, to types.TypeID) (Value, error) {
	tb := e.base(to)
	switch e.kind(tb) {
	case types.KindArray:
		if lv, ok := v.(*LVal); ok {
			return &LVal{T: to, Addr: lv.Addr}, nil
		}
		slot := e.B.Alloca(e.Class.MemType(tb), e.Class.Align(v.Type()), "vec2arr")
		e.B.Store(e.RVal(v), slot)
		return &LVal{T: to, Addr: slot}, nil
	case types.KindVector:
		if e.Class.Size(tb) == e.Class.Size(v.Type()) {
			return &Imm{T: to, V: e.B.BitCast(e.RVal(v), e.Class.NativeType(tb))}, nil
		}
	}
	return nil, e.invalidCast(span, v, to)
}

func (e *Engine) castDelegate(span source.Span, v Value, to types.TypeID) (Value, error) {
	switch e.kind(to) {
	case types.KindDelegate:
		return e.Paint(v, to), nil
	case types.KindBool:
		rv := e.RVal(v)
		ctx, fn := e.B.Extract(rv, 0), e.B.Extract(rv, 1)
		null := e.B.Zero(ir.PtrType())
		return &Imm{T: to, V: e.B.Or(e.B.ICmpNE(ctx, null), e.B.ICmpNE(fn, null))}, nil
	}
	return nil, e.invalidCast(span, v, to)
}

// castStruct repaints between structs of identical layout. Any user
// conversion has been lowered by the front end already.
func (e *Engine) castStruct(span source.Span, v Value, to types.TypeID) (Value, error) {
	if e.kind(to) == types.KindStruct {
		return &LVal{T: to, Addr: e.Addr(v)}, nil
	}
	return nil, e.invalidCast(span, v, to)
}
