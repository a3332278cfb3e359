package layout

import (
	"fortio.org/safecast"

	"tabi/internal/target"
	"tabi/internal/types"
)

func (e *LayoutEngine) computeLayout(id types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	if id == types.NoTypeID || e.Types == nil {
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	tt, ok := e.Types.Lookup(id)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, nil
	}

	switch tt.Kind {
	case types.KindVoid, types.KindNoreturn:
		return TypeLayout{Size: 0, Align: 1}, nil

	case types.KindBool:
		return TypeLayout{Size: 1, Align: 1}, nil

	case types.KindInt, types.KindUint:
		return e.scalarLayout(int(tt.Width) / 8), nil

	case types.KindFloat:
		return e.floatLayout(tt.Width), nil

	case types.KindComplex:
		part := e.floatLayout(tt.Width)
		return TypeLayout{Size: 2 * part.Size, Align: part.Align}, nil

	case types.KindPointer, types.KindNull, types.KindClass, types.KindAssocArray, types.KindFunction:
		return e.ptrLayout(), nil

	case types.KindDelegate, types.KindSlice:
		p := e.ptrLayout()
		return TypeLayout{Size: 2 * p.Size, Align: p.Align}, nil

	case types.KindStruct:
		return e.structLayout(id, state)

	case types.KindArray:
		return e.arrayLayout(id, tt.Elem, tt.Count, state)

	case types.KindVector:
		elem, err := e.layoutOf(tt.Elem, state)
		if err != nil {
			return TypeLayout{Size: 0, Align: 1}, err
		}
		n, convErr := safecast.Conv[int](tt.Count)
		if convErr != nil {
			return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrLengthConversion, Type: id, Err: convErr}
		}
		size := elem.Size * n
		return TypeLayout{Size: size, Align: min(max(size, 1), 16)}, nil

	case types.KindEnum:
		if info, ok := e.Types.EnumInfo(id); ok && info.Base != types.NoTypeID {
			return e.layoutOf(info.Base, state)
		}
		return e.scalarLayout(4), nil

	default:
		return TypeLayout{Size: 0, Align: 1}, nil
	}
}

func (e *LayoutEngine) ptrLayout() TypeLayout {
	ptrSize := e.Target.PtrSize
	ptrAlign := e.Target.PtrAlign
	if ptrSize <= 0 {
		ptrSize = 8
	}
	if ptrAlign <= 0 {
		ptrAlign = ptrSize
	}
	return TypeLayout{Size: ptrSize, Align: ptrAlign}
}

// scalarLayout aligns scalars to their size, except 8-byte scalars on i386:
// only Windows aligns them to 8 there, Linux and Darwin use 4.
func (e *LayoutEngine) scalarLayout(size int) TypeLayout {
	if size <= 0 {
		return TypeLayout{Size: 0, Align: 1}
	}
	align := size
	if size == 8 && e.Target.Arch == target.ArchX86 && !e.Target.IsWindows() {
		align = 4
	}
	return TypeLayout{Size: size, Align: align}
}

func (e *LayoutEngine) floatLayout(w types.Width) TypeLayout {
	switch w {
	case types.Width32:
		return e.scalarLayout(4)
	case types.Width64:
		return e.scalarLayout(8)
	default:
		if e.Target.RealIsDouble {
			return e.scalarLayout(8)
		}
		size, align := e.Target.RealSize, e.Target.RealAlign
		if size <= 0 {
			size, align = 16, 16
		}
		return TypeLayout{Size: size, Align: align}
	}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func (e *LayoutEngine) arrayLayout(id, elem types.TypeID, length uint32, state *layoutState) (TypeLayout, *LayoutError) {
	el, err := e.layoutOf(elem, state)
	if err != nil {
		return TypeLayout{Size: 0, Align: 1}, err
	}
	elemAlign := max(el.Align, 1)
	stride := roundUp(el.Size, elemAlign)
	n, convErr := safecast.Conv[int](length)
	if convErr != nil {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrLengthConversion, Type: id, Err: convErr}
	}
	return TypeLayout{
		Size:  stride * n,
		Align: elemAlign,
	}, nil
}

func (e *LayoutEngine) structLayout(id types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	attrs, _ := e.Types.TypeLayoutAttrs(id)
	if attrs.Packed && attrs.AlignOverride != nil {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrConflictingAttrs, Type: id}
	}

	info, ok := e.Types.StructInfo(id)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	fields := info.Fields
	offsets := make([]int, len(fields))
	aligns := make([]int, len(fields))

	size := 0
	align := 1
	for i := range fields {
		fl, err := e.layoutOf(fields[i].Type, state)
		if err != nil {
			return TypeLayout{Size: 0, Align: 1}, err
		}
		fAlign := max(fl.Align, 1)
		if attrs.Packed {
			fAlign = 1
		}
		size = roundUp(size, fAlign)
		offsets[i] = size
		aligns[i] = fAlign
		size += fl.Size
		align = max(align, fAlign)
	}
	if attrs.AlignOverride != nil {
		align = max(align, *attrs.AlignOverride)
	}
	size = roundUp(size, align)
	// a struct without fields still occupies one byte
	if len(fields) == 0 {
		size = 1
	}

	if info.Size != nil && *info.Size != size {
		return TypeLayout{Size: size, Align: align}, &LayoutError{
			Kind:     LayoutErrSizeMismatch,
			Type:     id,
			Declared: *info.Size,
			Computed: size,
		}
	}
	return TypeLayout{
		Size:         size,
		Align:        align,
		FieldOffsets: offsets,
		FieldAligns:  aligns,
	}, nil
}
