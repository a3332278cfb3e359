package ir

import "tabi/internal/target"

// DataLayout gives the in-memory size and alignment of native types. It must
// agree with layout.LayoutEngine for every type classify.NativeType produces.
type DataLayout struct {
	PtrSize  int
	PtrAlign int
	I64Align int
	F64Align int
	F80Size  int
	F80Align int
}

// DataLayoutFor derives the data layout of a target.
func DataLayoutFor(cfg target.Config) DataLayout {
	dl := DataLayout{
		PtrSize:  cfg.PtrSize,
		PtrAlign: cfg.PtrAlign,
		I64Align: 8,
		F64Align: 8,
		F80Size:  cfg.RealSize,
		F80Align: cfg.RealAlign,
	}
	if cfg.Arch == target.ArchX86 && !cfg.IsWindows() {
		dl.I64Align, dl.F64Align = 4, 4
	}
	if dl.F80Size < 10 {
		dl.F80Size, dl.F80Align = 16, 16
	}
	return dl
}

// Size is the allocation size of t in bytes.
func (dl DataLayout) Size(t *Type) int {
	switch t.Kind {
	case Int:
		return intBytes(t.Bits)
	case Float:
		switch t.Bits {
		case 32:
			return 4
		case 64:
			return 8
		default:
			return dl.F80Size
		}
	case Ptr:
		return dl.PtrSize
	case Array:
		return t.Len * dl.Size(t.Elem)
	case Vector:
		return t.Len * dl.Size(t.Elem)
	case Struct:
		size, align := 0, 1
		for _, f := range t.Fields {
			a := dl.Align(f)
			size = alignTo(size, a) + dl.Size(f)
			align = max(align, a)
		}
		return alignTo(size, align)
	}
	return 0
}

// Align is the ABI alignment of t in bytes.
func (dl DataLayout) Align(t *Type) int {
	switch t.Kind {
	case Int:
		n := intBytes(t.Bits)
		if n == 8 {
			return dl.I64Align
		}
		return n
	case Float:
		switch t.Bits {
		case 32:
			return 4
		case 64:
			return dl.F64Align
		default:
			return dl.F80Align
		}
	case Ptr:
		return dl.PtrAlign
	case Array:
		return dl.Align(t.Elem)
	case Vector:
		return min(max(dl.Size(t), 1), 16)
	case Struct:
		align := 1
		for _, f := range t.Fields {
			align = max(align, dl.Align(f))
		}
		return align
	}
	return 1
}

// Offset is the byte offset of element idx of a struct or array type.
func (dl DataLayout) Offset(t *Type, idx int) int {
	switch t.Kind {
	case Struct:
		off := 0
		for i, f := range t.Fields {
			off = alignTo(off, dl.Align(f))
			if i == idx {
				return off
			}
			off += dl.Size(f)
		}
		return off
	case Array, Vector:
		return idx * dl.Size(t.Elem)
	}
	return 0
}

// ElemType returns the type of element idx of an aggregate.
func (t *Type) ElemType(idx int) *Type {
	switch t.Kind {
	case Struct:
		return t.Fields[idx]
	case Array, Vector:
		return t.Elem
	}
	return nil
}

func intBytes(bits int) int {
	switch {
	case bits <= 8:
		return 1
	case bits <= 16:
		return 2
	case bits <= 32:
		return 4
	case bits <= 64:
		return 8
	default:
		return (bits + 7) / 8
	}
}

func alignTo(n, a int) int {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}
