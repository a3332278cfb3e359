package classify

import (
	"fmt"

	"fortio.org/safecast"

	"tabi/internal/ir"
	"tabi/internal/types"
)

// SizeT is the native unsigned integer of pointer width.
func (c *Classifier) SizeT() *ir.Type {
	return ir.IntType(c.Target.PtrSize * 8)
}

// NativeType maps t to the native type of its values. bool is i1 as an
// rvalue; use MemType for the in-memory form.
func (c *Classifier) NativeType(t types.TypeID) *ir.Type {
	return c.native(t, false, 0)
}

// MemType maps t to the native type used when the value lives in memory.
func (c *Classifier) MemType(t types.TypeID) *ir.Type {
	return c.native(t, true, 0)
}

func (c *Classifier) native(t types.TypeID, mem bool, depth int) *ir.Type {
	if depth > 64 {
		panic(fmt.Sprintf("classify: native type of %s does not terminate", c.Types.TypeString(t)))
	}
	tt, ok := c.Types.Lookup(c.Types.Base(t))
	if !ok {
		return ir.VoidType()
	}
	switch tt.Kind {
	case types.KindVoid, types.KindNoreturn:
		return ir.VoidType()
	case types.KindBool:
		if mem {
			return ir.IntType(8)
		}
		return ir.IntType(1)
	case types.KindInt, types.KindUint:
		return ir.IntType(int(tt.Width))
	case types.KindFloat:
		return c.floatType(tt.Width)
	case types.KindComplex:
		f := c.floatType(tt.Width)
		return ir.StructType("", f, f)
	case types.KindPointer, types.KindNull, types.KindClass, types.KindAssocArray, types.KindFunction:
		return ir.PtrType()
	case types.KindDelegate:
		return ir.StructType("", ir.PtrType(), ir.PtrType())
	case types.KindSlice:
		return ir.StructType("", c.SizeT(), ir.PtrType())
	case types.KindArray:
		return ir.ArrayType(count(tt.Count), c.native(tt.Elem, true, depth+1))
	case types.KindVector:
		return ir.VectorType(count(tt.Count), c.native(tt.Elem, false, depth+1))
	case types.KindStruct:
		return c.structType(c.Types.Base(t), depth)
	}
	return ir.VoidType()
}

func (c *Classifier) floatType(w types.Width) *ir.Type {
	switch w {
	case types.Width32:
		return ir.FloatType(32)
	case types.Width64:
		return ir.FloatType(64)
	default:
		if c.Target.RealIsDouble {
			return ir.FloatType(64)
		}
		return ir.FloatType(80)
	}
}

// structType lays fields out naturally. Structs whose layout is not the
// natural one (packed, over-aligned, empty) become an opaque byte blob of
// the layout size.
func (c *Classifier) structType(t types.TypeID, depth int) *ir.Type {
	name := c.Types.Name(t)
	info, _ := c.Types.StructInfo(t)
	attrs, _ := c.Types.TypeLayoutAttrs(t)
	if info == nil || len(info.Fields) == 0 || attrs.Packed || attrs.AlignOverride != nil {
		return ir.StructType(name, ir.ArrayType(c.Size(t), ir.IntType(8)))
	}
	fields := make([]*ir.Type, len(info.Fields))
	for i, f := range info.Fields {
		fields[i] = c.native(f.Type, true, depth+1)
	}
	return ir.StructType(name, fields...)
}

func count(n uint32) int {
	v, err := safecast.Conv[int](n)
	if err != nil {
		panic(err)
	}
	return v
}
