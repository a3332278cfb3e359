// Package classify answers the pure type questions ABI lowering asks about
// source types, and maps each source type to its native representation.
package classify

import (
	"tabi/internal/layout"
	"tabi/internal/target"
	"tabi/internal/types"
)

// Magic enum names the C++ interop layer uses for C complex types.
const (
	CComplexFloat  = "__c_complex_float"
	CComplexDouble = "__c_complex_double"
	CComplexReal   = "__c_complex_real"
)

// Classifier is stateless apart from the layout cache it shares.
type Classifier struct {
	Types  *types.Interner
	Layout *layout.LayoutEngine
	Target target.Config
}

func New(cfg target.Config, in *types.Interner, le *layout.LayoutEngine) *Classifier {
	if le == nil {
		le = layout.New(cfg, in)
	}
	return &Classifier{Types: in, Layout: le, Target: cfg}
}

func (c *Classifier) kind(t types.TypeID) types.Kind {
	return c.Types.BaseKind(t)
}

// IsAggregate reports struct, static array, delegate and complex types.
func (c *Classifier) IsAggregate(t types.TypeID) bool {
	switch c.kind(t) {
	case types.KindStruct, types.KindArray, types.KindDelegate, types.KindComplex:
		return true
	}
	return false
}

func (c *Classifier) IsComplex(t types.TypeID) bool {
	return c.kind(t) == types.KindComplex
}

// IsFloating reports real and complex floating types.
func (c *Classifier) IsFloating(t types.TypeID) bool {
	k := c.kind(t)
	return k == types.KindFloat || k == types.KindComplex
}

// IsReal reports non-complex floating types.
func (c *Classifier) IsReal(t types.TypeID) bool {
	return c.kind(t) == types.KindFloat
}

// IsIntegral reports bool and integer types, enums included.
func (c *Classifier) IsIntegral(t types.TypeID) bool {
	switch c.kind(t) {
	case types.KindBool, types.KindInt, types.KindUint:
		return true
	}
	return false
}

func (c *Classifier) IsUnsigned(t types.TypeID) bool {
	k := c.kind(t)
	return k == types.KindUint || k == types.KindBool
}

// IsPointerLike reports kinds represented as a single native pointer.
func (c *Classifier) IsPointerLike(t types.TypeID) bool {
	switch c.kind(t) {
	case types.KindPointer, types.KindNull, types.KindClass, types.KindAssocArray, types.KindFunction:
		return true
	}
	return false
}

// IsInMemoryOnly reports types that are only ever handled through memory.
func (c *Classifier) IsInMemoryOnly(t types.TypeID) bool {
	k := c.kind(t)
	return k == types.KindStruct || k == types.KindArray
}

// BaseElemOf strips enums and static array dimensions.
func (c *Classifier) BaseElemOf(t types.TypeID) types.TypeID {
	for range 64 {
		base := c.Types.Base(t)
		tt, ok := c.Types.Lookup(base)
		if !ok || tt.Kind != types.KindArray {
			return base
		}
		t = tt.Elem
	}
	return t
}

// IsPOD reports plain-old-data types. Only structs (possibly inside static
// arrays) can be non-POD; excludeCtor additionally treats structs with a
// user constructor as non-POD.
func (c *Classifier) IsPOD(t types.TypeID, excludeCtor bool) bool {
	elem := c.BaseElemOf(t)
	info, ok := c.Types.StructInfo(elem)
	if !ok {
		return true
	}
	return info.POD && !(excludeCtor && info.HasCtor)
}

// Size is the layout size of t. A failing layout is a front end bug here.
func (c *Classifier) Size(t types.TypeID) int {
	return c.Layout.MustLayoutOf(t).Size
}

func (c *Classifier) Align(t types.TypeID) int {
	return c.Layout.MustLayoutOf(t).Align
}

// CanRewriteAsInt reports whether t fits exactly into an integer register
// type (1, 2, 4 or 8 bytes).
func (c *Classifier) CanRewriteAsInt(t types.TypeID) bool {
	switch c.Size(t) {
	case 1, 2, 4, 8:
		return true
	}
	return false
}

// HasFields reports whether t is a struct with at least one field.
func (c *Classifier) HasFields(t types.TypeID) bool {
	info, ok := c.Types.StructInfo(c.Types.Base(t))
	return ok && len(info.Fields) > 0
}

// ExtraLoweredReturnType folds the magic C complex enums to the matching
// complex type and strips other enums.
func (c *Classifier) ExtraLoweredReturnType(t types.TypeID) types.TypeID {
	if info, ok := c.Types.EnumInfo(t); ok && c.Types.Strings != nil {
		name, _ := c.Types.Strings.Lookup(info.Name)
		b := c.Types.Builtins()
		switch name {
		case CComplexFloat:
			return b.Complex32
		case CComplexDouble:
			return b.Complex64
		case CComplexReal:
			return b.Complex80
		}
	}
	return c.Types.Base(t)
}
