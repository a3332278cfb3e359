package lower

import (
	"tabi/internal/ir"
	"tabi/internal/types"
)

// Value is a source-level value in one of its native forms.
type Value interface {
	Type() types.TypeID
	isValue()
}

// Imm is an rvalue held in a native register value.
type Imm struct {
	T types.TypeID
	V ir.Value
}

// LVal is a value in memory; Addr points at its storage.
type LVal struct {
	T    types.TypeID
	Addr ir.Value
}

// Slice is a dynamic array kept as its two halves.
type Slice struct {
	T   types.TypeID
	Len ir.Value
	Ptr ir.Value
}

// Null is the zero value of a type produced by NullValue.
type Null struct {
	T types.TypeID
	V ir.Value
}

func (v *Imm) Type() types.TypeID   { return v.T }
func (v *LVal) Type() types.TypeID  { return v.T }
func (v *Slice) Type() types.TypeID { return v.T }
func (v *Null) Type() types.TypeID  { return v.T }

func (*Imm) isValue()   {}
func (*LVal) isValue()  {}
func (*Slice) isValue() {}
func (*Null) isValue()  {}

// IsLVal reports addressable values.
func IsLVal(v Value) bool {
	_, ok := v.(*LVal)
	return ok
}

// retyped returns v with type t and the same native form.
func retyped(v Value, t types.TypeID) Value {
	switch x := v.(type) {
	case *Imm:
		return &Imm{T: t, V: x.V}
	case *LVal:
		return &LVal{T: t, Addr: x.Addr}
	case *Slice:
		return &Slice{T: t, Len: x.Len, Ptr: x.Ptr}
	case *Null:
		return &Null{T: t, V: x.V}
	}
	return v
}
