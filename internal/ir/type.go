// Package ir holds the native representation the backend lowers into: the
// machine-level type of every value, the Builder interface through which
// lowering asks the IR builder for instructions, and Evaluator, a Builder
// that executes those requests directly on a flat byte memory.
package ir

import (
	"fmt"
	"strings"
)

// Kind is the category of a native type.
type Kind uint8

const (
	Void Kind = iota
	Int
	Float
	Ptr
	Struct
	Array
	Vector
)

// Type is a native (IR level) type. Types are compared structurally;
// Name is only used for printing.
type Type struct {
	Kind   Kind
	Bits   int // Int, Float
	Len    int // Array, Vector
	Elem   *Type
	Fields []*Type
	Name   string
}

var (
	voidType = &Type{Kind: Void}
	ptrType  = &Type{Kind: Ptr}
	i1Type   = &Type{Kind: Int, Bits: 1}
)

func VoidType() *Type { return voidType }

func PtrType() *Type { return ptrType }

// IntType returns iN.
func IntType(bits int) *Type {
	if bits == 1 {
		return i1Type
	}
	return &Type{Kind: Int, Bits: bits}
}

// FloatType returns float (32), double (64) or x86_fp80 (80).
func FloatType(bits int) *Type {
	return &Type{Kind: Float, Bits: bits}
}

func StructType(name string, fields ...*Type) *Type {
	return &Type{Kind: Struct, Fields: fields, Name: name}
}

func ArrayType(n int, elem *Type) *Type {
	return &Type{Kind: Array, Len: n, Elem: elem}
}

func VectorType(n int, elem *Type) *Type {
	return &Type{Kind: Vector, Len: n, Elem: elem}
}

// Equal reports structural equality.
func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case Void, Ptr:
		return true
	case Int, Float:
		return t.Bits == o.Bits
	case Array, Vector:
		return t.Len == o.Len && t.Elem.Equal(o.Elem)
	case Struct:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Equal(o.Fields[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// IsAggregate reports struct and array types.
func (t *Type) IsAggregate() bool {
	return t != nil && (t.Kind == Struct || t.Kind == Array)
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case Void:
		return "void"
	case Int:
		return fmt.Sprintf("i%d", t.Bits)
	case Float:
		switch t.Bits {
		case 32:
			return "float"
		case 64:
			return "double"
		default:
			return "x86_fp80"
		}
	case Ptr:
		return "ptr"
	case Array:
		return fmt.Sprintf("[%d x %s]", t.Len, t.Elem)
	case Vector:
		return fmt.Sprintf("<%d x %s>", t.Len, t.Elem)
	case Struct:
		if t.Name != "" {
			return "%" + t.Name
		}
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.String()
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	}
	return "?"
}
