package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates the type categories the backend distinguishes.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindNoreturn
	KindNull // type of the `null` literal
	KindBool
	KindInt
	KindUint
	KindFloat
	KindComplex
	KindPointer
	KindFunction
	KindStruct
	KindArray // static array T[N]
	KindSlice // dynamic array T[] = {length, ptr}
	KindVector
	KindClass
	KindDelegate
	KindAssocArray
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindNoreturn:
		return "noreturn"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindComplex:
		return "complex"
	case KindPointer:
		return "pointer"
	case KindFunction:
		return "function"
	case KindStruct:
		return "struct"
	case KindArray:
		return "array"
	case KindSlice:
		return "slice"
	case KindVector:
		return "vector"
	case KindClass:
		return "class"
	case KindDelegate:
		return "delegate"
	case KindAssocArray:
		return "assoc-array"
	case KindEnum:
		return "enum"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers, floats and complex components.
type Width uint8

const (
	WidthAny Width = 0
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
	Width80  Width = 80 // x87 extended precision ("real")
)

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind    Kind
	Elem    TypeID // pointee / element / delegate function
	Count   uint32 // static arrays and vectors; key type for assoc arrays
	Width   Width  // numeric primitives
	Payload uint32 // slot in a side table for nominal kinds
}

// Descriptor helpers ---------------------------------------------------------

func MakeInt(width Width) Type {
	return Type{Kind: KindInt, Width: width}
}

func MakeUint(width Width) Type {
	return Type{Kind: KindUint, Width: width}
}

func MakeFloat(width Width) Type {
	return Type{Kind: KindFloat, Width: width}
}

// MakeComplex describes a complex number whose components have the given width.
func MakeComplex(width Width) Type {
	return Type{Kind: KindComplex, Width: width}
}

func MakePointer(elem TypeID) Type {
	return Type{Kind: KindPointer, Elem: elem}
}

// MakeArray describes a static array T[count].
func MakeArray(elem TypeID, count uint32) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

// MakeSlice describes a dynamic array T[].
func MakeSlice(elem TypeID) Type {
	return Type{Kind: KindSlice, Elem: elem}
}

// MakeVector describes a SIMD vector of count elements.
func MakeVector(elem TypeID, count uint32) Type {
	return Type{Kind: KindVector, Elem: elem, Count: count}
}

// MakeDelegate describes a {context, funcptr} pair; fn may be NoTypeID.
func MakeDelegate(fn TypeID) Type {
	return Type{Kind: KindDelegate, Elem: fn}
}

// MakeAssocArray describes an associative array handle V[K].
func MakeAssocArray(key, value TypeID) Type {
	return Type{Kind: KindAssocArray, Elem: value, Count: uint32(key)}
}
