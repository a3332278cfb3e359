package ir

// Value is an SSA value or address handed out by a Builder.
type Value interface {
	Type() *Type
}

// Builder is the instruction-level surface of the native IR builder. Value
// lowering never emits IR itself; it requests each conversion, load, store
// or copy through this interface.
type Builder interface {
	Trunc(v Value, to *Type) Value
	ZExt(v Value, to *Type) Value
	SExt(v Value, to *Type) Value
	FPExt(v Value, to *Type) Value
	FPTrunc(v Value, to *Type) Value
	FPToSI(v Value, to *Type) Value
	FPToUI(v Value, to *Type) Value
	SIToFP(v Value, to *Type) Value
	UIToFP(v Value, to *Type) Value
	PtrToInt(v Value, to *Type) Value
	IntToPtr(v Value, to *Type) Value
	// BitCast reinterprets v as a type of the same size.
	BitCast(v Value, to *Type) Value

	ICmpNE(a, b Value) Value
	FCmpUNE(a, b Value) Value
	Or(a, b Value) Value
	Mul(a, b Value) Value
	UDiv(a, b Value) Value

	Zero(t *Type) Value
	ConstInt(t *Type, v uint64) Value
	// Pair builds a two-element aggregate of type t.
	Pair(t *Type, a, b Value) Value
	Extract(agg Value, idx int) Value

	Alloca(t *Type, align int, name string) Value
	// ElemAddr returns the address of element idx of the aggregate of type t at addr.
	ElemAddr(t *Type, addr Value, idx int) Value
	Load(t *Type, addr Value) Value
	Store(v, addr Value)
	MemCpy(dst, src Value, size int)
}
