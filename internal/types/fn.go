package types //nolint:revive

import (
	"slices"

	"tabi/internal/source"
)

// Linkage is the language linkage a function was declared with.
type Linkage uint8

const (
	LinkD Linkage = iota
	LinkDefault
	LinkWindows
	LinkC
	LinkObjC
	LinkCpp
	LinkSystem
)

func (l Linkage) String() string {
	switch l {
	case LinkD:
		return "d"
	case LinkDefault:
		return "default"
	case LinkWindows:
		return "windows"
	case LinkC:
		return "c"
	case LinkObjC:
		return "objc"
	case LinkCpp:
		return "cpp"
	case LinkSystem:
		return "system"
	default:
		return "unknown"
	}
}

// VarArgs describes the variadic form of a function.
type VarArgs uint8

const (
	VarArgsNone     VarArgs = iota
	VarArgsVariadic         // C-style `...`
	VarArgsTypesafe         // `T[] args...`, lowered to a plain slice parameter
)

// Storage is the source-level passing class of a parameter.
type Storage uint8

const (
	StorageValue Storage = iota
	StorageRef           // ref / out
	StorageIn            // in ref: read-only reference
)

// Param is one explicit parameter of a resolved signature.
type Param struct {
	Name    source.StringID
	Type    TypeID
	Storage Storage
}

// FuncSignature is the fully resolved signature handed over by the front end.
// It is read-only for the backend; rewriting works on abi.FuncType.
type FuncSignature struct {
	Linkage   Linkage
	VarArgs   VarArgs
	Result    TypeID
	ResultRef bool // returns by reference
	Params    []Param
	HasThis   bool // non-static member: implicit `this`
	HasNest   bool // nested function: implicit context pointer
}

// IsNative reports whether the signature uses the language's own ABI:
// extern(D) without C-style varargs.
func (s *FuncSignature) IsNative() bool {
	return s != nil && s.Linkage == LinkD && s.VarArgs != VarArgsVariadic
}

// Clone returns a deep copy of the signature.
func (s *FuncSignature) Clone() *FuncSignature {
	if s == nil {
		return nil
	}
	out := *s
	out.Params = slices.Clone(s.Params)
	return &out
}

// FnInfo stores metadata for function types.
type FnInfo struct {
	Sig FuncSignature
}

// RegisterFn creates a function type for sig.
func (in *Interner) RegisterFn(sig *FuncSignature) TypeID {
	info := FnInfo{}
	if sig != nil {
		info.Sig = *sig.Clone()
	}
	in.fns = append(in.fns, info)
	return in.internRaw(Type{Kind: KindFunction, Payload: slotOf(len(in.fns)-1, "fn")})
}

// FnInfo retrieves function type metadata by TypeID.
func (in *Interner) FnInfo(id TypeID) (*FnInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindFunction {
		return nil, false
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.fns) {
		return nil, false
	}
	return &in.fns[tt.Payload], true
}
