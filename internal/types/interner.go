package types

import (
	"fmt"

	"fortio.org/safecast"

	"tabi/internal/source"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Void      TypeID
	Noreturn  TypeID
	Null      TypeID
	Bool      TypeID
	Int8      TypeID
	Uint8     TypeID
	Int16     TypeID
	Uint16    TypeID
	Int32     TypeID
	Uint32    TypeID
	Int64     TypeID
	Uint64    TypeID
	Float32   TypeID
	Float64   TypeID
	Float80   TypeID
	Complex32 TypeID
	Complex64 TypeID
	Complex80 TypeID
	VoidPtr   TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// Nominal kinds (struct, class, enum, function) get a fresh ID per
// registration and keep their metadata in side tables.
type Interner struct {
	Strings *source.Interner

	types    []Type
	index    map[typeKey]TypeID
	builtins Builtins
	structs  []StructInfo
	classes  []ClassInfo
	enums    []EnumInfo
	fns      []FnInfo

	typeLayoutAttrs map[TypeID]LayoutAttrs
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		Strings: source.NewInterner(),
		index:   make(map[typeKey]TypeID, 64),
	}
	// slot 0 of every side table is the invalid sentinel
	in.structs = append(in.structs, StructInfo{})
	in.classes = append(in.classes, ClassInfo{})
	in.enums = append(in.enums, EnumInfo{})
	in.fns = append(in.fns, FnInfo{})
	in.internRaw(Type{Kind: KindInvalid})

	b := &in.builtins
	b.Void = in.Intern(Type{Kind: KindVoid})
	b.Noreturn = in.Intern(Type{Kind: KindNoreturn})
	b.Null = in.Intern(Type{Kind: KindNull})
	b.Bool = in.Intern(Type{Kind: KindBool})
	b.Int8 = in.Intern(MakeInt(Width8))
	b.Uint8 = in.Intern(MakeUint(Width8))
	b.Int16 = in.Intern(MakeInt(Width16))
	b.Uint16 = in.Intern(MakeUint(Width16))
	b.Int32 = in.Intern(MakeInt(Width32))
	b.Uint32 = in.Intern(MakeUint(Width32))
	b.Int64 = in.Intern(MakeInt(Width64))
	b.Uint64 = in.Intern(MakeUint(Width64))
	b.Float32 = in.Intern(MakeFloat(Width32))
	b.Float64 = in.Intern(MakeFloat(Width64))
	b.Float80 = in.Intern(MakeFloat(Width80))
	b.Complex32 = in.Intern(MakeComplex(Width32))
	b.Complex64 = in.Intern(MakeComplex(Width64))
	b.Complex80 = in.Intern(MakeComplex(Width80))
	b.VoidPtr = in.Intern(MakePointer(b.Void))
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	n, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(n)
	in.types = append(in.types, t)
	in.index[typeKey(t)] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if in == nil || id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Base strips enums down to their base type. Other types are returned as is.
func (in *Interner) Base(id TypeID) TypeID {
	for range 16 {
		tt, ok := in.Lookup(id)
		if !ok || tt.Kind != KindEnum {
			return id
		}
		info, ok := in.EnumInfo(id)
		if !ok || info.Base == NoTypeID {
			return id
		}
		id = info.Base
	}
	return id
}

// BaseKind is the Kind of Base(id), KindInvalid for unknown IDs.
func (in *Interner) BaseKind(id TypeID) Kind {
	tt, ok := in.Lookup(in.Base(id))
	if !ok {
		return KindInvalid
	}
	return tt.Kind
}

// Same reports whether a and b denote the same type after enum stripping.
func (in *Interner) Same(a, b TypeID) bool {
	return a == b || in.Base(a) == in.Base(b)
}

type typeKey struct {
	Kind    Kind
	Elem    TypeID
	Count   uint32
	Width   Width
	Payload uint32
}
